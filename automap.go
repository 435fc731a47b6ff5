/*
Copyright © 2026 the automap authors.
This file is part of automap.

automap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

automap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with automap.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package automap converts gridded NetCDF variables into rasters and
// exports batches of thematic maps. The functionality lives in the
// ncraster, thematic and cloud packages and the command-line interface
// in automaputil.
package automap

// Version gives the version number.
const Version = "1.0.0"
