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

// Command automap converts NetCDF variables to rasters and exports
// thematic maps of spreadsheet data.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/automap/automaputil"
)

func main() {
	if err := automaputil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(automaputil.ExitCode(err))
	}
}
