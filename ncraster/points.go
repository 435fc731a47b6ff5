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

package ncraster

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// dbfNameLength is the maximum length of a dBase field name.
const dbfNameLength = 10

// WritePoints writes the grid points of g as an XY event layer: a
// point shapefile at path with one feature per non-missing value and a
// single attribute field named after the variable.
func WritePoints(path string, g *Grid) (string, error) {
	path = strings.TrimSuffix(path, ".shp")
	name := g.Name
	if len(name) > dbfNameLength {
		name = name[:dbfNameLength]
	}
	e, err := shp.NewEncoderFromFields(path+".shp", goshp.POINT, goshp.FloatField(name, 24, 10))
	if err != nil {
		return "", fmt.Errorf("ncraster: creating point layer for %s: %w", g.Name, err)
	}
	for j, lat := range g.Lats {
		for i, lon := range g.Lons {
			v := g.At(j, i)
			if math.IsNaN(v) || math.IsNaN(lat) || math.IsNaN(lon) {
				continue
			}
			if err := e.EncodeFields(geom.Point{X: lon, Y: lat}, v); err != nil {
				e.Close()
				return "", fmt.Errorf("ncraster: writing point layer for %s: %w", g.Name, err)
			}
		}
	}
	e.Close()
	if err := writePrj(path); err != nil {
		return "", err
	}
	return path + ".shp", nil
}
