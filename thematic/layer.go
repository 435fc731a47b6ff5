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

package thematic

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
)

// dbfNameLength is the maximum length of a dBase field name.
const dbfNameLength = 10

// Field is an attribute field of a layer. Name is the name the
// field is stored under and Alias is the full name it came from.
type Field struct {
	Name, Alias string
}

// Feature is a layer geometry and its attribute values, in the
// order of the layer's fields.
type Feature struct {
	Geom  geom.Geom
	Attrs []string
}

// Layer is an in-memory feature layer.
type Layer struct {
	Name string

	// SR is the spatial reference of the features. It is nil when
	// the source has no projection file.
	SR *proj.SR

	// PRJ holds the text of the source projection file.
	PRJ string

	Fields   []Field
	Features []Feature
}

// ReadLayer makes a feature layer from a shapefile.
func ReadLayer(shapefile, name string) (*Layer, error) {
	d, err := shp.NewDecoder(shapefile)
	if err != nil {
		return nil, fmt.Errorf("thematic: opening shapefile %s: %w", shapefile, err)
	}
	defer d.Close()

	l := &Layer{Name: name}
	var names []string
	for _, f := range d.Fields() {
		n := strings.TrimRight(string(f.Name[:]), "\x00")
		names = append(names, n)
		l.Fields = append(l.Fields, Field{Name: n, Alias: n})
	}
	for {
		g, fields, more := d.DecodeRowFields(names...)
		if !more {
			break
		}
		attrs := make([]string, len(names))
		for i, n := range names {
			attrs[i] = strings.TrimSpace(fields[n])
		}
		l.Features = append(l.Features, Feature{Geom: g, Attrs: attrs})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("thematic: reading shapefile %s: %w", shapefile, err)
	}

	prjPath := strings.TrimSuffix(shapefile, ".shp") + ".prj"
	if b, err := os.ReadFile(prjPath); err == nil {
		l.PRJ = string(b)
		if l.SR, err = proj.Parse(l.PRJ); err != nil {
			return nil, fmt.Errorf("thematic: parsing projection of %s: %w", shapefile, err)
		}
	}
	return l, nil
}

// FieldIndex returns the index of the field with the given name,
// compared without regard to case, or -1.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// FieldByAlias returns the field whose alias is alias. If there is
// none, the field named alias is returned instead.
func (l *Layer) FieldByAlias(alias string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Alias == alias {
			return f, true
		}
	}
	if i := l.FieldIndex(alias); i >= 0 {
		return l.Fields[i], true
	}
	return Field{}, false
}

// Values returns the numeric values of field, with ok[i] false where
// feature i has an empty or non-numeric value.
func (l *Layer) Values(field string) (vals []float64, ok []bool, err error) {
	i := l.FieldIndex(field)
	if i < 0 {
		return nil, nil, fmt.Errorf("thematic: layer %s has no field %s", l.Name, field)
	}
	vals = make([]float64, len(l.Features))
	ok = make([]bool, len(l.Features))
	for j, f := range l.Features {
		if v, err := strconv.ParseFloat(f.Attrs[i], 64); err == nil {
			vals[j], ok[j] = v, true
		}
	}
	return vals, ok, nil
}

// Join returns a copy of l with the fields of t appended to each
// feature whose key field matches t's tableKey field. The table key
// is not duplicated in the result. Features without a match get empty
// values and, if the table lists a key more than once, the first row
// is used.
func (l *Layer) Join(key string, t *Table, tableKey string) (*Layer, error) {
	ki := l.FieldIndex(key)
	if ki < 0 {
		return nil, fmt.Errorf("thematic: layer %s has no join field %s", l.Name, key)
	}
	tki := t.Index(tableKey)
	if tki < 0 {
		return nil, fmt.Errorf("thematic: table %s has no join field %s", t.Name, tableKey)
	}

	rows := make(map[string]int)
	for j, r := range t.Rows {
		k := strings.TrimSpace(r[tki])
		if _, ok := rows[k]; !ok {
			rows[k] = j
		}
	}

	o := &Layer{
		Name:   l.Name,
		SR:     l.SR,
		PRJ:    l.PRJ,
		Fields: append([]Field{}, l.Fields...),
	}
	taken := make(map[string]bool)
	for _, f := range l.Fields {
		taken[strings.ToLower(f.Name)] = true
	}
	var cols []int
	for i, name := range t.Fields {
		if i == tki {
			continue
		}
		cols = append(cols, i)
		o.Fields = append(o.Fields, Field{Name: uniqueName(name, taken), Alias: name})
	}
	for _, f := range l.Features {
		attrs := append([]string{}, f.Attrs...)
		j, ok := rows[strings.TrimSpace(f.Attrs[ki])]
		for _, c := range cols {
			if ok {
				attrs = append(attrs, t.Rows[j][c])
			} else {
				attrs = append(attrs, "")
			}
		}
		o.Features = append(o.Features, Feature{Geom: f.Geom, Attrs: attrs})
	}
	return o, nil
}

// uniqueName shortens name to a valid dBase field name that is not
// already in taken, and adds it to taken.
func uniqueName(name string, taken map[string]bool) string {
	n := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return '_'
		}
		return r
	}, name)
	if len(n) > dbfNameLength {
		n = n[:dbfNameLength]
	}
	base := n
	for i := 1; taken[strings.ToLower(n)]; i++ {
		suffix := strconv.Itoa(i)
		if len(base)+len(suffix) > dbfNameLength {
			n = base[:dbfNameLength-len(suffix)] + suffix
		} else {
			n = base + suffix
		}
	}
	taken[strings.ToLower(n)] = true
	return n
}

// shapeType returns the shapefile type that holds g, and g converted
// into a geometry the shapefile encoder accepts.
func shapeType(g geom.Geom) (goshp.ShapeType, geom.Geom, error) {
	switch t := g.(type) {
	case geom.Point:
		return goshp.POINT, t, nil
	case geom.MultiPoint:
		return goshp.MULTIPOINT, t, nil
	case geom.LineString:
		return goshp.POLYLINE, geom.MultiLineString{t}, nil
	case geom.MultiLineString:
		return goshp.POLYLINE, t, nil
	case geom.Polygon:
		return goshp.POLYGON, t, nil
	case geom.MultiPolygon:
		var p geom.Polygon
		for _, pp := range t {
			p = append(p, pp...)
		}
		return goshp.POLYGON, p, nil
	default:
		return goshp.NULL, nil, fmt.Errorf("thematic: unsupported geometry type %T", g)
	}
}

// isNumeric reports whether every non-empty value in column i is a
// number and at least one value is present.
func (l *Layer) isNumeric(i int) bool {
	var any bool
	for _, f := range l.Features {
		s := f.Attrs[i]
		if s == "" {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
		any = true
	}
	return any
}

// maxNumericWidth keeps numeric fields within the dBase limit of 20
// characters.
const maxNumericWidth = 19

// WriteShapefile copies the features of l to a new shapefile at path.
// Numeric columns are stored as floating point fields and the others
// as text. The source projection file, if any, is copied alongside.
func (l *Layer) WriteShapefile(path string) error {
	path = strings.TrimSuffix(path, ".shp")
	if len(l.Features) == 0 {
		return fmt.Errorf("thematic: layer %s has no features to copy", l.Name)
	}
	st, _, err := shapeType(l.Features[0].Geom)
	if err != nil {
		return err
	}

	numeric := make([]bool, len(l.Fields))
	fields := make([]goshp.Field, len(l.Fields))
	for i, f := range l.Fields {
		numeric[i] = l.isNumeric(i)
		if numeric[i] {
			fields[i] = goshp.FloatField(f.Name, maxNumericWidth, 8)
			continue
		}
		n := 1
		for _, feat := range l.Features {
			if len(feat.Attrs[i]) > n {
				n = len(feat.Attrs[i])
			}
		}
		if n > 254 {
			n = 254
		}
		fields[i] = goshp.StringField(f.Name, uint8(n))
	}

	e, err := shp.NewEncoderFromFields(path+".shp", st, fields...)
	if err != nil {
		return fmt.Errorf("thematic: creating shapefile %s.shp: %w", path, err)
	}
	for j, feat := range l.Features {
		fst, g, err := shapeType(feat.Geom)
		if err != nil {
			e.Close()
			return err
		}
		if fst != st {
			e.Close()
			return fmt.Errorf("thematic: feature %d of layer %s is %T but the layer holds shape type %d", j, l.Name, feat.Geom, st)
		}
		vals := make([]interface{}, len(feat.Attrs))
		for i, a := range feat.Attrs {
			vals[i] = a
			if numeric[i] && a != "" {
				v, _ := strconv.ParseFloat(a, 64)
				vals[i] = v
			}
		}
		if err := e.EncodeFields(g, vals...); err != nil {
			e.Close()
			return fmt.Errorf("thematic: writing feature %d to %s.shp: %w", j, path, err)
		}
	}
	e.Close()

	if l.PRJ != "" {
		if err := os.WriteFile(path+".prj", []byte(l.PRJ), 0644); err != nil {
			return fmt.Errorf("thematic: writing projection file: %w", err)
		}
	}
	return nil
}

type geoJSONFeature struct {
	Type       string            `json:"type"`
	Geometry   json.RawMessage   `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

// WriteGeoJSON writes l as a GeoJSON feature collection, with
// attributes keyed by field alias.
func (l *Layer) WriteGeoJSON(path string) error {
	fc := struct {
		Type     string           `json:"type"`
		Features []geoJSONFeature `json:"features"`
	}{Type: "FeatureCollection"}
	for j, f := range l.Features {
		g, err := geojson.Encode(f.Geom)
		if err != nil {
			return fmt.Errorf("thematic: encoding feature %d of layer %s: %w", j, l.Name, err)
		}
		props := make(map[string]string, len(l.Fields))
		for i, fld := range l.Fields {
			props[fld.Alias] = f.Attrs[i]
		}
		fc.Features = append(fc.Features, geoJSONFeature{Type: "Feature", Geometry: g, Properties: props})
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("thematic: encoding layer %s: %w", l.Name, err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("thematic: writing %s: %w", path, err)
	}
	return nil
}
