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
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const testPRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// writeTestWorkbook creates a workbook with a data sheet and a field
// sheet.
func writeTestWorkbook(t *testing.T, path string) {
	f := xlsx.NewFile()
	sheets := map[string][][]string{
		"ForMaps": {
			{"CntryCode", "Population Density", "GDP per capita", ""},
			{"AAA", "10", "1000"},
			{"BBB", "20", "2000"},
			{"CCC", "30", "n/a"},
			{"AAA", "99", "99"},
			{"", "", ""},
		},
		"FieldTable": {
			{"FieldShort", "TitleOne", "TitleTwo"},
			{"Population Density", "Population density", "people per km2"},
			{"GDP per capita", "GDP per capita", ""},
			{"Literacy", "Literacy rate", ""},
		},
	}
	for _, name := range []string{"ForMaps", "FieldTable"} {
		s, err := f.AddSheet(name)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range sheets[name] {
			row := s.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
}

func square(x, y float64) geom.Polygon {
	return geom.Polygon{{{X: x, Y: y}, {X: x + 1, Y: y}, {X: x + 1, Y: y + 1}, {X: x, Y: y + 1}, {X: x, Y: y}}}
}

// writeTestCountries creates a shapefile with four square countries.
func writeTestCountries(t *testing.T, path string) {
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.StringField("CntryCode", 3), goshp.StringField("Name", 16))
	if err != nil {
		t.Fatal(err)
	}
	countries := []struct {
		code, name string
		x, y       float64
	}{
		{"AAA", "Aland", 0, 0},
		{"BBB", "Bland", 1, 0},
		{"CCC", "Cland", 0, 1},
		{"DDD", "Dland", 1, 1},
	}
	for _, c := range countries {
		if err := e.EncodeFields(square(c.x, c.y), c.code, c.name); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(testPRJ), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadSheet(t *testing.T) {
	dir := t.TempDir()
	wb := filepath.Join(dir, "MapData.xlsx")
	writeTestWorkbook(t, wb)

	tbl, err := ReadSheet(wb, "ForMaps$")
	if err != nil {
		t.Fatal(err)
	}
	wantFields := []string{"CntryCode", "Population Density", "GDP per capita"}
	if !reflect.DeepEqual(tbl.Fields, wantFields) {
		t.Errorf("fields: have %v, want %v", tbl.Fields, wantFields)
	}
	if len(tbl.Rows) != 4 {
		t.Fatalf("have %d rows, want 4", len(tbl.Rows))
	}
	if v, ok := tbl.Float(1, "population density"); !ok || v != 20 {
		t.Errorf("Float: have %g %v, want 20 true", v, ok)
	}
	if _, ok := tbl.Float(2, "GDP per capita"); ok {
		t.Error("non-numeric value should not parse")
	}

	if _, err := ReadSheet(wb, "Nope$"); err == nil {
		t.Error("expected an error for a missing sheet")
	}

	csvPath := filepath.Join(dir, "copy.csv")
	if err := WriteTable(tbl, csvPath); err != nil {
		t.Fatal(err)
	}
	back, err := ReadSheet(csvPath, "copy")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Fields, tbl.Fields) || !reflect.DeepEqual(back.Rows, tbl.Rows) {
		t.Errorf("csv copy: have %v %v, want %v %v", back.Fields, back.Rows, tbl.Fields, tbl.Rows)
	}
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "countries.shp")
	writeTestCountries(t, shpPath)
	wb := filepath.Join(dir, "MapData.xlsx")
	writeTestWorkbook(t, wb)

	l, err := ReadLayer(shpPath, "countries")
	if err != nil {
		t.Fatal(err)
	}
	if l.SR == nil {
		t.Error("projection was not read")
	}
	tbl, err := ReadSheet(wb, "ForMaps")
	if err != nil {
		t.Fatal(err)
	}
	j, err := l.Join("CntryCode", tbl, "CntryCode")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Fields) != 2 {
		t.Errorf("source layer was modified: %v", l.Fields)
	}
	wantFields := []Field{
		{Name: "CntryCode", Alias: "CntryCode"},
		{Name: "Name", Alias: "Name"},
		{Name: "Population", Alias: "Population Density"},
		{Name: "GDP_per_ca", Alias: "GDP per capita"},
	}
	if !reflect.DeepEqual(j.Fields, wantFields) {
		t.Errorf("fields: have %v, want %v", j.Fields, wantFields)
	}
	f, ok := j.FieldByAlias("Population Density")
	if !ok || f.Name != "Population" {
		t.Errorf("FieldByAlias: have %v %v", f, ok)
	}
	vals, valid, err := j.Values(f.Name)
	if err != nil {
		t.Fatal(err)
	}
	wantVals := []float64{10, 20, 30, 0}
	wantValid := []bool{true, true, true, false}
	if !reflect.DeepEqual(vals, wantVals) || !reflect.DeepEqual(valid, wantValid) {
		t.Errorf("values: have %v %v, want %v %v", vals, valid, wantVals, wantValid)
	}

	if _, err := l.Join("Missing", tbl, "CntryCode"); err == nil {
		t.Error("expected an error for a missing layer key")
	}
	if _, err := l.Join("CntryCode", tbl, "Missing"); err == nil {
		t.Error("expected an error for a missing table key")
	}

	out := filepath.Join(dir, "out.shp")
	if err := j.WriteShapefile(out); err != nil {
		t.Fatal(err)
	}
	dbf, err := goshp.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	var numeric int
	for _, f := range dbf.Fields() {
		if f.Fieldtype != 'F' {
			continue
		}
		numeric++
		if f.Size > 20 {
			t.Errorf("numeric field %s is %d characters wide", f, f.Size)
		}
	}
	dbf.Close()
	if numeric == 0 {
		t.Error("no numeric fields were written")
	}

	back, err := ReadLayer(out, "out")
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Features) != 4 || len(back.Fields) != 4 {
		t.Fatalf("copied layer has %d features and %d fields", len(back.Features), len(back.Fields))
	}
	if back.PRJ != testPRJ {
		t.Error("projection file was not copied")
	}
	bv, bvalid, err := back.Values("Population")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(bv, wantVals) || !reflect.DeepEqual(bvalid, wantValid) {
		t.Errorf("copied values: have %v %v", bv, bvalid)
	}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{"cntrycode": true}
	for _, test := range []struct{ in, want string }{
		{"CntryCode", "CntryCode1"},
		{"Population Density", "Population"},
		{"Population Total", "Populatio1"},
		{"GDP", "GDP"},
	} {
		if have := uniqueName(test.in, taken); have != test.want {
			t.Errorf("uniqueName(%q) = %q, want %q", test.in, have, test.want)
		}
	}
}

func TestReadTitles(t *testing.T) {
	tbl := &Table{
		Name:   "FieldTable",
		Fields: []string{"FieldShort", "TitleOne", "TitleTwo"},
		Rows: [][]string{
			{"a", "A", "first"},
			{"", "ignored", ""},
			{"b", "B", ""},
			{"a", "A2", "second"},
		},
	}
	titles, err := ReadTitles(tbl)
	if err != nil {
		t.Fatal(err)
	}
	want := TitleSet{{"a", "A2", "second"}, {"b", "B", ""}}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("have %v, want %v", titles, want)
	}
	if have := titles[0].Text(); have != "A2\nsecond" {
		t.Errorf("Text: have %q", have)
	}
	if have := titles[1].Text(); have != "B\n" {
		t.Errorf("Text without subtitle: have %q", have)
	}
	if have := titles.Fields(); !reflect.DeepEqual(have, []string{"a", "b"}) {
		t.Errorf("Fields: have %v", have)
	}
	if _, err := ReadTitles(&Table{Name: "x", Fields: []string{"FieldShort"}}); err == nil {
		t.Error("expected an error for a table without titles")
	}
}

func TestSymbology(t *testing.T) {
	s := &Symbology{
		Breaks: []float64{10, 20, 30},
		Colors: []string{"#ffffcc", "#41b6c4", "#225ea8"},
	}
	if err := s.check(); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		v    float64
		want int
	}{
		{-5, 0}, {10, 0}, {10.5, 1}, {20, 1}, {25, 2}, {1000, 2}, {math.NaN(), -1},
	} {
		if have := s.Class(test.v); have != test.want {
			t.Errorf("Class(%g) = %d, want %d", test.v, have, test.want)
		}
	}
	wantLabels := []string{"<= 10", "10 - 20", "> 20"}
	if have := s.LegendLabels(); !reflect.DeepEqual(have, wantLabels) {
		t.Errorf("labels: have %v, want %v", have, wantLabels)
	}
	if c := s.Color(-1); c.R != 0xd9 || c.A != 0xff {
		t.Errorf("no-data color: have %v", c)
	}

	bad := &Symbology{Breaks: []float64{2, 1}, Colors: []string{"#000000", "#ffffff"}}
	if err := bad.check(); err == nil {
		t.Error("expected an error for unsorted breaks")
	}
	bad = &Symbology{Breaks: []float64{1}, Colors: []string{"#000000", "#ffffff"}}
	if err := bad.check(); err == nil {
		t.Error("expected an error for mismatched colors")
	}
}

func TestReadSymbology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbology.toml")
	const doc = `Breaks = [1.0, 5.0]
Colors = ["#ffffcc", "#225ea8"]
Labels = ["low", "high"]
OutlineColor = "#000000"
OutlineWidth = 0.5
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := ReadSymbology(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.LegendLabels(), []string{"low", "high"}) || s.OutlineWidth != 0.5 {
		t.Errorf("have %+v", s)
	}
}

func TestQuantileSymbology(t *testing.T) {
	vals := []float64{8, 1, 2, math.NaN(), 3, 4, 5, 6, 7}
	s, err := QuantileSymbology(vals, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 4, 6, 8}
	if !reflect.DeepEqual(s.Breaks, want) {
		t.Errorf("breaks: have %v, want %v", s.Breaks, want)
	}
	if len(s.Colors) != 4 || s.Colors[0] != defaultRamp[0] || s.Colors[3] != defaultRamp[len(defaultRamp)-1] {
		t.Errorf("colors: have %v", s.Colors)
	}

	s, err = QuantileSymbology([]float64{3, 3, 3}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Breaks, []float64{3}) {
		t.Errorf("constant data: have breaks %v", s.Breaks)
	}
	if _, err := QuantileSymbology([]float64{math.NaN()}, 5); err == nil {
		t.Error("expected an error with no values")
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#41b6c4")
	if err != nil {
		t.Fatal(err)
	}
	if c.R != 0x41 || c.G != 0xb6 || c.B != 0xc4 || c.A != 0xff {
		t.Errorf("have %v", c)
	}
	c, err = ParseColor("#00000080")
	if err != nil || c.A != 0x80 {
		t.Errorf("have %v %v", c, err)
	}
	for _, bad := range []string{"", "#fff", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) should fail", bad)
		}
	}
}

func TestMapDocument(t *testing.T) {
	dir := t.TempDir()
	doc := DefaultMapDocument()
	doc.Title = "GDP\nper capita"
	doc.ValueField = "GDP_per_ca"
	doc.Background = []BackgroundLayer{{Name: "land", Shapefile: "land.shp", Fill: "#eeeeee"}}
	doc.Symbology = &Symbology{Breaks: []float64{1}, Colors: []string{"#000000"}}
	path := filepath.Join(dir, "doc.toml")
	if err := doc.SaveACopy(path); err != nil {
		t.Fatal(err)
	}
	back, err := ReadMapDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Title != doc.Title || back.ValueField != doc.ValueField || back.PageWidth != 11 ||
		len(back.Background) != 1 || back.Background[0].Fill != "#eeeeee" ||
		back.Symbology == nil || back.Symbology.Colors[0] != "#000000" {
		t.Errorf("have %+v", back)
	}

	cp := doc.Copy()
	cp.Symbology.Breaks[0] = 5
	cp.Background[0].Name = "changed"
	if doc.Symbology.Breaks[0] != 1 || doc.Background[0].Name != "land" {
		t.Error("Copy shares state with the original")
	}
}

func TestRenderReprojects(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "countries.shp")
	writeTestCountries(t, shpPath)
	data, err := ReadLayer(shpPath, "countries")
	if err != nil {
		t.Fatal(err)
	}
	data.PRJ = "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"
	if data.SR, err = proj.Parse(data.PRJ); err != nil {
		t.Fatal(err)
	}

	doc := DefaultMapDocument()
	doc.Background = []BackgroundLayer{{Name: "land", Shapefile: "countries.shp"}}
	r, err := NewRenderer(doc, data, dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if b := layerBounds(r.Background[0]); !(b.Max.X > 200000 && b.Max.X < 250000) {
		t.Errorf("background was not reprojected: bounds %v", b)
	}
	if b := layerBounds(r.Data); b.Max.X != 2 {
		t.Errorf("data layer changed: bounds %v", b)
	}

	doc.ValueField = "CntryCode"
	if err := r.ExportToPDF(filepath.Join(dir, "x.pdf")); err == nil {
		t.Error("expected an error when the value field has no numbers")
	}
}

func TestPolygonPath(t *testing.T) {
	c := draw.Canvas{Rectangle: vg.Rectangle{Max: vg.Point{X: 100, Y: 100}}}
	m := newMapTransform(c, &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1, Y: 1}})

	p := m.polygonPath(square(0, 0))
	want := vg.Path{
		{Type: vg.MoveComp, Pos: vg.Point{X: 0, Y: 0}},
		{Type: vg.LineComp, Pos: vg.Point{X: 100, Y: 0}},
		{Type: vg.LineComp, Pos: vg.Point{X: 100, Y: 100}},
		{Type: vg.LineComp, Pos: vg.Point{X: 0, Y: 100}},
		{Type: vg.LineComp, Pos: vg.Point{X: 0, Y: 0}},
		{Type: vg.CloseComp},
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("have %v, want %v", p, want)
	}

	holed := geom.Polygon{square(0, 0)[0], {{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 0.25, Y: 0.25}}}
	var moves, closes int
	for _, pc := range m.polygonPath(holed) {
		switch pc.Type {
		case vg.MoveComp:
			moves++
		case vg.CloseComp:
			closes++
		}
	}
	if moves != 2 || closes != 2 {
		t.Errorf("a polygon with a hole should have 2 closed subpaths; have %d moves and %d closes", moves, closes)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeTestWorkbook(t, filepath.Join(dir, "MapData.xlsx"))
	writeTestCountries(t, filepath.Join(dir, "worldCountries.shp"))

	log := logrus.New()
	var logBuf bytes.Buffer
	log.Out = &logBuf

	a := &Automap{
		Config: Config{
			WorkDir:    dir,
			Background: "#",
			Workbook:   "",
			DataSheet:  "#",
			FieldSheet: "#",
			Workspace:  "#",
			Shapefile:  "#",
			Symbology:  "#",
			KeyField:   "#",
		},
		Log: log,
	}
	rep, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ws := filepath.Join(dir, "data.gdb")
	wantTables := []string{filepath.Join(ws, DataTableFile), filepath.Join(ws, TitleTableFile)}
	if !reflect.DeepEqual(rep.Tables, wantTables) {
		t.Errorf("tables: have %v, want %v", rep.Tables, wantTables)
	}
	wantMaps := []string{
		filepath.Join(dir, "Population Density.pdf"),
		filepath.Join(dir, "GDP per capita.pdf"),
	}
	if !reflect.DeepEqual(rep.Maps, wantMaps) {
		t.Errorf("maps: have %v, want %v", rep.Maps, wantMaps)
	}
	if !reflect.DeepEqual(rep.Skipped, []string{"Literacy"}) {
		t.Errorf("skipped: have %v", rep.Skipped)
	}
	if !strings.Contains(logBuf.String(), "Literacy") {
		t.Error("skipped field was not logged")
	}
	files := make(map[string]bool)
	for _, f := range rep.Files() {
		files[f] = true
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}
	for _, name := range []string{MapDataFile, "mapData.shx", "mapData.dbf", "mapData.prj", MapDataJSON} {
		if !files[filepath.Join(ws, name)] {
			t.Errorf("%s is not among the reported files %v", name, rep.Files())
		}
	}
	for _, m := range rep.Maps {
		b, err := os.ReadFile(m)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(b, []byte("%PDF")) {
			t.Errorf("%s is not a PDF", m)
		}
	}

	doc, err := ReadMapDocument(filepath.Join(dir, "Population Density.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.ValueField != "Population" || doc.Title != "Population density\npeople per km2" {
		t.Errorf("saved document: %+v", doc)
	}
	if doc.DataLayer != filepath.Join(ws, MapDataFile) {
		t.Errorf("data layer: have %s", doc.DataLayer)
	}
	if doc.Symbology == nil {
		t.Fatal("saved document has no symbology")
	}
	if want := []float64{10, 20, 30}; !reflect.DeepEqual(doc.Symbology.Breaks, want) {
		t.Errorf("saved breaks: have %v, want %v", doc.Symbology.Breaks, want)
	}
	if len(doc.Symbology.Colors) != len(doc.Symbology.Breaks) {
		t.Errorf("saved colors: %v", doc.Symbology.Colors)
	}

	gdp, err := ReadMapDocument(filepath.Join(dir, "GDP per capita.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if gdp.Title != "GDP per capita\n" {
		t.Errorf("title without subtitle: have %q", gdp.Title)
	}
}

func TestRunMissingWorkbook(t *testing.T) {
	log := logrus.New()
	log.Out = new(bytes.Buffer)
	a := &Automap{Config: Config{WorkDir: t.TempDir()}, Log: log}
	if _, err := a.Run(context.Background()); err == nil {
		t.Error("expected an error for a missing workbook")
	}
}
