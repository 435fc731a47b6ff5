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
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"
)

const (
	pageMargin     = 0.25 * vg.Inch
	titleHeight    = 0.8 * vg.Inch
	legendWidth    = 2 * vg.Inch
	legendSwatch   = 0.2 * vg.Inch
	defaultClasses = 5
)

// Renderer draws a map document and its data layer.
type Renderer struct {
	Doc  *MapDocument
	Data *Layer

	// Background holds the document's background layers, in
	// drawing order, in the spatial reference of Data.
	Background []*Layer
}

// NewRenderer loads the background layers of doc, resolving relative
// shapefile paths against dir, and reprojects them to the spatial
// reference of data when both are known and differ. If simplify is
// greater than zero, all geometry is simplified with that tolerance.
func NewRenderer(doc *MapDocument, data *Layer, dir string, simplify float64) (*Renderer, error) {
	r := &Renderer{Doc: doc, Data: simplifyLayer(data, simplify)}
	for _, b := range doc.Background {
		path := b.Shapefile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		l, err := ReadLayer(path, b.Name)
		if err != nil {
			return nil, err
		}
		if l, err = reproject(l, data); err != nil {
			return nil, err
		}
		r.Background = append(r.Background, simplifyLayer(l, simplify))
	}
	return r, nil
}

// reproject returns l in the spatial reference of dst.
func reproject(l, dst *Layer) (*Layer, error) {
	if l.SR == nil || dst.SR == nil || l.SR.Equal(dst.SR, 8) {
		return l, nil
	}
	t, err := l.SR.NewTransform(dst.SR)
	if err != nil {
		return nil, fmt.Errorf("thematic: reprojecting layer %s: %w", l.Name, err)
	}
	o := *l
	o.SR, o.PRJ = dst.SR, dst.PRJ
	o.Features = make([]Feature, len(l.Features))
	for i, f := range l.Features {
		g, err := f.Geom.Transform(t)
		if err != nil {
			return nil, fmt.Errorf("thematic: reprojecting feature %d of layer %s: %w", i, l.Name, err)
		}
		o.Features[i] = Feature{Geom: g, Attrs: f.Attrs}
	}
	return &o, nil
}

func simplifyLayer(l *Layer, tolerance float64) *Layer {
	if tolerance <= 0 {
		return l
	}
	o := *l
	o.Features = make([]Feature, len(l.Features))
	for i, f := range l.Features {
		o.Features[i] = f
		if s, ok := f.Geom.(geom.Simplifier); ok {
			o.Features[i].Geom = s.Simplify(tolerance)
		}
	}
	return &o
}

// symbology returns the document symbology, or quantile classes of
// the values when the document has none.
func (r *Renderer) symbology(vals []float64) (*Symbology, error) {
	if r.Doc.Symbology != nil {
		return r.Doc.Symbology, nil
	}
	return QuantileSymbology(vals, defaultClasses)
}

// values returns the value of the document's value field for each
// data feature, with NaN where it is missing.
func (r *Renderer) values() ([]float64, error) {
	if r.Doc.ValueField == "" {
		return nil, fmt.Errorf("thematic: map document has no value field")
	}
	vals, ok, err := r.Data.Values(r.Doc.ValueField)
	if err != nil {
		return nil, err
	}
	for i := range vals {
		if !ok[i] {
			vals[i] = math.NaN()
		}
	}
	return vals, nil
}

// ExportToPDF draws the map and writes it to a PDF file at path.
func (r *Renderer) ExportToPDF(path string) error {
	vals, err := r.values()
	if err != nil {
		return err
	}
	sym, err := r.symbology(vals)
	if err != nil {
		return err
	}

	w, h := vg.Length(r.Doc.PageWidth)*vg.Inch, vg.Length(r.Doc.PageHeight)*vg.Inch
	pdf := vgpdf.New(w, h)
	c := draw.New(pdf)
	c = draw.Crop(c, pageMargin, -pageMargin, pageMargin, -pageMargin)

	if r.Doc.Title != "" {
		if err := drawTitle(draw.Crop(c, 0, 0, c.Max.Y-c.Min.Y-titleHeight, 0), r.Doc.Title); err != nil {
			return err
		}
		c = draw.Crop(c, 0, 0, 0, -titleHeight)
	}
	if r.Doc.Legend {
		if err := drawLegend(draw.Crop(c, c.Max.X-c.Min.X-legendWidth, 0, 0, 0), sym); err != nil {
			return err
		}
		c = draw.Crop(c, 0, -legendWidth, 0, 0)
	}

	b := layerBounds(r.Data)
	if b == nil {
		return fmt.Errorf("thematic: layer %s has no features to draw", r.Data.Name)
	}
	m := newMapTransform(c, b)
	for i, l := range r.Background {
		var fill, stroke color.Color = nil, color.NRGBA{R: 150, G: 150, B: 150, A: 255}
		s := r.Doc.Background[i]
		if s.Fill != "" {
			if fill, err = ParseColor(s.Fill); err != nil {
				return err
			}
		}
		if s.Stroke != "" {
			if stroke, err = ParseColor(s.Stroke); err != nil {
				return err
			}
		}
		for _, f := range l.Features {
			m.draw(c, f.Geom, fill, stroke, 0.5)
		}
	}
	outline := sym.Outline()
	width := sym.OutlineWidth
	if width <= 0 {
		width = 0.25
	}
	for i, f := range r.Data.Features {
		m.draw(c, f.Geom, sym.Color(sym.Class(vals[i])), outline, vg.Length(width))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("thematic: creating %s: %w", path, err)
	}
	if _, err := pdf.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("thematic: writing %s: %w", path, err)
	}
	return f.Close()
}

func layerBounds(l *Layer) *geom.Bounds {
	var b *geom.Bounds
	for _, f := range l.Features {
		if f.Geom == nil {
			continue
		}
		if b == nil {
			b = geom.NewBounds()
		}
		b.Extend(f.Geom.Bounds())
	}
	return b
}

// mapTransform converts layer coordinates to page coordinates,
// keeping the aspect ratio and centering the map in its area.
type mapTransform struct {
	b      *geom.Bounds
	scale  float64
	x0, y0 vg.Length
}

func newMapTransform(c draw.Canvas, b *geom.Bounds) *mapTransform {
	dx, dy := b.Max.X-b.Min.X, b.Max.Y-b.Min.Y
	cw, ch := float64(c.Max.X-c.Min.X), float64(c.Max.Y-c.Min.Y)
	scale := 1.0
	switch {
	case dx > 0 && dy > 0:
		scale = minFloat(cw/dx, ch/dy)
	case dx > 0:
		scale = cw / dx
	case dy > 0:
		scale = ch / dy
	}
	return &mapTransform{
		b:     b,
		scale: scale,
		x0:    c.Min.X + vg.Length((cw-dx*scale)/2),
		y0:    c.Min.Y + vg.Length((ch-dy*scale)/2),
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func (m *mapTransform) point(p geom.Point) vg.Point {
	return vg.Point{
		X: m.x0 + vg.Length((p.X-m.b.Min.X)*m.scale),
		Y: m.y0 + vg.Length((p.Y-m.b.Min.Y)*m.scale),
	}
}

// addRing appends the points of r to p as one subpath.
func (m *mapTransform) addRing(p *vg.Path, r []geom.Point, closed bool) {
	if len(r) == 0 {
		return
	}
	p.Move(m.point(r[0]))
	for _, pt := range r[1:] {
		p.Line(m.point(pt))
	}
	if closed {
		p.Close()
	}
}

// polygonPath returns the outline of poly, with one closed subpath
// per ring.
func (m *mapTransform) polygonPath(poly geom.Polygon) vg.Path {
	var p vg.Path
	for _, r := range poly {
		m.addRing(&p, r, true)
	}
	return p
}

// draw fills and outlines polygons and strokes lines. A nil fill
// leaves polygons empty.
func (m *mapTransform) draw(c draw.Canvas, g geom.Geom, fill, stroke color.Color, width vg.Length) {
	switch t := g.(type) {
	case geom.Polygonal:
		for _, poly := range t.Polygons() {
			p := m.polygonPath(poly)
			if fill != nil {
				c.SetColor(fill)
				c.Fill(p)
			}
			c.SetLineWidth(width)
			c.SetColor(stroke)
			c.Stroke(p)
		}
	case geom.LineString:
		var p vg.Path
		m.addRing(&p, t, false)
		m.stroke(c, p, stroke, width)
	case geom.MultiLineString:
		var p vg.Path
		for _, l := range t {
			m.addRing(&p, l, false)
		}
		m.stroke(c, p, stroke, width)
	}
}

func (m *mapTransform) stroke(c draw.Canvas, p vg.Path, clr color.Color, width vg.Length) {
	c.SetLineWidth(width)
	c.SetColor(clr)
	c.Stroke(p)
}

func drawTitle(c draw.Canvas, title string) error {
	big, err := vg.MakeFont(plot.DefaultFont, vg.Points(18))
	if err != nil {
		return err
	}
	small, err := vg.MakeFont(plot.DefaultFont, vg.Points(12))
	if err != nil {
		return err
	}
	y := c.Max.Y
	for i, line := range strings.Split(title, "\n") {
		ts := draw.TextStyle{Color: color.Black, Font: big, XAlign: draw.XCenter, YAlign: draw.YTop}
		if i > 0 {
			ts.Font = small
		}
		c.FillText(ts, vg.Point{X: c.X(0.5), Y: y}, line)
		y -= ts.Font.Extents().Height * 1.2
	}
	return nil
}

func drawLegend(c draw.Canvas, sym *Symbology) error {
	font, err := vg.MakeFont(plot.DefaultFont, vg.Points(9))
	if err != nil {
		return err
	}
	ts := draw.TextStyle{Color: color.Black, Font: font, YAlign: draw.YCenter}
	x := c.Min.X + 0.15*vg.Inch
	y := c.Max.Y - 0.25*vg.Inch
	for i, label := range sym.LegendLabels() {
		box := []vg.Point{
			{X: x, Y: y},
			{X: x + legendSwatch, Y: y},
			{X: x + legendSwatch, Y: y + legendSwatch},
			{X: x, Y: y + legendSwatch},
		}
		c.FillPolygon(sym.Color(i), box)
		c.StrokeLines(draw.LineStyle{Color: sym.Outline(), Width: vg.Points(0.5)}, append(box, box[0]))
		c.FillText(ts, vg.Point{X: x + legendSwatch + 0.1*vg.Inch, Y: y + legendSwatch/2}, label)
		y -= legendSwatch * 1.5
	}
	return nil
}
