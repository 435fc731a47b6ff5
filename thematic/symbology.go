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
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Symbology is a graduated-color renderer: values up to and including
// Breaks[i] (and above Breaks[i-1]) are drawn in Colors[i].
type Symbology struct {
	Breaks []float64
	Colors []string

	// Labels optionally replaces the generated legend labels.
	Labels []string

	NoDataColor  string
	OutlineColor string

	// OutlineWidth is in points.
	OutlineWidth float64
}

// defaultRamp is a sequential yellow-green-blue ramp.
var defaultRamp = []string{"#ffffcc", "#c7e9b4", "#7fcdbb", "#41b6c4", "#1d91c0", "#225ea8", "#0c2c84"}

// ReadSymbology reads a symbology file.
func ReadSymbology(path string) (*Symbology, error) {
	s := new(Symbology)
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, fmt.Errorf("thematic: reading symbology %s: %w", path, err)
	}
	if err := s.check(); err != nil {
		return nil, fmt.Errorf("thematic: symbology %s: %w", path, err)
	}
	return s, nil
}

func (s *Symbology) check() error {
	if len(s.Breaks) == 0 {
		return fmt.Errorf("no class breaks")
	}
	if len(s.Colors) != len(s.Breaks) {
		return fmt.Errorf("%d colors for %d class breaks", len(s.Colors), len(s.Breaks))
	}
	if len(s.Labels) != 0 && len(s.Labels) != len(s.Breaks) {
		return fmt.Errorf("%d labels for %d class breaks", len(s.Labels), len(s.Breaks))
	}
	if !sort.Float64sAreSorted(s.Breaks) {
		return fmt.Errorf("class breaks %v are not in increasing order", s.Breaks)
	}
	for _, c := range append(append([]string{}, s.Colors...), s.NoDataColor, s.OutlineColor) {
		if c == "" {
			continue
		}
		if _, err := ParseColor(c); err != nil {
			return err
		}
	}
	return nil
}

// Class returns the index of the class v falls in, or -1 if v is NaN.
// Values above the last break are put in the last class.
func (s *Symbology) Class(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	i := sort.SearchFloat64s(s.Breaks, v)
	if i == len(s.Breaks) {
		return i - 1
	}
	return i
}

// Color returns the fill color for class i; i < 0 gives the no-data
// color.
func (s *Symbology) Color(i int) color.NRGBA {
	var c string
	if i < 0 {
		c = s.NoDataColor
		if c == "" {
			c = "#d9d9d9"
		}
	} else {
		c = s.Colors[i]
	}
	clr, err := ParseColor(c)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return clr
}

// Outline returns the feature outline color.
func (s *Symbology) Outline() color.NRGBA {
	if s.OutlineColor == "" {
		return color.NRGBA{R: 99, G: 99, B: 99, A: 255}
	}
	c, err := ParseColor(s.OutlineColor)
	if err != nil {
		return color.NRGBA{A: 255}
	}
	return c
}

// LegendLabels returns one label per class.
func (s *Symbology) LegendLabels() []string {
	if len(s.Labels) == len(s.Breaks) {
		return s.Labels
	}
	o := make([]string, len(s.Breaks))
	for i, b := range s.Breaks {
		switch i {
		case 0:
			o[i] = "<= " + formatBreak(b)
		default:
			o[i] = formatBreak(s.Breaks[i-1]) + " - " + formatBreak(b)
		}
	}
	if len(o) > 1 {
		o[len(o)-1] = "> " + formatBreak(s.Breaks[len(s.Breaks)-2])
	}
	return o
}

func formatBreak(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// QuantileSymbology creates a symbology with n classes holding
// roughly equal numbers of the non-NaN values.
func QuantileSymbology(values []float64, n int) (*Symbology, error) {
	var x []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("thematic: no values to classify")
	}
	if n < 1 {
		n = 1
	}
	sort.Float64s(x)
	s := new(Symbology)
	for k := 1; k <= n; k++ {
		var b float64
		if k == n {
			b = floats.Max(x)
		} else {
			b = stat.Quantile(float64(k)/float64(n), stat.Empirical, x, nil)
		}
		if len(s.Breaks) > 0 && b <= s.Breaks[len(s.Breaks)-1] {
			continue
		}
		s.Breaks = append(s.Breaks, b)
	}
	s.Colors = rampColors(len(s.Breaks))
	return s, nil
}

// rampColors picks n colors spread evenly across the default ramp.
func rampColors(n int) []string {
	o := make([]string, n)
	for i := range o {
		j := len(defaultRamp) - 1
		if n > 1 {
			j = int(math.Round(float64(i) * float64(len(defaultRamp)-1) / float64(n-1)))
		}
		o[i] = defaultRamp[j]
	}
	return o
}

// ParseColor parses a "#rrggbb" or "#rrggbbaa" hex color.
func ParseColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("thematic: invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("thematic: invalid color %q", s)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
