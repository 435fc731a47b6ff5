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

// Package ncraster converts the gridded variables of a NetCDF file
// into raster surfaces.
package ncraster

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
)

// Names of the dimensions that locate a variable in space and time.
const (
	LatDim  = "lat"
	LonDim  = "lon"
	TimeDim = "time"
)

// Dataset is an open NetCDF classic (COARDS) file.
type Dataset struct {
	f    *os.File
	nc   *cdf.File
	path string
}

// Open opens the NetCDF file at path for reading.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncraster: opening %s: %w", path, err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ncraster: reading NetCDF header of %s: %w", path, err)
	}
	return &Dataset{f: f, nc: nc, path: path}, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() error {
	return d.f.Close()
}

// Path returns the location the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// MappableVariables returns the variables, in file order, that have
// both a latitude and a longitude dimension. The coordinate variables
// themselves are not included.
func (d *Dataset) MappableVariables() []string {
	var o []string
	for _, v := range d.nc.Header.Variables() {
		if v == LatDim || v == LonDim {
			continue
		}
		if hasDim(d.nc.Header.Dimensions(v), LatDim) && hasDim(d.nc.Header.Dimensions(v), LonDim) {
			o = append(o, v)
		}
	}
	return o
}

// HasVariable reports whether the file contains variable v.
func (d *Dataset) HasVariable(v string) bool {
	return d.nc.Header.Dimensions(v) != nil
}

func hasDim(dims []string, name string) bool {
	return dimIndex(dims, name) >= 0
}

func dimIndex(dims []string, name string) int {
	for i, d := range dims {
		if d == name {
			return i
		}
	}
	return -1
}

// Coordinates returns the values of the latitude and longitude
// coordinate variables.
func (d *Dataset) Coordinates() (lats, lons []float64, err error) {
	if lats, err = d.readAll(LatDim); err != nil {
		return nil, nil, err
	}
	if lons, err = d.readAll(LonDim); err != nil {
		return nil, nil, err
	}
	return lats, lons, nil
}

// Resolution returns the grid spacing, calculated as the distance
// between the first two latitudes. The same spacing is used for
// longitude.
func (d *Dataset) Resolution() (float64, error) {
	lats, err := d.readAll(LatDim)
	if err != nil {
		return 0, err
	}
	if len(lats) < 2 {
		return 0, fmt.Errorf("ncraster: %s: need at least 2 latitudes to calculate resolution but have %d", d.path, len(lats))
	}
	res := math.Abs(lats[0] - lats[1])
	if !(res > 0) {
		return 0, fmt.Errorf("ncraster: %s: invalid resolution %g", d.path, res)
	}
	return res, nil
}

// NumTimes returns the number of time slices in the file, or 0
// if there is no time dimension.
func (d *Dataset) NumTimes() int {
	h := d.nc.Header
	dims := h.Dimensions("")
	i := dimIndex(dims, TimeDim)
	if i < 0 {
		return 0
	}
	n := h.Lengths("")[i]
	if n == 0 { // record dimension
		fi, err := d.f.Stat()
		if err != nil {
			return 0
		}
		n = int(h.NumRecs(fi.Size()))
	}
	return n
}

// readAll reads every value of the non-record variable v.
func (d *Dataset) readAll(v string) ([]float64, error) {
	if !d.HasVariable(v) {
		return nil, fmt.Errorf("ncraster: %s: no variable %q", d.path, v)
	}
	if d.nc.Header.IsRecordVariable(v) {
		return nil, fmt.Errorf("ncraster: %s: variable %s is a record variable", d.path, v)
	}
	n := 1
	for _, l := range d.nc.Header.Lengths(v) {
		n *= l
	}
	return d.read(v, nil, nil, n)
}

// read reads n values of v starting at corner begin and ending at
// corner last (inclusive), converting them to float64, replacing fill
// values with NaN and unpacking scaled data. The values between the
// two corners must be contiguous in the file.
func (d *Dataset) read(v string, begin, last []int, n int) ([]float64, error) {
	r := d.nc.Reader(v, begin, last)
	if r == nil {
		return nil, fmt.Errorf("ncraster: %s: no variable %q", d.path, v)
	}
	buf := d.nc.Header.ZeroValue(v, n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncraster: %s: reading variable %s: %w", d.path, v, err)
	}
	data, err := toFloats(buf)
	if err != nil {
		return nil, fmt.Errorf("ncraster: %s: variable %s: %w", d.path, v, err)
	}
	h := d.nc.Header
	if fill := h.FillValue(v); fill != nil {
		if fv, err := toFloats(fill); err == nil && len(fv) > 0 {
			markMissing(data, fv[0])
		}
	}
	if mv := h.GetAttribute(v, "missing_value"); mv != nil {
		if fv, err := toFloats(mv); err == nil && len(fv) > 0 {
			markMissing(data, fv[0])
		}
	}
	scale, offset := 1.0, 0.0
	if s := attrFloat(h, v, "scale_factor"); !math.IsNaN(s) {
		scale = s
	}
	if o := attrFloat(h, v, "add_offset"); !math.IsNaN(o) {
		offset = o
	}
	if scale != 1 || offset != 0 {
		for i, x := range data {
			data[i] = x*scale + offset
		}
	}
	return data, nil
}

func markMissing(data []float64, fill float64) {
	for i, x := range data {
		if x == fill {
			data[i] = math.NaN()
		}
	}
}

// attrFloat returns the first value of numeric attribute a of
// variable v, or NaN if there isn't one.
func attrFloat(h *cdf.Header, v, a string) float64 {
	val := h.GetAttribute(v, a)
	if val == nil {
		return math.NaN()
	}
	f, err := toFloats(val)
	if err != nil || len(f) == 0 {
		return math.NaN()
	}
	return f[0]
}

// attrString returns text attribute a of variable v, or "".
func attrString(h *cdf.Header, v, a string) string {
	if s, ok := h.GetAttribute(v, a).(string); ok {
		return s
	}
	return ""
}

func toFloats(vals interface{}) ([]float64, error) {
	switch t := vals.(type) {
	case float64:
		return []float64{t}, nil
	case float32:
		return []float64{float64(t)}, nil
	case int32:
		return []float64{float64(t)}, nil
	case int16:
		return []float64{float64(t)}, nil
	case int8:
		return []float64{float64(t)}, nil
	case uint8:
		return []float64{float64(t)}, nil
	case []float64:
		return t, nil
	case []float32:
		o := make([]float64, len(t))
		for i, v := range t {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(t))
		for i, v := range t {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(t))
		for i, v := range t {
			o[i] = float64(v)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(t))
		for i, v := range t {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("non-numeric data type %T", vals)
	}
}

// Grid is one [lat, lon] slab of a variable.
type Grid struct {
	Name     string
	Units    string
	LongName string

	Lats, Lons []float64

	// Data holds len(Lats)*len(Lons) values in latitude-major order.
	Data []float64
}

// At returns the value at latitude index j and longitude index i.
func (g *Grid) At(j, i int) float64 {
	return g.Data[j*len(g.Lons)+i]
}

// Slice reads the [lat, lon] slab of variable v at time index
// timeslice. The time index is ignored for variables without a time
// dimension and any other dimension is held at index 0.
func (d *Dataset) Slice(v string, timeslice int) (*Grid, error) {
	h := d.nc.Header
	dims := h.Dimensions(v)
	if dims == nil {
		return nil, fmt.Errorf("ncraster: %s: no variable %q", d.path, v)
	}
	latI, lonI := dimIndex(dims, LatDim), dimIndex(dims, LonDim)
	if latI < 0 || lonI < 0 {
		return nil, fmt.Errorf("ncraster: %s: variable %s has dimensions %v, which do not include both %s and %s",
			d.path, v, dims, LatDim, LonDim)
	}
	lats, lons, err := d.Coordinates()
	if err != nil {
		return nil, err
	}
	if !(latI >= len(dims)-2 && lonI >= len(dims)-2) {
		return nil, fmt.Errorf("ncraster: %s: variable %s has dimensions %v; %s and %s must be the last two",
			d.path, v, dims, LatDim, LonDim)
	}
	lengths := h.Lengths(v)
	begin := make([]int, len(dims))
	last := make([]int, len(dims))
	for k, dim := range dims {
		switch dim {
		case LatDim, LonDim:
			last[k] = lengths[k] - 1
		case TimeDim:
			nt := d.NumTimes()
			if timeslice < 0 || timeslice >= nt {
				return nil, fmt.Errorf("ncraster: %s: time slice %d out of range for variable %s with %d times",
					d.path, timeslice, v, nt)
			}
			begin[k], last[k] = timeslice, timeslice
		}
	}
	if lengths[latI] != len(lats) || lengths[lonI] != len(lons) {
		return nil, fmt.Errorf("ncraster: %s: variable %s is %dx%d but coordinates are %dx%d",
			d.path, v, lengths[latI], lengths[lonI], len(lats), len(lons))
	}
	data, err := d.read(v, begin, last, len(lats)*len(lons))
	if err != nil {
		return nil, err
	}
	if lonI < latI {
		data = transpose(data, len(lons), len(lats))
	}
	return &Grid{
		Name:     v,
		Units:    attrString(h, v, "units"),
		LongName: attrString(h, v, "long_name"),
		Lats:     lats,
		Lons:     lons,
		Data:     data,
	}, nil
}

// transpose converts an r×c row-major matrix into c×r.
func transpose(data []float64, r, c int) []float64 {
	o := make([]float64, len(data))
	for j := 0; j < r; j++ {
		for i := 0; i < c; i++ {
			o[i*r+j] = data[j*c+i]
		}
	}
	return o
}
