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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// NoData is the value written for raster cells that no grid point
// falls in.
const NoData = -9999.

// wgs84 is the WKT written to the .prj file of every output, since
// NetCDF lat/lon coordinates are geographic.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Raster is an ESRI ASCII grid.
type Raster struct {
	NCols, NRows         int
	XLLCorner, YLLCorner float64
	CellSize             float64
	NoData               float64

	// Data holds NRows rows of NCols values, starting with the
	// northernmost row.
	Data [][]float64
}

// NewRaster converts the points of g into a raster with square cells
// of the given size. Cell centres line up with the grid points. Each
// cell takes the value of the last point that falls within it, and
// cells that no valid point falls within are set to NoData.
func NewRaster(g *Grid, cellSize float64) (*Raster, error) {
	if !(cellSize > 0) {
		return nil, fmt.Errorf("ncraster: invalid cell size %g", cellSize)
	}
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return nil, fmt.Errorf("ncraster: variable %s has no grid points", g.Name)
	}
	if len(g.Data) != len(g.Lats)*len(g.Lons) {
		return nil, fmt.Errorf("ncraster: variable %s has %d values for %d points", g.Name, len(g.Data), len(g.Lats)*len(g.Lons))
	}
	minLat, maxLat := extent(g.Lats)
	minLon, maxLon := extent(g.Lons)
	if math.IsNaN(minLat) || math.IsNaN(minLon) {
		return nil, fmt.Errorf("ncraster: variable %s has no valid coordinates", g.Name)
	}

	r := &Raster{
		NCols:     int(math.Round((maxLon-minLon)/cellSize)) + 1,
		NRows:     int(math.Round((maxLat-minLat)/cellSize)) + 1,
		XLLCorner: minLon - cellSize/2,
		YLLCorner: minLat - cellSize/2,
		CellSize:  cellSize,
		NoData:    NoData,
	}
	r.Data = make([][]float64, r.NRows)
	for j := range r.Data {
		row := make([]float64, r.NCols)
		for i := range row {
			row[i] = NoData
		}
		r.Data[j] = row
	}

	top := r.YLLCorner + float64(r.NRows)*cellSize
	for j, lat := range g.Lats {
		if math.IsNaN(lat) {
			continue
		}
		row := clamp(int(math.Floor((top-lat)/cellSize)), r.NRows)
		for i, lon := range g.Lons {
			v := g.At(j, i)
			if math.IsNaN(lon) || math.IsNaN(v) {
				continue
			}
			col := clamp(int(math.Floor((lon-r.XLLCorner)/cellSize)), r.NCols)
			r.Data[row][col] = v
		}
	}
	return r, nil
}

// extent returns the minimum and maximum non-NaN values in x.
func extent(x []float64) (min, max float64) {
	min, max = math.NaN(), math.NaN()
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return min, max
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// At returns the value in row j (counting from the north) and column i.
func (r *Raster) At(j, i int) float64 { return r.Data[j][i] }

// WriteTo writes r in ESRI ASCII grid format.
func (r *Raster) WriteTo(w io.Writer) (int64, error) {
	b := bufio.NewWriter(w)
	var n int64
	write := func(s string) error {
		nn, err := b.WriteString(s)
		n += int64(nn)
		return err
	}
	header := fmt.Sprintf("ncols %d\nnrows %d\nxllcorner %s\nyllcorner %s\ncellsize %s\nNODATA_value %s\n",
		r.NCols, r.NRows, formatFloat(r.XLLCorner), formatFloat(r.YLLCorner),
		formatFloat(r.CellSize), formatFloat(r.NoData))
	if err := write(header); err != nil {
		return n, err
	}
	vals := make([]string, r.NCols)
	for _, row := range r.Data {
		for i, v := range row {
			vals[i] = formatFloat(v)
		}
		if err := write(strings.Join(vals, " ") + "\n"); err != nil {
			return n, err
		}
	}
	return n, b.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Write writes r to path.asc along with a path.prj projection file
// and returns the name of the grid file. Existing files are
// overwritten.
func (r *Raster) Write(path string) (string, error) {
	path = strings.TrimSuffix(path, ".asc")
	f, err := os.Create(path + ".asc")
	if err != nil {
		return "", fmt.Errorf("ncraster: creating raster: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("ncraster: writing raster %s.asc: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ncraster: writing raster %s.asc: %w", path, err)
	}
	if err := writePrj(path); err != nil {
		return "", err
	}
	return path + ".asc", nil
}

// writePrj writes the geographic projection to path.prj.
func writePrj(path string) error {
	if err := os.WriteFile(path+".prj", []byte(wgs84), 0644); err != nil {
		return fmt.Errorf("ncraster: writing projection file: %w", err)
	}
	return nil
}

// ReadRaster parses an ESRI ASCII grid.
func ReadRaster(rd io.Reader) (*Raster, error) {
	s := bufio.NewScanner(rd)
	s.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	r := &Raster{NoData: NoData}
	header := map[string]*float64{}
	var ncols, nrows float64
	header["ncols"] = &ncols
	header["nrows"] = &nrows
	header["xllcorner"] = &r.XLLCorner
	header["yllcorner"] = &r.YLLCorner
	header["cellsize"] = &r.CellSize
	header["nodata_value"] = &r.NoData
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		if dst, ok := header[strings.ToLower(fields[0])]; ok && len(fields) == 2 {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("ncraster: parsing raster header %s: %w", fields[0], err)
			}
			*dst = v
			continue
		}
		r.NCols, r.NRows = int(ncols), int(nrows)
		if len(fields) != r.NCols {
			return nil, fmt.Errorf("ncraster: raster row %d has %d values; want %d", len(r.Data), len(fields), r.NCols)
		}
		row := make([]float64, r.NCols)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("ncraster: parsing raster row %d: %w", len(r.Data), err)
			}
			row[i] = v
		}
		r.Data = append(r.Data, row)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("ncraster: reading raster: %w", err)
	}
	r.NCols, r.NRows = int(ncols), int(nrows)
	if len(r.Data) != r.NRows {
		return nil, fmt.Errorf("ncraster: raster has %d rows; want %d", len(r.Data), r.NRows)
	}
	return r, nil
}
