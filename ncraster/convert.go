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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config holds the settings for a NetCDF to raster conversion.
type Config struct {
	// InFile is the NetCDF file to read.
	InFile string

	// OutDir is the directory the rasters are written to. It is
	// created if it does not exist.
	OutDir string

	// TimeSlice is the index of the time slice to map for variables
	// that have a time dimension.
	TimeSlice int

	// Workers is the number of variables converted at once.
	// Values less than 1 are treated as 1.
	Workers int

	// Points specifies whether the intermediate XY event layer of each
	// variable should be kept as a point shapefile.
	Points bool

	// Variables optionally restricts the conversion to the listed
	// variables. All mappable variables are converted if it is empty.
	Variables []string
}

// Converter converts the mappable variables in a NetCDF file
// into rasters.
type Converter struct {
	Config

	// Log receives progress and error messages. The standard logger
	// is used if it is nil.
	Log logrus.FieldLogger
}

// Output describes the files written for one variable.
type Output struct {
	Variable string
	Raster   string
	Points   string
}

// Report summarizes a conversion.
type Report struct {
	Resolution float64
	Outputs    []Output

	// Failed holds the variables that could not be converted, with
	// the reason.
	Failed map[string]error
}

// Files returns every file written during the conversion.
func (r *Report) Files() []string {
	var o []string
	for _, out := range r.Outputs {
		if out.Raster != "" {
			o = append(o, out.Raster, trimExt(out.Raster)+".prj")
		}
		if out.Points != "" {
			base := trimExt(out.Points)
			o = append(o, out.Points, base+".shx", base+".dbf", base+".prj")
		}
	}
	return o
}

func trimExt(p string) string {
	return p[:len(p)-len(filepath.Ext(p))]
}

func (c *Converter) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Convert creates a raster for every mappable variable in the input
// file. A variable that fails to convert is logged and skipped; the
// returned error is non-nil if any variable failed.
func (c *Converter) Convert(ctx context.Context) (*Report, error) {
	log := c.log()
	if c.InFile == "" {
		return nil, fmt.Errorf("ncraster: no input file was provided")
	}
	if c.OutDir == "" {
		return nil, fmt.Errorf("ncraster: no output directory was provided")
	}
	if err := os.MkdirAll(c.OutDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("ncraster: creating output directory: %w", err)
	}

	d, err := Open(c.InFile)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if !d.HasVariable(LatDim) || !d.HasVariable(LonDim) {
		return nil, fmt.Errorf("ncraster: %s must contain both %s and %s variables", c.InFile, LatDim, LonDim)
	}
	res, err := d.Resolution()
	if err != nil {
		return nil, err
	}

	vars, err := c.variables(d)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"file":       c.InFile,
		"resolution": res,
		"variables":  len(vars),
		"timeslice":  c.TimeSlice,
	}).Info("converting NetCDF variables to rasters")

	report := &Report{Resolution: res, Failed: make(map[string]error)}
	outputs := make([]Output, len(vars))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, v := range vars {
		i, v := i, v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := c.convertVariable(d, v, res)
			if err != nil {
				log.WithField("variable", v).Error(err)
				mu.Lock()
				report.Failed[v] = err
				mu.Unlock()
				return nil
			}
			log.WithFields(logrus.Fields{"variable": v, "file": out.Raster}).Info("wrote raster")
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	for _, out := range outputs {
		if out.Raster != "" {
			report.Outputs = append(report.Outputs, out)
		}
	}
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("ncraster: %d of %d variables could not be converted", len(report.Failed), len(vars))
	}
	return report, nil
}

// variables returns the variables to convert.
func (c *Converter) variables(d *Dataset) ([]string, error) {
	mappable := d.MappableVariables()
	if len(c.Variables) == 0 {
		return mappable, nil
	}
	ok := make(map[string]bool, len(mappable))
	for _, v := range mappable {
		ok[v] = true
	}
	for _, v := range c.Variables {
		if !ok[v] {
			return nil, fmt.Errorf("ncraster: %s: %q is not a variable with %s and %s dimensions", c.InFile, v, LatDim, LonDim)
		}
	}
	return c.Variables, nil
}

// convertVariable reads the table view of variable v, optionally
// saves it as an XY event layer, and rasterizes it.
func (c *Converter) convertVariable(d *Dataset, v string, res float64) (Output, error) {
	out := Output{Variable: v}
	g, err := d.Slice(v, c.TimeSlice)
	if err != nil {
		return out, err
	}
	if c.Points {
		if out.Points, err = WritePoints(filepath.Join(c.OutDir, v+"_pts"), g); err != nil {
			return out, err
		}
	}
	r, err := NewRaster(g, res)
	if err != nil {
		return out, err
	}
	if out.Raster, err = r.Write(filepath.Join(c.OutDir, v)); err != nil {
		return out, err
	}
	return out, nil
}
