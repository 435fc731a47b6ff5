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

package automaputil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/automap/ncraster"
	"github.com/spatialmodel/automap/thematic"
	"github.com/spf13/cast"
)

// ErrMissingArgument is returned when a required argument is not given.
type ErrMissingArgument struct {
	msg string
}

func (e ErrMissingArgument) Error() string { return e.msg }

// Exit statuses.
const (
	ExitOK              = 0
	ExitMissingArgument = 1
	ExitFailure         = 2
)

// ExitCode returns the process exit status for an error returned
// by one of the commands.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var missing ErrMissingArgument
	if errors.As(err, &missing) {
		return ExitMissingArgument
	}
	return ExitFailure
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// getStringSlice returns a list option, which may be set as a list
// or as a comma-separated string.
func getStringSlice(varName string, cfg *viper.Viper) ([]string, error) {
	i := cfg.Get(varName)
	if i == nil {
		return nil, nil
	}
	if s, ok := i.(string); ok {
		// Flag values are formatted as "[a,b]".
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		var o []string
		for _, v := range strings.Split(s, ",") {
			if v = strings.TrimSpace(v); v != "" {
				o = append(o, v)
			}
		}
		return o, nil
	}
	o, err := cast.ToStringSliceE(i)
	if err != nil {
		return nil, fmt.Errorf("automap: invalid value for %s: %v", varName, err)
	}
	return o, nil
}

// RasterConfig creates a NetCDF conversion configuration from
// a viper configuration.
func RasterConfig(cfg *viper.Viper) (ncraster.Config, error) {
	c := ncraster.Config{
		InFile: os.ExpandEnv(cfg.GetString("infile")),
		OutDir: os.ExpandEnv(cfg.GetString("outdir")),
		Points: cast.ToBool(cfg.Get("points")),
	}
	if c.InFile == "" {
		return c, ErrMissingArgument{"no input file was provided"}
	}
	if c.OutDir == "" {
		return c, ErrMissingArgument{"no output directory was provided"}
	}
	var err error
	if c.TimeSlice, err = cast.ToIntE(cfg.Get("timeslice")); err != nil {
		return c, fmt.Errorf("automap: invalid timeslice: %v", err)
	}
	if c.Workers, err = cast.ToIntE(cfg.Get("workers")); err != nil {
		return c, fmt.Errorf("automap: invalid workers: %v", err)
	}
	if c.Variables, err = getStringSlice("variables", cfg); err != nil {
		return c, err
	}
	return c, nil
}

// MapsConfig creates a thematic map configuration from a viper
// configuration.
func MapsConfig(cfg *viper.Viper) (thematic.Config, error) {
	paths := expandStringSlice([]string{
		cfg.GetString("workdir"),
		cfg.GetString("background"),
		cfg.GetString("workbook"),
		cfg.GetString("workspace"),
		cfg.GetString("shapefile"),
		cfg.GetString("symbology"),
	})
	c := thematic.Config{
		WorkDir:    paths[0],
		Background: paths[1],
		Workbook:   paths[2],
		Workspace:  paths[3],
		Shapefile:  paths[4],
		Symbology:  paths[5],
		DataSheet:  cfg.GetString("datasheet"),
		FieldSheet: cfg.GetString("fieldsheet"),
		KeyField:   cfg.GetString("keyfield"),
		Open:       cast.ToBool(cfg.Get("open")),
	}
	var err error
	if c.Simplify, err = cast.ToFloat64E(cfg.Get("simplify")); err != nil {
		return c, fmt.Errorf("automap: invalid simplify: %v", err)
	}
	if c.Simplify < 0 {
		return c, fmt.Errorf("automap: simplify must not be negative but is %g", c.Simplify)
	}
	return c, nil
}
