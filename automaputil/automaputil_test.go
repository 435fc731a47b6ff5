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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/automap"
)

// writeTestNetCDF creates a 2x2 grid with one variable.
func writeTestNetCDF(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{2, 2})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("pm25", []string{"lat", "lon"}, []float64{0})
	h.Define()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	for v, data := range map[string][]float64{
		"lat":  {10, 9.5},
		"lon":  {20, 20.5},
		"pm25": {1, 2, 3, 4},
	} {
		end := h.Lengths(v)
		start := make([]int, len(end))
		if _, err := nc.Writer(v, start, end).Write(data); err != nil && err != io.EOF {
			t.Fatal(err)
		}
	}
}

func TestExitCode(t *testing.T) {
	if c := ExitCode(nil); c != ExitOK {
		t.Errorf("nil: have %d", c)
	}
	if c := ExitCode(ErrMissingArgument{"x"}); c != ExitMissingArgument {
		t.Errorf("missing argument: have %d", c)
	}
	if c := ExitCode(fmt.Errorf("wrapped: %w", ErrMissingArgument{"x"})); c != ExitMissingArgument {
		t.Errorf("wrapped missing argument: have %d", c)
	}
	if c := ExitCode(errors.New("x")); c != ExitFailure {
		t.Errorf("other error: have %d", c)
	}
}

func TestRasterConfig(t *testing.T) {
	os.Setenv("AUTOMAP_TEST_DIR", "/data")
	defer os.Unsetenv("AUTOMAP_TEST_DIR")

	cfg := viper.New()
	cfg.Set("timeslice", 0)
	cfg.Set("workers", 1)
	_, err := RasterConfig(cfg)
	if err == nil || err.Error() != "no input file was provided" || ExitCode(err) != ExitMissingArgument {
		t.Errorf("missing infile: have %v", err)
	}

	cfg.Set("infile", "${AUTOMAP_TEST_DIR}/in.nc")
	_, err = RasterConfig(cfg)
	if err == nil || err.Error() != "no output directory was provided" || ExitCode(err) != ExitMissingArgument {
		t.Errorf("missing outdir: have %v", err)
	}

	cfg.Set("outdir", "out")
	cfg.Set("timeslice", "3")
	cfg.Set("workers", 4)
	cfg.Set("points", true)
	cfg.Set("variables", "pm25, o3")
	c, err := RasterConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.InFile != "/data/in.nc" || c.OutDir != "out" || c.TimeSlice != 3 || c.Workers != 4 || !c.Points {
		t.Errorf("have %+v", c)
	}
	if !reflect.DeepEqual(c.Variables, []string{"pm25", "o3"}) {
		t.Errorf("variables: have %v", c.Variables)
	}

	cfg.Set("timeslice", "x")
	if _, err := RasterConfig(cfg); err == nil || ExitCode(err) != ExitFailure {
		t.Errorf("invalid timeslice: have %v", err)
	}
}

func TestMapsConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("workdir", "maps")
	cfg.Set("background", "#")
	cfg.Set("keyfield", "ISO3")
	cfg.Set("simplify", "0.5")
	cfg.Set("open", false)
	c, err := MapsConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.WorkDir != "maps" || c.Background != "#" || c.KeyField != "ISO3" || c.Simplify != 0.5 {
		t.Errorf("have %+v", c)
	}
	cfg.Set("simplify", -1.0)
	if _, err := MapsConfig(cfg); err == nil {
		t.Error("expected an error for negative simplify")
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	Root.SetOutput(&out)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if have := out.String(); !strings.Contains(have, automap.Version) {
		t.Errorf("have %q", have)
	}
}

func TestRaster(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	writeTestNetCDF(t, in)
	Log.Out = new(bytes.Buffer)

	Cfg.Set("infile", in)
	Cfg.Set("outdir", filepath.Join(dir, "out"))
	Cfg.Set("publish", "file://"+filepath.Join(dir, "published"))
	defer func() {
		Cfg.Set("infile", "")
		Cfg.Set("outdir", "")
		Cfg.Set("publish", "")
	}()
	Root.SetArgs([]string{"raster"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{
		filepath.Join(dir, "out", "pm25.asc"),
		filepath.Join(dir, "out", "pm25.prj"),
		filepath.Join(dir, "published", "pm25.asc"),
		filepath.Join(dir, "published", "pm25.prj"),
	} {
		if _, err := os.Stat(f); err != nil {
			t.Error(err)
		}
	}
}

func TestRasterMissingInput(t *testing.T) {
	Log.Out = new(bytes.Buffer)
	Root.SetOutput(new(bytes.Buffer))
	defer Root.SetOutput(nil)
	Cfg.Set("infile", "")
	Root.SetArgs([]string{"raster"})
	err := Root.Execute()
	if ExitCode(err) != ExitMissingArgument {
		t.Errorf("have %v", err)
	}
}
