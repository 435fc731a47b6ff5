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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// Names of the files Run writes.
const (
	DataTableFile  = "classDataTable.csv"
	TitleTableFile = "titleTextTable.csv"
	MapDataFile    = "mapData.shp"
	MapDataJSON    = "mapData.geojson"
)

// Config holds the Automap arguments. An argument that is empty or
// "#" takes its default value.
type Config struct {
	WorkDir    string
	Background string
	Workbook   string
	DataSheet  string
	FieldSheet string
	Workspace  string
	Shapefile  string
	Symbology  string

	// KeyField is the field shared by the data sheet and the
	// boundary shapefile.
	KeyField string

	// Simplify is the geometry simplification tolerance used when
	// drawing, in map units. Zero disables simplification.
	Simplify float64

	// Open opens each map after it is exported.
	Open bool
}

func isDefault(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "#"
}

// resolve fills in defaults. Optional files are dropped when they
// don't exist.
func (c Config) resolve() Config {
	if isDefault(c.WorkDir) {
		c.WorkDir = "."
	}
	inDir := func(s, def string) string {
		if isDefault(s) {
			s = def
		}
		if !filepath.IsAbs(s) {
			s = filepath.Join(c.WorkDir, s)
		}
		return s
	}
	optional := func(s, def string) string {
		explicit := !isDefault(s)
		s = inDir(s, def)
		if _, err := os.Stat(s); !explicit && err != nil {
			return ""
		}
		return s
	}
	c.Background = optional(c.Background, "worldBackground.toml")
	c.Symbology = optional(c.Symbology, "symbology.toml")
	c.Workbook = inDir(c.Workbook, "MapData.xlsx")
	c.Workspace = inDir(c.Workspace, "data.gdb")
	c.Shapefile = inDir(c.Shapefile, "worldCountries.shp")
	if isDefault(c.DataSheet) {
		c.DataSheet = "ForMaps$"
	}
	if isDefault(c.FieldSheet) {
		c.FieldSheet = "FieldTable$"
	}
	if isDefault(c.KeyField) {
		c.KeyField = "CntryCode"
	}
	return c
}

// Automap makes one thematic map for each field listed in a
// workbook's field sheet.
type Automap struct {
	Config

	// Log receives progress messages and per-map failures. It defaults
	// to the standard logrus logger.
	Log logrus.FieldLogger
}

// Report lists what a run wrote.
type Report struct {
	Tables  []string
	MapData string

	// MapDataFiles holds every file of the joined layer: the
	// shapefile, its sidecars and the GeoJSON copy.
	MapDataFiles []string

	// Documents and Maps hold the saved map documents and exported
	// PDFs, in field-sheet order.
	Documents []string
	Maps      []string

	// Skipped holds the fields that had no matching data column and
	// Failed the maps that could not be exported.
	Skipped []string
	Failed  map[string]error
}

// Files returns every file the run wrote.
func (r *Report) Files() []string {
	o := append([]string(nil), r.Tables...)
	o = append(o, r.MapDataFiles...)
	o = append(o, r.Documents...)
	return append(o, r.Maps...)
}

func (a *Automap) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// Run converts the workbook sheets, joins the data to the boundary
// layer and exports a map for each title field. Failures before the
// map loop abort the run; failures of individual maps are logged and
// the loop continues.
func (a *Automap) Run(ctx context.Context) (*Report, error) {
	cfg := a.Config.resolve()
	log := a.log()
	rep := &Report{Failed: make(map[string]error)}

	if err := os.MkdirAll(cfg.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("thematic: creating workspace: %w", err)
	}

	data, err := ReadSheet(cfg.Workbook, cfg.DataSheet)
	if err != nil {
		log.WithError(err).Error("converting data sheet")
		return nil, err
	}
	fields, err := ReadSheet(cfg.Workbook, cfg.FieldSheet)
	if err != nil {
		log.WithError(err).Error("converting field sheet")
		return nil, err
	}
	for _, tt := range []struct {
		t    *Table
		file string
	}{{data, DataTableFile}, {fields, TitleTableFile}} {
		path := filepath.Join(cfg.Workspace, tt.file)
		if err := WriteTable(tt.t, path); err != nil {
			log.WithError(err).Error("copying table")
			return nil, err
		}
		rep.Tables = append(rep.Tables, path)
		log.WithFields(logrus.Fields{"sheet": tt.t.Name, "file": path}).Info("converted sheet")
	}

	boundaries, err := ReadLayer(cfg.Shapefile, strings.TrimSuffix(filepath.Base(cfg.Shapefile), ".shp"))
	if err != nil {
		log.WithError(err).Error("making feature layer")
		return nil, err
	}
	joined, err := boundaries.Join(cfg.KeyField, data, cfg.KeyField)
	if err != nil {
		log.WithError(err).Error("joining data")
		return nil, err
	}
	rep.MapData = filepath.Join(cfg.Workspace, MapDataFile)
	if err := joined.WriteShapefile(rep.MapData); err != nil {
		log.WithError(err).Error("copying features")
		return nil, err
	}
	base := strings.TrimSuffix(rep.MapData, ".shp")
	rep.MapDataFiles = []string{rep.MapData, base + ".shx", base + ".dbf"}
	if joined.PRJ != "" {
		rep.MapDataFiles = append(rep.MapDataFiles, base+".prj")
	}
	jsonPath := filepath.Join(cfg.Workspace, MapDataJSON)
	if err := joined.WriteGeoJSON(jsonPath); err != nil {
		log.WithError(err).Warn("writing GeoJSON copy of map data")
	} else {
		rep.MapDataFiles = append(rep.MapDataFiles, jsonPath)
	}
	log.WithFields(logrus.Fields{"features": len(joined.Features), "file": rep.MapData}).Info("joined data to boundaries")

	titles, err := ReadTitles(fields)
	if err != nil {
		log.WithError(err).Error("reading map titles")
		return nil, err
	}
	doc := DefaultMapDocument()
	if cfg.Background != "" {
		if doc, err = ReadMapDocument(cfg.Background); err != nil {
			log.WithError(err).Error("reading background document")
			return nil, err
		}
	}
	if cfg.Symbology != "" {
		if doc.Symbology, err = ReadSymbology(cfg.Symbology); err != nil {
			log.WithError(err).Error("reading symbology")
			return nil, err
		}
	}
	doc.DataLayer = rep.MapData

	bgDir := cfg.WorkDir
	if cfg.Background != "" {
		bgDir = filepath.Dir(cfg.Background)
	}
	r, err := NewRenderer(doc, joined, bgDir, cfg.Simplify)
	if err != nil {
		log.WithError(err).Error("loading background layers")
		return nil, err
	}

	for _, t := range titles {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		flog := log.WithField("field", t.Field)
		f, ok := joined.FieldByAlias(t.Field)
		if !ok {
			flog.Warn("no data column for field; skipping")
			rep.Skipped = append(rep.Skipped, t.Field)
			continue
		}
		d := doc.Copy()
		d.ValueField = f.Name
		d.Title = t.Text()
		r.Doc = d
		if d.Symbology == nil {
			// The saved document carries its own classes.
			vals, err := r.values()
			if err == nil {
				d.Symbology, err = QuantileSymbology(vals, defaultClasses)
			}
			if err != nil {
				flog.WithError(err).Error("classifying values")
				rep.Failed[t.Field] = err
				continue
			}
		}

		docPath := filepath.Join(cfg.WorkDir, t.Field+".toml")
		pdfPath := filepath.Join(cfg.WorkDir, t.Field+".pdf")
		if err := d.SaveACopy(docPath); err != nil {
			flog.WithError(err).Error("saving map document")
			rep.Failed[t.Field] = err
			continue
		}
		rep.Documents = append(rep.Documents, docPath)
		if err := r.ExportToPDF(pdfPath); err != nil {
			flog.WithError(err).Error("exporting map")
			rep.Failed[t.Field] = err
			continue
		}
		rep.Maps = append(rep.Maps, pdfPath)
		flog.WithField("file", pdfPath).Info("exported map")
		if cfg.Open {
			if err := open.Start(pdfPath); err != nil {
				flog.WithError(err).Warn("opening map")
			}
		}
	}
	if len(rep.Failed) > 0 {
		var names []string
		for n := range rep.Failed {
			names = append(names, n)
		}
		sort.Strings(names)
		return rep, fmt.Errorf("thematic: %d of %d maps could not be made: %s",
			len(rep.Failed), len(titles), strings.Join(names, ", "))
	}
	return rep, nil
}
