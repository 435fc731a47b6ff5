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

// Package thematic joins tabular attribute data to a boundary layer
// and exports a series of thematic maps, one per attribute field.
package thematic

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
)

// Table is a converted worksheet. The first row of the sheet
// supplies the field names.
type Table struct {
	Name   string
	Fields []string
	Rows   [][]string
}

// Index returns the column index of field, or -1. Field names are
// matched without regard to case.
func (t *Table) Index(field string) int {
	for i, f := range t.Fields {
		if strings.EqualFold(f, field) {
			return i
		}
	}
	return -1
}

// Value returns the value of field in row, or "" if the table
// does not have the field.
func (t *Table) Value(row int, field string) string {
	i := t.Index(field)
	if i < 0 || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// Float returns the numeric value of field in row. ok is false if
// the cell is empty or not a number.
func (t *Table) Float(row int, field string) (v float64, ok bool) {
	s := strings.TrimSpace(t.Value(row, field))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// workbookCache holds previously opened workbooks so each is only
// read once even when several sheets are converted from it.
var workbookCache *requestcache.Cache

var loadWorkbookCacheOnce sync.Once

// loadWorkbook opens a Microsoft Excel workbook, utilizing a cache
// to avoid loading the same file more than once.
func loadWorkbook(fileName string) (*xlsx.File, error) {
	loadWorkbookCacheOnce.Do(func() {
		workbookCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			filename := req.(string)
			f, err := xlsx.OpenFile(filename)
			if err != nil {
				return nil, fmt.Errorf("thematic: opening workbook: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := workbookCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ReadSheet converts the named sheet of a workbook into a table.
// A trailing '$' on the sheet name, as used to address worksheets
// inside a workbook workspace, is ignored. Workbooks with a .csv
// extension contain a single sheet and the sheet name only sets the
// table name.
func ReadSheet(workbook, sheet string) (*Table, error) {
	sheet = strings.TrimSuffix(sheet, "$")
	var rows [][]string
	switch strings.ToLower(filepath.Ext(workbook)) {
	case ".csv", ".txt":
		f, err := os.Open(workbook)
		if err != nil {
			return nil, fmt.Errorf("thematic: opening table: %w", err)
		}
		defer f.Close()
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		if rows, err = r.ReadAll(); err != nil {
			return nil, fmt.Errorf("thematic: reading table %s: %w", workbook, err)
		}
	default:
		f, err := loadWorkbook(workbook)
		if err != nil {
			return nil, err
		}
		s, ok := f.Sheet[sheet]
		if !ok {
			return nil, fmt.Errorf("thematic: workbook %s has no sheet %s", workbook, sheet)
		}
		for j := 0; j < s.MaxRow; j++ {
			row := make([]string, s.MaxCol)
			for i := range row {
				row[i] = s.Cell(j, i).Value
			}
			rows = append(rows, row)
		}
	}
	return newTable(sheet, rows)
}

// newTable builds a table from raw rows, using the first row as the
// header and dropping empty rows and unnamed trailing columns.
func newTable(name string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("thematic: sheet %s is empty", name)
	}
	t := &Table{Name: name}
	for _, f := range rows[0] {
		t.Fields = append(t.Fields, strings.TrimSpace(f))
	}
	for len(t.Fields) > 0 && t.Fields[len(t.Fields)-1] == "" {
		t.Fields = t.Fields[:len(t.Fields)-1]
	}
	if len(t.Fields) == 0 {
		return nil, fmt.Errorf("thematic: sheet %s has no header row", name)
	}
	for _, r := range rows[1:] {
		row := make([]string, len(t.Fields))
		var empty = true
		for i := range row {
			if i < len(r) {
				row[i] = strings.TrimSpace(r[i])
			}
			if row[i] != "" {
				empty = false
			}
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// WriteTable writes t as a CSV file at path, overwriting any
// existing file.
func WriteTable(t *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("thematic: creating table %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Fields); err != nil {
		f.Close()
		return fmt.Errorf("thematic: writing table %s: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return fmt.Errorf("thematic: writing table %s: %w", path, err)
	}
	return f.Close()
}
