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
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// BackgroundLayer is a reference layer drawn beneath the data.
type BackgroundLayer struct {
	Name      string
	Shapefile string

	// Fill and Stroke are hex colors. An empty Fill draws outlines only.
	Fill   string
	Stroke string
}

// MapDocument describes the page layout of an exported map.
type MapDocument struct {
	// PageWidth and PageHeight are in inches.
	PageWidth, PageHeight float64

	Title      string
	Background []BackgroundLayer
	Legend     bool

	// DataLayer is the shapefile holding the mapped values and
	// ValueField is the field they are read from.
	DataLayer  string
	ValueField string

	Symbology *Symbology `toml:",omitempty"`
}

// DefaultMapDocument is the layout used when no background document
// is given: a landscape letter page with a legend.
func DefaultMapDocument() *MapDocument {
	return &MapDocument{
		PageWidth:  11,
		PageHeight: 8.5,
		Legend:     true,
	}
}

// ReadMapDocument reads a map document from a TOML file. Unset page
// dimensions take the default values.
func ReadMapDocument(path string) (*MapDocument, error) {
	doc := DefaultMapDocument()
	if _, err := toml.DecodeFile(path, doc); err != nil {
		return nil, fmt.Errorf("thematic: reading map document %s: %w", path, err)
	}
	if doc.PageWidth <= 0 || doc.PageHeight <= 0 {
		return nil, fmt.Errorf("thematic: map document %s: invalid page size %gx%g", path, doc.PageWidth, doc.PageHeight)
	}
	if doc.Symbology != nil {
		if err := doc.Symbology.check(); err != nil {
			return nil, fmt.Errorf("thematic: map document %s: %w", path, err)
		}
	}
	return doc, nil
}

// Copy returns a deep copy of doc.
func (doc *MapDocument) Copy() *MapDocument {
	o := *doc
	o.Background = append([]BackgroundLayer(nil), doc.Background...)
	if doc.Symbology != nil {
		s := *doc.Symbology
		s.Breaks = append([]float64(nil), s.Breaks...)
		s.Colors = append([]string(nil), s.Colors...)
		s.Labels = append([]string(nil), s.Labels...)
		o.Symbology = &s
	}
	return &o
}

// SaveACopy writes the document to path.
func (doc *MapDocument) SaveACopy(path string) error {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(doc); err != nil {
		return fmt.Errorf("thematic: encoding map document: %w", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("thematic: saving map document: %w", err)
	}
	return nil
}
