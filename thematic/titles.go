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

import "fmt"

// Column names in the field table.
const (
	FieldColumn    = "FieldShort"
	TitleColumn    = "TitleOne"
	SubtitleColumn = "TitleTwo"
)

// MapTitle names the field a map is drawn for and the text of its
// title element.
type MapTitle struct {
	Field    string
	Title    string
	Subtitle string
}

// Text returns the title element text: the title and subtitle on
// separate lines. The separator is kept when there is no subtitle.
func (m MapTitle) Text() string {
	return m.Title + "\n" + m.Subtitle
}

// TitleSet is the ordered list of maps to draw.
type TitleSet []MapTitle

// Fields returns the field of each title, in order.
func (ts TitleSet) Fields() []string {
	o := make([]string, len(ts))
	for i, m := range ts {
		o[i] = m.Field
	}
	return o
}

// ReadTitles reads the map list from a field table. Maps are returned
// in table order. A field listed more than once keeps the titles of
// its last row but its first position.
func ReadTitles(t *Table) (TitleSet, error) {
	for _, c := range []string{FieldColumn, TitleColumn} {
		if t.Index(c) < 0 {
			return nil, fmt.Errorf("thematic: field table %s has no %s column", t.Name, c)
		}
	}
	var o TitleSet
	pos := make(map[string]int)
	for j := range t.Rows {
		m := MapTitle{
			Field:    t.Value(j, FieldColumn),
			Title:    t.Value(j, TitleColumn),
			Subtitle: t.Value(j, SubtitleColumn),
		}
		if m.Field == "" {
			continue
		}
		if i, ok := pos[m.Field]; ok {
			o[i] = m
			continue
		}
		pos[m.Field] = len(o)
		o = append(o, m)
	}
	return o, nil
}
