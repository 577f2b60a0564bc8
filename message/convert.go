// Copyright 2020 DataStax
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package message

import "strings"

const flatSeparator = ":"

// Flat is the legacy wire-adjacent representation of a Message: every
// list-valued field is collapsed into a single colon-joined string. It
// exists only at the API boundary for callers still speaking the legacy
// shape; internally everything is converted eagerly to Message on
// receive, and lazily to Flat on send.
type Flat struct {
	Command     string
	Description string   // joined data column descriptions
	CommonDesc  string   // joined common descriptions
	Common      string   // joined common values
	Data        []string // one colon-joined string per row
}

// ToFlat converts a structured Message to its legacy flat form.
func ToFlat(m *Message) *Flat {
	data := make([]string, m.RowCount())
	for i := 0; i < m.RowCount(); i++ {
		data[i] = strings.Join(m.Row(i), flatSeparator)
	}
	return &Flat{
		Command:     m.Command(),
		Description: strings.Join(m.DataDescs(), flatSeparator),
		CommonDesc:  strings.Join(m.CommonDescs(), flatSeparator),
		Common:      strings.Join(m.CommonValues(), flatSeparator),
		Data:        data,
	}
}

// FromFlat converts a legacy flat message back to its structured form.
//
// The colon-split of both the common values and each data row is
// asymmetric by design: when the column count is 1, the entire string is
// kept as the single cell verbatim (including any colons it contains);
// when the column count is 2 or more, the string is split on every colon
// with no limit. This mirrors the wire format's own behavior and is not
// an oversight -- a single-column value cannot safely be re-split
// without a priori knowledge of how many colons are data versus
// separators.
func FromFlat(f *Flat) *Message {
	m := New(f.Command)

	commonDescs := splitNonEmpty(f.CommonDesc)
	var commonValues []string
	switch len(commonDescs) {
	case 0:
		commonValues = nil
	case 1:
		commonValues = []string{f.Common}
	default:
		commonValues = strings.Split(f.Common, flatSeparator)
	}
	for i, desc := range commonDescs {
		value := ""
		if i < len(commonValues) {
			value = commonValues[i]
		}
		m.AddCommon(desc, value)
	}

	dataDescs := splitNonEmpty(f.Description)
	for _, desc := range dataDescs {
		m.AddDataDesc(desc)
	}

	for _, row := range f.Data {
		var cells []string
		switch len(dataDescs) {
		case 0:
			continue
		case 1:
			cells = []string{row}
		default:
			cells = strings.Split(row, flatSeparator)
		}
		m.AddDataValues(cells)
	}

	return m
}

// splitNonEmpty splits on the colon separator, returning an empty slice
// for an empty input rather than a one-element slice containing "".
func splitNonEmpty(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, flatSeparator)
}
