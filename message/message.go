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

import "fmt"

// commonEntry is one (description, value) pair of a Message's common
// header. Descriptions are unique within a Message; order of insertion is
// preserved.
type commonEntry struct {
	desc  string
	value string
}

// Message is the in-memory structured form exchanged with the broker: a
// command string, an ordered common header, and a tabular data body.
type Message struct {
	command    string
	common     []commonEntry
	dataDesc   []string
	dataValues [][]string
}

// New creates a Message with the given command and no common entries or
// data columns.
func New(command string) *Message {
	return &Message{command: command}
}

func (m *Message) Command() string {
	return m.command
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{command: %q, common: %d, rows: %d}", m.command, len(m.common), len(m.dataValues))
}

// AddCommon appends a (desc, value) pair to the common header. Callers are
// responsible for description uniqueness; a duplicate simply shadows the
// earlier entry for GetCommonValue since lookup returns the first match.
func (m *Message) AddCommon(desc, value string) {
	m.common = append(m.common, commonEntry{desc, value})
}

// GetCommonValue returns the value of the first common entry with the
// given description, or "" if there is none.
func (m *Message) GetCommonValue(desc string) string {
	for _, e := range m.common {
		if e.desc == desc {
			return e.value
		}
	}
	return ""
}

// CommonDescs returns the common header's descriptions in insertion order.
func (m *Message) CommonDescs() []string {
	descs := make([]string, len(m.common))
	for i, e := range m.common {
		descs[i] = e.desc
	}
	return descs
}

// CommonValues returns the common header's values in insertion order,
// parallel to CommonDescs.
func (m *Message) CommonValues() []string {
	values := make([]string, len(m.common))
	for i, e := range m.common {
		values[i] = e.value
	}
	return values
}

// AddDataDesc appends a data column description. It is only permitted
// while the data table holds zero rows; once a row has been added, the
// column layout is frozen. Returns false and leaves the message unchanged
// if a row already exists.
func (m *Message) AddDataDesc(desc string) bool {
	if len(m.dataValues) > 0 {
		return false
	}
	m.dataDesc = append(m.dataDesc, desc)
	return true
}

// DataDescs returns the data table's column descriptions in order.
func (m *Message) DataDescs() []string {
	return m.dataDesc
}

// AddDataValues appends one row to the data table. The row's arity must
// equal the current column count; a mismatched row is silently rejected
// (returns false) rather than erroring, matching the wire format's own
// tolerance for malformed rows.
func (m *Message) AddDataValues(row []string) bool {
	if len(row) != len(m.dataDesc) {
		return false
	}
	m.dataValues = append(m.dataValues, row)
	return true
}

// RowCount returns the number of data rows.
func (m *Message) RowCount() int {
	return len(m.dataValues)
}

// ValueAt returns the cell at (row, col), or "" and false if out of range.
func (m *Message) ValueAt(row, col int) (string, bool) {
	if row < 0 || row >= len(m.dataValues) {
		return "", false
	}
	if col < 0 || col >= len(m.dataValues[row]) {
		return "", false
	}
	return m.dataValues[row][col], true
}

// ValueByDesc returns the cell at (row, desc), or "" and false if the row
// or description does not exist.
func (m *Message) ValueByDesc(row int, desc string) (string, bool) {
	col := -1
	for i, d := range m.dataDesc {
		if d == desc {
			col = i
			break
		}
	}
	if col == -1 {
		return "", false
	}
	return m.ValueAt(row, col)
}

// Row returns a copy of the row at the given index, or nil if out of
// range.
func (m *Message) Row(row int) []string {
	if row < 0 || row >= len(m.dataValues) {
		return nil
	}
	cp := make([]string, len(m.dataValues[row]))
	copy(cp, m.dataValues[row])
	return cp
}
