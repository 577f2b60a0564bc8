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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFlatThenFromFlatRoundTripMultiColumn(t *testing.T) {
	m := New("REGISTEREDCLIENT")
	m.AddCommon("id", "7")
	m.AddDataDesc("id")
	m.AddDataDesc("type")
	m.AddDataDesc("name")
	m.AddDataValues([]string{"12", "diana", "diana-a"})
	m.AddDataValues([]string{"13", "diana", "diana-b"})

	flat := ToFlat(m)
	back := FromFlat(flat)

	assert.Equal(t, m.Command(), back.Command())
	assert.Equal(t, m.CommonDescs(), back.CommonDescs())
	assert.Equal(t, m.CommonValues(), back.CommonValues())
	assert.Equal(t, m.DataDescs(), back.DataDescs())
	assert.Equal(t, m.RowCount(), back.RowCount())
	for i := 0; i < m.RowCount(); i++ {
		assert.Equal(t, m.Row(i), back.Row(i))
	}
}

func TestFromFlatSingleColumnKeepsColonsVerbatim(t *testing.T) {
	flat := &Flat{
		Command:     "SETPEERS",
		Description: "peer_ids",
		Data:        []string{"12:13:14"},
	}
	m := FromFlat(flat)
	assert.Equal(t, []string{"peer_ids"}, m.DataDescs())
	v, ok := m.ValueAt(0, 0)
	assert.True(t, ok)
	assert.Equal(t, "12:13:14", v)
}

func TestFromFlatMultiColumnSplitsOnEveryColon(t *testing.T) {
	flat := &Flat{
		Command:     "REGISTEREDCLIENT",
		Description: "id:type:name",
		Data:        []string{"12:diana:diana-a"},
	}
	m := FromFlat(flat)
	assert.Equal(t, []string{"id", "type", "name"}, m.DataDescs())
	row := m.Row(0)
	assert.Equal(t, []string{"12", "diana", "diana-a"}, row)
}

func TestFromFlatNoDataColumns(t *testing.T) {
	flat := &Flat{Command: "SETNAME", CommonDesc: "name", Common: "bob"}
	m := FromFlat(flat)
	assert.Equal(t, 0, m.RowCount())
	assert.Equal(t, "bob", m.GetCommonValue("name"))
}

func TestToFlatEmptyMessage(t *testing.T) {
	m := New("SETPEERS")
	flat := ToFlat(m)
	assert.Equal(t, "SETPEERS", flat.Command)
	assert.Equal(t, "", flat.Description)
	assert.Equal(t, "", flat.CommonDesc)
	assert.Equal(t, "", flat.Common)
	assert.Empty(t, flat.Data)
}
