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

package primitive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadInt32(t *testing.T) {
	tests := []int32{0, 1, -1, 7, -0xC04C0DE, 1 << 30}
	for _, v := range tests {
		buf := &bytes.Buffer{}
		require.NoError(t, WriteInt32(v, buf))
		assert.Equal(t, 4, buf.Len())
		actual, err := ReadInt32(buf)
		require.NoError(t, err)
		assert.Equal(t, v, actual)
	}
}

func TestWriteReadUint32(t *testing.T) {
	tests := []uint32{0, 1, 7, 1 << 31}
	for _, v := range tests {
		buf := &bytes.Buffer{}
		require.NoError(t, WriteUint32(v, buf))
		actual, err := ReadUint32(buf)
		require.NoError(t, err)
		assert.Equal(t, v, actual)
	}
}

func TestReadInt32TooShort(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 1})
	_, err := ReadInt32(buf)
	assert.Error(t, err)
}
