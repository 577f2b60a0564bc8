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

// Package primitive implements the scalar read/write conventions shared by
// both wire protocol versions: 32-bit big-endian integers and 32-bit
// length-prefixed UTF-16 strings.
package primitive

import (
	"encoding/binary"
	"fmt"
	"io"
)

const LengthOfInt32 = 4

// ReadInt32 reads a signed 32-bit big-endian integer, used for client/peer
// ids, the `to`/`from` fields and the protocol magic sentinel.
func ReadInt32(source io.Reader) (decoded int32, err error) {
	if err = binary.Read(source, binary.BigEndian, &decoded); err != nil {
		err = fmt.Errorf("cannot read [int32]: %w", err)
	}
	return decoded, err
}

func WriteInt32(i int32, dest io.Writer) error {
	if err := binary.Write(dest, binary.BigEndian, i); err != nil {
		return fmt.Errorf("cannot write [int32]: %w", err)
	}
	return nil
}

// ReadUint32 reads an unsigned 32-bit big-endian integer, used for frame
// length prefixes, the negotiated protocol version and row counts.
func ReadUint32(source io.Reader) (decoded uint32, err error) {
	if err = binary.Read(source, binary.BigEndian, &decoded); err != nil {
		err = fmt.Errorf("cannot read [uint32]: %w", err)
	}
	return decoded, err
}

func WriteUint32(i uint32, dest io.Writer) error {
	if err := binary.Write(dest, binary.BigEndian, i); err != nil {
		return fmt.Errorf("cannot write [uint32]: %w", err)
	}
	return nil
}
