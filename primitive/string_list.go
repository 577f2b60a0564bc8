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
	"fmt"
	"io"
)

// [string list]
//
// Used by the V1 wire protocol for commonDesc, commonValues, dataDesc and
// individual rows.

func ReadStringList(source io.Reader) (decoded []string, err error) {
	length, err := ReadUint32(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read [string list] length: %w", err)
	}
	if length == 0 {
		return []string{}, nil
	}
	decoded = make([]string, length)
	for i := uint32(0); i < length; i++ {
		str, err := ReadString(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read [string list] element %d: %w", i, err)
		}
		decoded[i] = str
	}
	return decoded, nil
}

func WriteStringList(list []string, dest io.Writer) error {
	if err := WriteUint32(uint32(len(list)), dest); err != nil {
		return fmt.Errorf("cannot write [string list] length: %w", err)
	}
	for i, s := range list {
		if err := WriteString(s, dest); err != nil {
			return fmt.Errorf("cannot write [string list] element %d: %w", i, err)
		}
	}
	return nil
}

func LengthOfStringList(list []string) (int, error) {
	length := LengthOfInt32
	for _, s := range list {
		l, err := LengthOfString(s)
		if err != nil {
			return 0, err
		}
		length += l
	}
	return length, nil
}

// ReadInt32List reads a 32-bit count followed by that many signed 32-bit
// integers, used for V1 receiver-id lists.
func ReadInt32List(source io.Reader) ([]int32, error) {
	length, err := ReadUint32(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read [int32 list] length: %w", err)
	}
	if length == 0 {
		return []int32{}, nil
	}
	decoded := make([]int32, length)
	for i := uint32(0); i < length; i++ {
		v, err := ReadInt32(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read [int32 list] element %d: %w", i, err)
		}
		decoded[i] = v
	}
	return decoded, nil
}

func WriteInt32List(list []int32, dest io.Writer) error {
	if err := WriteUint32(uint32(len(list)), dest); err != nil {
		return fmt.Errorf("cannot write [int32 list] length: %w", err)
	}
	for i, v := range list {
		if err := WriteInt32(v, dest); err != nil {
			return fmt.Errorf("cannot write [int32 list] element %d: %w", i, err)
		}
	}
	return nil
}
