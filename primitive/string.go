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

	"golang.org/x/text/encoding/unicode"
)

// [string]
//
// Strings are framed as a 32-bit big-endian byte length followed by that
// many bytes of big-endian UTF-16, with no byte-order mark. This matches
// the wire convention of the underlying binary-stream transport this
// codec was built against.

var utf16Codec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func ReadString(source io.Reader) (string, error) {
	length, err := ReadUint32(source)
	if err != nil {
		return "", fmt.Errorf("cannot read [string] length: %w", err)
	}
	if length == 0 {
		return "", nil
	}
	encoded := make([]byte, length)
	if _, err := io.ReadFull(source, encoded); err != nil {
		return "", fmt.Errorf("cannot read [string] content: %w", err)
	}
	decoded, err := utf16Codec.NewDecoder().Bytes(encoded)
	if err != nil {
		return "", fmt.Errorf("cannot decode [string] content: %w", err)
	}
	return string(decoded), nil
}

func WriteString(s string, dest io.Writer) error {
	encoded, err := utf16Codec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return fmt.Errorf("cannot encode [string] content: %w", err)
	}
	if err := WriteUint32(uint32(len(encoded)), dest); err != nil {
		return fmt.Errorf("cannot write [string] length: %w", err)
	}
	if n, err := dest.Write(encoded); err != nil {
		return fmt.Errorf("cannot write [string] content: %w", err)
	} else if n != len(encoded) {
		return fmt.Errorf("not enough capacity to write [string] content")
	}
	return nil
}

func LengthOfString(s string) (int, error) {
	encoded, err := utf16Codec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return 0, fmt.Errorf("cannot encode [string] content: %w", err)
	}
	return LengthOfInt32 + len(encoded), nil
}
