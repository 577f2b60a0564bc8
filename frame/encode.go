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

package frame

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/coserver/cobus/message"
	"github.com/coserver/cobus/primitive"
)

// WriteFrame encodes f as a length-prefixed frame and writes it to dest.
// The body layout used is whichever protocol version is currently
// negotiated on this connection (V0 until a read has upgraded it; see
// Codec.ReadFrame).
func (c *Codec) WriteFrame(f *Frame, dest io.Writer) error {
	var body bytes.Buffer
	var err error
	if c.version == 0 {
		err = c.writeV0Body(f, &body)
	} else {
		err = c.writeV1Body(f, &body)
	}
	if err != nil {
		return fmt.Errorf("cannot encode frame body: %w", err)
	}
	if err := primitive.WriteUint32(uint32(body.Len()), dest); err != nil {
		return fmt.Errorf("cannot write frame length: %w", err)
	}
	if _, err := dest.Write(body.Bytes()); err != nil {
		return fmt.Errorf("cannot write frame body: %w", err)
	}
	return nil
}

// coerceToV0 implements the legacy single-recipient encoding: the
// receiver set is written as the sole receiver id when it has exactly
// one element, and as broadcast (-1) otherwise. This silently drops
// addressing information for a multi-recipient send; spec.md's §9 open
// question on this point is accepted as the documented legacy behavior.
func coerceToV0(to []message.ClientId) int32 {
	if len(to) == 1 {
		return int32(to[0])
	}
	return int32(message.UnassignedId)
}

func (c *Codec) writeV0Body(f *Frame, dest io.Writer) error {
	if err := primitive.WriteInt32(coerceToV0(f.To), dest); err != nil {
		return fmt.Errorf("cannot write v0 to: %w", err)
	}
	if c.isServer {
		if err := primitive.WriteInt32(int32(f.From), dest); err != nil {
			return fmt.Errorf("cannot write v0 from: %w", err)
		}
	}
	msg := f.Msg
	if err := primitive.WriteString(msg.Command(), dest); err != nil {
		return fmt.Errorf("cannot write v0 command: %w", err)
	}
	if err := primitive.WriteString(strings.Join(msg.DataDescs(), flatSeparator), dest); err != nil {
		return fmt.Errorf("cannot write v0 data descriptions: %w", err)
	}
	if err := primitive.WriteString(strings.Join(msg.CommonDescs(), flatSeparator), dest); err != nil {
		return fmt.Errorf("cannot write v0 common descriptions: %w", err)
	}
	if err := primitive.WriteString(strings.Join(msg.CommonValues(), flatSeparator), dest); err != nil {
		return fmt.Errorf("cannot write v0 common values: %w", err)
	}
	if err := primitive.WriteString("", dest); err != nil { // clientType, unused on write
		return fmt.Errorf("cannot write v0 client type: %w", err)
	}
	if err := primitive.WriteString("", dest); err != nil { // co, unused on write
		return fmt.Errorf("cannot write v0 co: %w", err)
	}
	if err := primitive.WriteUint32(uint32(msg.RowCount()), dest); err != nil {
		return fmt.Errorf("cannot write v0 row count: %w", err)
	}
	for i := 0; i < msg.RowCount(); i++ {
		if err := primitive.WriteString(strings.Join(msg.Row(i), flatSeparator), dest); err != nil {
			return fmt.Errorf("cannot write v0 row %d: %w", i, err)
		}
	}
	return nil
}

func (c *Codec) writeV1Body(f *Frame, dest io.Writer) error {
	if err := primitive.WriteInt32(magicSentinel, dest); err != nil {
		return fmt.Errorf("cannot write v1 magic: %w", err)
	}
	if err := primitive.WriteUint32(c.version, dest); err != nil {
		return fmt.Errorf("cannot write v1 version: %w", err)
	}
	if c.isServer {
		if err := primitive.WriteInt32(int32(f.From), dest); err != nil {
			return fmt.Errorf("cannot write v1 from: %w", err)
		}
	} else {
		ids := make([]int32, len(f.To))
		for i, id := range f.To {
			ids[i] = int32(id)
		}
		if err := primitive.WriteInt32List(ids, dest); err != nil {
			return fmt.Errorf("cannot write v1 receivers: %w", err)
		}
	}
	msg := f.Msg
	if err := primitive.WriteString(msg.Command(), dest); err != nil {
		return fmt.Errorf("cannot write v1 command: %w", err)
	}
	if err := primitive.WriteStringList(msg.CommonDescs(), dest); err != nil {
		return fmt.Errorf("cannot write v1 common descriptions: %w", err)
	}
	if err := primitive.WriteStringList(msg.CommonValues(), dest); err != nil {
		return fmt.Errorf("cannot write v1 common values: %w", err)
	}
	if err := primitive.WriteStringList(msg.DataDescs(), dest); err != nil {
		return fmt.Errorf("cannot write v1 data descriptions: %w", err)
	}
	if err := primitive.WriteUint32(uint32(msg.RowCount()), dest); err != nil {
		return fmt.Errorf("cannot write v1 row count: %w", err)
	}
	for i := 0; i < msg.RowCount(); i++ {
		if err := primitive.WriteStringList(msg.Row(i), dest); err != nil {
			return fmt.Errorf("cannot write v1 row %d: %w", i, err)
		}
	}
	return nil
}
