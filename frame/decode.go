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

	"github.com/coserver/cobus/message"
	"github.com/coserver/cobus/primitive"
)

// ReadFrame reads one length-prefixed frame from source, blocking until
// the full frame (length prefix plus body) has arrived or source returns
// an error. A nil Frame with a nil error means a frame was read and
// discarded because it negotiated an unsupported protocol version; the
// caller should simply call ReadFrame again.
//
// Go's blocking io.Read on a per-connection goroutine stands in for the
// source's cooperative "not ready, partial state retained" reassembly:
// the frame boundary is always fully assembled before this call returns,
// so there is no partial-frame state to retain across calls.
func (c *Codec) ReadFrame(source io.Reader) (*Frame, error) {
	length, err := primitive.ReadUint32(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame length: %w", err)
	}
	if length > MaxBodyLength {
		return nil, ErrFrameTooLarge
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(source, raw); err != nil {
		return nil, fmt.Errorf("cannot read frame body: %w", err)
	}
	body := bytes.NewReader(raw)

	first, err := primitive.ReadInt32(body)
	if err != nil {
		return nil, fmt.Errorf("cannot read frame discriminator: %w", err)
	}
	if first == magicSentinel {
		version, err := primitive.ReadUint32(body)
		if err != nil {
			return nil, fmt.Errorf("cannot read frame version: %w", err)
		}
		if version > c.version {
			c.version = version
		}
		if version > MaxSupportedVersion {
			// Unknown version: discard the frame, report nothing. The
			// caller's read loop moves on to the next frame.
			return nil, nil
		}
		return c.readV1Body(body)
	}
	return c.readV0Body(first, body)
}

func (c *Codec) readV0Body(to int32, source io.Reader) (*Frame, error) {
	fromPresent := !c.isServer
	var from message.ClientId
	if fromPresent {
		v, err := primitive.ReadInt32(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read v0 from: %w", err)
		}
		from = message.ClientId(v)
	}

	command, err := primitive.ReadString(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v0 command: %w", err)
	}
	dataDescJoined, err := primitive.ReadString(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v0 data descriptions: %w", err)
	}
	commonDescJoined, err := primitive.ReadString(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v0 common descriptions: %w", err)
	}
	commonValuesJoined, err := primitive.ReadString(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v0 common values: %w", err)
	}
	if _, err := primitive.ReadString(source); err != nil { // clientType, unused
		return nil, fmt.Errorf("cannot read v0 client type: %w", err)
	}
	if _, err := primitive.ReadString(source); err != nil { // co, unused
		return nil, fmt.Errorf("cannot read v0 co: %w", err)
	}
	rowCount, err := primitive.ReadUint32(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v0 row count: %w", err)
	}

	flat := &message.Flat{
		Command:     command,
		Description: dataDescJoined,
		CommonDesc:  commonDescJoined,
		Common:      commonValuesJoined,
		Data:        make([]string, rowCount),
	}
	for i := uint32(0); i < rowCount; i++ {
		row, err := primitive.ReadString(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read v0 row %d: %w", i, err)
		}
		flat.Data[i] = row
	}

	return &Frame{To: v0ReceiversFromTo(to), From: from, Msg: message.FromFlat(flat)}, nil
}

// v0ReceiversFromTo reverses coerceToV0: a broadcast value yields no
// receivers, anything else yields the single receiver it names.
func v0ReceiversFromTo(to int32) []message.ClientId {
	if to == int32(message.UnassignedId) {
		return []message.ClientId{}
	}
	return []message.ClientId{message.ClientId(to)}
}

func (c *Codec) readV1Body(source io.Reader) (*Frame, error) {
	fromPresent := !c.isServer
	var to []message.ClientId
	var from message.ClientId
	if fromPresent {
		v, err := primitive.ReadInt32(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read v1 from: %w", err)
		}
		from = message.ClientId(v)
	} else {
		ids, err := primitive.ReadInt32List(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read v1 receivers: %w", err)
		}
		to = make([]message.ClientId, len(ids))
		for i, v := range ids {
			to[i] = message.ClientId(v)
		}
	}

	command, err := primitive.ReadString(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v1 command: %w", err)
	}
	commonDesc, err := primitive.ReadStringList(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v1 common descriptions: %w", err)
	}
	commonValues, err := primitive.ReadStringList(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v1 common values: %w", err)
	}
	dataDesc, err := primitive.ReadStringList(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v1 data descriptions: %w", err)
	}
	rowCount, err := primitive.ReadUint32(source)
	if err != nil {
		return nil, fmt.Errorf("cannot read v1 row count: %w", err)
	}

	msg := message.New(command)
	for i, desc := range commonDesc {
		value := ""
		if i < len(commonValues) {
			value = commonValues[i]
		}
		msg.AddCommon(desc, value)
	}
	for _, desc := range dataDesc {
		msg.AddDataDesc(desc)
	}
	for i := uint32(0); i < rowCount; i++ {
		row, err := primitive.ReadStringList(source)
		if err != nil {
			return nil, fmt.Errorf("cannot read v1 row %d: %w", i, err)
		}
		msg.AddDataValues(row)
	}

	return &Frame{To: to, From: from, Msg: msg}, nil
}
