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

package client

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/frame"
	"github.com/coserver/cobus/transport"
)

// wireConnection owns one transport and the frame.Codec negotiated on
// it. It runs a read loop on its own goroutine and delivers every frame
// it decodes to incoming, until the transport fails or Close is called.
// Writes are serialized with writeMu since the session layer and the
// read loop's own protocol replies (none, currently) could otherwise
// interleave partial frames on the wire.
type wireConnection struct {
	transport transport.Transport
	codec     *frame.Codec

	incoming chan *frame.Frame
	done     chan struct{}
	closed   int32

	writeMu sync.Mutex
}

func newWireConnection(t transport.Transport) *wireConnection {
	return &wireConnection{
		transport: t,
		codec:     frame.NewCodec(false),
		incoming:  make(chan *frame.Frame, 64),
		done:      make(chan struct{}),
	}
}

func (c *wireConnection) String() string {
	return fmt.Sprintf("connection(%v)", c.transport)
}

// readLoop blocks reading frames until the transport errors or Close is
// called, then closes incoming. It is meant to run on its own goroutine
// for the lifetime of the connection.
func (c *wireConnection) readLoop() error {
	defer close(c.incoming)
	for {
		f, err := c.codec.ReadFrame(c.transport)
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 1 {
				return nil
			}
			return fmt.Errorf("%v: read failed: %w", c, err)
		}
		if f == nil {
			// An unsupported protocol version was negotiated and the
			// frame discarded; keep reading.
			continue
		}
		select {
		case c.incoming <- f:
		case <-c.done:
			return nil
		}
	}
}

func (c *wireConnection) send(f *frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.codec.WriteFrame(f, c.transport); err != nil {
		return fmt.Errorf("%v: write failed: %w", c, err)
	}
	return nil
}

func (c *wireConnection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.done)
	err := c.transport.Close()
	if err != nil && err != io.EOF {
		log.Debug().Msgf("%v: close: %v", c, err)
	}
	return nil
}

func (c *wireConnection) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
