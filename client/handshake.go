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
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/frame"
	"github.com/coserver/cobus/message"
)

// performHandshake sends SETTYPE and waits for the broker's
// REGISTEREDCLIENT reply, which carries this session's newly assigned
// client id (as a common value) and the set of peers already registered
// (as data rows of id/type/name).
func (c *Client) performHandshake(ctx context.Context, conn *wireConnection) error {
	log.Debug().Msgf("%v: performing handshake", c)

	c.mu.Lock()
	msg := message.New("SETTYPE")
	msg.AddCommon("type", c.clientType)
	if c.name != "" {
		msg.AddCommon("name", c.name)
	}
	if c.userId != "" {
		msg.AddCommon("userid", c.userId)
	}
	c.mu.Unlock()

	if err := conn.send(&frame.Frame{Msg: msg}); err != nil {
		return fmt.Errorf("%v: cannot send SETTYPE: %w", c, err)
	}

	select {
	case resp, ok := <-conn.incoming:
		if !ok {
			return fmt.Errorf("%v: connection closed during handshake", c)
		}
		if err := c.handleRegisteredClient(resp.Msg); err != nil {
			return err
		}
		if err := conn.send(&frame.Frame{Msg: c.setPeersMessage()}); err != nil {
			return fmt.Errorf("%v: cannot send SETPEERS: %w", c, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleRegisteredClient processes the REGISTEREDCLIENT reply to this
// session's own SETTYPE: it records the assigned id, populates the peer
// table from the accompanying rows, and emits ReceivedId followed by
// one ClientRegistered event per existing peer.
func (c *Client) handleRegisteredClient(msg *message.Message) error {
	if msg.Command() != "REGISTEREDCLIENT" {
		return fmt.Errorf("expected REGISTEREDCLIENT, got %v", msg.Command())
	}
	idStr := msg.GetCommonValue("id")
	if idStr == "" {
		return fmt.Errorf("REGISTEREDCLIENT missing common 'id'")
	}
	idVal, err := strconv.Atoi(idStr)
	if err != nil {
		return fmt.Errorf("REGISTEREDCLIENT has non-numeric id %q: %w", idStr, err)
	}
	ownId := message.ClientId(idVal)

	c.mu.Lock()
	c.id = ownId
	c.mu.Unlock()
	log.Info().Msgf("%v: registered with id %v", c, ownId)
	c.emit(Event{Kind: EventReceivedId, Id: ownId})

	for i := 0; i < msg.RowCount(); i++ {
		peerId, peerType, peerName, ok := decodePeerRow(msg, i)
		if !ok {
			continue
		}
		c.peers.put(PeerRecord{Id: peerId, Type: peerType, Name: peerName})
		c.emit(Event{Kind: EventClientRegistered, Id: peerId, Type: peerType, Name: peerName})
	}
	return nil
}

// decodePeerRow extracts (id, type, name) from one REGISTEREDCLIENT data
// row, looking each value up by its declared description
// rather than assuming column order.
func decodePeerRow(msg *message.Message, row int) (id message.ClientId, clientType, name string, ok bool) {
	idStr, found := msg.ValueByDesc(row, "id")
	if !found {
		return 0, "", "", false
	}
	idVal, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, "", "", false
	}
	clientType, _ = msg.ValueByDesc(row, "type")
	name, _ = msg.ValueByDesc(row, "name")
	return message.ClientId(idVal), clientType, name, true
}
