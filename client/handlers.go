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
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/frame"
	"github.com/coserver/cobus/message"
)

// dispatch routes one incoming frame to the right handler based on its
// command, keeping the peer table current and turning every control
// frame into the matching Event. Anything this Client does not
// specifically interpret is surfaced as EventReceivedMessage, so callers
// can still see broker or peer traffic this layer doesn't model.
func (c *Client) dispatch(f *frame.Frame) {
	switch f.Msg.Command() {
	case "NEWCLIENT":
		c.handleNewClient(f.Msg)
	case "RENAMECLIENT":
		c.handleRenameClient(f.Msg)
	case "REMOVECLIENT":
		c.handleRemoveClient(f.Msg)
	case "UNREGISTEREDCLIENT":
		c.handleUnregisteredClient(f.Msg)
	default:
		c.emit(Event{Kind: EventReceivedMessage, From: f.From, Msg: f.Msg, Flat: message.ToFlat(f.Msg)})
	}
}

// handleNewClient marks an already-known peer connected. The peer must
// already have a PeerRecord (seeded by registeredclient); an unknown id
// is warned about and otherwise ignored, since this protocol has no
// other way to learn a peer's type and name.
func (c *Client) handleNewClient(msg *message.Message) {
	idStr := msg.GetCommonValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		log.Warn().Msgf("%v: NEWCLIENT has non-numeric id %q, ignored", c, idStr)
		return
	}
	rec, ok := c.peers.setConnected(message.ClientId(id), true)
	if !ok {
		log.Warn().Msgf("%v: NEWCLIENT for unknown peer %d, ignored", c, id)
		return
	}
	c.emit(Event{Kind: EventClientNew, Id: rec.Id, Type: rec.Type, Name: rec.Name})
}

func (c *Client) handleRenameClient(msg *message.Message) {
	idStr := msg.GetCommonValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		log.Warn().Msgf("%v: RENAMECLIENT has non-numeric id %q, ignored", c, idStr)
		return
	}
	newName := msg.GetCommonValue("name")
	oldName, ok := c.peers.rename(message.ClientId(id), newName)
	if !ok {
		log.Debug().Msgf("%v: RENAMECLIENT for unknown peer %d, ignored", c, id)
		return
	}
	c.emit(Event{Kind: EventClientRename, Id: message.ClientId(id), OldName: oldName, Name: newName})

	if c.rewriteSelectedName(oldName, newName) {
		if err := c.sendSetPeers(); err != nil {
			log.Warn().Msgf("%v: cannot resend SETPEERS after rename: %v", c, err)
		}
	}
}

// handleRemoveClient marks a known peer disconnected. The PeerRecord is
// kept -- only unregisteredclient removes it -- so a transient drop
// doesn't lose the peer's type and name.
func (c *Client) handleRemoveClient(msg *message.Message) {
	idStr := msg.GetCommonValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		log.Warn().Msgf("%v: REMOVECLIENT has non-numeric id %q, ignored", c, idStr)
		return
	}
	rec, ok := c.peers.setConnected(message.ClientId(id), false)
	if !ok {
		log.Debug().Msgf("%v: REMOVECLIENT for unknown peer %d, ignored", c, id)
		return
	}
	c.emit(Event{Kind: EventClientGone, Id: rec.Id, Type: rec.Type, Name: rec.Name})
}

// handleUnregisteredClient removes one peer's PeerRecord entirely. This
// is a per-peer event, not a notification about this session itself:
// the connection is left untouched.
func (c *Client) handleUnregisteredClient(msg *message.Message) {
	idStr := msg.GetCommonValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		log.Warn().Msgf("%v: UNREGISTEREDCLIENT has non-numeric id %q, ignored", c, idStr)
		return
	}
	rec, ok := c.peers.remove(message.ClientId(id))
	if !ok {
		log.Debug().Msgf("%v: UNREGISTEREDCLIENT for unknown peer %d, ignored", c, id)
		return
	}
	c.emit(Event{Kind: EventClientUnregistered, Id: rec.Id, Type: rec.Type, Name: rec.Name})

	if err := c.sendSetPeers(); err != nil {
		log.Warn().Msgf("%v: cannot resend SETPEERS after unregister: %v", c, err)
	}
}
