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

	"github.com/coserver/cobus/endpoint"
	"github.com/coserver/cobus/message"
)

// EventKind identifies which variant of Event was emitted. Callers
// switch on this field rather than type-asserting, since Event is a
// single struct carrying whichever fields that variant uses -- a tagged
// union in the style idiomatic to Go, standing in for the signal/slot
// callbacks the source library used for the same notifications.
type EventKind int

const (
	// EventConnected fires once a transport to a candidate is
	// established, before the registration handshake runs. Endpoint names
	// the broker.
	EventConnected EventKind = iota
	// EventDisconnected fires when the connection is lost or closed.
	// Err is nil for a caller-initiated Disconnect.
	EventDisconnected
	// EventUnableToConnect fires when every candidate endpoint has been
	// tried and none could be reached.
	EventUnableToConnect
	// EventReceivedId fires once the broker assigns this session its own
	// client id, during the registration handshake.
	EventReceivedId
	// EventClientRegistered fires for each peer already registered at
	// the time this session's own registration completes.
	EventClientRegistered
	// EventClientNew fires when a known peer (already present in the
	// peer table from ClientRegistered) transitions to connected.
	EventClientNew
	// EventClientRename fires when a known peer changes its name.
	EventClientRename
	// EventClientGone fires when a known peer disconnects; the
	// PeerRecord is kept, marked not connected. It also fires for every
	// still-known peer during this session's own disconnect cleanup,
	// just before that peer's EventClientUnregistered.
	EventClientGone
	// EventClientUnregistered fires when a peer is removed from the
	// table entirely -- either because the broker told this session the
	// peer unregistered, or as part of this session's own disconnect
	// cleanup, once per peer that was still known at that point.
	EventClientUnregistered
	// EventReceivedMessage fires for every application message arriving
	// from a peer, including broker-originated control messages this
	// Client does not otherwise interpret. Flat carries the same content
	// synthesised into the legacy flat form, for callers still speaking
	// that shape.
	EventReceivedMessage
	// EventAddressListChanged fires when SetServerUrls replaces the
	// explicit candidate list.
	EventAddressListChanged
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventUnableToConnect:
		return "UnableToConnect"
	case EventReceivedId:
		return "ReceivedId"
	case EventClientRegistered:
		return "ClientRegistered"
	case EventClientNew:
		return "ClientNew"
	case EventClientRename:
		return "ClientRename"
	case EventClientGone:
		return "ClientGone"
	case EventClientUnregistered:
		return "ClientUnregistered"
	case EventReceivedMessage:
		return "ReceivedMessage"
	case EventAddressListChanged:
		return "AddressListChanged"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by a Client to every registered EventHandler. Only
// the fields relevant to Kind are populated; the rest are left at their
// zero value.
type Event struct {
	Kind EventKind

	Endpoint *endpoint.Endpoint // Connected
	Err      error              // Disconnected, UnableToConnect

	Id      message.ClientId // ReceivedId, ClientRegistered, ClientNew, ClientRename, ClientGone, ClientUnregistered
	OldName string           // ClientRename
	Name    string           // ClientRegistered, ClientNew, ClientRename, ClientGone, ClientUnregistered
	Type    string           // ClientRegistered, ClientNew, ClientGone, ClientUnregistered

	From message.ClientId // ReceivedMessage
	Msg  *message.Message // ReceivedMessage
	Flat *message.Flat    // ReceivedMessage
}

func (e Event) String() string {
	return fmt.Sprintf("Event{%v}", e.Kind)
}

// EventHandler receives every Event a Client emits. Handlers are invoked
// synchronously on the Client's internal dispatch goroutine, so a
// handler must not block or call back into the Client that invoked it.
type EventHandler func(Event)
