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

// Package frame implements the length-prefixed wire envelope shared by
// the two protocol versions the broker speaks: the legacy V0 layout and
// the negotiated V1 layout. One Codec is owned per connection and tracks
// that connection's negotiated protocol version.
package frame

import (
	"fmt"

	"github.com/coserver/cobus/message"
)

// Frame is one length-prefixed wire record carrying exactly one Message,
// addressed either to a set of receivers (client writing toward the
// broker) or from a single sender (broker writing toward a client).
type Frame struct {
	// To lists the intended receivers of an outbound frame. An empty
	// list means broadcast. For V1, Read populates it only when this
	// codec decodes a client->server frame; a V0 body always carries a
	// `to` field, so Read populates it in both directions.
	To []message.ClientId

	// From is the sender id of an inbound frame. Populated by Read only
	// when this codec decodes a server->client frame; the zero value
	// (message.BrokerId) otherwise.
	From message.ClientId

	// Msg is the structured payload.
	Msg *message.Message
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{to: %v, from: %v, msg: %v}", f.To, f.From, f.Msg)
}
