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

import "errors"

// flatSeparator is the colon join/split separator the V0 body uses for
// its list-valued fields, matching message.Flat's wire-adjacent form.
const flatSeparator = ":"

// magicSentinel discriminates a V1 body from a legacy V0 body. V0's `to`
// field is always a legal client id (>= -1); this value is well outside
// that range and can never collide with it.
const magicSentinel int32 = -0xC04C0DE

// MaxSupportedVersion is the highest protocol version this codec knows
// how to decode. A frame negotiating anything higher is discarded, not
// rejected: see Codec.ReadFrame.
const MaxSupportedVersion uint32 = 1

// MaxBodyLength bounds the length prefix accepted from the wire, so a
// corrupt or hostile peer cannot make Read allocate an unbounded buffer.
const MaxBodyLength = 64 << 20

var (
	// ErrFrameTooLarge is returned by ReadFrame when the length prefix
	// exceeds MaxBodyLength.
	ErrFrameTooLarge = errors.New("frame: body exceeds maximum length")
)

// Codec reads and writes length-prefixed frames for one connection and
// tracks the protocol version negotiated with the peer on that
// connection. It is not safe for concurrent use; each connection owns
// exactly one Codec, consistent with this library's single-owner
// transport model.
type Codec struct {
	// isServer selects which side of the wire Write speaks for: false
	// writes in the client->server direction (a receiver id list in V1,
	// no `from` field in V0); true writes in the server->client
	// direction (a single `from` id in V1, a populated `from` field in
	// V0). Read always decodes the opposite direction, since whatever
	// arrives on the wire was written by the peer. This library only
	// ever constructs client-side codecs.
	isServer bool

	// version is the protocol version negotiated with the peer on this
	// connection. It starts at 0 (V0) and is raised -- never lowered --
	// by ReadFrame whenever an incoming frame carries a magic sentinel
	// with a higher version. Writes use this version, so a write
	// following a version-raising read automatically upgrades to V1.
	version uint32
}

// NewCodec returns a Codec for one connection. isServer is a property of
// which side of the wire this codec writes as; client code always passes
// false.
func NewCodec(isServer bool) *Codec {
	return &Codec{isServer: isServer}
}

// Version reports the protocol version currently negotiated on this
// connection.
func (c *Codec) Version() uint32 {
	return c.version
}
