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
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/frame"
	"github.com/coserver/cobus/message"
)

// mockBroker is an in-process stand-in for a real broker, used to drive
// the connection and session state machines under test without a real
// subprocess. It accepts connections on a listener (typically a unix
// socket backed by t.TempDir(), so tests can also exercise
// maybeSpawnLocal / "nothing listening yet" scenarios by closing and
// reopening it), assigns sequential client ids, and fans out the same
// NEWCLIENT/RENAMECLIENT/REMOVECLIENT control traffic a real broker
// would.
type mockBroker struct {
	ln net.Listener

	mu      sync.Mutex
	nextId  message.ClientId
	clients map[message.ClientId]*mockBrokerConn

	wg sync.WaitGroup
}

type mockBrokerConn struct {
	id         message.ClientId
	conn       *wireConnection
	clientType string
	name       string

	lastSetPeers *message.Message // most recent SETPEERS this connection sent
}

func newMockBroker(ln net.Listener) *mockBroker {
	return &mockBroker{
		ln:      ln,
		nextId:  1,
		clients: make(map[message.ClientId]*mockBrokerConn),
	}
}

func (b *mockBroker) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.wg.Add(1)
		go b.serve(conn)
	}
}

func (b *mockBroker) serve(netConn net.Conn) {
	defer b.wg.Done()
	wc := newWireConnection(&netConnTransport{netConn})
	// The broker writes in the server->client direction.
	wc.codec = frame.NewCodec(true)

	readErr := make(chan error, 1)
	go func() { readErr <- wc.readLoop() }()

	var self *mockBrokerConn
	defer func() {
		_ = wc.Close()
		if self != nil {
			b.unregister(self)
		}
	}()

	for f := range wc.incoming {
		switch f.Msg.Command() {
		case "SETTYPE":
			self = b.register(wc, f.Msg)
		case "SETNAME":
			if self != nil {
				b.rename(self, f.Msg.GetCommonValue("name"))
			}
		case "SETPEERS":
			// Subscription filtering is not modeled by the mock broker:
			// every client receives every broadcast, which is sufficient
			// to exercise the Client-side SETPEERS send path. The body is
			// recorded so tests can assert on what was actually sent.
			if self != nil {
				b.mu.Lock()
				self.lastSetPeers = f.Msg
				b.mu.Unlock()
			}
		default:
			b.relay(self, f)
		}
	}
	<-readErr
}

func (b *mockBroker) register(wc *wireConnection, msg *message.Message) *mockBrokerConn {
	b.mu.Lock()
	id := b.nextId
	b.nextId++
	self := &mockBrokerConn{id: id, conn: wc, clientType: msg.GetCommonValue("type"), name: msg.GetCommonValue("name")}

	reply := message.New("REGISTEREDCLIENT")
	reply.AddCommon("id", strconv.Itoa(int(id)))
	reply.AddDataDesc("id")
	reply.AddDataDesc("type")
	reply.AddDataDesc("name")
	for _, peer := range b.clients {
		reply.AddDataValues([]string{strconv.Itoa(int(peer.id)), peer.clientType, peer.name})
	}
	b.clients[id] = self
	others := b.others(id)
	b.mu.Unlock()

	if err := wc.send(&frame.Frame{From: 0, Msg: reply}); err != nil {
		log.Debug().Msgf("mockbroker: cannot send REGISTEREDCLIENT: %v", err)
	}

	newClient := message.New("NEWCLIENT")
	newClient.AddCommon("id", strconv.Itoa(int(id)))
	b.broadcast(others, newClient)
	return self
}

// seedPeer inserts a peer directly into the broker's table without a
// real connection attached, simulating a peer that is known to the
// broker (and so will appear in a subsequently-connecting client's
// REGISTEREDCLIENT rows) but is not yet connected -- the "registered"
// substate a real broker reaches before that peer's own transport
// finishes connecting.
func (b *mockBroker) seedPeer(id message.ClientId, clientType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[id] = &mockBrokerConn{id: id, clientType: clientType, name: name}
	if id >= b.nextId {
		b.nextId = id + 1
	}
}

// markConnected simulates a previously-seeded peer becoming live: every
// actually-connected client receives NEWCLIENT naming its id.
func (b *mockBroker) markConnected(id message.ClientId) {
	b.mu.Lock()
	targets := b.others(id)
	b.mu.Unlock()

	msg := message.New("NEWCLIENT")
	msg.AddCommon("id", strconv.Itoa(int(id)))
	b.broadcast(targets, msg)
}

func (b *mockBroker) rename(self *mockBrokerConn, newName string) {
	b.mu.Lock()
	self.name = newName
	others := b.others(self.id)
	b.mu.Unlock()

	msg := message.New("RENAMECLIENT")
	msg.AddCommon("id", strconv.Itoa(int(self.id)))
	msg.AddCommon("name", newName)
	b.broadcast(others, msg)
}

func (b *mockBroker) unregister(self *mockBrokerConn) {
	b.mu.Lock()
	delete(b.clients, self.id)
	others := b.others(self.id)
	b.mu.Unlock()

	msg := message.New("REMOVECLIENT")
	msg.AddCommon("id", strconv.Itoa(int(self.id)))
	b.broadcast(others, msg)
}

func (b *mockBroker) relay(self *mockBrokerConn, f *frame.Frame) {
	b.mu.Lock()
	var targets []*mockBrokerConn
	if len(f.To) == 0 {
		targets = b.others(clientIdOf(self))
	} else {
		for _, id := range f.To {
			if c, ok := b.clients[id]; ok {
				targets = append(targets, c)
			}
		}
	}
	b.mu.Unlock()

	from := message.UnassignedId
	if self != nil {
		from = self.id
	}
	for _, t := range targets {
		if t.conn == nil {
			continue
		}
		_ = t.conn.send(&frame.Frame{From: from, Msg: f.Msg})
	}
}

func clientIdOf(c *mockBrokerConn) message.ClientId {
	if c == nil {
		return message.UnassignedId
	}
	return c.id
}

// others must be called with b.mu held.
func (b *mockBroker) others(exclude message.ClientId) []*mockBrokerConn {
	var out []*mockBrokerConn
	for id, c := range b.clients {
		if id != exclude {
			out = append(out, c)
		}
	}
	return out
}

func (b *mockBroker) broadcast(targets []*mockBrokerConn, msg *message.Message) {
	for _, t := range targets {
		if t.conn == nil {
			continue // seeded peer with no real connection to deliver to
		}
		if err := t.conn.send(&frame.Frame{From: 0, Msg: msg}); err != nil {
			log.Debug().Msgf("mockbroker: cannot broadcast to %d: %v", t.id, err)
		}
	}
}

// lastSetPeersOf returns the data rows of the most recent SETPEERS
// message the given client sent, or nil if it hasn't sent one yet.
func (b *mockBroker) lastSetPeersOf(id message.ClientId) [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clients[id]
	if !ok || c.lastSetPeers == nil {
		return nil
	}
	rows := make([][]string, c.lastSetPeers.RowCount())
	for i := range rows {
		rows[i] = c.lastSetPeers.Row(i)
	}
	return rows
}

func (b *mockBroker) close() {
	_ = b.ln.Close()
	b.wg.Wait()
}

// netConnTransport adapts a net.Conn to transport.Transport without
// importing the transport package's net.Dialer machinery, so the mock
// broker can wrap whatever net.Listener a test hands it (TCP or unix).
type netConnTransport struct {
	net.Conn
}

func (t *netConnTransport) String() string {
	return "mockbroker-conn(" + t.Conn.RemoteAddr().String() + ")"
}
