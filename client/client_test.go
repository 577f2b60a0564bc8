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
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coserver/cobus/endpoint"
	"github.com/coserver/cobus/message"
)

func startMockBroker(t *testing.T) (*mockBroker, *endpoint.Endpoint) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "co4.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	b := newMockBroker(ln)
	go b.acceptLoop()
	t.Cleanup(b.close)
	return b, &endpoint.Endpoint{Scheme: endpoint.SchemeLocal, Path: path}
}

func newTestClient(ep *endpoint.Endpoint, clientType, name string) *Client {
	c := New(clientType, name)
	c.SetServerUrls([]string{ep.String()})
	c.mgr.connectTimeout = time.Second
	return c
}

func TestConnectAssignsIdAndRegisters(t *testing.T) {
	_, ep := startMockBroker(t)
	c := newTestClient(ep, "diana", "diana-a")
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.NotEqual(t, message.UnassignedId, c.Id())
}

func TestSecondPeerSeesFirstAsRegistered(t *testing.T) {
	_, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	second := newTestClient(ep, "diana", "diana-b")
	defer second.Disconnect()
	require.NoError(t, second.Connect(ctx))

	require.Eventually(t, func() bool {
		return second.HasPeerOfType("diana") // sees itself's predecessor via REGISTEREDCLIENT rows
	}, time.Second, 10*time.Millisecond)
}

// TestNewClientMarksExistingPeerConnected exercises spec.md Scenario 2:
// a peer the broker already reports as registered (seeded here rather
// than given a real connection, standing in for a peer registered
// before this session's own handshake) later transitions to connected
// via NEWCLIENT, which must mark the existing PeerRecord connected
// rather than insert a new one.
func TestNewClientMarksExistingPeerConnected(t *testing.T) {
	b, ep := startMockBroker(t)
	b.seedPeer(99, "diana", "diana-a")

	c := newTestClient(ep, "viewer", "viewer-a")
	defer c.Disconnect()

	var events []Event
	var mu sync.Mutex
	c.AddEventHandler(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	name, clientType, ok := c.PeerNameAndType(99)
	require.True(t, ok)
	assert.Equal(t, "diana-a", name)
	assert.Equal(t, "diana", clientType)

	b.markConnected(99)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Kind == EventClientNew && e.Id == 99 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSendDeliversToPeer(t *testing.T) {
	_, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	received := make(chan *message.Message, 1)
	first.AddEventHandler(func(e Event) {
		if e.Kind == EventReceivedMessage {
			received <- e.Msg
		}
	})

	second := newTestClient(ep, "diana", "diana-b")
	defer second.Disconnect()
	require.NoError(t, second.Connect(ctx))

	msg := message.New("PING")
	msg.AddCommon("from", "diana-b")
	require.NoError(t, second.Send([]message.ClientId{first.Id()}, msg))

	select {
	case got := <-received:
		assert.Equal(t, "PING", got.Command())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

// TestSetPeersReflectsSelectedNames exercises spec.md Scenario 3: a
// SETPEERS subscription narrowed to one peer name resolves, against the
// peer table, to that single peer's id.
func TestSetPeersReflectsSelectedNames(t *testing.T) {
	b, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	second := newTestClient(ep, "diana", "diana-b")
	defer second.Disconnect()
	require.NoError(t, second.Connect(ctx))

	third := newTestClient(ep, "viewer", "viewer-a")
	defer third.Disconnect()
	require.NoError(t, third.Connect(ctx))

	require.NoError(t, third.SetSelectedPeerNames([]string{"diana-b"}))

	want := strconv.Itoa(int(second.Id()))
	require.Eventually(t, func() bool {
		rows := b.lastSetPeersOf(third.Id())
		return len(rows) == 1 && len(rows[0]) == 1 && rows[0][0] == want
	}, time.Second, 10*time.Millisecond)
}

// TestRenameOfSubscribedPeerResendsSetPeers exercises the second half of
// spec.md Scenario 3: renaming a subscribed peer rewrites the
// subscription entry in place and resends SETPEERS with the same
// resolved id.
func TestRenameOfSubscribedPeerResendsSetPeers(t *testing.T) {
	b, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	second := newTestClient(ep, "diana", "diana-b")
	defer second.Disconnect()
	require.NoError(t, second.Connect(ctx))

	third := newTestClient(ep, "viewer", "viewer-a")
	defer third.Disconnect()
	require.NoError(t, third.Connect(ctx))
	require.NoError(t, third.SetSelectedPeerNames([]string{"diana-b"}))

	want := strconv.Itoa(int(second.Id()))
	require.Eventually(t, func() bool {
		rows := b.lastSetPeersOf(third.Id())
		return len(rows) == 1 && len(rows[0]) == 1 && rows[0][0] == want
	}, time.Second, 10*time.Millisecond)

	b.mu.Lock()
	before := b.clients[third.Id()].lastSetPeers
	b.mu.Unlock()

	require.NoError(t, second.SetName("diana-c"))

	require.Eventually(t, func() bool {
		b.mu.Lock()
		resent := b.clients[third.Id()].lastSetPeers != before
		b.mu.Unlock()
		rows := b.lastSetPeersOf(third.Id())
		return resent && len(rows) == 1 && len(rows[0]) == 1 && rows[0][0] == want
	}, time.Second, 10*time.Millisecond)
}

// TestDisconnectClearsPeersAndId exercises spec.md's disconnect cleanup:
// every known peer is reported gone and unregistered, the peer table is
// cleared, and this session's own id resets to unassigned.
func TestDisconnectClearsPeersAndId(t *testing.T) {
	_, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	second := newTestClient(ep, "diana", "diana-b")
	require.NoError(t, second.Connect(ctx))

	require.Eventually(t, func() bool {
		_, _, ok := first.PeerNameAndType(second.Id())
		return ok
	}, time.Second, 10*time.Millisecond)

	var gotGone, gotUnregistered bool
	var mu sync.Mutex
	second.AddEventHandler(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Kind {
		case EventClientGone:
			gotGone = true
		case EventClientUnregistered:
			gotUnregistered = true
		}
	})

	second.Disconnect()

	mu.Lock()
	sawGone, sawUnregistered := gotGone, gotUnregistered
	mu.Unlock()
	assert.True(t, sawGone)
	assert.True(t, sawUnregistered)
	assert.Equal(t, message.UnassignedId, second.Id())
	assert.Empty(t, second.KnownPeerIds())
}

func TestSetNamePropagatesRename(t *testing.T) {
	_, ep := startMockBroker(t)

	first := newTestClient(ep, "diana", "diana-a")
	defer first.Disconnect()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Connect(ctx))

	second := newTestClient(ep, "diana", "diana-b")
	defer second.Disconnect()
	require.NoError(t, second.Connect(ctx))

	require.NoError(t, second.SetName("diana-b-renamed"))

	require.Eventually(t, func() bool {
		name, _, ok := first.PeerNameAndType(second.Id())
		return ok && name == "diana-b-renamed"
	}, time.Second, 10*time.Millisecond)
}
