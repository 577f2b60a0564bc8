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
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/endpoint"
	"github.com/coserver/cobus/transport"
)

// reconnectDelay is how long the manager waits after an unexpected
// (remote-initiated) disconnect before trying to reconnect. A
// caller-initiated Disconnect never triggers this.
const reconnectDelay = time.Second

// connectionManager implements the endpoint-discovery and reconnection
// state machine: it walks a list of candidate endpoints, optionally
// spawning a local broker when a local endpoint refuses a connection,
// and automatically retries after the transport drops unexpectedly.
type connectionManager struct {
	mu sync.Mutex

	candidates    []*endpoint.Endpoint
	cursor        int
	startedCursor int // index of the candidate a spawn was last attempted for; -1 means none yet

	connectTimeout        time.Duration
	serverCommand         string
	attemptToStartServer  bool
	spawner               transport.Spawner

	conn *wireConnection

	onEvent func(Event)
}

func newConnectionManager(onEvent func(Event)) *connectionManager {
	return &connectionManager{
		startedCursor:  -1,
		connectTimeout: 5 * time.Second,
		spawner:        transport.ExecSpawner{},
		onEvent:        onEvent,
	}
}

func (m *connectionManager) setCandidates(eps []*endpoint.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = eps
	m.cursor = 0
	m.startedCursor = -1
}

// connect walks the candidate list starting at the manager's current
// cursor, trying each endpoint in turn. A local endpoint that refuses
// the connection triggers one spawn attempt (guarded by startedCursor so
// a given candidate is only ever spawned once per discovery cycle)
// before moving on. It returns once a transport is established, or once
// every candidate has been tried without success.
func (m *connectionManager) connect(ctx context.Context) (*wireConnection, error) {
	m.mu.Lock()
	candidates := m.candidates
	cursor := m.cursor
	m.mu.Unlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("client: no candidate endpoints to connect to")
	}

	// Each candidate is tried once bare, and once more right after a
	// successful spawn for it; the walk ends at the end of the list.
	for cursor < len(candidates) {
		ep := candidates[cursor]
		tr, err := transport.Dial(ctx, ep, m.connectTimeout)
		if err == nil {
			conn := newWireConnection(tr)
			m.mu.Lock()
			m.cursor = cursor
			m.conn = conn
			m.mu.Unlock()
			log.Info().Msgf("client: connected to %v", ep)
			if m.onEvent != nil {
				m.onEvent(Event{Kind: EventConnected, Endpoint: ep})
			}
			return conn, nil
		}

		log.Debug().Msgf("client: cannot connect to %v: %v", ep, err)
		if m.maybeSpawnLocal(ep, cursor, err) {
			continue // retry the same candidate immediately after spawning
		}

		cursor++
	}

	m.mu.Lock()
	m.cursor = cursor
	m.mu.Unlock()
	err := fmt.Errorf("client: unable to connect to any of %d candidate endpoint(s)", len(candidates))
	if m.onEvent != nil {
		m.onEvent(Event{Kind: EventUnableToConnect, Err: err})
	}
	return nil, err
}

// maybeSpawnLocal attempts to auto-start a broker when ep names a
// broker that could plausibly run on this machine, auto-start is
// configured, the dial failed because nothing is listening yet, and
// this candidate hasn't already been spawned for in this discovery
// cycle.
func (m *connectionManager) maybeSpawnLocal(ep *endpoint.Endpoint, cursor int, dialErr error) bool {
	if !ep.IsLocalish() || !m.attemptToStartServer || !transport.IsRefused(dialErr) {
		return false
	}
	m.mu.Lock()
	if m.startedCursor == cursor {
		m.mu.Unlock()
		return false
	}
	m.startedCursor = cursor
	m.mu.Unlock()

	if err := m.spawner.Spawn(m.serverCommand, ep); err != nil {
		log.Warn().Msgf("client: could not spawn local broker for %v: %v", ep, err)
		return false
	}
	return true
}

// disconnect closes the active connection. If reconnect is true (the
// transport failed on its own) a reconnect attempt is scheduled after
// reconnectDelay; a caller-initiated Disconnect passes false.
func (m *connectionManager) disconnect(reconnect bool, onReconnect func()) {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if reconnect && onReconnect != nil {
		time.AfterFunc(reconnectDelay, onReconnect)
	}
}
