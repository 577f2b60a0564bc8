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
	"sort"
	"sync"

	"github.com/coserver/cobus/message"
)

// PeerRecord is what this Client knows about one other registered
// client: the identity the broker assigned it, the type it registered
// as, its current display name, and whether it is currently connected.
// A record seeded by registeredclient starts with Connected false; it
// flips true on newclient and back to false on removeclient, and the
// record itself is only removed on unregisteredclient.
type PeerRecord struct {
	Id        message.ClientId
	Type      string
	Name      string
	Connected bool
}

// peerTable is the session's view of every other registered client,
// kept current by the control frames the broker fans out
// (registeredclient/newclient/renameclient/removeclient). It is read
// from both the dispatch goroutine and by application goroutines
// calling the read-only enquiry methods on Client, hence the mutex.
type peerTable struct {
	mu   sync.RWMutex
	byId map[message.ClientId]*PeerRecord
}

func newPeerTable() *peerTable {
	return &peerTable{byId: make(map[message.ClientId]*PeerRecord)}
}

func (t *peerTable) put(rec PeerRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byId[rec.Id] = &rec
}

func (t *peerTable) rename(id message.ClientId, newName string) (oldName string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, found := t.byId[id]
	if !found {
		return "", false
	}
	oldName = rec.Name
	rec.Name = newName
	return oldName, true
}

// setConnected flips the Connected flag of an existing record without
// touching its Type or Name, returning the updated record. It returns
// false without modifying anything if id is not known.
func (t *peerTable) setConnected(id message.ClientId, connected bool) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, found := t.byId[id]
	if !found {
		return PeerRecord{}, false
	}
	rec.Connected = connected
	return *rec, true
}

func (t *peerTable) remove(id message.ClientId) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, found := t.byId[id]
	if !found {
		return PeerRecord{}, false
	}
	delete(t.byId, id)
	return *rec, true
}

func (t *peerTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byId = make(map[message.ClientId]*PeerRecord)
}

func (t *peerTable) get(id message.ClientId) (PeerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, found := t.byId[id]
	if !found {
		return PeerRecord{}, false
	}
	return *rec, true
}

// hasType reports whether any known peer registered as clientType.
func (t *peerTable) hasType(clientType string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, rec := range t.byId {
		if rec.Type == clientType {
			return true
		}
	}
	return false
}

// ids returns every known peer id, in no particular order.
func (t *peerTable) ids() []message.ClientId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]message.ClientId, 0, len(t.byId))
	for id := range t.byId {
		ids = append(ids, id)
	}
	return ids
}

// all returns a snapshot of every known record, in no particular order.
func (t *peerTable) all() []PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	recs := make([]PeerRecord, 0, len(t.byId))
	for _, rec := range t.byId {
		recs = append(recs, *rec)
	}
	return recs
}

// idsForNames returns, sorted ascending for a deterministic SETPEERS
// body, the id of every known peer whose name is in names -- or every
// known id, when names is empty.
func (t *peerTable) idsForNames(names []string) []message.ClientId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []message.ClientId
	if len(names) == 0 {
		for id := range t.byId {
			ids = append(ids, id)
		}
	} else {
		wanted := make(map[string]struct{}, len(names))
		for _, n := range names {
			wanted[n] = struct{}{}
		}
		for id, rec := range t.byId {
			if _, ok := wanted[rec.Name]; ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
