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

// Package client is the public entry point of this module: Client
// discovers a broker, maintains a connection to it (reconnecting and,
// where configured, auto-spawning a local broker as needed), performs
// the registration handshake, keeps a table of known peers, and
// delivers everything that happens as a stream of Events.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/config"
	"github.com/coserver/cobus/endpoint"
	"github.com/coserver/cobus/frame"
	"github.com/coserver/cobus/message"
)

// DefaultConnectTimeout bounds a single dial attempt to one candidate
// endpoint.
const DefaultConnectTimeout = 5 * time.Second

// ErrNotConnected is returned by Send when called before Connect has
// completed, or after the connection has been lost and not yet
// re-established.
var ErrNotConnected = errors.New("client: not connected")

// Client is a connection to the message bus: one registered peer's view
// of the system. It is safe for concurrent use.
type Client struct {
	mgr *connectionManager

	mu                sync.Mutex
	clientType        string
	name              string
	userId            string
	selectedPeerNames []string // SETPEERS subscription: peer names this session wants traffic from
	explicitURLs      []string
	handlers          []EventHandler

	peers *peerTable
	id    message.ClientId
	conn  *wireConnection

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Client that will register as clientType once connected.
// name is the initial display name (may be empty); it can be changed
// later with SetName.
func New(clientType, name string) *Client {
	c := &Client{
		clientType: clientType,
		name:       name,
		peers:      newPeerTable(),
		id:         message.UnassignedId,
	}
	c.mgr = newConnectionManager(c.emit)
	c.mgr.connectTimeout = DefaultConnectTimeout
	return c
}

func (c *Client) String() string {
	return fmt.Sprintf("client(%s/%s)", c.clientType, c.name)
}

// AddEventHandler registers a handler invoked for every Event this
// Client emits, starting with whatever happens after this call.
func (c *Client) AddEventHandler(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Client) emit(evt Event) {
	c.mu.Lock()
	handlers := append([]EventHandler(nil), c.handlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

// SetServerUrls overrides the explicit candidate list consulted during
// endpoint discovery (see endpoint.Discover). It only has an effect on
// the next Connect call. It emits EventAddressListChanged.
func (c *Client) SetServerUrls(urls []string) {
	c.mu.Lock()
	c.explicitURLs = urls
	c.mu.Unlock()
	c.emit(Event{Kind: EventAddressListChanged})
}

// SetServerCommand sets the command used to auto-spawn a local broker,
// and whether auto-spawning is attempted at all.
func (c *Client) SetServerCommand(command string, attempt bool) {
	c.mgr.mu.Lock()
	c.mgr.serverCommand = command
	c.mgr.attemptToStartServer = attempt
	c.mgr.mu.Unlock()
}

// SetUserId sets the user id sent during the registration handshake.
func (c *Client) SetUserId(userId string) {
	c.mu.Lock()
	c.userId = userId
	c.mu.Unlock()
}

// Id returns the client id the broker assigned this session, or
// message.UnassignedId if not yet connected.
func (c *Client) Id() message.ClientId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Connect discovers a broker endpoint, connects, and performs the
// registration handshake, then starts the background dispatch loop.
// Connect blocks until the handshake completes or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	sysCfg, err := config.Load(systemConfigPath())
	if err != nil {
		return err
	}
	userCfg, err := config.Load(userConfigPath())
	if err != nil {
		return err
	}

	c.mu.Lock()
	explicit := c.explicitURLs
	c.mu.Unlock()

	eps := endpoint.Discover(endpoint.Sources{
		Explicit:    explicit,
		UserServers: userCfg.Servers,
		SysServers:  sysCfg.Servers,
	})
	c.mgr.setCandidates(eps)

	if c.mgr.serverCommand == "" {
		cmd := userCfg.ServerCommand
		attempt := userCfg.AttemptToStartServer
		if cmd == "" {
			cmd = sysCfg.ServerCommand
			attempt = sysCfg.AttemptToStartServer
		}
		c.mgr.mu.Lock()
		c.mgr.serverCommand = cmd
		c.mgr.attemptToStartServer = attempt
		c.mgr.mu.Unlock()
	}
	c.mu.Lock()
	if c.userId == "" {
		c.userId = userCfg.UserId
	}
	c.mu.Unlock()

	return c.connectAndRegister(ctx)
}

func (c *Client) connectAndRegister(ctx context.Context) error {
	conn, err := c.mgr.connect(ctx)
	if err != nil {
		return err
	}
	if err := c.performHandshake(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("client: handshake failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runReadLoop(conn)
	return nil
}

// runReadLoop owns one connection's lifetime after the handshake: it
// reads frames with wireConnection.readLoop on a sub-goroutine and
// dispatches whatever arrives on conn.incoming until the connection
// closes, then runs disconnect cleanup and decides whether to
// reconnect.
func (c *Client) runReadLoop(conn *wireConnection) {
	defer c.wg.Done()
	readErrCh := make(chan error, 1)
	go func() { readErrCh <- conn.readLoop() }()

	for f := range conn.incoming {
		c.dispatch(f)
	}
	readErr := <-readErrCh

	wasIntentional := conn.isClosed() && readErr == nil
	c.cleanupAfterDisconnect()
	c.emit(Event{Kind: EventDisconnected, Err: readErr})
	if wasIntentional {
		return
	}
	c.mgr.disconnect(true, func() {
		if err := c.connectAndRegister(c.backgroundCtx()); err != nil {
			log.Warn().Msgf("%v: reconnect failed: %v", c, err)
		}
	})
}

// cleanupAfterDisconnect implements the session's disconnect cleanup:
// every known peer is reported gone and then unregistered, the peer
// table is cleared, this session's own id resets to unassigned, and the
// closed connection is forgotten so Send reports ErrNotConnected until a
// new one is established.
func (c *Client) cleanupAfterDisconnect() {
	for _, rec := range c.peers.all() {
		c.emit(Event{Kind: EventClientGone, Id: rec.Id, Type: rec.Type, Name: rec.Name})
		c.emit(Event{Kind: EventClientUnregistered, Id: rec.Id, Type: rec.Type, Name: rec.Name})
	}
	c.peers.clear()

	c.mu.Lock()
	c.id = message.UnassignedId
	c.conn = nil
	c.mu.Unlock()
}

func (c *Client) backgroundCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// Disconnect closes the connection without scheduling a reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.mgr.disconnect(false, nil)
	c.wg.Wait()
}

// Send transmits msg to the given receivers. An empty/nil to list
// broadcasts to every peer the broker is willing to deliver to (subject
// to SETPEERS filtering on the receiving side).
func (c *Client) Send(to []message.ClientId, msg *message.Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.send(&frame.Frame{To: to, Msg: msg})
}

// SetName changes this session's display name, notifying the broker so
// it can fan the rename out to peers as RENAMECLIENT.
func (c *Client) SetName(name string) error {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	msg := message.New("SETNAME")
	msg.AddCommon("name", name)
	return c.Send(nil, msg)
}

// SetSelectedPeerNames updates this session's SETPEERS subscription:
// only traffic from peers whose current name is in names will be
// delivered to this session. An empty list subscribes to every known
// peer. The new subscription is sent to the broker immediately.
func (c *Client) SetSelectedPeerNames(names []string) error {
	c.mu.Lock()
	c.selectedPeerNames = append([]string(nil), names...)
	c.mu.Unlock()
	return c.sendSetPeers()
}

// setPeersMessage builds the outgoing SETPEERS body: an empty common
// header and one peer_ids row per id in the peer table whose name is in
// selectedPeerNames (every known id when selectedPeerNames is empty).
func (c *Client) setPeersMessage() *message.Message {
	c.mu.Lock()
	names := append([]string(nil), c.selectedPeerNames...)
	c.mu.Unlock()

	msg := message.New("SETPEERS")
	msg.AddDataDesc("peer_ids")
	for _, id := range c.peers.idsForNames(names) {
		msg.AddDataValues([]string{strconv.Itoa(int(id))})
	}
	return msg
}

func (c *Client) sendSetPeers() error {
	return c.Send(nil, c.setPeersMessage())
}

// rewriteSelectedName rewrites oldName to newName in the
// selectedPeerNames set in place, reporting whether an entry was
// rewritten (i.e. the renamed peer was actually subscribed to).
func (c *Client) rewriteSelectedName(oldName, newName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.selectedPeerNames {
		if n == oldName {
			c.selectedPeerNames[i] = newName
			return true
		}
	}
	return false
}

// HasPeerOfType reports whether any currently known peer registered as
// clientType.
func (c *Client) HasPeerOfType(clientType string) bool {
	return c.peers.hasType(clientType)
}

// PeerNameAndType returns the display name and client type the broker
// last reported for id.
func (c *Client) PeerNameAndType(id message.ClientId) (name, clientType string, ok bool) {
	rec, found := c.peers.get(id)
	if !found {
		return "", "", false
	}
	return rec.Name, rec.Type, true
}

// KnownPeerIds returns the id of every peer currently known to this
// session, in no particular order.
func (c *Client) KnownPeerIds() []message.ClientId {
	return c.peers.ids()
}

func systemConfigPath() string { return "/etc/coserver/client.ini" }

func userConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home + "/.coserver/client.ini"
	}
	return ""
}
