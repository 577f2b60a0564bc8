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

// Package transport dials the two kinds of byte streams a Client can
// speak to a broker over -- TCP (co4) and unix-domain sockets (local) --
// and spawns a local broker process when discovery and configuration
// both allow it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/coserver/cobus/endpoint"
)

// Transport is a connected, ordered byte stream to a broker. It is
// exactly net.Conn's read/write/close surface, narrowed to what the
// frame codec needs; keeping it as a small local interface (rather than
// depending on net.Conn directly) is what lets tests substitute an
// in-process pipe for a real socket.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	String() string
}

type netTransport struct {
	net.Conn
	endpoint *endpoint.Endpoint
}

func (t *netTransport) String() string {
	return fmt.Sprintf("transport(%v)", t.endpoint)
}

// Dial opens a Transport to ep, respecting ctx's deadline/cancellation.
func Dial(ctx context.Context, ep *endpoint.Endpoint, connectTimeout time.Duration) (Transport, error) {
	dialCtx := ctx
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	network, address := "tcp", fmt.Sprintf("%s:%d", ep.Host, ep.Port)
	if ep.Scheme == endpoint.SchemeLocal {
		network, address = "unix", ep.Path
	}

	conn, err := dialer.DialContext(dialCtx, network, address)
	if err != nil {
		return nil, fmt.Errorf("transport: cannot dial %v: %w", ep, err)
	}
	return &netTransport{Conn: conn, endpoint: ep}, nil
}

// IsRefused reports whether err indicates the remote end actively
// refused the connection, as opposed to a timeout or unreachable host.
// The connection manager's maybeSpawnLocal step only auto-starts a
// broker on a refusal, since a refusal on a local endpoint is the
// specific "nothing is listening yet" signal; other failures (DNS,
// network unreachable) should not trigger a spawn attempt.
func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
