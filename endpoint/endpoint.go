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

// Package endpoint parses and discovers the broker addresses a Client may
// try to connect to: TCP addresses under the co4 scheme, and local
// (unix-domain-socket) paths under the local scheme.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// DefaultPort is used for a co4 endpoint that does not name a port
// explicitly, including the synthesized default endpoint used when no
// other discovery source yields a candidate.
const DefaultPort = 7435

// Scheme identifies which transport an Endpoint names.
type Scheme string

const (
	SchemeTCP   Scheme = "co4"
	SchemeLocal Scheme = "local"
)

// Endpoint names one place a broker might be listening.
type Endpoint struct {
	Scheme Scheme
	Host   string // SchemeTCP only
	Port   int    // SchemeTCP only
	Path   string // SchemeLocal only
}

func (e *Endpoint) String() string {
	if e.Scheme == SchemeLocal {
		return fmt.Sprintf("local://%s", e.Path)
	}
	return fmt.Sprintf("co4://%s:%d", e.Host, e.Port)
}

// Default is the synthesized fallback endpoint used when no discovery
// source yields any candidate: the local machine on DefaultPort.
func Default() *Endpoint {
	return &Endpoint{Scheme: SchemeTCP, Host: "localhost", Port: DefaultPort}
}

// IsLocalish reports whether e names a broker that can reasonably be
// expected to run on this same machine: every local (unix-domain-socket)
// endpoint qualifies, and so does a co4 endpoint whose host is empty, a
// loopback address, "localhost", or this machine's own hostname. This is
// the set of endpoints the connection manager is willing to auto-spawn a
// broker for -- it would make no sense to spawn a process to satisfy a
// connection to some other host.
func (e *Endpoint) IsLocalish() bool {
	if e.Scheme == SchemeLocal {
		return true
	}
	switch strings.ToLower(e.Host) {
	case "", "127.0.0.1", "::1", "localhost":
		return true
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" && strings.EqualFold(e.Host, hostname) {
		return true
	}
	return false
}

// SpawnAddr renders e the way it is passed on a spawned broker's command
// line: a co4 endpoint is host-stripped (the broker binds locally
// regardless of which host name discovery used to find it), with its
// port defaulted since the legacy broker requires one to be given
// explicitly. A local endpoint is rendered as-is.
func (e *Endpoint) SpawnAddr() string {
	if e.Scheme == SchemeLocal {
		return e.String()
	}
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("co4://:%d", port)
}

var (
	// ErrInvalidEndpoint is the sentinel every Parse failure wraps, so
	// callers can test for "this candidate didn't parse" without caring
	// which specific rule it violated.
	ErrInvalidEndpoint = errors.New("endpoint: invalid address")
	// ErrHasQuery is returned by Parse when raw carries a query string or
	// fragment, neither of which this wire format has any use for.
	ErrHasQuery = fmt.Errorf("%w: query and fragment are not allowed", ErrInvalidEndpoint)
	// ErrLocalHasPort is returned by Parse when a local:// endpoint names
	// a port; a unix-domain socket path has no such notion.
	ErrLocalHasPort = fmt.Errorf("%w: local endpoint cannot carry a port", ErrInvalidEndpoint)
)

// Parse normalizes one candidate string into an Endpoint. A bare hostname
// (no scheme, no path separator) is treated as co4://host. A string
// containing a path separator and no scheme is treated as local://path.
// Anything carrying an explicit co4:// or local:// scheme is parsed
// directly.
func Parse(raw string) (*Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidEndpoint)
	}
	if !strings.Contains(raw, "://") {
		if strings.ContainsAny(raw, "/\\") {
			return &Endpoint{Scheme: SchemeLocal, Path: raw}, nil
		}
		host, port, err := splitHostPort(raw)
		if err != nil {
			return nil, err
		}
		return &Endpoint{Scheme: SchemeTCP, Host: host, Port: port}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("endpoint: cannot parse %q: %w", raw, err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("endpoint: %q: %w", raw, ErrHasQuery)
	}

	switch Scheme(u.Scheme) {
	case SchemeTCP:
		host := u.Hostname()
		if host == "" {
			host = "localhost"
		}
		port := DefaultPort
		if p := u.Port(); p != "" {
			port, err = strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("endpoint: %q: invalid port: %w", raw, err)
			}
		}
		return &Endpoint{Scheme: SchemeTCP, Host: host, Port: port}, nil
	case SchemeLocal:
		if u.Port() != "" {
			return nil, fmt.Errorf("endpoint: %q: %w", raw, ErrLocalHasPort)
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("endpoint: %q: local endpoint has no path", raw)
		}
		return &Endpoint{Scheme: SchemeLocal, Path: path}, nil
	default:
		return nil, fmt.Errorf("endpoint: %q: unknown scheme %q", raw, u.Scheme)
	}
}

func splitHostPort(raw string) (string, int, error) {
	if !strings.Contains(raw, ":") {
		return raw, DefaultPort, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("endpoint: %q: invalid port: %w", raw, err)
	}
	return parts[0], port, nil
}

// ParseList parses a list of candidate addresses, such as the
// COSERVER_URLS environment variable already split on whitespace or a
// servers/ config section; each entry is trimmed and parsed as one
// address. Entries that fail to parse are skipped, not fatal: one
// malformed candidate in a list should not disable discovery entirely.
func ParseList(raw []string) []*Endpoint {
	var out []*Endpoint
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		ep, err := Parse(r)
		if err != nil {
			continue
		}
		out = append(out, ep)
	}
	return out
}
