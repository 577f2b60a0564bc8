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

package endpoint

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Sources bundles everything Discover needs to resolve a candidate list
// without reaching into the environment or filesystem directly, so tests
// can supply deterministic stand-ins for both.
type Sources struct {
	// Getenv defaults to os.Getenv when nil; tests can substitute a map
	// lookup.
	Getenv func(string) string
	// Explicit is the caller-supplied list, e.g. from a prior
	// SetServerUrls call. It ranks below COSERVER_URLS but above
	// COSERVER_HOST: see Discover's doc comment.
	Explicit []string
	// UserServers and SysServers are the servers/server_N lists already
	// extracted from the user and system config files, in that priority
	// order.
	UserServers []string
	SysServers  []string
}

// Discover resolves the ranked list of candidate endpoints to try, per
// this priority order (first tier that yields at least one valid
// endpoint wins):
//
//  1. COSERVER_URLS (whitespace-separated list)
//  2. the caller-supplied explicit list (e.g. SetServerUrls)
//  3. COSERVER_HOST (single address)
//  4. the user config file's servers/server_N list
//  5. the system config file's servers/server_N list
//  6. the synthesized default (localhost on DefaultPort)
//
// COSERVER_HOST is only consulted when the explicit list is empty: an
// explicit list set by the application takes precedence over the host
// environment variable, but never over COSERVER_URLS.
func Discover(s Sources) []*Endpoint {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if urls := strings.Fields(getenv("COSERVER_URLS")); len(urls) > 0 {
		if eps := ParseList(urls); len(eps) > 0 {
			return eps
		}
	}
	if len(s.Explicit) > 0 {
		if eps := ParseList(s.Explicit); len(eps) > 0 {
			return eps
		}
	}
	if host := strings.TrimSpace(getenv("COSERVER_HOST")); host != "" {
		if eps := ParseList([]string{host}); len(eps) > 0 {
			return eps
		}
	}
	if eps := ParseList(s.UserServers); len(eps) > 0 {
		return eps
	}
	if eps := ParseList(s.SysServers); len(eps) > 0 {
		return eps
	}
	log.Debug().Msg("endpoint: no discovery source yielded a candidate, using synthesized default")
	return []*Endpoint{Default()}
}
