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

// Package config loads the client.ini-style configuration files the
// connection manager consults when environment variables do not name a
// broker to connect to: the server launch command, whether to attempt
// auto-spawning it, the local user id, and a static list of candidate
// servers.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

// maxConfiguredServers bounds the servers/server_N scan: the scan keeps
// going through missing indices as long as i <= maxConfiguredServers, and
// stops at the first gap once i has gone past it. This mirrors an
// open-ended heuristic in the source config format, pinned here to a
// concrete, named constant.
const maxConfiguredServers = 16

// Config is the parsed content of one client.ini file.
type Config struct {
	ServerCommand        string
	AttemptToStartServer bool
	UserId               string
	Servers              []string
}

// Load reads and parses path. A missing file is not an error: it yields
// a zero-value Config, since both config files this package reads are
// optional inputs to endpoint discovery.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot load %s: %w", path, err)
	}
	client := f.Section("client")
	servers := f.Section("servers")
	return &Config{
		ServerCommand:        client.Key("server_command").String(),
		AttemptToStartServer: client.Key("attempt_to_start_server").MustBool(false),
		UserId:               client.Key("user_id").String(),
		Servers:              scanServers(servers),
	}, nil
}

// LoadLayered reads the system config file first, then the user config
// file, and merges them with user values overriding system values on a
// per-key basis.
func LoadLayered(userPath, sysPath string) (*Config, error) {
	sys, err := Load(sysPath)
	if err != nil {
		return nil, err
	}
	user, err := Load(userPath)
	if err != nil {
		return nil, err
	}
	merged := *sys
	if user.ServerCommand != "" {
		merged.ServerCommand = user.ServerCommand
	}
	if user.UserId != "" {
		merged.UserId = user.UserId
	}
	if len(user.Servers) > 0 {
		merged.Servers = user.Servers
	}
	// attempt_to_start_server: the user file's key wins whenever it is
	// present at all, even to turn a system-level true back off.
	if user.hasAttemptKey(userPath) {
		merged.AttemptToStartServer = user.AttemptToStartServer
	}
	return &merged, nil
}

// hasAttemptKey is a best-effort re-check of whether the user file
// actually set attempt_to_start_server, so that an absent key in the
// user file does not silently clobber a system-level true with the
// zero-value false. Re-parsing on every call is acceptable: config files
// are read once per client connect, not on a hot path.
func (c *Config) hasAttemptKey(path string) bool {
	f, err := ini.Load(path)
	if err != nil {
		return false
	}
	return f.Section("client").HasKey("attempt_to_start_server")
}

// scanServers extracts the servers/server_0, server_1, ... list. It
// keeps scanning past a missing index as long as that index is still
// within maxConfiguredServers, so a single accidental gap near the start
// of the list doesn't truncate the rest; once the scan is past
// maxConfiguredServers it stops on the first miss.
func scanServers(section *ini.Section) []string {
	var servers []string
	for i := 0; ; i++ {
		key := fmt.Sprintf("server_%d", i)
		if section.HasKey(key) {
			servers = append(servers, section.Key(key).String())
			continue
		}
		if i > maxConfiguredServers {
			break
		}
	}
	if len(servers) == 0 {
		log.Debug().Msg("config: no servers/server_N entries found")
	}
	return servers
}
