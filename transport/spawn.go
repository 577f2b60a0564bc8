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

package transport

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/coserver/cobus/endpoint"
)

// Spawner starts a local broker process. It is an interface so tests can
// substitute a fake that just records the attempt.
type Spawner interface {
	Spawn(command string, ep *endpoint.Endpoint) error
}

// ExecSpawner launches the broker with os/exec, in its own session so it
// outlives the client process that spawned it.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(command string, ep *endpoint.Endpoint) error {
	if command == "" {
		return fmt.Errorf("transport: no server_command configured")
	}
	cmd := exec.Command(command, "-d", "-u", ep.SpawnAddr())
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transport: cannot spawn %q: %w", command, err)
	}
	log.Debug().Msgf("transport: spawned local broker %q (pid %d) for %v", command, cmd.Process.Pid, ep)
	// The detached broker is expected to outlive this call, so Spawn does
	// not block on it; a background Wait reaps it if it exits while this
	// process is still running.
	go func() { _ = cmd.Wait() }()
	return nil
}
