// Copyright 2026 The rvkern Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// debugSocketName is the well-known name a running instance's debug
// socket is published under, keyed by the instance id the run and tasks
// subcommands agree on out of band.
func debugSocketName(id string) string {
	return fmt.Sprintf("rvkern-%s.sock", id)
}

// candidateSocketDirs is tried in order both when a run instance creates
// its debug socket and when tasks goes looking for it, the same
// first-writable-directory convention a control socket for a sandboxed
// process uses so it works whether or not the caller has a writable root
// directory configured.
func candidateSocketDirs() []string {
	dirs := []string{"/var/run", "/run", os.TempDir()}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		dirs = append([]string{xdg}, dirs...)
	}
	return dirs
}

// createDebugSocket binds a unix socket for id in the first candidate
// directory that accepts it.
func createDebugSocket(id string) (net.Listener, string, error) {
	name := debugSocketName(id)
	var lastErr error
	for _, dir := range candidateSocketDirs() {
		path := filepath.Join(dir, name)
		os.Remove(path) // best-effort: a stale socket from a crashed run
		l, err := net.Listen("unix", path)
		if err == nil {
			return l, path, nil
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("rvkern: no writable directory for a debug socket: %w", lastErr)
}

// findDebugSocket locates an existing instance's debug socket.
func findDebugSocket(id string) (string, error) {
	name := debugSocketName(id)
	for _, dir := range candidateSocketDirs() {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("rvkern: no debug socket found for id %q", id)
}
