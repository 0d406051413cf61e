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

package kernel

import "github.com/mohae/deepcopy"

// DebugInfo is one application's record on the debug socket: the
// telemetry reporting surface beyond the raw sys_task_info syscall,
// readable from outside the running kernel.
type DebugInfo struct {
	AppID        int           `json:"app_id"`
	Status       string        `json:"status"`
	SyscallTimes map[int]uint32 `json:"syscall_times"`
	TimeUs       uint64        `json:"time_us"`
}

// Snapshot returns a DebugInfo for every initialized application. It
// takes the same deep-copy-before-release approach as sys_task_info so a
// slow debug-socket reader can never observe the table mutate underneath
// the record it was handed.
func (m *Manager) Snapshot() []DebugInfo {
	m.b.acquire()
	now := m.nowUs()
	raws := make([]telemetrySnapshot, m.numApp)
	firsts := make([]*uint64, m.numApp)
	for i := 0; i < m.numApp; i++ {
		raws[i] = telemetrySnapshot{Status: m.tasks[i].status, SyscallTimes: m.tasks[i].syscallTimes}
		firsts[i] = m.tasks[i].firstRunningUs
	}
	m.b.release()

	out := make([]DebugInfo, m.numApp)
	for i, raw := range raws {
		snap := deepcopy.Copy(raw).(telemetrySnapshot)
		var timeUs uint64
		if firsts[i] != nil {
			timeUs = now - *firsts[i]
		}
		counts := make(map[int]uint32)
		for id, c := range snap.SyscallTimes {
			if c > 0 {
				counts[id] = c
			}
		}
		out[i] = DebugInfo{AppID: i, Status: snap.Status.String(), SyscallTimes: counts, TimeUs: timeUs}
	}
	return out
}
