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

import (
	"fmt"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/hart/platform"
)

// handleTrap is the high-level trap handler's dispatch table. trap is
// the current task's own persistent trap-context frame; it is mutated in
// place and, unless a switch occurred, is what the caller's next
// RunUntilTrap call resumes from.
func (m *Manager) handleTrap(i int, trap *arch.TrapContext, cause platform.TrapCause) {
	switch cause {
	case platform.CauseSyscall:
		trap.Sepc += 4
		id := trap.X[arch.RegA7]
		args := [3]uint64{trap.X[arch.RegA0], trap.X[arch.RegA1], trap.X[arch.RegA2]}
		m.UpdateSyscallTimes(id)
		ret, exited := m.syscall(id, args)
		if !exited {
			trap.X[arch.RegA0] = uint64(ret)
		}
	case platform.CauseStoreFault:
		m.logFault(i, trap, "StoreFault")
		m.MarkCurrentExited()
		m.RunNextTask()
	case platform.CauseIllegalInstruction:
		m.logFault(i, trap, "IllegalInstruction")
		m.MarkCurrentExited()
		m.RunNextTask()
	case platform.CauseTimer:
		m.armNextTick()
		m.MarkCurrentSuspended()
		m.RunNextTask()
	default:
		panic(fmt.Sprintf("kernel: unrecognized trap cause %d", cause))
	}
}

// logFault prints a one-line postmortem for a user-fatal trap.
// It is rate-limited: a task that re-faults immediately after being
// rescheduled (e.g. it keeps tripping the same illegal opcode) must not
// be able to flood the console.
func (m *Manager) logFault(i int, trap *arch.TrapContext, kind string) {
	if !m.faultLimiter.Allow() {
		return
	}
	klog.With("kernel").
		WithField("app", i).
		WithField("pc", fmt.Sprintf("0x%x", trap.Sepc)).
		Errorf("%s", kind)
}
