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

// Package platform draws the line between the portable task-multiplexing
// logic and the backend that actually flips privilege levels on a hart,
// the way gVisor's kernel.Task depends only on platform.Context and never
// on a specific backend (ptrace, systrap, KVM) by name. TaskManager and
// the trap handler import only this package's types, never a concrete
// backend.
package platform

import "rvkern.dev/rvkern/pkg/hart/arch"

// TrapCause categorizes why RunUntilTrap returned control to the kernel.
type TrapCause int

const (
	// CauseUnknown is never returned by a correct backend; it exists so
	// the zero value is visibly invalid.
	CauseUnknown TrapCause = iota
	// CauseSyscall: the app executed ecall (Exception::UserEnvCall).
	CauseSyscall
	// CauseStoreFault: a store (or store page) fault.
	CauseStoreFault
	// CauseIllegalInstruction: the app executed an unassigned opcode.
	CauseIllegalInstruction
	// CauseTimer: the supervisor timer interrupt fired.
	CauseTimer
)

// Context is the execution backend boundary, one per application slot. It
// plays the role gVisor's platform.Context plays for a Task: TaskManager
// calls RunUntilTrap exactly once per hart activation and never otherwise
// touches how privilege levels are actually flipped.
//
// Implementations must not hold any lock across RunUntilTrap: the trap it
// eventually returns from may have been handled by code that itself
// recursed back into the task table (e.g. a syscall reading another
// task's telemetry is not part of this kernel's surface, but the
// principle — release before you could block another borrower — still
// applies to anything RunUntilTrap's caller does with the result).
type Context interface {
	// RunUntilTrap resumes trap (restoring it to the hart exactly as it
	// was synthesized for a fresh context, or exactly as a prior trap
	// left it), blocks until the task traps again, mutates trap in place
	// to the state at that new trap, and reports why.
	RunUntilTrap(trap *arch.TrapContext) (TrapCause, error)
}
