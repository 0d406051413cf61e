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

// Package arch defines the two register-snapshot layouts shared between
// the high-level kernel and the riscv64 assembly that saves and restores
// them: TrapContext (the S/U boundary snapshot) and TaskContext (the
// callee-saved snapshot taken across a kernel-side task switch). Field
// order and size are load-bearing: the rvhart assembly indexes into these
// structs by offset, so they must never be reordered or have fields
// inserted ahead of x.
package arch

// SstatusSPP is the bit of sstatus selecting the privilege level a trap
// returns to: 0 selects User, 1 selects Supervisor.
const SstatusSPP = 1 << 8

// Register indices into TrapContext.X, named for the ones the kernel
// touches directly. x2 is the stack pointer; x10/x17 carry the syscall
// return value and id per the RISC-V calling convention (a0/a7).
const (
	RegSP  = 2
	RegA0  = 10
	RegA1  = 11
	RegA2  = 12
	RegA7  = 17
	NumGPR = 32
)

// TrapContext is the full register snapshot taken at the supervisor trap
// boundary. It is pushed onto the trapped task's kernel stack by
// __alltraps and popped by __restore; see pkg/hart/platform/rvhart.
type TrapContext struct {
	// X holds all 32 general-purpose integer registers, x0 included for
	// layout uniformity (x0 is hardwired to zero and never written).
	X [NumGPR]uint64
	// Sstatus is the supervisor status register snapshot; its SPP field
	// selects the privilege level __restore returns to.
	Sstatus uint64
	// Sepc is the program counter __restore resumes at.
	Sepc uint64
}

// AppInitTrapContext synthesizes the TrapContext for an application that
// has never run: entry at the app's load base, stack pointer at the top
// of its user stack, SPP set to User, every other GPR zero. Restoring this
// context must place the hart in U-mode at entry with sp == userStackTop
// and all other GPRs zero.
func AppInitTrapContext(entry, userStackTop uint64) *TrapContext {
	tc := &TrapContext{
		Sepc: entry,
	}
	tc.X[RegSP] = userStackTop
	// SPP=0 selects User; hardware chooses SIE on trap entry and it must
	// never be set manually here.
	tc.Sstatus &^= SstatusSPP
	return tc
}

// TaskContext is the callee-saved register snapshot the switch primitive
// saves and restores across a kernel-side task switch: ra, sp, and
// s0..s11. It contains no caller-saved registers and no floating point
// state, matching the RISC-V C calling convention the switch primitive
// honors.
type TaskContext struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// NewTaskContext builds the synthetic task context for a task's first
// run: ra points at the trap-return routine's entry address, sp points at
// the trap-context frame __restore should consume, and every callee-saved
// register is zero. restoreEntry is the address of __restore when rvhart
// builds the context; the portable manager stores an inert placeholder
// there, which hostsim never reads.
func NewTaskContext(restoreEntry, kernelSP uint64) *TaskContext {
	return &TaskContext{RA: restoreEntry, SP: kernelSP}
}
