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

//go:build riscv64

// Package rvhart is the real execution backend: it programs stvec and
// executes __alltraps/__restore and the taskSwitch primitive on an actual
// RV64 hart. It is only buildable for GOARCH=riscv64 and is meant to be
// linked into a boot image outside this repository's scope; this
// repository's test suite exercises hostsim instead.
package rvhart

import (
	"unsafe"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/hart/platform"
)

// taskSwitch is implemented in switch_riscv64.s.
func taskSwitch(current, next *arch.TaskContext)

// __alltraps and __restore are implemented in trap_riscv64.s. They are
// never called directly from Go; __alltraps is the address installed
// into stvec, and __restore is the address a synthesized TaskContext's
// ra points at for a task's first activation.
func __alltraps()
func __restore()

// trapCauseCh carries the cause of the most recent trap from
// trapTrampoline back to the goroutine blocked in RunUntilTrap.
var trapCauseCh = make(chan platform.TrapCause)

// trapTrampoline is called by __alltraps with a0 == the TrapContext frame
// address. It classifies scause/stval, and for anything this kernel
// doesn't resolve entirely in assembly, reports the cause upward and
// falls through to __restore: the trap context is handed back to the
// assembly tail unchanged, which resumes the same task via __restore
// unless a task switch already occurred.
//
//go:nosplit
func trapTrampoline(framePtr uintptr) {
	cause := classify()
	if cause == platform.CauseStoreFault {
		// stval never crosses the portable TrapCause boundary — only
		// this backend's CSRs carry it — so it is logged here, at the
		// one point it is still available, rather than threaded through
		// to the generic fault log in pkg/kernel.
		klog.With("rvhart").Errorf("StoreFault at pc=0x%x addr=0x%x", (*arch.TrapContext)(unsafe.Pointer(framePtr)).Sepc, readSTVAL())
	}
	trapCauseCh <- cause
	// Control returns here only for the syscall case (the Go-level
	// TaskManager decided not to switch tasks); anything that suspends or
	// exits the current task has already invoked taskSwitch and this
	// goroutine's stack is gone. __restore is reached via straight-line
	// fallthrough in trap_riscv64.s, not a Go call, so there is
	// deliberately no explicit call here.
}

// Context implements platform.Context against a real hart. One Context is
// constructed per application slot; RunUntilTrap is only ever called by
// the single hart loop, never concurrently.
type Context struct {
	kernelStackTop uint64
}

// New returns a Context whose trap entry uses kernelStackTop as the
// scratch value preloaded into sscratch.
func New(kernelStackTop uint64) *Context {
	return &Context{kernelStackTop: kernelStackTop}
}

// RunUntilTrap implements platform.Context. It builds the task context
// the switch primitive expects — ra at __restore, sp at trap's own
// address, the same synthetic-first-run construction used for a task's
// very first activation — and invokes taskSwitch to reach it. out is a
// throwaway: this call never resumes through it, because control only
// ever leaves __restore via a real hardware trap, not a Go-level return.
func (c *Context) RunUntilTrap(trap *arch.TrapContext) (platform.TrapCause, error) {
	writeScratch(c.kernelStackTop)
	var out arch.TaskContext
	resume := arch.NewTaskContext(pcOf(__restore), uint64(uintptr(unsafe.Pointer(trap))))
	taskSwitch(&out, resume)
	return <-trapCauseCh, nil
}

// installTrapVector points stvec at __alltraps in direct mode and
// enables the supervisor timer interrupt.
func installTrapVector() {
	setSTVEC(pcOf(__alltraps))
	enableSTIE()
}

func init() {
	installTrapVector()
}
