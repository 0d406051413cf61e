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

package hostsim

import (
	"fmt"
	"time"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/hart/platform"
)

// Context implements platform.Context by single-stepping the bytecode in
// Memory. One Context is constructed per application slot, mirroring the
// real backend's shape, though hostsim has no per-app hardware state: it
// only needs the shared memory and the shared timer-fired signal.
type Context struct {
	appID      int
	mem        *Memory
	timerFired <-chan struct{}
	clockFreq  uint64

	// spinPC and spinLeft carry a preempted finite OpSpin's unburned
	// cycles to its next activation, so a busy-wait longer than one tick
	// still completes.
	spinPC   uint64
	spinLeft uint64
}

// New returns a Context for application appID, reading instructions and
// syscall buffers from mem, and reporting CauseTimer whenever
// timerFired is signaled. clockFreq converts OpSpin's cycle counts to a
// real sleep duration so a busy-wait genuinely advances the host's
// monotonic clock the way sys_get_time's callers expect.
func New(appID int, mem *Memory, timerFired <-chan struct{}, clockFreq uint64) *Context {
	return &Context{appID: appID, mem: mem, timerFired: timerFired, clockFreq: clockFreq}
}

// RunUntilTrap implements platform.Context. It resumes trap at its
// current Sepc, decodes and executes instructions in place (only
// OpLoadImm mutates register state without trapping) until one of:
// ecall (CauseSyscall), an illegal opcode (CauseIllegalInstruction), or
// a pending timer signal (CauseTimer). trap is mutated in place; Sepc is
// left pointing at the trapping instruction itself, exactly as real
// hardware leaves it, so the syscall path's "sepc += 4" is the trap
// handler's responsibility, not this interpreter's.
func (c *Context) RunUntilTrap(trap *arch.TrapContext) (platform.TrapCause, error) {
	for {
		select {
		case <-c.timerFired:
			return platform.CauseTimer, nil
		default:
		}

		raw, err := c.mem.ReadAt(trap.Sepc, 16)
		if err != nil {
			// A 16-byte read can run past the end of a short program's
			// final instruction; retry with the minimum width so a
			// trailing ecall/illegal at the very end of the image still
			// decodes.
			raw, err = c.mem.ReadAt(trap.Sepc, 4)
			if err != nil {
				return platform.CauseUnknown, fmt.Errorf("hostsim: app %d fetch at 0x%x: %w", c.appID, trap.Sepc, err)
			}
		}
		ins := decode(raw)

		switch ins.Op {
		case OpEcall:
			return platform.CauseSyscall, nil
		case OpIllegal:
			return platform.CauseIllegalInstruction, nil
		case OpLoadImm:
			if int(ins.Rd) >= arch.NumGPR {
				return platform.CauseIllegalInstruction, nil
			}
			trap.X[ins.Rd] = ins.Imm
			trap.Sepc += ins.Width()
		case OpSpin:
			if ins.Cycles == InfiniteCycles {
				<-c.timerFired
				return platform.CauseTimer, nil
			}
			cycles := ins.Cycles
			if c.spinLeft > 0 && c.spinPC == trap.Sepc {
				cycles = c.spinLeft
			}
			if left := c.spin(cycles); left > 0 {
				c.spinPC, c.spinLeft = trap.Sepc, left
				return platform.CauseTimer, nil
			}
			c.spinLeft = 0
			trap.Sepc += ins.Width()
		default:
			klog.With("hostsim").WithField("app", c.appID).Warnf("unrecognized opcode at 0x%x", trap.Sepc)
			return platform.CauseIllegalInstruction, nil
		}
	}
}

// spin sleeps the host wall clock for cycles/clockFreq seconds, or
// returns early if the timer fires first, reporting how many cycles were
// left unburned: zero when the sleep ran to the end, at least one when
// the timer won the race. Sleeping for real time (rather than just
// polling) is what lets a busy-wait genuinely separate two sys_get_time
// readings.
func (c *Context) spin(cycles uint64) (left uint64) {
	d := time.Duration(cycles) * time.Second / time.Duration(c.clockFreq)
	if d <= 0 {
		d = time.Microsecond
	}
	start := time.Now()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.timerFired:
		done := uint64(time.Since(start)) * c.clockFreq / uint64(time.Second)
		if done >= cycles {
			return 1
		}
		return cycles - done
	case <-t.C:
		return 0
	}
}
