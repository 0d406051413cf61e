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
	"sync/atomic"

	"golang.org/x/time/rate"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/config"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/hart/platform"
	"rvkern.dev/rvkern/pkg/sbi"
	"rvkern.dev/rvkern/pkg/sysconst"
)

// borrow is the uniprocessor exclusive-access cell around the task
// table: at most one outstanding acquire at any time. A second acquire
// before a release is a bug and panics rather than blocking, since
// interrupts are masked for the whole duration a real kernel would hold
// it and a blocking wait would mean the single hart deadlocked itself.
type borrow struct {
	held atomic.Bool
}

func (b *borrow) acquire() {
	if !b.held.CompareAndSwap(false, true) {
		panic("kernel: task table borrowed re-entrantly")
	}
}

func (b *borrow) release() {
	if !b.held.CompareAndSwap(true, false) {
		panic("kernel: task table released without being held")
	}
}

// Manager is the task control table plus the scheduling policy. It never
// imports a concrete platform or sbi backend by name, only their
// interfaces, so the same Manager drives either rvhart or hostsim.
type Manager struct {
	cfg      *config.Config
	mem      Memory
	console  sbi.Console
	timer    sbi.Timer
	contexts []platform.Context

	tasks   [sysconst.MaxAppNum]tcb
	numApp  int
	current int
	b       borrow

	faultLimiter *rate.Limiter
}

// NewManager constructs a Manager over numApp-capacity contexts. contexts
// must have at least as many entries as the numApp later passed to Init,
// one per loaded application.
func NewManager(cfg *config.Config, mem Memory, console sbi.Console, timer sbi.Timer, contexts []platform.Context) *Manager {
	return &Manager{
		cfg:      cfg,
		mem:      mem,
		console:  console,
		timer:    timer,
		contexts: contexts,
		// A fault loop (e.g. an app that immediately re-executes an
		// illegal instruction after being rescheduled) must not flood the
		// console; one line per 10ms tick is generous for a postmortem
		// and cheap insurance against log spam drowning real output.
		faultLimiter: rate.NewLimiter(rate.Every(cfg.TickDuration()), 4),
	}
}

// Init builds the initial trap and task contexts for apps [0, numApp),
// exactly the construction required for a never-run task: a synthesized
// trap context at the top of the app's kernel stack, and a task context
// whose sp points at that frame. Slots [numApp, MaxAppNum) stay UnInit.
func (m *Manager) Init(numApp int) error {
	if numApp <= 0 {
		return fmt.Errorf("kernel: num_app %d must be positive", numApp)
	}
	if numApp > m.cfg.MaxAppNum {
		return fmt.Errorf("kernel: num_app %d exceeds max_app_num %d", numApp, m.cfg.MaxAppNum)
	}
	m.numApp = numApp
	for i := 0; i < numApp; i++ {
		t := &m.tasks[i]
		entry := m.cfg.AppBase(i)
		trap := arch.AppInitTrapContext(entry, t.userStack.Top())
		sp := t.kernelStack.PushTrapContext(trap)
		t.taskCx = *arch.NewTaskContext(restoreMarker, sp)
		t.status = StatusReady
	}
	return nil
}

// restoreMarker stands in for the address of the trap-return routine in
// a synthesized task context. Nothing jumps through it: the portable
// manager never does, and rvhart builds its own task context with the
// real __restore address rather than reading this one back, so its value
// only needs to be stable and documented, not executable.
const restoreMarker = 0

// cyclesToUs converts a hart cycle count to microseconds at the
// configured clock frequency.
func (m *Manager) cyclesToUs(cycles uint64) uint64 {
	return cycles * 1_000_000 / m.cfg.ClockFreq
}

func (m *Manager) nowUs() uint64 {
	return m.cyclesToUs(m.timer.Now())
}

// armNextTick programs the next timer interrupt one tick ahead of now.
func (m *Manager) armNextTick() {
	m.timer.SetDeadline(m.timer.Now() + m.cfg.TickCycles())
}

// Run boots task 0 and drives the hart loop forever. It returns only on
// an unrecoverable error from a backend; exhausting every application is
// reported by panicking with the literal completion message, matching
// the kernel's only deliberate termination path.
func (m *Manager) Run() error {
	m.runFirstTask()
	m.armNextTick()
	log := klog.With("kernel")
	for {
		i, trap := m.activeTrap()
		cause, err := m.contexts[i].RunUntilTrap(trap)
		if err != nil {
			return fmt.Errorf("kernel: app %d: %w", i, err)
		}
		log.WithField("app", i).WithField("cause", cause).Trace("trap")
		m.handleTrap(i, trap, cause)
	}
}

// activeTrap returns the currently scheduled app id and its trap
// context, briefly holding the borrow just long enough to read them.
// Readers must not retain the borrow across this call's return: the
// caller is about to block in RunUntilTrap, which the resumed task's own
// trap handling may need to re-acquire the table for.
func (m *Manager) activeTrap() (int, *arch.TrapContext) {
	m.b.acquire()
	i := m.current
	sp := m.tasks[i].taskCx.SP
	m.b.release()
	return i, arch.TrapContextAt(sp)
}

// runFirstTask performs the initial dispatch of app 0: it
// performs the table bookkeeping a real switch() would need before
// transferring control (marking task 0 Running, recording its first
// dispatch) and releases the borrow. Unlike the original assembly
// primitive, it does not itself transfer control — in this design that
// happens through Run's subsequent RunUntilTrap call, the one operation
// that genuinely never returns except via a trap.
func (m *Manager) runFirstTask() {
	m.b.acquire()
	t := &m.tasks[0]
	t.status = StatusRunning
	t.markFirstRun(m.nowUs())
	m.current = 0
	m.b.release()
}

// MarkCurrentSuspended transitions the current task Running -> Ready.
func (m *Manager) MarkCurrentSuspended() {
	m.b.acquire()
	defer m.b.release()
	m.tasks[m.current].status = StatusReady
}

// MarkCurrentExited transitions the current task Running -> Exited.
func (m *Manager) MarkCurrentExited() {
	m.b.acquire()
	defer m.b.release()
	m.tasks[m.current].status = StatusExited
}

// findNextTaskLocked scans up to numApp successors starting at current+1,
// modulo numApp, and returns the first Ready task's id. ok is false if
// none is Ready. Callers must already hold the borrow.
func (m *Manager) findNextTaskLocked() (id int, ok bool) {
	for step := 1; step <= m.numApp; step++ {
		cand := (m.current + step) % m.numApp
		if m.tasks[cand].status == StatusReady {
			return cand, true
		}
	}
	return 0, false
}

// RunNextTask finds the next Ready task,
// mark it Running, update current_task, and release the borrow so the
// caller's subsequent RunUntilTrap call can safely block. Panics with
// the literal completion message if no task is Ready, the kernel's one
// deliberate terminal condition.
func (m *Manager) RunNextTask() {
	m.b.acquire()
	next, ok := m.findNextTaskLocked()
	if !ok {
		m.b.release()
		panic("All applications completed!")
	}
	m.tasks[next].status = StatusRunning
	m.tasks[next].markFirstRun(m.nowUs())
	m.current = next
	m.b.release()
}

// UpdateSyscallTimes increments the current task's counter for id.
func (m *Manager) UpdateSyscallTimes(id uint64) {
	m.b.acquire()
	defer m.b.release()
	m.tasks[m.current].syscallTimes[id]++
}
