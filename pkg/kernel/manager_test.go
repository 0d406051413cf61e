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

package kernel_test

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"rvkern.dev/rvkern/pkg/abi"
	"rvkern.dev/rvkern/pkg/config"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/hart/platform"
	"rvkern.dev/rvkern/pkg/hart/platform/hostsim"
	"rvkern.dev/rvkern/pkg/kernel"
	"rvkern.dev/rvkern/pkg/kernel/loader"
	"rvkern.dev/rvkern/pkg/sbi/hostsbi"
)

// fakeConsole is a deterministic in-memory stand-in for sbi.Console. The
// pty-backed hostsbi.Console is exercised separately at the CLI level;
// these scheduler-focused tests only care what bytes were written.
type fakeConsole struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *fakeConsole) PutChar(ch byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteByte(ch)
}

func (c *fakeConsole) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// harness assembles application images against a shared hostsim.Memory
// and boots them into a kernel.Manager the way a real hosted run would,
// minus the CLI's argument parsing and pty wiring.
type harness struct {
	cfg     *config.Config
	mem     *hostsim.Memory
	console *fakeConsole
	timer   *hostsbi.Timer
	images  [][]byte
}

func newHarness() *harness {
	cfg := config.Default()
	return &harness{
		cfg:     cfg,
		mem:     hostsim.NewMemory(cfg),
		console: &fakeConsole{},
		timer:   hostsbi.NewTimer(cfg.ClockFreq),
	}
}

// addApp encodes b at the next app slot's load address and queues it.
func (h *harness) addApp(b *hostsim.Builder) {
	base := h.cfg.AppBase(len(h.images))
	h.images = append(h.images, b.Build(base))
}

// boot concatenates the queued images into an AppTable, loads them
// through the same loader.Load path a real boot would use, and returns a
// ready-to-run Manager.
func (h *harness) boot(t *testing.T) *kernel.Manager {
	t.Helper()
	bounds := make([]uint64, len(h.images)+1)
	var all []byte
	for i, img := range h.images {
		bounds[i] = uint64(len(all))
		all = append(all, img...)
	}
	bounds[len(h.images)] = uint64(len(all))
	table := &loader.AppTable{Bounds: bounds, Bytes: all}

	numApp, err := loader.Load(h.cfg, table, h.mem)
	if err != nil {
		t.Fatalf("loader.Load: %v", err)
	}

	contexts := make([]platform.Context, numApp)
	for i := 0; i < numApp; i++ {
		contexts[i] = hostsim.New(i, h.mem, h.timer.Fired(), h.cfg.ClockFreq)
	}

	m := kernel.NewManager(h.cfg, h.mem, h.console, h.timer, contexts)
	if err := m.Init(numApp); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

// runToCompletion runs m.Run() until it panics with the kernel's one
// deliberate terminal condition, failing the test if that doesn't happen
// within a generous deadline.
func runToCompletion(t *testing.T, m *kernel.Manager) {
	t.Helper()
	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		m.Run()
	}()
	select {
	case r := <-done:
		if r != "All applications completed!" {
			t.Fatalf("Run() ended with %v, want the completion panic", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not complete within 5s")
	}
}

func TestHelloWrite(t *testing.T) {
	h := newHarness()
	msg := []byte("Hello, world!\n")
	b := hostsim.NewBuilder().
		LoadImm(arch.RegA7, abi.SysWrite).
		LoadImm(arch.RegA0, 1).
		LoadImmData(arch.RegA1, msg).
		LoadImm(arch.RegA2, uint64(len(msg))).
		Ecall().
		LoadImm(arch.RegA7, abi.SysExit).
		LoadImm(arch.RegA0, 0).
		Ecall()
	h.addApp(b)
	m := h.boot(t)

	runToCompletion(t, m)

	if got := h.console.String(); got != string(msg) {
		t.Fatalf("console = %q, want %q", got, msg)
	}
}

// buildPingPong writes ch, yields, three times over, then exits — enough
// rounds to distinguish genuine round-robin interleaving from one app
// simply running to completion before the other starts.
func buildPingPong(ch byte) *hostsim.Builder {
	b := hostsim.NewBuilder()
	for i := 0; i < 3; i++ {
		b.LoadImm(arch.RegA7, abi.SysWrite).
			LoadImm(arch.RegA0, 1).
			LoadImmData(arch.RegA1, []byte{ch}).
			LoadImm(arch.RegA2, 1).
			Ecall().
			LoadImm(arch.RegA7, abi.SysYield).
			Ecall()
	}
	b.LoadImm(arch.RegA7, abi.SysExit).LoadImm(arch.RegA0, 0).Ecall()
	return b
}

func TestYieldPingPong(t *testing.T) {
	h := newHarness()
	h.addApp(buildPingPong('A'))
	h.addApp(buildPingPong('B'))
	m := h.boot(t)

	runToCompletion(t, m)

	if got, want := h.console.String(), "ABABAB"; got != want {
		t.Fatalf("console = %q, want %q", got, want)
	}
}

func readTimeVal(t *testing.T, mem *hostsim.Memory, addr uint64) abi.TimeVal {
	t.Helper()
	raw, err := mem.ReadAt(addr, abi.TimeValSize)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	return abi.TimeVal{
		Sec:  binary.LittleEndian.Uint64(raw[0:8]),
		Usec: binary.LittleEndian.Uint64(raw[8:16]),
	}
}

func micros(tv abi.TimeVal) uint64 {
	return tv.Sec*1_000_000 + tv.Usec
}

func TestTimeMonotonicity(t *testing.T) {
	h := newHarness()
	b := hostsim.NewBuilder()
	buf := make([]byte, abi.TimeValSize)

	off1 := b.PendingDataOffset()
	b.LoadImm(arch.RegA7, abi.SysGetTime).LoadImmData(arch.RegA0, buf).Ecall()
	// A bounded busy-wait stands in for real work done between the two
	// readings; only the wall-clock time it actually takes matters.
	b.Spin(h.cfg.ClockFreq / 50)
	off2 := b.PendingDataOffset()
	b.LoadImm(arch.RegA7, abi.SysGetTime).LoadImmData(arch.RegA0, buf).Ecall()
	b.LoadImm(arch.RegA7, abi.SysExit).LoadImm(arch.RegA0, 0).Ecall()

	base := h.cfg.AppBase(0)
	dataBase := b.DataBase(base)
	addr1, addr2 := dataBase+uint64(off1), dataBase+uint64(off2)

	h.addApp(b)
	m := h.boot(t)
	runToCompletion(t, m)

	t1 := readTimeVal(t, h.mem, addr1)
	t2 := readTimeVal(t, h.mem, addr2)
	if micros(t2) <= micros(t1) {
		t.Fatalf("second reading %+v did not advance past first %+v", t2, t1)
	}
}

func TestIllegalInstructionExitsApp(t *testing.T) {
	h := newHarness()
	h.addApp(hostsim.NewBuilder().Illegal())
	m := h.boot(t)

	runToCompletion(t, m)

	snap := m.Snapshot()
	if snap[0].Status != "Exited" {
		t.Fatalf("app 0 status = %q, want Exited", snap[0].Status)
	}
}

func TestTaskInfo(t *testing.T) {
	h := newHarness()
	b := hostsim.NewBuilder()
	b.LoadImm(arch.RegA7, abi.SysWrite).
		LoadImm(arch.RegA0, 1).
		LoadImmData(arch.RegA1, []byte("x")).
		LoadImm(arch.RegA2, 1).
		Ecall()
	b.LoadImm(arch.RegA7, abi.SysYield).Ecall()

	off := b.PendingDataOffset()
	infoBuf := make([]byte, abi.TaskInfoSize)
	b.LoadImm(arch.RegA7, abi.SysTaskInfo).LoadImmData(arch.RegA0, infoBuf).Ecall()
	b.LoadImm(arch.RegA7, abi.SysExit).LoadImm(arch.RegA0, 0).Ecall()

	base := h.cfg.AppBase(0)
	addr := b.DataBase(base) + uint64(off)

	h.addApp(b)
	m := h.boot(t)
	runToCompletion(t, m)

	raw, err := h.mem.ReadAt(addr, uint64(abi.TaskInfoSize))
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	status := abi.TaskStatus(binary.LittleEndian.Uint32(raw[0:4]))
	if status != abi.StatusRunning {
		t.Fatalf("status = %v, want Running (the single app reschedules itself)", status)
	}
	writeCount := binary.LittleEndian.Uint32(raw[8+abi.SysWrite*4 : 8+abi.SysWrite*4+4])
	if writeCount != 1 {
		t.Fatalf("sys_write count = %d, want 1", writeCount)
	}
	yieldCount := binary.LittleEndian.Uint32(raw[8+abi.SysYield*4 : 8+abi.SysYield*4+4])
	if yieldCount != 1 {
		t.Fatalf("sys_yield count = %d, want 1", yieldCount)
	}
}

// TestPreemptionFairness boots three applications that each immediately
// enter an infinite busy-wait and never yield voluntarily. The only way
// any of them but the first ever runs is the scheduler's own timer-driven
// preemption, so every app eventually accumulating a nonzero running time
// demonstrates the tick handler is cycling through the table rather than
// stalling on app 0.
func TestPreemptionFairness(t *testing.T) {
	h := newHarness()
	for i := 0; i < 3; i++ {
		h.addApp(hostsim.NewBuilder().Spin(hostsim.InfiniteCycles))
	}
	m := h.boot(t)

	go func() {
		defer func() { recover() }()
		m.Run()
	}()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := m.Snapshot()
		allScheduled := true
		for _, s := range snap {
			if s.TimeUs == 0 {
				allScheduled = false
				break
			}
		}
		if allScheduled {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("not every application was scheduled within the deadline: %+v", m.Snapshot())
}
