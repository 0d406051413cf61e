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
	"encoding/binary"
	"fmt"

	"github.com/mohae/deepcopy"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/abi"
	"rvkern.dev/rvkern/pkg/sysconst"
)

// syscall routes id to its handler. The boolean return reports whether
// the calling task has already left the Running state (exit): when true,
// the trap handler must not write a return value into a dead task's
// register file.
func (m *Manager) syscall(id uint64, args [3]uint64) (ret int64, exited bool) {
	switch id {
	case abi.SysWrite:
		return m.sysWrite(args[0], args[1], args[2]), false
	case abi.SysExit:
		m.sysExit(int32(args[0]))
		return 0, true
	case abi.SysYield:
		return m.sysYield(), false
	case abi.SysGetTime:
		return m.sysGetTime(args[0]), false
	case abi.SysTaskInfo:
		return m.sysTaskInfo(args[0]), false
	default:
		panic(fmt.Sprintf("kernel: unknown syscall id %d", id))
	}
}

// sysWrite supports only fd 1 (the supervisor console); any other fd is
// a kernel-fatal condition, not a returned error, matching the rest of
// this dispatcher's user-fatal-vs-kernel-fatal split.
func (m *Manager) sysWrite(fd, bufPtr, length uint64) int64 {
	if fd != 1 {
		panic(fmt.Sprintf("kernel: unsupported fd %d in sys_write", fd))
	}
	data, err := m.mem.ReadAt(bufPtr, length)
	if err != nil {
		panic(fmt.Sprintf("kernel: sys_write: %v", err))
	}
	for _, b := range data {
		m.console.PutChar(b)
	}
	return int64(length)
}

func (m *Manager) sysExit(code int32) {
	klog.With("kernel").Infof("Application exited with code %d", code)
	m.MarkCurrentExited()
	m.RunNextTask()
}

func (m *Manager) sysYield() int64 {
	m.MarkCurrentSuspended()
	m.RunNextTask()
	return 0
}

func (m *Manager) sysGetTime(timevalPtr uint64) int64 {
	us := m.nowUs()
	var buf [abi.TimeValSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], us/1_000_000)
	binary.LittleEndian.PutUint64(buf[8:16], us%1_000_000)
	if err := m.mem.WriteAt(timevalPtr, buf[:]); err != nil {
		panic(fmt.Sprintf("kernel: sys_get_time: %v", err))
	}
	return 0
}

// telemetrySnapshot is the subset of a TCB handed to sys_task_info's
// caller. It exists so the deep copy below has no live aliasing back
// into the task table even though Go already copies arrays by value —
// the call documents the intent at this boundary and keeps the snapshot
// path unchanged if syscall_times ever becomes a slice.
type telemetrySnapshot struct {
	Status       Status
	SyscallTimes [sysconst.MaxSyscallNum]uint32
}

func (m *Manager) sysTaskInfo(taskInfoPtr uint64) int64 {
	m.b.acquire()
	t := &m.tasks[m.current]
	raw := telemetrySnapshot{Status: t.status, SyscallTimes: t.syscallTimes}
	firstUs := t.firstRunningUs
	m.b.release()

	snap := deepcopy.Copy(raw).(telemetrySnapshot)

	var timeUs uint64
	if firstUs != nil {
		timeUs = m.nowUs() - *firstUs
	}

	buf := make([]byte, abi.TaskInfoSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(snap.Status.wire()))
	base := 8
	for i, c := range snap.SyscallTimes {
		binary.LittleEndian.PutUint32(buf[base+i*4:base+i*4+4], c)
	}
	binary.LittleEndian.PutUint64(buf[base+sysconst.MaxSyscallNum*4:], timeUs)

	if err := m.mem.WriteAt(taskInfoPtr, buf); err != nil {
		panic(fmt.Sprintf("kernel: sys_task_info: %v", err))
	}
	return 0
}
