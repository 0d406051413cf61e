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

// Package kernel holds the task control table, the scheduler, the trap
// dispatch and the syscall surface as one package — they share a single
// mutable table under a single-hart discipline and are never meaningfully
// separable the way gVisor's own kernel package keeps task.go,
// task_run.go, task_syscall.go and task_sched.go together rather than
// splitting them across import boundaries.
package kernel

import (
	"rvkern.dev/rvkern/pkg/abi"
	"rvkern.dev/rvkern/pkg/hart/arch"
	"rvkern.dev/rvkern/pkg/sysconst"
)

// Status is a TCB's lifecycle state.
type Status int

const (
	StatusUnInit Status = iota
	StatusReady
	StatusRunning
	StatusExited
)

func (s Status) wire() abi.TaskStatus {
	switch s {
	case StatusUnInit:
		return abi.StatusUnInit
	case StatusReady:
		return abi.StatusReady
	case StatusRunning:
		return abi.StatusRunning
	case StatusExited:
		return abi.StatusExited
	default:
		panic("kernel: unknown task status")
	}
}

// String implements fmt.Stringer for log lines.
func (s Status) String() string {
	switch s {
	case StatusUnInit:
		return "UnInit"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusExited:
		return "Exited"
	default:
		return "Invalid"
	}
}

// tcb is one application's task control block. first_running_time is
// represented as a pointer so its "unset" state is distinguishable from
// a genuine zero timestamp, per the invariant that it is set at most once
// and never cleared.
type tcb struct {
	status          Status
	taskCx          arch.TaskContext
	syscallTimes    [sysconst.MaxSyscallNum]uint32
	firstRunningUs  *uint64
	kernelStack     arch.KernelStack
	userStack       arch.UserStack
}

func (t *tcb) markFirstRun(nowUs uint64) {
	if t.firstRunningUs == nil {
		us := nowUs
		t.firstRunningUs = &us
	}
}
