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

// Package abi declares the syscall ids and wire structures applications
// and the kernel agree on across the a7/a0..a2 calling convention.
package abi

import "rvkern.dev/rvkern/pkg/sysconst"

// Recognized syscall ids. Numeric values are part of the ABI.
const (
	SysWrite    = 64
	SysExit     = 93
	SysYield    = 124
	SysGetTime  = 169
	SysTaskInfo = 410
)

// Name returns the syscall's mnemonic, or "" if id is unrecognized.
func Name(id uint64) string {
	switch id {
	case SysWrite:
		return "write"
	case SysExit:
		return "exit"
	case SysYield:
		return "yield"
	case SysGetTime:
		return "get_time"
	case SysTaskInfo:
		return "task_info"
	default:
		return ""
	}
}

// TimeVal is the wire layout sys_get_time writes to its caller's buffer:
// two natural-width, target-endian words.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// TimeValSize is TimeVal's wire size in bytes.
const TimeValSize = 16

// TaskStatus mirrors kernel.TaskStatus on the wire as a fixed-width word;
// duplicated here (rather than imported) so this package has no
// dependency on pkg/kernel, keeping the ABI layer a leaf.
type TaskStatus uint32

const (
	StatusUnInit TaskStatus = iota
	StatusReady
	StatusRunning
	StatusExited
)

// TaskInfoSize is the wire size in bytes of the struct sys_task_info
// writes to its caller's buffer: a 4-byte status field, 4 bytes of
// padding to the next 8-byte boundary, MaxSyscallNum 4-byte counters,
// and an 8-byte time field.
const TaskInfoSize = 8 + sysconst.MaxSyscallNum*4 + 8
