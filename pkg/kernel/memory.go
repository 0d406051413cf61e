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

// Memory is the address space sys_get_time and sys_task_info write their
// results into and sys_write reads its buffer from. The manager depends
// only on this interface, never on a concrete backend, the same way it
// depends on platform.Context rather than a named backend: hostsim.Memory
// satisfies it directly, and a real deployment would satisfy it with raw
// pointer access outside this repository's scope (the boot trampoline
// that maps a hart's physical address space is an external collaborator,
// not part of the core).
type Memory interface {
	ReadAt(addr, size uint64) ([]byte, error)
	WriteAt(addr uint64, data []byte) error
}
