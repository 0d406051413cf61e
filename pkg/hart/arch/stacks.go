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

package arch

import "unsafe"

// KernelStack is one app's kernel-mode stack: a statically-sized byte
// array. Stacks grow downward, so the initial top is base+len(Bytes).
// Nothing aligns the array to a page boundary: it sits wherever the value
// containing it places it.
type KernelStack struct {
	Bytes [KernelStackSize]byte
}

// UserStack is one app's user-mode stack, laid out identically to
// KernelStack.
type UserStack struct {
	Bytes [UserStackSize]byte
}

const (
	// KernelStackSize and UserStackSize mirror pkg/sysconst; they are
	// duplicated here as untyped constants, not imported, and must be kept
	// equal to sysconst's values by hand.
	KernelStackSize = 2 * 4096
	UserStackSize   = 2 * 4096
)

// Top returns the initial stack pointer for s: one past its last byte,
// since RISC-V stacks grow downward from the top.
func (s *KernelStack) Top() uint64 {
	return uint64(uintptr(unsafe.Pointer(&s.Bytes[0]))) + uint64(len(s.Bytes))
}

// Top returns the initial stack pointer for s.
func (s *UserStack) Top() uint64 {
	return uint64(uintptr(unsafe.Pointer(&s.Bytes[0]))) + uint64(len(s.Bytes))
}

// PushTrapContext reserves sizeof(TrapContext) bytes at the current top of
// s, writes cx into that slot, and returns the resulting stack pointer —
// the address __restore should be handed to resume this context. No
// allocator is involved; the frame lives inside s's fixed backing array.
func (s *KernelStack) PushTrapContext(cx *TrapContext) uint64 {
	top := s.Top()
	sp := top - uint64(unsafe.Sizeof(TrapContext{}))
	*(*TrapContext)(unsafe.Pointer(uintptr(sp))) = *cx
	return sp
}

// TrapContextAt reinterprets the bytes at sp (as returned by
// PushTrapContext, or the kernel sp __alltraps computed) as a *TrapContext.
// It is the high-level trap handler's only window into the register
// snapshot assembly saved.
func TrapContextAt(sp uint64) *TrapContext {
	return (*TrapContext)(unsafe.Pointer(uintptr(sp)))
}
