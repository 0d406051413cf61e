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

	"rvkern.dev/rvkern/pkg/config"
)

// Memory is the flat byte array standing in for the physical address
// space a real hart would address directly. Applications share it at
// fixed load offsets, exactly as the core's no-paging model assumes;
// Memory just gives that assumption something to index into on a host
// that has no physical RV64 RAM. It implements loader.MemoryWriter and
// additionally lets the interpreter fetch instructions and syscall
// handlers read/write user buffers.
type Memory struct {
	base  uint64
	bytes []byte
}

// NewMemory allocates a Memory spanning [cfg.AppBaseAddress,
// cfg.AppBaseAddress + cfg.MaxAppNum*cfg.AppSizeLimit).
func NewMemory(cfg *config.Config) *Memory {
	size := cfg.AppSizeLimit * uint64(cfg.MaxAppNum)
	return &Memory{base: cfg.AppBaseAddress, bytes: make([]byte, size)}
}

func (m *Memory) slice(addr, size uint64) ([]byte, error) {
	if addr < m.base {
		return nil, fmt.Errorf("hostsim: address 0x%x below base 0x%x", addr, m.base)
	}
	off := addr - m.base
	if off+size > uint64(len(m.bytes)) {
		return nil, fmt.Errorf("hostsim: access [0x%x,0x%x) out of bounds", addr, addr+size)
	}
	return m.bytes[off : off+size], nil
}

// Zero implements loader.MemoryWriter.
func (m *Memory) Zero(addr, size uint64) {
	s, err := m.slice(addr, size)
	if err != nil {
		panic(err)
	}
	for i := range s {
		s[i] = 0
	}
}

// Write implements loader.MemoryWriter.
func (m *Memory) Write(addr uint64, data []byte) {
	s, err := m.slice(addr, uint64(len(data)))
	if err != nil {
		panic(err)
	}
	copy(s, data)
}

// FenceI implements loader.MemoryWriter; hostsim has no instruction
// cache to invalidate, so this is a documented no-op.
func (m *Memory) FenceI() {}

// ReadAt returns a copy of size bytes at addr, or an error if the range
// is not mapped. Used both by the interpreter's fetch and by syscall
// handlers dereferencing user pointers.
func (m *Memory) ReadAt(addr, size uint64) ([]byte, error) {
	s, err := m.slice(addr, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, s)
	return out, nil
}

// WriteAt writes data at addr, or returns an error if the range is not
// mapped. Mirrors ReadAt for syscall handlers writing result structs
// back into user memory.
func (m *Memory) WriteAt(addr uint64, data []byte) error {
	s, err := m.slice(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}
