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

// Package hostsim is the hosted execution backend: it interprets a tiny,
// self-contained bytecode in place of real riscv64 machine code, reading
// and advancing the same TrapContext the assembly backend would, so the
// task manager, scheduler and syscall surface can be driven end-to-end on
// a workstation with no RV64 hart to boot on.
//
// The bytecode is deliberately not RV64: it only has to produce the
// handful of observable events the core state machine cares about
// (ecall, illegal instruction, a busy-wait that eventually yields to the
// timer) while keeping the one property the core actually asserts about
// instruction width — that an ecall occupies exactly 4 bytes, so the trap
// handler's unconditional "sepc += 4" lands on the following instruction
// exactly as it would after a real RISC-V ecall.
package hostsim

import "encoding/binary"

// Op identifies a hostsim instruction.
type Op byte

const (
	// OpEcall traps into the kernel with a7/a0..a2 taken from the
	// register file already staged by prior OpLoadImm instructions.
	// Width 4, matching the real ecall encoding's width.
	OpEcall Op = iota
	// OpIllegal unconditionally raises CauseIllegalInstruction. Width 4.
	OpIllegal
	// OpLoadImm sets register Rd to a 64-bit immediate. Width 16.
	OpLoadImm
	// OpSpin burns Cycles of simulated hart time without trapping,
	// unless preempted by the timer first, in which case it reports the
	// timer cause without advancing past itself — so the same spin
	// instruction is re-entered on the next activation and burns only the
	// cycles it had left. With InfiniteCycles it models a busy loop that
	// is never itself retired. Width 16.
	OpSpin
)

// InfiniteCycles is the OpSpin sentinel for a busy loop that never
// completes on its own; it only ever exits via timer preemption.
const InfiniteCycles = ^uint64(0)

const (
	widthEcall   = 4
	widthIllegal = 4
	widthLoadImm = 16
	widthSpin    = 16
)

// Instr is one decoded hostsim instruction.
type Instr struct {
	Op     Op
	Rd     byte
	Imm    uint64
	Cycles uint64
}

// Width reports the byte length of ins's encoding.
func (ins Instr) Width() uint64 {
	switch ins.Op {
	case OpEcall:
		return widthEcall
	case OpIllegal:
		return widthIllegal
	case OpLoadImm:
		return widthLoadImm
	case OpSpin:
		return widthSpin
	default:
		return 0
	}
}

func (ins Instr) encode() []byte {
	switch ins.Op {
	case OpEcall:
		return []byte{byte(OpEcall), 0, 0, 0}
	case OpIllegal:
		return []byte{byte(OpIllegal), 0, 0, 0}
	case OpLoadImm:
		b := make([]byte, widthLoadImm)
		b[0] = byte(OpLoadImm)
		b[1] = ins.Rd
		binary.LittleEndian.PutUint64(b[8:16], ins.Imm)
		return b
	case OpSpin:
		b := make([]byte, widthSpin)
		b[0] = byte(OpSpin)
		binary.LittleEndian.PutUint64(b[8:16], ins.Cycles)
		return b
	default:
		panic("hostsim: encode of unknown opcode")
	}
}

// decode reads one instruction from the front of b and returns it; the
// caller advances by its Width. An empty b, or one too short for its
// opcode's operands, decodes as OpIllegal. A zero byte is OpEcall's
// opcode, so zero-filled memory decodes as ecall, not as illegal.
func decode(b []byte) Instr {
	if len(b) == 0 {
		return Instr{Op: OpIllegal}
	}
	switch Op(b[0]) {
	case OpEcall:
		return Instr{Op: OpEcall}
	case OpLoadImm:
		if len(b) < widthLoadImm {
			return Instr{Op: OpIllegal}
		}
		return Instr{Op: OpLoadImm, Rd: b[1], Imm: binary.LittleEndian.Uint64(b[8:16])}
	case OpSpin:
		if len(b) < widthSpin {
			return Instr{Op: OpIllegal}
		}
		return Instr{Op: OpSpin, Cycles: binary.LittleEndian.Uint64(b[8:16])}
	default:
		return Instr{Op: OpIllegal}
	}
}

// Builder assembles a hostsim app image: an instruction stream optionally
// followed by a data section, with OpLoadImm operands that reference
// that data patched to absolute addresses once Build knows the image's
// load base.
type Builder struct {
	instrs   []Instr
	dataRefs map[int]int // instruction index -> byte offset into data
	data     []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{dataRefs: map[int]int{}}
}

// LoadImm appends an OpLoadImm setting register rd to imm.
func (b *Builder) LoadImm(rd byte, imm uint64) *Builder {
	b.instrs = append(b.instrs, Instr{Op: OpLoadImm, Rd: rd, Imm: imm})
	return b
}

// LoadImmData appends an OpLoadImm whose immediate is the absolute
// address payload will be written to within this image, once Build
// places the image at a known base.
func (b *Builder) LoadImmData(rd byte, payload []byte) *Builder {
	idx := len(b.instrs)
	b.instrs = append(b.instrs, Instr{Op: OpLoadImm, Rd: rd})
	b.dataRefs[idx] = len(b.data)
	b.data = append(b.data, payload...)
	return b
}

// Ecall appends an ecall instruction.
func (b *Builder) Ecall() *Builder {
	b.instrs = append(b.instrs, Instr{Op: OpEcall})
	return b
}

// Illegal appends an illegal-instruction sentinel.
func (b *Builder) Illegal() *Builder {
	b.instrs = append(b.instrs, Instr{Op: OpIllegal})
	return b
}

// Spin appends a busy-wait of cycles hart cycles (InfiniteCycles for a
// loop that only ever exits via timer preemption).
func (b *Builder) Spin(cycles uint64) *Builder {
	b.instrs = append(b.instrs, Instr{Op: OpSpin, Cycles: cycles})
	return b
}

// PendingDataOffset returns the byte offset within the data section that
// the next LoadImmData call will place its payload at. A caller that
// needs a payload's absolute address ahead of Build (to bake it into a
// test's expectations, say) reads this immediately before appending that
// LoadImmData call.
func (b *Builder) PendingDataOffset() int {
	return len(b.data)
}

// DataBase returns the address the data section will start at once Build
// is called with base, letting a caller combine it with an offset
// captured from PendingDataOffset to get a payload's absolute address
// without waiting for Build's return value.
func (b *Builder) DataBase(base uint64) uint64 {
	var codeLen uint64
	for _, ins := range b.instrs {
		codeLen += ins.Width()
	}
	return base + codeLen
}

// Build encodes the instruction stream followed by the data section,
// patching every LoadImmData operand to base + its data offset.
func (b *Builder) Build(base uint64) []byte {
	var codeLen uint64
	for _, ins := range b.instrs {
		codeLen += ins.Width()
	}
	out := make([]byte, 0, codeLen+uint64(len(b.data)))
	for i, ins := range b.instrs {
		if off, ok := b.dataRefs[i]; ok {
			ins.Imm = base + codeLen + uint64(off)
		}
		out = append(out, ins.encode()...)
	}
	out = append(out, b.data...)
	return out
}
