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

//go:build riscv64

package rvhart

import (
	"reflect"

	"rvkern.dev/rvkern/pkg/hart/platform"
)

// CSR accessors implemented in csr_riscv64.s.
func readSCAUSE() uint64
func readSTVAL() uint64
func setSTVEC(addr uint64)
func enableSTIE()
func writeScratch(v uint64)

// scause exception/interrupt codes this kernel recognizes (RISC-V
// privileged spec, supervisor cause encoding; the interrupt bit is the
// sign bit of the register-width value).
const (
	causeInterruptBit   = 1 << 63
	causeUserEnvCall    = 8
	causeStoreFault     = 7
	causeStorePageFault = 15
	causeIllegalInsn    = 2
	causeSupervisorTmr  = 5
)

// classify reads scause and maps it to a platform.TrapCause; stval is
// read separately by trapTrampoline.
// Anything outside the recognized causes is a kernel-fatal condition this
// function cannot itself recover from, so it panics.
func classify() platform.TrapCause {
	scause := readSCAUSE()
	if scause&causeInterruptBit != 0 {
		switch scause &^ causeInterruptBit {
		case causeSupervisorTmr:
			return platform.CauseTimer
		default:
			panic("rvhart: unrecognized interrupt cause")
		}
	}
	switch scause {
	case causeUserEnvCall:
		return platform.CauseSyscall
	case causeStoreFault, causeStorePageFault:
		return platform.CauseStoreFault
	case causeIllegalInsn:
		return platform.CauseIllegalInstruction
	default:
		panic("rvhart: unrecognized exception cause")
	}
}

// pcOf returns the entry address of a niladic function, used only to feed
// stvec; Go guarantees the returned reflect.Value's Pointer() for a func
// value is its code entry point.
func pcOf(f func()) uint64 {
	return uint64(reflect.ValueOf(f).Pointer())
}
