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

// Package rvsbi implements pkg/sbi against the real firmware via SBI
// ecalls. Only buildable for GOARCH=riscv64.
package rvsbi

func setTimerEcall(target uint64)
func putCharEcall(c byte)
func readTimeCSR() uint64

// Console issues the SBI console_putchar ecall.
type Console struct{}

// PutChar implements sbi.Console.
func (Console) PutChar(c byte) { putCharEcall(c) }

// Timer reads the hart's `time` CSR and programs set_timer ecalls.
type Timer struct{}

// Now implements sbi.Timer.
func (Timer) Now() uint64 { return readTimeCSR() }

// SetDeadline implements sbi.Timer.
func (Timer) SetDeadline(target uint64) { setTimerEcall(target) }
