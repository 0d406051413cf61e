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

// Package sbi declares the two firmware services this kernel consumes: a
// console and a timer. Real hardware reaches them through rvsbi's ecalls;
// hosted development and tests reach them through hostsbi's pty-backed
// stand-ins. Nothing above this package ever branches on which backend
// is in use.
package sbi

// Console is the supervisor console reached through console_putchar.
type Console interface {
	PutChar(c byte)
}

// Timer is the hart's monotonic cycle counter and one-shot deadline,
// reached through the `time` CSR and the set_timer call.
type Timer interface {
	// Now returns the current hart cycle count.
	Now() uint64
	// SetDeadline programs the next timer interrupt for cycle target.
	SetDeadline(target uint64)
}
