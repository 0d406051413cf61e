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

package hostsbi

import (
	"sync"
	"time"
)

// Timer implements sbi.Timer over the host's monotonic clock: Now()
// reports an equivalent hart cycle count, and SetDeadline arms a host
// timer that signals Fired() when that cycle count is reached.
type Timer struct {
	clockFreq uint64
	start     time.Time

	mu    sync.Mutex
	armed *time.Timer
	fired chan struct{}
}

// NewTimer returns a Timer whose cycle counter runs at clockFreq Hz,
// zeroed at the moment of construction.
func NewTimer(clockFreq uint64) *Timer {
	return &Timer{
		clockFreq: clockFreq,
		start:     time.Now(),
		fired:     make(chan struct{}, 1),
	}
}

// Now implements sbi.Timer by converting elapsed wall time into a cycle
// count at clockFreq Hz.
func (t *Timer) Now() uint64 {
	elapsed := time.Since(t.start)
	return uint64(elapsed) * t.clockFreq / uint64(time.Second)
}

// SetDeadline implements sbi.Timer. It replaces any previously armed
// deadline: only the most recently requested timer interrupt is ever
// pending, matching real SBI set_timer semantics.
func (t *Timer) SetDeadline(target uint64) {
	now := t.Now()
	var delta time.Duration
	if target > now {
		delta = time.Duration(target-now) * time.Second / time.Duration(t.clockFreq)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed != nil {
		t.armed.Stop()
	}
	t.armed = time.AfterFunc(delta, func() {
		select {
		case t.fired <- struct{}{}:
		default:
		}
	})
}

// Fired is signaled once per elapsed deadline armed by SetDeadline. The
// hosted hart loop selects on it the way a real hart would observe
// sie.STIE firing.
func (t *Timer) Fired() <-chan struct{} {
	return t.fired
}

// Stop disarms any pending deadline, used when tearing down a hosted run.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed != nil {
		t.armed.Stop()
	}
}
