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
	"testing"
	"time"
)

func TestNowAdvancesMonotonically(t *testing.T) {
	timer := NewTimer(1_000_000)
	first := timer.Now()
	time.Sleep(5 * time.Millisecond)
	second := timer.Now()
	if second <= first {
		t.Fatalf("Now() did not advance: first=%d second=%d", first, second)
	}
}

func TestSetDeadlineFires(t *testing.T) {
	timer := NewTimer(1_000_000)
	defer timer.Stop()

	timer.SetDeadline(timer.Now() + 1000) // ~1ms at 1MHz
	select {
	case <-timer.Fired():
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
}

func TestSetDeadlineReplacesPending(t *testing.T) {
	timer := NewTimer(1_000_000)
	defer timer.Stop()

	// Arm a far-future deadline, then immediately replace it with a near
	// one; only the second should ever fire.
	timer.SetDeadline(timer.Now() + 1_000_000_000)
	timer.SetDeadline(timer.Now() + 1000)

	select {
	case <-timer.Fired():
	case <-time.After(time.Second):
		t.Fatal("replacement deadline never fired")
	}
}

func TestSetDeadlineInThePastFiresImmediately(t *testing.T) {
	timer := NewTimer(1_000_000)
	defer timer.Stop()

	timer.SetDeadline(0)
	select {
	case <-timer.Fired():
	case <-time.After(time.Second):
		t.Fatal("a past deadline should fire essentially immediately")
	}
}
