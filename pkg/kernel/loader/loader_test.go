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

package loader_test

import (
	"testing"

	"rvkern.dev/rvkern/pkg/config"
	"rvkern.dev/rvkern/pkg/kernel/loader"
)

// fakeWriter records every Zero/Write/FenceI call against a flat buffer
// sized like hostsim.Memory, without depending on that package.
type fakeWriter struct {
	base     uint64
	bytes    []byte
	fenced   bool
	zeroCall []uint64 // addresses passed to Zero
}

func newFakeWriter(cfg *config.Config) *fakeWriter {
	return &fakeWriter{base: cfg.AppBaseAddress, bytes: make([]byte, cfg.AppSizeLimit*uint64(cfg.MaxAppNum))}
}

func (w *fakeWriter) Zero(addr, size uint64) {
	w.zeroCall = append(w.zeroCall, addr)
	off := addr - w.base
	for i := uint64(0); i < size; i++ {
		w.bytes[off+i] = 0
	}
}

func (w *fakeWriter) Write(addr uint64, data []byte) {
	off := addr - w.base
	copy(w.bytes[off:], data)
}

func (w *fakeWriter) FenceI() { w.fenced = true }

func TestLoadCopiesEachImageToItsWindow(t *testing.T) {
	cfg := config.Default()
	img0 := []byte{1, 2, 3}
	img1 := []byte{4, 5}
	table := &loader.AppTable{
		Bounds: []uint64{0, uint64(len(img0)), uint64(len(img0) + len(img1))},
		Bytes:  append(append([]byte{}, img0...), img1...),
	}
	w := newFakeWriter(cfg)

	n, err := loader.Load(cfg, table, w)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("numApp = %d, want 2", n)
	}
	if !w.fenced {
		t.Fatal("FenceI was never called")
	}
	if len(w.zeroCall) != 2 {
		t.Fatalf("Zero called %d times, want 2", len(w.zeroCall))
	}

	base0, base1 := cfg.AppBase(0), cfg.AppBase(1)
	got0 := w.bytes[base0-w.base : base0-w.base+uint64(len(img0))]
	got1 := w.bytes[base1-w.base : base1-w.base+uint64(len(img1))]
	for i, b := range img0 {
		if got0[i] != b {
			t.Errorf("app 0 byte %d = %d, want %d", i, got0[i], b)
		}
	}
	for i, b := range img1 {
		if got1[i] != b {
			t.Errorf("app 1 byte %d = %d, want %d", i, got1[i], b)
		}
	}
}

func TestLoadRejectsZeroApps(t *testing.T) {
	cfg := config.Default()
	table := &loader.AppTable{Bounds: []uint64{0}, Bytes: nil}
	if _, err := loader.Load(cfg, table, newFakeWriter(cfg)); err == nil {
		t.Fatal("Load with num_app == 0 should be refused, not silently booted")
	}
}

func TestLoadRejectsOversizedImage(t *testing.T) {
	cfg := config.Default()
	huge := make([]byte, cfg.AppSizeLimit+1)
	table := &loader.AppTable{
		Bounds: []uint64{0, uint64(len(huge))},
		Bytes:  huge,
	}
	if _, err := loader.Load(cfg, table, newFakeWriter(cfg)); err == nil {
		t.Fatal("Load should reject an image larger than app_size_limit")
	}
}

func TestLoadRejectsTooManyApps(t *testing.T) {
	cfg := config.Default()
	bounds := make([]uint64, cfg.MaxAppNum+2)
	for i := range bounds {
		bounds[i] = 0
	}
	table := &loader.AppTable{Bounds: bounds, Bytes: nil}
	if _, err := loader.Load(cfg, table, newFakeWriter(cfg)); err == nil {
		t.Fatal("Load should reject num_app exceeding max_app_num")
	}
}
