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

// Package loader copies a linker-generated app table into per-app load
// windows. It never touches the destination memory directly — real
// hardware and the hosted backend each hand it a MemoryWriter that knows
// how its own address space actually works, the way gVisor's loader
// copies an ELF image through a usermem.IO rather than a raw pointer.
package loader

import (
	"fmt"

	"rvkern.dev/rvkern/pkg/config"
	"rvkern.dev/rvkern/internal/klog"
)

// MemoryWriter is the destination for a copied app image: zero a window,
// then write bytes into its start. FenceI is called once after every
// app's image has been copied, standing in for the instruction-cache
// invalidation real hardware needs before freshly-written code can be
// fetched coherently.
type MemoryWriter interface {
	Zero(addr uint64, size uint64)
	Write(addr uint64, data []byte)
	FenceI()
}

// AppTable is the decoded form of the link-time table described in the
// external interfaces: num_app section boundaries plus the concatenated
// image bytes.
type AppTable struct {
	// Bounds has NumApp()+1 entries; app i's image is
	// Bytes[Bounds[i]:Bounds[i+1]].
	Bounds []uint64
	Bytes  []byte
}

// NumApp returns the number of applications table describes.
func (t *AppTable) NumApp() int {
	if len(t.Bounds) == 0 {
		return 0
	}
	return len(t.Bounds) - 1
}

// Image returns app i's raw image bytes.
func (t *AppTable) Image(i int) []byte {
	return t.Bytes[t.Bounds[i]:t.Bounds[i+1]]
}

// Load validates table against cfg's compiled bounds and copies each
// app's image into its fixed load window via mem, zeroing the window
// first. It returns the validated app count.
//
// num_app > cfg.MaxAppNum or any image exceeding cfg.AppSizeLimit is a
// hard configuration bug; Load returns an error rather than panicking so
// callers (the CLI, tests) can report it cleanly — the kernel itself
// still treats a Load error as fatal at boot.
func Load(cfg *config.Config, table *AppTable, mem MemoryWriter) (int, error) {
	numApp := table.NumApp()
	if numApp <= 0 {
		return 0, fmt.Errorf("loader: num_app %d must be positive", numApp)
	}
	if numApp > cfg.MaxAppNum {
		return 0, fmt.Errorf("loader: num_app %d exceeds max_app_num %d", numApp, cfg.MaxAppNum)
	}
	log := klog.With("loader")
	for i := 0; i < numApp; i++ {
		img := table.Image(i)
		if uint64(len(img)) > cfg.AppSizeLimit {
			return 0, fmt.Errorf("loader: app %d image %d bytes exceeds app_size_limit %d", i, len(img), cfg.AppSizeLimit)
		}
		base := cfg.AppBase(i)
		mem.Zero(base, cfg.AppSizeLimit)
		mem.Write(base, img)
		log.WithField("app", i).WithField("bytes", len(img)).Debug("loaded app image")
	}
	mem.FenceI()
	return numApp, nil
}
