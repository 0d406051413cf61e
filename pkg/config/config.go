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

// Package config resolves the kernel's runtime-tunable knobs from
// compiled-in defaults, an optional TOML file and the RVKERN_LOG
// environment variable, the way runsc/config layers flags over defaults
// into a single immutable *Config consumed for the lifetime of a run.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"rvkern.dev/rvkern/pkg/sysconst"
)

// Config holds the kernel's runtime-tunable knobs. MaxAppNum and
// MaxSyscallNum are present so a bundle or operator can assert a tighter
// bound than the compiled-in array size, never a looser one: Go's static
// arrays in pkg/sysconst are the hard ceiling.
type Config struct {
	MaxAppNum      int    `toml:"max_app_num"`
	MaxSyscallNum  int    `toml:"max_syscall_num"`
	AppBaseAddress uint64 `toml:"app_base_address"`
	AppSizeLimit   uint64 `toml:"app_size_limit"`
	ClockFreq      uint64 `toml:"clock_freq"`
	TicksPerSec    int    `toml:"ticks_per_sec"`
	LogLevel       string `toml:"log_level"`
}

// Default returns the Config matching the compiled-in platform constants.
func Default() *Config {
	return &Config{
		MaxAppNum:      sysconst.MaxAppNum,
		MaxSyscallNum:  sysconst.MaxSyscallNum,
		AppBaseAddress: sysconst.AppBaseAddress,
		AppSizeLimit:   sysconst.AppSizeLimit,
		ClockFreq:      sysconst.ClockFreq,
		TicksPerSec:    sysconst.TicksPerSec,
		LogLevel:       "INFO",
	}
}

// Load resolves a Config from, in increasing priority: compiled-in
// defaults, the TOML file at path (if path is non-empty), and the
// RVKERN_LOG environment variable. An empty path is not an error; Load
// then returns the defaults with only the environment override applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if lvl := os.Getenv("RVKERN_LOG"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces that overrides never loosen the compiled-in array
// bounds; num_app exceeding MAX_APP_NUM is a hard configuration bug, and
// the same policy applies to any configured ceiling.
func (c *Config) validate() error {
	if c.MaxAppNum <= 0 || c.MaxAppNum > sysconst.MaxAppNum {
		return fmt.Errorf("config: max_app_num %d exceeds compiled limit %d", c.MaxAppNum, sysconst.MaxAppNum)
	}
	if c.MaxSyscallNum <= 0 || c.MaxSyscallNum > sysconst.MaxSyscallNum {
		return fmt.Errorf("config: max_syscall_num %d exceeds compiled limit %d", c.MaxSyscallNum, sysconst.MaxSyscallNum)
	}
	if c.AppSizeLimit == 0 {
		return fmt.Errorf("config: app_size_limit must be nonzero")
	}
	if c.TicksPerSec <= 0 {
		return fmt.Errorf("config: ticks_per_sec must be positive")
	}
	switch c.LogLevel {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE", "off":
	default:
		return fmt.Errorf("config: unrecognized log_level %q", c.LogLevel)
	}
	return nil
}

// AppBase returns the load/entry address of app i under this Config.
func (c *Config) AppBase(appID int) uint64 {
	return c.AppBaseAddress + uint64(appID)*c.AppSizeLimit
}

// TickCycles returns the number of hart cycles in one scheduler tick.
func (c *Config) TickCycles() uint64 {
	return c.ClockFreq / uint64(c.TicksPerSec)
}

// TickDuration returns one scheduler tick as a wall-clock duration.
func (c *Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TicksPerSec)
}
