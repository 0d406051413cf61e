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

// Package hostsbi stands in for the two SBI services the core consumes
// — console_putchar and set_timer — on a workstation that has no
// firmware to ecall into. The console is a real pty so a developer or a
// test can read the kernel's console output as an ordinary file
// descriptor; the timer is a host goroutine translating a cycle-count
// deadline into a real-time deadline.
package hostsbi

import (
	"os"

	"github.com/cenkalti/backoff"
	"github.com/containerd/console"
	"github.com/creack/pty"
)

// Console is a pty-backed stand-in for the supervisor console. PutChar
// writes to the master side; Slave exposes the slave side for a test or
// the CLI to read the kernel's output from.
type Console struct {
	master *os.File
	slave  *os.File
	con    console.Console
}

// NewConsole opens a pty pair, retrying with a bounded backoff: pty
// acquisition can transiently fail under heavy local parallel test
// execution.
func NewConsole() (*Console, error) {
	var master, slave *os.File
	open := func() error {
		m, s, err := pty.Open()
		if err != nil {
			return err
		}
		master, slave = m, s
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(open, policy); err != nil {
		return nil, err
	}
	con, err := console.ConsoleFromFile(slave)
	if err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	return &Console{master: master, slave: slave, con: con}, nil
}

// PutChar implements sbi.Console by writing c to the master side of the
// pty; a reader of Slave() observes it as ordinary terminal output.
func (c *Console) PutChar(ch byte) {
	c.master.Write([]byte{ch})
}

// Slave returns the pty's slave end, the file a test or the "run"
// command's console pump reads kernel console output from.
func (c *Console) Slave() *os.File {
	return c.slave
}

// Close releases both ends of the pty.
func (c *Console) Close() error {
	c.con.Reset()
	err1 := c.master.Close()
	err2 := c.slave.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
