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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"rvkern.dev/rvkern/pkg/kernel"
)

type tasksCmd struct {
	id     string
	socket string
}

func (*tasksCmd) Name() string     { return "tasks" }
func (*tasksCmd) Synopsis() string { return "print the task table of a running rvkern instance" }
func (*tasksCmd) Usage() string {
	return "tasks [-id=<name>] [-socket=<path>]\n"
}

func (c *tasksCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "default", "instance id to locate, matching the run subcommand's -id")
	f.StringVar(&c.socket, "socket", "", "debug socket path, overriding -id's lookup")
}

func (c *tasksCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	path := c.socket
	if path == "" {
		p, err := findDebugSocket(c.id)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		path = p
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rvkern: connecting to %s: %v\n", path, err)
		return subcommands.ExitFailure
	}
	defer conn.Close()

	var snapshot []kernel.DebugInfo
	if err := json.NewDecoder(conn).Decode(&snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "rvkern: decoding task table: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tSTATUS\tTIME_US\tSYSCALLS")
	for _, t := range snapshot {
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\n", t.AppID, t.Status, t.TimeUs, t.SyscallTimes)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
