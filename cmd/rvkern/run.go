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
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"rvkern.dev/rvkern/internal/klog"
	"rvkern.dev/rvkern/pkg/config"
	"rvkern.dev/rvkern/pkg/hart/platform"
	"rvkern.dev/rvkern/pkg/hart/platform/hostsim"
	"rvkern.dev/rvkern/pkg/kernel"
	"rvkern.dev/rvkern/pkg/kernel/loader"
	"rvkern.dev/rvkern/pkg/sbi/hostsbi"
)

// completionPanic is the literal message the kernel core panics with when
// every application has exited. run treats it as a normal, successful
// shutdown rather than a crash.
const completionPanic = "All applications completed!"

type runCmd struct {
	configPath string
	appsDir    string
	id         string
	quiet      bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "boot application images against the hosted kernel core" }
func (*runCmd) Usage() string {
	return "run -apps=<dir> [-config=<path>] [-id=<name>]\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML config overriding compiled-in defaults")
	f.StringVar(&c.appsDir, "apps", "", "directory of application images, one file per app, loaded in name order")
	f.StringVar(&c.id, "id", "default", "instance id the tasks subcommand uses to find this run's debug socket")
	f.BoolVar(&c.quiet, "quiet", false, "suppress the app-loading progress bar")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.appsDir == "" {
		fmt.Fprintln(os.Stderr, "rvkern: run requires -apps")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	klog.SetLevel(cfg.LogLevel)
	log := klog.With("rvkern")

	pidPath := filepath.Join(os.TempDir(), fmt.Sprintf("rvkern-%s.pid", c.id))
	lock := flock.New(pidPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		fmt.Fprintf(os.Stderr, "rvkern: instance id %q is already running (see %s)\n", c.id, pidPath)
		return subcommands.ExitFailure
	}
	defer lock.Unlock()
	os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
	defer os.Remove(pidPath)

	table, err := c.readAppTable()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	mem := hostsim.NewMemory(cfg)
	numApp, err := loader.Load(cfg, table, mem)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	console, err := hostsbi.NewConsole()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer console.Close()

	timer := hostsbi.NewTimer(cfg.ClockFreq)
	defer timer.Stop()

	contexts := make([]platform.Context, numApp)
	for i := 0; i < numApp; i++ {
		contexts[i] = hostsim.New(i, mem, timer.Fired(), cfg.ClockFreq)
	}

	mgr := kernel.NewManager(cfg, mem, console, timer, contexts)
	if err := mgr.Init(numApp); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	listener, socketPath, err := createDebugSocket(c.id)
	if err != nil {
		log.Warnf("debug socket unavailable: %v", err)
	} else {
		defer listener.Close()
		defer os.Remove(socketPath)
		log.WithField("socket", socketPath).Infof("tasks debug socket listening")
	}

	// Put the controlling terminal into raw mode for the duration of the
	// run so the guest console's own line discipline (such as it is)
	// isn't fought by the host's: an interactive app talking through
	// sys_write should see exactly the bytes it wrote echoed back.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			log.Warnf("failed to set terminal to raw mode: %v", err)
		} else {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Infof("received interrupt, shutting down")
			cancel()
		case <-runCtx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() (err error) {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				if msg, ok := r.(string); ok && msg == completionPanic {
					log.Infof(completionPanic)
					return
				}
				err = fmt.Errorf("rvkern: kernel panicked: %v", r)
			}
		}()
		return mgr.Run()
	})

	g.Go(func() error {
		buf := make([]byte, 4096)
		for {
			n, readErr := console.Slave().Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if readErr != nil {
				return nil
			}
			select {
			case <-gctx.Done():
				return nil
			default:
			}
		}
	})

	if listener != nil {
		g.Go(func() error { return serveDebugSocket(gctx, listener, mgr) })
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// readAppTable reads every regular file in c.appsDir, in lexical order, as
// one application's raw image, and concatenates them into an AppTable the
// way a linker-generated app table would already arrive encoded.
func (c *runCmd) readAppTable() (*loader.AppTable, error) {
	entries, err := os.ReadDir(c.appsDir)
	if err != nil {
		return nil, fmt.Errorf("rvkern: reading %s: %w", c.appsDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("rvkern: %s contains no application images", c.appsDir)
	}

	var bar *progressbar.ProgressBar
	if !c.quiet {
		bar = progressbar.Default(int64(len(names)), "loading app images")
	}

	bounds := make([]uint64, 1, len(names)+1)
	var all []byte
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(c.appsDir, name))
		if err != nil {
			return nil, fmt.Errorf("rvkern: reading %s: %w", name, err)
		}
		all = append(all, data...)
		bounds = append(bounds, uint64(len(all)))
		if bar != nil {
			bar.Add(1)
		}
	}
	return &loader.AppTable{Bounds: bounds, Bytes: all}, nil
}

// serveDebugSocket answers each connection with one JSON-encoded snapshot
// of the task table, then closes it; tasks reconnects whenever it wants a
// fresh read rather than this end pushing a stream of updates.
func serveDebugSocket(ctx context.Context, l net.Listener, mgr *kernel.Manager) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go func() {
			defer conn.Close()
			json.NewEncoder(conn).Encode(mgr.Snapshot())
		}()
	}
}
