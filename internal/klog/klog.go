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

// Package klog is the kernel's logging façade: a thin wrapper over logrus
// giving five named levels (ERROR, WARN, INFO, DEBUG, TRACE) plus "off",
// set once at boot.
package klog

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

func init() {
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the global log level from one of the named levels above.
// An unrecognized name is treated as "off" rather than panicking: a typo
// in a log-level knob should mute logging, not crash the kernel.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "ERROR":
		root.SetLevel(logrus.ErrorLevel)
	case "WARN":
		root.SetLevel(logrus.WarnLevel)
	case "INFO":
		root.SetLevel(logrus.InfoLevel)
	case "DEBUG":
		root.SetLevel(logrus.DebugLevel)
	case "TRACE":
		root.SetLevel(logrus.TraceLevel)
	default:
		root.SetOutput(io.Discard)
	}
}

// SetOutput redirects the logger's sink, which is stderr by default.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Entry is a structured log record builder, re-exported so callers never
// import logrus directly.
type Entry = logrus.Entry

// Fields is a set of structured key/value pairs attached to a log line.
type Fields = logrus.Fields

// With starts a structured log entry scoped to component.
func With(component string) *Entry {
	return root.WithField("component", component)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) { root.Errorf(format, args...) }

// Warnf logs at WARN level.
func Warnf(format string, args ...any) { root.Warnf(format, args...) }

// Infof logs at INFO level.
func Infof(format string, args ...any) { root.Infof(format, args...) }

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) { root.Debugf(format, args...) }

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) { root.Tracef(format, args...) }
