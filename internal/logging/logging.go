// SPDX-License-Identifier: MPL-2.0

// Package logging hands out per-subsystem charm loggers that share one
// output and one level.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	loggers = make(map[string]*log.Logger)
	level   = log.InfoLevel
	output  io.Writer = os.Stderr
)

// Get returns the logger for a subsystem. The name becomes the log prefix,
// so Get("Config") prints lines like "INFO Config: ...".
func Get(name string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := log.NewWithOptions(output, log.Options{
		Prefix: name,
		Level:  level,
	})
	loggers[name] = l
	return l
}

// SetLevel changes the level of every logger handed out so far and of
// those created later.
func SetLevel(lvl log.Level) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
}

// Level returns the current shared level.
func Level() log.Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput redirects every logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}

// ParseLevel accepts the level names used in build documents
// (DEBUG, INFO, WARNING, ERROR, CRITICAL) case-insensitively.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "critical", "fatal":
		return log.FatalLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
}
