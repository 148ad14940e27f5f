// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide zerolog logger shared by the scheduler, the event queue and
// the applications built on them.

package logging

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var global atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	global.Store(&nop)
}

// L returns the process logger. It discards everything until Set is called.
func L() *zerolog.Logger { return global.Load() }

// Set replaces the process logger.
func Set(l zerolog.Logger) { global.Store(&l) }

// Component derives a logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

// New builds a logger writing to w. format is "console" or "json".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
