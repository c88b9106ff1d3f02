// Package logx provides the structured logger shared by every engine
// component, replacing the teacher's plain log.Printf calls with
// zerolog's leveled, field-carrying logger.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Init reconfigures the package logger. Call once during startup (cmd/molapd);
// components that already captured a *zerolog.Logger via For keep their
// reference, so Init should run before any component is constructed.
func Init(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// For returns a child logger tagged with the given component name, e.g.
// logx.For("cache") or logx.For("journal").
func For(component string) *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base.With().Str("component", component).Logger()
	return &l
}
