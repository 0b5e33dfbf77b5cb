// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package isosurface

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

var (
	hooksMu     sync.Mutex
	loggerHooks []func(*slog.Logger)
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for isosurface and its internal packages.
// By default nothing is logged. Pass nil to restore silent behavior.
//
// Log levels used:
//   - [slog.LevelDebug]: pipeline creation, buffer sizes, dispatch sizes
//   - [slog.LevelInfo]: device selection, extractor lifecycle
//   - [slog.LevelWarn]: device failures, release problems
//
// Example:
//
//	isosurface.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	hooksMu.Lock()
	defer hooksMu.Unlock()
	for _, hook := range loggerHooks {
		hook(l)
	}
}

// Logger returns the current logger. Sub-packages such as frame log
// through it.
func Logger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return newNopLogger()
}

// registerLoggerHook makes an internal package follow SetLogger.
func registerLoggerHook(hook func(*slog.Logger)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	loggerHooks = append(loggerHooks, hook)
	hook(Logger())
}
