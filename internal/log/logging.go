// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package log // import "github.com/barebox/barebox-sub023/internal/log"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// globalLogger holds a reference to the [slog.Logger] used by the loader
// packages.
//
// The default logger writes text records to stderr at the Info level.
var globalLogger = func() *atomic.Pointer[slog.Logger] {
	p := new(atomic.Pointer[slog.Logger])
	p.Store(newStderrLogger(slog.LevelInfo))
	return p
}()

func newStderrLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLogger sets the global Logger to l.
func SetLogger(l slog.Logger) {
	globalLogger.Store(&l)
}

// SetLevel replaces the global logger with a stderr logger at the given level.
func SetLevel(level slog.Level) {
	globalLogger.Store(newStderrLogger(level))
}

// SetDebugLogger configures the global logger to write debug-level logs to stderr.
func SetDebugLogger() {
	SetLevel(slog.LevelDebug)
}

func getLogger() *slog.Logger {
	return globalLogger.Load()
}

func logf(level slog.Level, msg string, args ...any) {
	l := getLogger()
	if !l.Enabled(context.Background(), level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.Log(context.Background(), level, msg)
}

// Debugf logs detailed information about segment placement and relocation.
func Debugf(msg string, args ...any) {
	logf(slog.LevelDebug, msg, args...)
}

// Debug logs a debug message as is.
func Debug(msg string) {
	logf(slog.LevelDebug, msg)
}

// Infof logs informational messages about image loading.
func Infof(msg string, args ...any) {
	logf(slog.LevelInfo, msg, args...)
}

// Info logs an informational message as is.
func Info(msg string) {
	logf(slog.LevelInfo, msg)
}

// Warnf logs conditions that do not abort a load but likely leave the
// image in a state the caller did not ask for.
func Warnf(msg string, args ...any) {
	logf(slog.LevelWarn, msg, args...)
}

// Warn logs a warning message as is.
func Warn(msg string) {
	logf(slog.LevelWarn, msg)
}

// Errorf logs error messages.
func Errorf(msg string, args ...any) {
	logf(slog.LevelError, msg, args...)
}

// Error logs an error value.
func Error(err error) {
	logf(slog.LevelError, err.Error())
}
