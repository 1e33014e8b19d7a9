// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package log provides a public logging interface for the ELF loader packages.
package log // import "github.com/barebox/barebox-sub023/log"

import (
	"log/slog"

	"github.com/barebox/barebox-sub023/internal/log"
)

// SetLevel configures the log level for the loader's internal logger.
func SetLevel(level slog.Level) {
	log.SetLevel(level)
}

// SetLogger configures the loader's internal logger.
func SetLogger(l slog.Logger) {
	log.SetLogger(l)
}
