// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// elfload loads a bare metal ELF image into simulated RAM the way a
// bootloader would, and reports where everything ended up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/barebox/barebox-sub023/internal/controller"
	"github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	if cfg.VerboseMode {
		log.SetLevel(slog.LevelDebug)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err = cfg.Validate(); err != nil {
		return parseError("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer cancel()

	log.Infof("Starting elfload %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	ctlr := controller.New(cfg)
	defer func() {
		if err := ctlr.Shutdown(); err != nil {
			log.Errorf("Failed to release resources: %v", err)
		}
	}()

	report, err := ctlr.Run(ctx)
	if err != nil {
		return failure("Failed to load %s: %v", cfg.Image, err)
	}
	if _, err = report.WriteTo(os.Stdout); err != nil {
		return failure("Failed to write report: %v", err)
	}
	return exitSuccess
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
