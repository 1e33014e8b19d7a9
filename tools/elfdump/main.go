// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// elfdump shows how the loader sees an ELF image: its headers, where its
// segments would be placed and which relocations it carries.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetReportCaller(false)
	log.SetFormatter(&log.TextFormatter{})

	root := ffcli.Command{
		Name:       "elfdump",
		ShortUsage: "elfdump <subcommand> [flags] <image>",
		ShortHelp:  "Tool for inspecting images as seen by the ELF loader",
		Subcommands: []*ffcli.Command{
			newHeadersCmd(os.Stdout),
			newPlanCmd(os.Stdout),
			newDynamicCmd(os.Stdout),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Fatalf("%v", err)
		}
	}
}
