// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"

	"github.com/peterbourgon/ff/v3"

	"github.com/barebox/barebox-sub023/internal/controller"
)

const (
	// Default values for CLI flags
	defaultArgClass  = "native"
	defaultArgDisasm = 8
)

// Help strings for command line arguments
var (
	banksHelp = "Comma separated list of simulated RAM banks in the format " +
		"name=start:size. Sizes may carry a K, M or G suffix."
	configHelp = "Path to a configuration file with one flag per line."
	classHelp  = "ELF class accepted by the loader: native, 32 or 64."
	disasmHelp = "Number of instructions to disassemble at the entry point, " +
		"0 to disable."
	loadAddressHelp = "Load the lowest segment at this address instead of the " +
		"link address. Position independent images are relocated."
	mmapHelp        = "Map the image file instead of reading it."
	noRelocateHelp  = "Do not apply relocations. Loading a moved image fails."
	streamHelp      = "Read the image strictly forward, like from a network transfer."
	verboseModeHelp = "Enable verbose logging and debugging capabilities."
	versionHelp     = "Show version."
)

func parseArgs(args []string) (*controller.Config, error) {
	var cfg controller.Config

	fs := flag.NewFlagSet("elfload", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&cfg.Banks, "banks", controller.DefaultBanks, banksHelp)
	fs.StringVar(&cfg.Class, "class", defaultArgClass, classHelp)
	fs.String("config", "", configHelp)
	fs.IntVar(&cfg.Disasm, "disasm", defaultArgDisasm, disasmHelp)
	fs.StringVar(&cfg.LoadAddress, "load-address", "", loadAddressHelp)
	fs.BoolVar(&cfg.Mmap, "mmap", false, mmapHelp)
	fs.BoolVar(&cfg.NoRelocate, "no-relocate", false, noRelocateHelp)
	fs.BoolVar(&cfg.Stream, "stream", false, streamHelp)

	fs.BoolVar(&cfg.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&cfg.Version, "version", false, versionHelp)

	cfg.FlagSet = fs

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("ELFLOAD"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	)
	if err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		cfg.Image = fs.Arg(0)
	}
	return &cfg, nil
}
