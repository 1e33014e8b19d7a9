// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/barebox/barebox-sub023/internal/controller"

import (
	"debug/elf"
	"errors"
	"flag"
	"fmt"

	"github.com/spf13/afero"

	"github.com/barebox/barebox-sub023/internal/log"
)

// Config is the configuration of one elfload run.
type Config struct {
	// Image is the path of the ELF image, optionally zstd compressed.
	Image string
	// Banks describes the simulated RAM, see ParseBanks.
	Banks string
	// LoadAddress is the optional load address override, empty for none.
	LoadAddress string
	// Class is "native", "32" or "64".
	Class string
	// Mmap maps the image file instead of reading it.
	Mmap bool
	// Stream reads the image through a forward-only stream.
	Stream bool
	// NoRelocate keeps the default applier that refuses all relocations.
	NoRelocate bool
	// Disasm is the number of instructions decoded at the entry point.
	Disasm int

	VerboseMode bool
	Version     bool

	// Fs is the filesystem the image is read from. Defaults to the OS.
	Fs afero.Fs

	FlagSet *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	if cfg.FlagSet == nil {
		return
	}
	log.Debug("Config:")
	cfg.FlagSet.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.Image == "" {
		return errors.New("no image given")
	}
	if _, err := ParseBanks(cfg.Banks); err != nil {
		return err
	}
	if _, _, err := cfg.loadAddress(); err != nil {
		return err
	}
	if _, err := cfg.class(); err != nil {
		return err
	}
	if cfg.Mmap && cfg.Stream {
		return errors.New("mmap and stream are mutually exclusive")
	}
	if cfg.Disasm < 0 {
		return fmt.Errorf("invalid instruction count %d", cfg.Disasm)
	}
	return nil
}

func (cfg *Config) loadAddress() (uint64, bool, error) {
	if cfg.LoadAddress == "" {
		return 0, false, nil
	}
	addr, err := parseSize(cfg.LoadAddress)
	if err != nil {
		return 0, false, fmt.Errorf("invalid load address %q: %w", cfg.LoadAddress, err)
	}
	return addr, true, nil
}

func (cfg *Config) class() (elf.Class, error) {
	switch cfg.Class {
	case "", "native":
		return elf.ELFCLASSNONE, nil
	case "32":
		return elf.ELFCLASS32, nil
	case "64":
		return elf.ELFCLASS64, nil
	default:
		return elf.ELFCLASSNONE, fmt.Errorf("invalid class %q", cfg.Class)
	}
}

func (cfg *Config) fs() afero.Fs {
	if cfg.Fs == nil {
		return afero.NewOsFs()
	}
	return cfg.Fs
}
