//go:build amd64

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import "debug/elf"

const (
	CurrentMachine = elf.EM_X86_64
	NativeClass    = elf.ELFCLASS64
)
