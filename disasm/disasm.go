// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package disasm decodes the first instructions at an image entry point so
// the boot log shows what is about to run.
package disasm // import "github.com/barebox/barebox-sub023/disasm"

import (
	"debug/elf"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	aa "golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// ErrUnsupported is returned for machines without a decoder.
var ErrUnsupported = errors.New("no disassembler for machine")

// Line is one decoded instruction.
type Line struct {
	Addr  uint64
	Bytes []byte
	Text  string
}

func (l Line) String() string {
	return fmt.Sprintf("%#x: %-24s %s", l.Addr, hex.EncodeToString(l.Bytes), l.Text)
}

// decodeFunc decodes one instruction at the start of code. It returns the
// instruction length even on failure so decoding can continue.
type decodeFunc func(code []byte, pc uint64) (string, int, error)

func decoderFor(machine elf.Machine) (decodeFunc, error) {
	switch machine {
	case elf.EM_X86_64:
		return x86(64), nil
	case elf.EM_386:
		return x86(32), nil
	case elf.EM_AARCH64:
		return arm64, nil
	case elf.EM_ARM:
		return arm, nil
	default:
		return nil, fmt.Errorf("%v: %w", machine, ErrUnsupported)
	}
}

func x86(mode int) decodeFunc {
	return func(code []byte, pc uint64) (string, int, error) {
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			return "", 1, err
		}
		return x86asm.GNUSyntax(inst, pc, nil), inst.Len, nil
	}
}

func arm64(code []byte, _ uint64) (string, int, error) {
	inst, err := aa.Decode(code)
	if err != nil {
		return "", 4, err
	}
	return aa.GNUSyntax(inst), 4, nil
}

func arm(code []byte, _ uint64) (string, int, error) {
	inst, err := armasm.Decode(code, armasm.ModeARM)
	if err != nil {
		return "", 4, err
	}
	return armasm.GNUSyntax(inst), inst.Len, nil
}

// Entry decodes up to n instructions from code, which is located at pc.
// Undecodable bytes are reported as ".byte" lines.
func Entry(machine elf.Machine, code []byte, pc uint64, n int) ([]Line, error) {
	decode, err := decoderFor(machine)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, n)
	for len(lines) < n && len(code) > 0 {
		text, size, err := decode(code, pc)
		size = min(max(size, 1), len(code))
		if err != nil {
			text = ".byte " + byteList(code[:size])
		}
		lines = append(lines, Line{Addr: pc, Bytes: code[:size], Text: strings.TrimSpace(text)})
		code = code[size:]
		pc += uint64(size)
	}
	return lines, nil
}

func byteList(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("0x%02x", v)
	}
	return strings.Join(parts, ", ")
}
