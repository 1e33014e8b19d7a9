// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package elfimage // import "github.com/barebox/barebox-sub023/elfimage"

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/barebox/barebox-sub023/internal/log"
	"github.com/barebox/barebox-sub023/memory"
	"github.com/barebox/barebox-sub023/reloc"
)

// needsRelocation reports whether link time addresses were moved. An
// ET_EXEC image loaded at its link addresses cannot and need not be fixed up.
func (img *Image) needsRelocation() bool {
	return img.mode != NoRelocation
}

// findDynamic returns the PT_DYNAMIC header and the physical address the
// dynamic section was loaded to.
func (img *Image) findDynamic() (elf.ProgHeader, uint64, bool) {
	for i := range img.hdr.Phnum() {
		ph := img.hdr.Prog(i)
		if ph.Type == elf.PT_DYNAMIC {
			return ph, destination(img.mode, img.relocOffset, &ph), true
		}
	}
	return elf.ProgHeader{}, 0, false
}

// dynamicInfo collects the dynamic tags relevant for relocation.
type dynamicInfo struct {
	rel, relsz, relent    uint64
	rela, relasz, relaent uint64
	symtab                uint64

	hasRel, hasRela, hasSymtab bool
}


// readDynamic walks the dynamic section at addr until DT_NULL or the end of
// the segment.
func (img *Image) readDynamic(ph *elf.ProgHeader, addr uint64) (*dynamicInfo, error) {
	if ph.Memsz == 0 {
		return &dynamicInfo{}, nil
	}
	if addr < img.low || addr+ph.Memsz-1 > img.high || addr+ph.Memsz-1 < addr {
		return nil, fmt.Errorf("%w: dynamic section at %#x outside of loaded image",
			ErrInvalidFormat, addr)
	}

	acc := memory.NewAccessor(img.mem, img.order)
	size := uint64(img.hdr.DynSize())
	buf := make([]byte, size)
	d := &dynamicInfo{}
	for off := uint64(0); off+size <= ph.Memsz; off += size {
		if err := acc.Read(addr+off, buf); err != nil {
			return nil, fmt.Errorf("failed to read dynamic entry at %#x: %w", addr+off, err)
		}
		tag, val := img.hdr.Dyn(buf)
		switch tag {
		case elf.DT_NULL:
			return d, nil
		case elf.DT_REL:
			d.rel, d.hasRel = val, true
		case elf.DT_RELSZ:
			d.relsz = val
		case elf.DT_RELENT:
			d.relent = val
		case elf.DT_RELA:
			d.rela, d.hasRela = val, true
		case elf.DT_RELASZ:
			d.relasz = val
		case elf.DT_RELAENT:
			d.relaent = val
		case elf.DT_SYMTAB:
			d.symtab, d.hasSymtab = val, true
		}
	}
	return d, nil
}

// parseDynamic returns the relocation table of the requested kind. It
// returns errNoTable when the image has no such table.
func (img *Image) parseDynamic(ph *elf.ProgHeader, addr uint64, kind reloc.Kind) (*reloc.Table, error) {
	d, err := img.readDynamic(ph, addr)
	if err != nil {
		return nil, err
	}
	if d.hasRel && d.hasRela {
		return nil, fmt.Errorf("%w: both DT_REL and DT_RELA present", ErrInvalidFormat)
	}

	tab := &reloc.Table{
		Kind:    kind,
		Class:   img.class,
		Order:   img.order,
		Machine: img.machine,
		Offset:  img.relocOffset,
		Low:     img.low,
		High:    img.high,
	}
	if d.hasSymtab {
		tab.SymTab = d.symtab + img.relocOffset
	}

	var tag elf.DynTag
	switch kind {
	case reloc.REL:
		if !d.hasRel {
			return nil, errNoTable
		}
		tag = elf.DT_RELENT
		tab.Addr, tab.Size, tab.EntSize = d.rel, d.relsz, d.relent
	case reloc.RELA:
		if !d.hasRela {
			return nil, errNoTable
		}
		tag = elf.DT_RELAENT
		tab.Addr, tab.Size, tab.EntSize = d.rela, d.relasz, d.relaent
	default:
		return nil, fmt.Errorf("unknown relocation kind %v", kind)
	}

	if tab.Size == 0 {
		return nil, fmt.Errorf("%w: empty %v table at %#x", ErrInvalidFormat, kind, tab.Addr)
	}
	if want := reloc.EntrySize(img.class, kind); tab.EntSize != want {
		return nil, fmt.Errorf("%w: %v is %d, expected %d",
			ErrInvalidFormat, tag, tab.EntSize, want)
	}
	if tab.Size%tab.EntSize != 0 {
		return nil, fmt.Errorf("%w: %v table size %#x is not a multiple of %d",
			ErrInvalidFormat, kind, tab.Size, tab.EntSize)
	}
	tab.Addr += img.relocOffset
	if !tab.Contains(tab.Addr, tab.Size) {
		return nil, fmt.Errorf("%w: %v table at %#x size %#x outside of loaded image",
			ErrInvalidFormat, kind, tab.Addr, tab.Size)
	}
	return tab, nil
}

// relocate applies the dynamic relocations of a loaded image.
func (img *Image) relocate() error {
	if !img.needsRelocation() {
		return nil
	}

	ph, addr, ok := img.findDynamic()
	if !ok {
		if img.typ == elf.ET_EXEC {
			log.Warnf("%s: no PT_DYNAMIC segment, cannot relocate to load address %#x",
				img.Name(), img.loadAddress)
		} else {
			log.Debugf("%s: no PT_DYNAMIC segment, no relocations", img.Name())
		}
		return nil
	}

	applied := false
	for _, kind := range []reloc.Kind{reloc.REL, reloc.RELA} {
		tab, err := img.parseDynamic(&ph, addr, kind)
		if errors.Is(err, errNoTable) {
			continue
		}
		if err != nil {
			return err
		}
		log.Debugf("Applying %d %v relocations at %#x, offset %#x",
			tab.Len(), kind, tab.Addr, tab.Offset)
		if err = img.applier.Apply(img.mem, tab); err != nil {
			return fmt.Errorf("failed to apply %v relocations: %w", kind, err)
		}
		applied = true
	}
	if !applied {
		log.Debugf("%s: dynamic section without relocation tables", img.Name())
	}
	return nil
}
