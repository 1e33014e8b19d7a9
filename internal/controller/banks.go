// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/barebox/barebox-sub023/internal/controller"

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultBanks is a single 256 MiB bank at 1 GiB.
const DefaultBanks = "ram0=0x40000000:256M"

// Bank describes one simulated RAM bank.
type Bank struct {
	Name  string
	Start uint64
	Size  uint64
}

// ParseBanks parses a comma separated list of name=start:size entries.
// Numbers take any Go integer prefix, sizes also a K, M or G suffix.
func ParseBanks(s string) ([]Bank, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("no RAM banks given")
	}

	var banks []Bank
	for i, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		name, rng, ok := strings.Cut(entry, "=")
		if !ok {
			name, rng = fmt.Sprintf("ram%d", i), entry
		}
		start, size, ok := strings.Cut(rng, ":")
		if !ok {
			return nil, fmt.Errorf("bank %q: expected start:size", entry)
		}
		b := Bank{Name: name}
		var err error
		if b.Start, err = parseSize(start); err != nil {
			return nil, fmt.Errorf("bank %q: invalid start: %w", entry, err)
		}
		if b.Size, err = parseSize(size); err != nil {
			return nil, fmt.Errorf("bank %q: invalid size: %w", entry, err)
		}
		if b.Size == 0 {
			return nil, fmt.Errorf("bank %q: empty", entry)
		}
		banks = append(banks, b)
	}
	return banks, nil
}

func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	shift := 0
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		}
		if shift != 0 {
			s = s[:n-1]
		}
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	if v<<shift>>shift != v {
		return 0, strconv.ErrRange
	}
	return v << shift, nil
}
