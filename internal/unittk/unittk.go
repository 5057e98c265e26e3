// Package unittk parses and formats the human-readable byte-size strings
// the command-line collaborator accepts (e.g. "4k", "10GiB", "1.5T").
// ParseBytes is used only by cmd/storagebench's flag layer, so unit parsing
// stays out of the wire configuration format (spec.md's Design Notes
// boundary); FormatBytes is also used by the coordinator's result table.
package unittk

import (
	"fmt"
	"strconv"
	"strings"
)

var binarySuffixes = map[string]uint64{
	"":   1,
	"b":  1,
	"k":  1 << 10,
	"ki": 1 << 10,
	"kib": 1 << 10,
	"m":  1 << 20,
	"mi": 1 << 20,
	"mib": 1 << 20,
	"g":  1 << 30,
	"gi": 1 << 30,
	"gib": 1 << 30,
	"t":  1 << 40,
	"ti": 1 << 40,
	"tib": 1 << 40,
	"p":  1 << 50,
	"pi": 1 << 50,
	"pib": 1 << 50,
	"e":  1 << 60,
	"ei": 1 << 60,
	"eib": 1 << 60,
}

// ParseBytes parses a human-readable byte-size string such as "128k",
// "4 MiB", or "1073741824" into a byte count. Suffixes are case-insensitive
// and the binary (power-of-1024) interpretation is used for every letter
// suffix, matching original_source's UnitTk.cpp convention of treating "k"
// and "ki" identically.
func ParseBytes(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("unittk: empty size string")
	}
	i := 0
	for i < len(s) && (s[i] == '.' || s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	numPart := s[:i]
	suffix := strings.ToLower(strings.TrimSpace(s[i:]))
	mult, ok := binarySuffixes[suffix]
	if !ok {
		return 0, fmt.Errorf("unittk: unrecognized size suffix %q", suffix)
	}
	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("unittk: invalid numeric part %q: %w", numPart, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("unittk: negative size %q", s)
	}
	return uint64(val * float64(mult)), nil
}

// FormatBytes renders n using the largest binary suffix that keeps the
// value at or above 1, matching the table rendering the coordinator uses
// for throughput figures.
func FormatBytes(n uint64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	f := float64(n)
	idx := 0
	for f >= 1024 && idx < len(units)-1 {
		f /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return fmt.Sprintf("%.2f %s", f, units[idx])
}
