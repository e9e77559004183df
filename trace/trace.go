// Package trace reads the (address, access_type) tuples the cache engine
// consumes, decoupling the engine from any particular on-disk trace format.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/cache"
)

// Tuple is one trace record: an access type and the address it targets.
type Tuple struct {
	Type cache.AccessType
	Addr uint32
}

// Scanner reads Tuples from a line-oriented trace. Each non-blank,
// non-comment line is "<type> <address>": type is one of the mnemonics
// I/L/S (instruction fetch, data load, data store) or their numeric codes
// (0/1/2); address is decimal or 0x-prefixed hex.
//
// Lines starting with '#' are comments. Blank lines are skipped.
type Scanner struct {
	s    *bufio.Scanner
	line int
	err  error
	cur  Tuple
}

// NewScanner wraps r for tuple-at-a-time reading.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{s: bufio.NewScanner(r)}
}

// Scan advances to the next tuple, returning false at EOF or on a parse
// error (retrievable via Err).
func (s *Scanner) Scan() bool {
	for s.s.Scan() {
		s.line++

		text := strings.TrimSpace(s.s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		tup, err := parseLine(text)
		if err != nil {
			s.err = fmt.Errorf("trace line %d: %w", s.line, err)
			return false
		}

		s.cur = tup

		return true
	}

	s.err = s.s.Err()

	return false
}

// Tuple returns the tuple produced by the most recent successful Scan.
func (s *Scanner) Tuple() Tuple {
	return s.cur
}

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

func parseLine(text string) (Tuple, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Tuple{}, fmt.Errorf("want 2 fields, got %d: %q", len(fields), text)
	}

	t, err := parseAccessType(fields[0])
	if err != nil {
		return Tuple{}, err
	}

	addr, err := strconv.ParseUint(fields[1], 0, 32)
	if err != nil {
		return Tuple{}, fmt.Errorf("bad address %q: %w", fields[1], err)
	}

	return Tuple{Type: t, Addr: uint32(addr)}, nil
}

func parseAccessType(field string) (cache.AccessType, error) {
	switch strings.ToUpper(field) {
	case "I", "0":
		return cache.InstLoad, nil
	case "L", "1":
		return cache.DataLoad, nil
	case "S", "2":
		return cache.DataStore, nil
	default:
		return 0, fmt.Errorf("unrecognised access type %q", field)
	}
}
