package cache

import (
	"fmt"
	"io"
)

// Report renders the fixed-format cache settings and statistics report.
func (e *Ensemble) Report(w io.Writer) error {
	if err := e.reportSettings(w); err != nil {
		return err
	}

	return e.reportStatistics(w)
}

func (e *Ensemble) reportSettings(w io.Writer) error {
	var err error

	writeln := func(format string, args ...any) {
		if err != nil {
			return
		}

		_, err = fmt.Fprintf(w, format+"\n", args...)
	}

	writeln("*** CACHE SETTINGS ***")

	if e.split {
		writeln("  Split I- D-cache")
		writeln("  I-cache size: %d", e.iSize)
		writeln("  D-cache size: %d", e.dSize)
	} else {
		writeln("  Unified I- D-cache")
		writeln("  Size: %d", e.uSize)
	}

	writeln("  Associativity: %d", e.assoc)
	writeln("  Block size: %d", e.blockSize)

	writePolicy := "WRITE BACK"
	if !e.writeBack {
		writePolicy = "WRITE THROUGH"
	}

	writeln("  Write policy: %s", writePolicy)

	allocPolicy := "WRITE ALLOCATE"
	if !e.writeAlloc {
		allocPolicy = "WRITE NO ALLOCATE"
	}

	writeln("  Allocation policy: %s", allocPolicy)

	return err
}

func (e *Ensemble) reportStatistics(w io.Writer) error {
	var err error

	writeln := func(format string, args ...any) {
		if err != nil {
			return
		}

		_, err = fmt.Fprintf(w, format+"\n", args...)
	}

	writeln("")
	writeln("*** CACHE STATISTICS ***")

	writeln(" INSTRUCTIONS")
	writeBucket(&err, w, e.Inst)

	writeln(" DATA")
	writeBucket(&err, w, e.Data)

	writeln(" TRAFFIC (in words)")
	writeln("  demand fetch:  %d", e.Inst.DemandFetches+e.Data.DemandFetches)
	writeln("  copies back:   %d", e.Inst.CopiesBack+e.Data.CopiesBack)

	return err
}

// writeBucket renders one statistics bucket's four lines.
func writeBucket(errp *error, w io.Writer, s Stats) {
	writeln := func(format string, args ...any) {
		if *errp != nil {
			return
		}

		_, *errp = fmt.Fprintf(w, format+"\n", args...)
	}

	writeln("  accesses:  %d", s.Accesses)
	writeln("  misses:    %d", s.Misses)

	if s.Accesses == 0 {
		writeln("  miss rate: 0 (0)")
	} else {
		writeln("  miss rate: %.4f (hit rate %.4f)", s.MissRate(), s.HitRate())
	}

	writeln("  replace:   %d", s.Replacements)
}
