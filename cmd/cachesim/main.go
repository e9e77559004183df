// Command cachesim replays a trace file through the cache engine and prints
// the statistics report: it parses flags and an optional config file, feeds
// the trace through the engine, and renders the final report.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/trace"
)

// fileConfig is the JSON-with-comments config file shape. Pointer fields
// distinguish "not set" from "set to zero" so the config file only
// overrides the knobs it actually mentions.
type fileConfig struct {
	BlockSize    *int  `json:"block_size,omitempty"`
	Size         *int  `json:"size,omitempty"`
	ISize        *int  `json:"isize,omitempty"`
	DSize        *int  `json:"dsize,omitempty"`
	Assoc        *int  `json:"assoc,omitempty"`
	WriteThrough *bool `json:"write_through,omitempty"`
	NoWriteAlloc *bool `json:"no_write_alloc,omitempty"`
}

// loadFileConfig reads and standardizes a JSONC config file, tolerating
// comments and trailing commas the way calvinalkan-agent-task's config
// loader does.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fc, fmt.Errorf("decoding config %s: %w", path, err)
	}

	return fc, nil
}

func applyFileConfig(e *cache.Ensemble, fc fileConfig) error {
	sets := []struct {
		val *int
		p   cache.Param
	}{
		{fc.BlockSize, cache.BlockSize},
		{fc.Size, cache.USize},
		{fc.ISize, cache.ISize},
		{fc.DSize, cache.DSize},
		{fc.Assoc, cache.Assoc},
	}

	for _, s := range sets {
		if s.val == nil {
			continue
		}

		if err := e.SetParam(s.p, *s.val); err != nil {
			return err
		}
	}

	if fc.WriteThrough != nil && *fc.WriteThrough {
		if err := e.SetParam(cache.WriteThrough, 0); err != nil {
			return err
		}
	}

	if fc.NoWriteAlloc != nil && *fc.NoWriteAlloc {
		if err := e.SetParam(cache.NoWriteAlloc, 0); err != nil {
			return err
		}
	}

	return nil
}

func run(args []string, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("cachesim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "path to a JSONC cache configuration file")
	blockSize := fs.Int("block-size", 0, "block size in bytes (overrides config/defaults)")
	size := fs.Int("size", 0, "unified cache size in bytes (overrides config/defaults)")
	iSize := fs.Int("isize", 0, "split instruction-cache size in bytes")
	dSize := fs.Int("dsize", 0, "split data-cache size in bytes")
	assoc := fs.Int("assoc", 0, "associativity (overrides config/defaults)")
	writeThrough := fs.Bool("writethrough", false, "use write-through instead of write-back")
	noWriteAlloc := fs.Bool("noalloc", false, "use no-write-allocate instead of write-allocate")
	out := fs.String("out", "", "write the report to this file instead of stdout")
	saveConfig := fs.String("save-config", "", "write the resolved effective configuration to this file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: cachesim [flags] <trace-file>")
		fs.PrintDefaults()

		return 2
	}

	e := cache.NewEnsemble()

	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, "cachesim:", err)
			return 1
		}

		if err := applyFileConfig(e, fc); err != nil {
			fmt.Fprintln(stderr, "cachesim:", err)
			return 1
		}
	}

	if err := applyCLIOverrides(e, fs, blockSize, size, iSize, dSize, assoc, writeThrough, noWriteAlloc); err != nil {
		fmt.Fprintln(stderr, "cachesim:", err)
		return 1
	}

	if err := e.Init(); err != nil {
		fmt.Fprintln(stderr, "cachesim: configuration error:", err)
		return 1
	}

	if *saveConfig != "" {
		if err := writeEffectiveConfig(*saveConfig, e); err != nil {
			fmt.Fprintln(stderr, "cachesim:", err)
			return 1
		}
	}

	traceFile, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "cachesim:", err)
		return 1
	}
	defer traceFile.Close()

	sc := trace.NewScanner(traceFile)
	for sc.Scan() {
		t := sc.Tuple()
		if err := e.PerformAccess(t.Addr, t.Type); err != nil {
			fmt.Fprintln(stderr, "cachesim: driver error:", err)
			return 1
		}
	}

	if err := sc.Err(); err != nil {
		fmt.Fprintln(stderr, "cachesim:", err)
		return 1
	}

	e.Flush()

	var buf bytes.Buffer
	if err := e.Report(&buf); err != nil {
		fmt.Fprintln(stderr, "cachesim:", err)
		return 1
	}

	if *out == "" {
		fmt.Fprint(stdout, buf.String())
		return 0
	}

	if err := atomic.WriteFile(*out, &buf); err != nil {
		fmt.Fprintln(stderr, "cachesim:", err)
		return 1
	}

	return 0
}

func applyCLIOverrides(
	e *cache.Ensemble, fs *flag.FlagSet,
	blockSize, size, iSize, dSize, assoc *int,
	writeThrough, noWriteAlloc *bool,
) error {
	overrides := []struct {
		name string
		val  int
		p    cache.Param
	}{
		{"block-size", *blockSize, cache.BlockSize},
		{"size", *size, cache.USize},
		{"isize", *iSize, cache.ISize},
		{"dsize", *dSize, cache.DSize},
		{"assoc", *assoc, cache.Assoc},
	}

	for _, o := range overrides {
		if !fs.Changed(o.name) {
			continue
		}

		if err := e.SetParam(o.p, o.val); err != nil {
			return err
		}
	}

	if fs.Changed("writethrough") && *writeThrough {
		if err := e.SetParam(cache.WriteThrough, 0); err != nil {
			return err
		}
	}

	if fs.Changed("noalloc") && *noWriteAlloc {
		if err := e.SetParam(cache.NoWriteAlloc, 0); err != nil {
			return err
		}
	}

	return nil
}

// writeEffectiveConfig renders e's settings header and saves it atomically,
// giving operators a durable record of what configuration actually ran.
func writeEffectiveConfig(path string, e *cache.Ensemble) error {
	var buf bytes.Buffer
	if err := e.Report(&buf); err != nil {
		return err
	}

	settings := strings.SplitN(buf.String(), "\n\n", 2)[0] + "\n"

	return atomic.WriteFile(path, strings.NewReader(settings))
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
