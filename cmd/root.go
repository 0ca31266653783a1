// Package cmd implements the cacheexplorer command-line interface:
// flag parsing, hierarchy construction from a preset or custom
// geometry, and dispatch to batch, streaming, or server-backed
// simulation.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	cecfg "github.com/ftahirops/cacheexplorer/config"
	"github.com/ftahirops/cacheexplorer/engine"
	"github.com/ftahirops/cacheexplorer/model"
	"github.com/ftahirops/cacheexplorer/presets"
	"github.com/ftahirops/cacheexplorer/report"
	"github.com/ftahirops/cacheexplorer/statsserver"
	"github.com/ftahirops/cacheexplorer/trace"
	"github.com/ftahirops/cacheexplorer/tui"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// Config holds CLI configuration, one field per flag (spec.md §6 plus
// SPEC_FULL.md §8's supplemented flags).
type Config struct {
	Preset         string
	Cores          int
	Prefetch       string
	PrefetchDegree int
	Verbose        bool
	JSONOutput     bool
	Stream         bool
	Fast           bool

	L1Size, L1Assoc, L1Line int
	L2Size, L2Assoc         int
	L3Size, L3Assoc         int

	Demo       string
	ServeAddr  string
	OutputPath string

	TracePath string
}

// ExitCodeError signals a non-zero exit code without calling os.Exit
// directly.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

func printUsage() {
	fmt.Fprintf(os.Stderr, `cacheexplorer v%s — set-associative cache hierarchy trace simulator

Usage:
  cacheexplorer [OPTIONS] [TRACE_FILE]

Options:
  -config NAME       Hardware preset or "custom" (default: intel-12th-gen)
                     Presets: %s
  -cores N           Number of cores; >1 selects the multi-core hierarchy (default: 1)
  -prefetch POLICY   none, next-line, stream, stride, adaptive, intel (default: none)
  -prefetch-degree N Prefetch degree (default: 1)
  -verbose           Emit per-event diagnostics to stderr
  -json              Emit a JSON report instead of a text summary
  -stream            Run the live bubbletea dashboard while processing
  -fast              Disable 3C miss classification
  -l1-size BYTES      Override L1 size (applied on top of the selected preset)
  -l1-assoc N         Override L1 associativity
  -l1-line BYTES      Override L1 line size
  -l2-size BYTES      Override L2 size
  -l2-assoc N         Override L2 associativity
  -l3-size BYTES      Override L3 size (0 disables L3)
  -l3-assoc N         Override L3 associativity
  -demo PATTERN       Generate a synthetic trace instead of reading one
                     Patterns: %s
  -serve ADDR        Serve running stats as JSON at http://ADDR/stats
  -output PATH       Write the report to PATH instead of stdout

Positional:
  TRACE_FILE         Path to a trace file (wire format, spec §6); omitted reads stdin,
                     unless -demo is given.

Examples:
  cacheexplorer trace.txt
  cacheexplorer -demo false-sharing -cores 4 -json
  cacheexplorer -config rpi4 -stream trace.txt
`, Version, strings.Join(presets.Names(), ", "), joinPatterns())
}

func joinPatterns() string {
	names := make([]string, 0, len(trace.Patterns()))
	for _, p := range trace.Patterns() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Run parses flags and dispatches to the appropriate run mode. An
// ExitCodeError from Run should not be printed with an "Error:" prefix.
func Run() error {
	userCfg := cecfg.Load()

	var cfg Config
	flag.StringVar(&cfg.Preset, "config", userCfg.Preset, "hardware preset or \"custom\"")
	flag.IntVar(&cfg.Cores, "cores", userCfg.Cores, "number of cores")
	flag.StringVar(&cfg.Prefetch, "prefetch", userCfg.PrefetchPolicy, "prefetch policy")
	flag.IntVar(&cfg.PrefetchDegree, "prefetch-degree", userCfg.PrefetchDegree, "prefetch degree")
	flag.BoolVar(&cfg.Verbose, "verbose", userCfg.Verbose, "emit per-event diagnostics")
	flag.BoolVar(&cfg.JSONOutput, "json", userCfg.JSONOutput, "emit a JSON report")
	flag.BoolVar(&cfg.Stream, "stream", false, "run the live dashboard")
	flag.BoolVar(&cfg.Fast, "fast", false, "disable 3C miss classification")
	flag.IntVar(&cfg.L1Size, "l1-size", 0, "override L1 size in bytes")
	flag.IntVar(&cfg.L1Assoc, "l1-assoc", 0, "override L1 associativity")
	flag.IntVar(&cfg.L1Line, "l1-line", 0, "override L1 line size in bytes")
	flag.IntVar(&cfg.L2Size, "l2-size", 0, "override L2 size in bytes")
	flag.IntVar(&cfg.L2Assoc, "l2-assoc", 0, "override L2 associativity")
	flag.IntVar(&cfg.L3Size, "l3-size", -1, "override L3 size in bytes (0 disables L3)")
	flag.IntVar(&cfg.L3Assoc, "l3-assoc", 0, "override L3 associativity")
	flag.StringVar(&cfg.Demo, "demo", "", "generate a synthetic trace pattern")
	flag.StringVar(&cfg.ServeAddr, "serve", userCfg.ServeAddr, "serve running stats as JSON")
	flag.StringVar(&cfg.OutputPath, "output", "", "write the report to a file")

	flag.Usage = printUsage
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		cfg.TracePath = args[0]
	}

	hierarchyCfg, err := buildHierarchyConfig(cfg)
	if err != nil {
		return err
	}

	source, closer, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	pfPolicy := parsePrefetchPolicy(cfg.Prefetch)

	if cfg.Cores > 1 {
		return runMultiCore(cfg, hierarchyCfg, pfPolicy, source)
	}
	return runSingleCore(cfg, hierarchyCfg, pfPolicy, source)
}

func buildHierarchyConfig(cfg Config) (model.CacheHierarchyConfig, error) {
	base, ok := presets.Lookup(cfg.Preset)
	if !ok {
		if cfg.Preset != "custom" && cfg.Preset != "" {
			return model.CacheHierarchyConfig{}, fmt.Errorf("%w: unknown preset %q", model.ErrConfigInvalid, cfg.Preset)
		}
		base, _ = presets.Lookup(presets.Intel12thGen)
	}

	if cfg.L1Size > 0 {
		base.L1Data.SizeBytes = uint64(cfg.L1Size)
		base.L1Inst.SizeBytes = uint64(cfg.L1Size)
	}
	if cfg.L1Assoc > 0 {
		base.L1Data.Associativity = cfg.L1Assoc
		base.L1Inst.Associativity = cfg.L1Assoc
	}
	if cfg.L1Line > 0 {
		base.L1Data.LineSize = cfg.L1Line
		base.L1Inst.LineSize = cfg.L1Line
	}
	if cfg.L2Size > 0 {
		base.L2.SizeBytes = uint64(cfg.L2Size)
	}
	if cfg.L2Assoc > 0 {
		base.L2.Associativity = cfg.L2Assoc
	}
	if cfg.L3Size == 0 {
		base.HasL3 = false
	} else if cfg.L3Size > 0 {
		base.L3.SizeBytes = uint64(cfg.L3Size)
		base.HasL3 = true
	}
	if cfg.L3Assoc > 0 {
		base.L3.Associativity = cfg.L3Assoc
	}

	if err := base.L1Data.Validate(); err != nil {
		return model.CacheHierarchyConfig{}, err
	}
	if err := base.L2.Validate(); err != nil {
		return model.CacheHierarchyConfig{}, err
	}
	if base.HasL3 {
		if err := base.L3.Validate(); err != nil {
			return model.CacheHierarchyConfig{}, err
		}
	}
	return base, nil
}

func parsePrefetchPolicy(name string) model.PrefetchPolicy {
	switch name {
	case "next-line", "nextline":
		return model.PrefetchNextLine
	case "stream":
		return model.PrefetchStream
	case "stride":
		return model.PrefetchStride
	case "adaptive":
		return model.PrefetchAdaptive
	case "intel":
		return model.PrefetchIntel
	default:
		return model.PrefetchNone
	}
}

func buildSource(cfg Config) (trace.Source, func(), error) {
	if cfg.Demo != "" {
		events := trace.Generate(trace.Pattern(cfg.Demo), trace.GeneratorConfig{})
		if events == nil {
			return nil, nil, fmt.Errorf("unknown demo pattern %q", cfg.Demo)
		}
		return trace.NewSliceSource(events), nil, nil
	}

	onParseErr := func(err error) {
		if cfg.Verbose {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	if cfg.TracePath == "" {
		return trace.NewStdinSource(onParseErr), nil, nil
	}
	src, err := trace.OpenFileSource(cfg.TracePath, onParseErr)
	if err != nil {
		return nil, nil, err
	}
	return src, func() { src.Close() }, nil
}

// verboseEventLogger writes one line per cache-line access to stderr.
func verboseEventLogger() func(model.EventResult) {
	return func(r model.EventResult) {
		level := "mem"
		switch {
		case r.L1Hit:
			level = "l1"
		case r.L2Hit:
			level = "l2"
		case r.L3Hit:
			level = "l3"
		}
		loc := ""
		if r.File != "" {
			loc = fmt.Sprintf(" %s:%d", r.File, r.Line)
		}
		fmt.Fprintf(os.Stderr, "0x%x size=%d %s%s\n", r.LineBase, r.Size, level, loc)
	}
}

func runSingleCore(cfg Config, hierarchyCfg model.CacheHierarchyConfig, pfPolicy model.PrefetchPolicy, source trace.Source) error {
	processor, err := engine.NewTraceProcessor(hierarchyCfg)
	if err != nil {
		return err
	}
	processor.Hierarchy().SetFastMode(cfg.Fast)
	if pfPolicy != model.PrefetchNone {
		processor.EnablePrefetching(pfPolicy, cfg.PrefetchDegree)
	}
	if cfg.Verbose {
		processor.SetEventCallback(verboseEventLogger())
	}

	var srv *statsserver.Server
	if cfg.ServeAddr != "" {
		srv = statsserver.New(cfg.ServeAddr)
		errCh := srv.Serve()
		go func() {
			if err := <-errCh; err != nil {
				fmt.Fprintf(os.Stderr, "cacheexplorer: stats server failed: %v\n", err)
			}
		}()
		defer srv.Shutdown()
	}

	if cfg.Stream {
		runner := tui.NewSingleCoreRunner(processor)
		dash := tui.NewModel(source, runner, 200, 100*time.Millisecond)
		_, err := tea.NewProgram(dash).Run()
		if err != nil {
			return err
		}
	} else {
		for {
			event, ok, err := source.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			processor.Process(event)
			if srv != nil {
				srv.Update(report.BuildSingleCoreReport(processor, 20))
			}
		}
	}

	doc := report.BuildSingleCoreReport(processor, 20)
	return emitReport(cfg, doc)
}

func runMultiCore(cfg Config, hierarchyCfg model.CacheHierarchyConfig, pfPolicy model.PrefetchPolicy, source trace.Source) error {
	processor, err := engine.NewMultiCoreTraceProcessor(cfg.Cores, hierarchyCfg.L1Data, hierarchyCfg.L2, hierarchyCfg.L3, hierarchyCfg.HasL3, pfPolicy, cfg.PrefetchDegree)
	if err != nil {
		return err
	}
	processor.Hierarchy().SetFastMode(cfg.Fast)
	if cfg.Verbose {
		processor.SetEventCallback(verboseEventLogger())
	}

	var srv *statsserver.Server
	if cfg.ServeAddr != "" {
		srv = statsserver.New(cfg.ServeAddr)
		errCh := srv.Serve()
		go func() {
			if err := <-errCh; err != nil {
				fmt.Fprintf(os.Stderr, "cacheexplorer: stats server failed: %v\n", err)
			}
		}()
		defer srv.Shutdown()
	}

	if cfg.Stream {
		runner := tui.NewMultiCoreRunner(processor)
		dash := tui.NewModel(source, runner, 200, 100*time.Millisecond)
		_, err := tea.NewProgram(dash).Run()
		if err != nil {
			return err
		}
	} else {
		for {
			event, ok, err := source.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			processor.Process(event)
			if srv != nil {
				srv.Update(report.BuildMultiCoreReport(processor, 20, hierarchyCfg.L1Data.LineSize))
			}
		}
	}

	doc := report.BuildMultiCoreReport(processor, 20, hierarchyCfg.L1Data.LineSize)
	return emitReport(cfg, doc)
}

func emitReport(cfg Config, doc any) error {
	out := os.Stdout
	if cfg.OutputPath != "" {
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if cfg.JSONOutput || cfg.OutputPath != "" {
		return report.WriteJSON(out, doc)
	}
	switch d := doc.(type) {
	case report.SingleCoreReport:
		return report.WriteSingleCoreText(out, d)
	case report.MultiCoreReport:
		return report.WriteMultiCoreText(out, d)
	default:
		return report.WriteJSON(out, doc)
	}
}
