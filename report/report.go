// Package report renders simulation results as JSON, mirroring the
// field shapes of original_source/.../JsonOutput.hpp but built on
// encoding/json instead of hand-rolled stream writers.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ftahirops/cacheexplorer/engine"
	"github.com/ftahirops/cacheexplorer/model"
)

// CacheLevelReport is one cache level's hit/miss/3C breakdown.
type CacheLevelReport struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Writebacks    uint64  `json:"writebacks"`
	Invalidations uint64  `json:"invalidations"`
	Compulsory    uint64  `json:"compulsory"`
	Capacity      uint64  `json:"capacity"`
	Conflict      uint64  `json:"conflict"`
}

func cacheLevelReport(s model.CacheStats) CacheLevelReport {
	return CacheLevelReport{
		Hits: s.Hits, Misses: s.Misses, HitRate: s.HitRate(),
		Writebacks: s.Writebacks, Invalidations: s.Invalidations,
		Compulsory: s.Compulsory, Capacity: s.Capacity, Conflict: s.Conflict,
	}
}

// TimingReport summarizes cycle accounting.
type TimingReport struct {
	TotalCycles    uint64  `json:"total_cycles"`
	TotalAccesses  uint64  `json:"total_accesses"`
	AverageLatency float64 `json:"average_latency"`
	L1HitCycles    uint64  `json:"l1_hit_cycles"`
	L2HitCycles    uint64  `json:"l2_hit_cycles"`
	L3HitCycles    uint64  `json:"l3_hit_cycles"`
	MemoryCycles   uint64  `json:"memory_cycles"`
	TLBMissCycles  uint64  `json:"tlb_miss_cycles"`
}

func timingReport(t model.TimingStats) TimingReport {
	return TimingReport{
		TotalCycles: t.TotalCycles, TotalAccesses: t.TotalAccesses, AverageLatency: t.AverageLatency(),
		L1HitCycles: t.L1HitCycles, L2HitCycles: t.L2HitCycles, L3HitCycles: t.L3HitCycles,
		MemoryCycles: t.MemoryCycles, TLBMissCycles: t.TLBMissCycles,
	}
}

// SourceLineReport is one hot-line entry.
type SourceLineReport struct {
	File     string  `json:"file"`
	Line     uint32  `json:"line"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	MissRate float64 `json:"miss_rate"`
	Threads  int     `json:"threads,omitempty"`
}

func sourceLineReport(s model.SourceStats) SourceLineReport {
	return SourceLineReport{
		File: s.File, Line: s.Line, Hits: s.Hits, Misses: s.Misses,
		MissRate: s.MissRate(), Threads: len(s.Threads),
	}
}

// FalseSharingReportJSON mirrors model.FalseSharingReport for output.
type FalseSharingReportJSON struct {
	CacheLineAddr     string                   `json:"cache_line_addr"`
	InvalidationCount uint32                   `json:"invalidation_count"`
	Accesses          []FalseSharingAccessJSON `json:"accesses"`
}

type FalseSharingAccessJSON struct {
	ThreadID   uint32 `json:"thread_id"`
	ByteOffset uint32 `json:"byte_offset"`
	IsWrite    bool   `json:"is_write"`
	File       string `json:"file,omitempty"`
	Line       uint32 `json:"line,omitempty"`
}

func falseSharingReport(r model.FalseSharingReport) FalseSharingReportJSON {
	accesses := make([]FalseSharingAccessJSON, 0, len(r.Accesses))
	for _, a := range r.Accesses {
		accesses = append(accesses, FalseSharingAccessJSON{
			ThreadID: a.ThreadID, ByteOffset: a.ByteOffset, IsWrite: a.IsWrite,
			File: a.File, Line: a.Line,
		})
	}
	return FalseSharingReportJSON{
		CacheLineAddr:     fmt.Sprintf("0x%x", r.CacheLineAddr),
		InvalidationCount: r.InvalidationCount,
		Accesses:          accesses,
	}
}

// SuggestionReport mirrors engine.OptimizationSuggestion.
type SuggestionReport struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Location string `json:"location"`
	Message  string `json:"message"`
	Fix      string `json:"fix"`
}

func suggestionReport(s engine.OptimizationSuggestion) SuggestionReport {
	return SuggestionReport{Type: s.Type, Severity: s.Severity, Location: s.Location, Message: s.Message, Fix: s.Fix}
}

// SingleCoreReport is the top-level document for a single-core run.
type SingleCoreReport struct {
	L1D         CacheLevelReport   `json:"l1d"`
	L1I         CacheLevelReport   `json:"l1i"`
	L2          CacheLevelReport   `json:"l2"`
	L3          *CacheLevelReport  `json:"l3,omitempty"`
	Timing      TimingReport       `json:"timing"`
	HotLines    []SourceLineReport `json:"hot_lines"`
	Suggestions []SuggestionReport `json:"suggestions"`
}

// BuildSingleCoreReport assembles a SingleCoreReport from a
// TraceProcessor's accumulated statistics.
func BuildSingleCoreReport(p *engine.TraceProcessor, hotLineLimit int) SingleCoreReport {
	stats := p.GetStats()
	hot := p.GetHotLines(hotLineLimit)

	hotReports := make([]SourceLineReport, 0, len(hot))
	for _, h := range hot {
		hotReports = append(hotReports, sourceLineReport(h))
	}

	suggestions := engine.SuggestOptimizationsSingleCore(hot, stats.L1D, stats.L2)
	suggestionReports := make([]SuggestionReport, 0, len(suggestions))
	for _, s := range suggestions {
		suggestionReports = append(suggestionReports, suggestionReport(s))
	}

	doc := SingleCoreReport{
		L1D: cacheLevelReport(stats.L1D), L1I: cacheLevelReport(stats.L1I), L2: cacheLevelReport(stats.L2),
		Timing: timingReport(stats.Timing), HotLines: hotReports, Suggestions: suggestionReports,
	}
	if stats.HasL3 {
		l3 := cacheLevelReport(stats.L3)
		doc.L3 = &l3
	}
	return doc
}

// MultiCoreReport is the top-level document for a multi-core run.
type MultiCoreReport struct {
	L1PerCore              []CacheLevelReport       `json:"l1_per_core"`
	L2                     CacheLevelReport         `json:"l2"`
	L3                     *CacheLevelReport        `json:"l3,omitempty"`
	CoherenceInvalidations uint64                   `json:"coherence_invalidations"`
	FalseSharingEvents     uint64                   `json:"false_sharing_events"`
	HotLines               []SourceLineReport       `json:"hot_lines"`
	FalseSharingReports    []FalseSharingReportJSON `json:"false_sharing_reports"`
	Suggestions            []SuggestionReport       `json:"suggestions"`
}

// BuildMultiCoreReport assembles a MultiCoreReport from a
// MultiCoreTraceProcessor's accumulated statistics.
func BuildMultiCoreReport(p *engine.MultiCoreTraceProcessor, hotLineLimit int, lineSize int) MultiCoreReport {
	stats := p.GetStats()
	hot := p.GetHotLines(hotLineLimit)
	fsReports := p.GetFalseSharingReports()

	hotReports := make([]SourceLineReport, 0, len(hot))
	for _, h := range hot {
		hotReports = append(hotReports, sourceLineReport(h))
	}
	fsJSON := make([]FalseSharingReportJSON, 0, len(fsReports))
	for _, r := range fsReports {
		fsJSON = append(fsJSON, falseSharingReport(r))
	}

	suggestions := engine.SuggestOptimizations(fsReports, hot, stats, lineSize)
	suggestionReports := make([]SuggestionReport, 0, len(suggestions))
	for _, s := range suggestions {
		suggestionReports = append(suggestionReports, suggestionReport(s))
	}

	perCore := make([]CacheLevelReport, 0, len(stats.L1PerCore))
	for _, c := range stats.L1PerCore {
		perCore = append(perCore, cacheLevelReport(c))
	}

	doc := MultiCoreReport{
		L1PerCore: perCore, L2: cacheLevelReport(stats.L2),
		CoherenceInvalidations: stats.CoherenceInvalidations, FalseSharingEvents: stats.FalseSharingEvents,
		HotLines: hotReports, FalseSharingReports: fsJSON, Suggestions: suggestionReports,
	}
	if stats.HasL3 {
		l3 := cacheLevelReport(stats.L3)
		doc.L3 = &l3
	}
	return doc
}

// WriteJSON marshals v as indented JSON to w.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
