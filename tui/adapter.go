package tui

import (
	"github.com/ftahirops/cacheexplorer/engine"
	"github.com/ftahirops/cacheexplorer/model"
)

// singleCoreRunner adapts *engine.TraceProcessor to Runner.
type singleCoreRunner struct {
	processor *engine.TraceProcessor
	processed int
}

// NewSingleCoreRunner wraps p for the single-core dashboard.
func NewSingleCoreRunner(p *engine.TraceProcessor) Runner {
	return &singleCoreRunner{processor: p}
}

func (r *singleCoreRunner) ProcessBatch(events []model.TraceEvent) Snapshot {
	for _, e := range events {
		r.processor.Process(e)
	}
	r.processed += len(events)

	stats := r.processor.GetStats()
	snap := Snapshot{
		EventsProcessed: r.processed,
		L1HitRate:       stats.L1D.HitRate(),
		L2HitRate:       stats.L2.HitRate(),
		HasL3:           stats.HasL3,
		HotLines:        r.processor.GetHotLines(8),
	}
	if stats.HasL3 {
		snap.L3HitRate = stats.L3.HitRate()
	}
	return snap
}

// multiCoreRunner adapts *engine.MultiCoreTraceProcessor to Runner.
type multiCoreRunner struct {
	processor *engine.MultiCoreTraceProcessor
	processed int
}

// NewMultiCoreRunner wraps p for the multi-core dashboard.
func NewMultiCoreRunner(p *engine.MultiCoreTraceProcessor) Runner {
	return &multiCoreRunner{processor: p}
}

func (r *multiCoreRunner) ProcessBatch(events []model.TraceEvent) Snapshot {
	for _, e := range events {
		r.processor.Process(e)
	}
	r.processed += len(events)

	stats := r.processor.GetStats()
	var l1Hits, l1Misses uint64
	for _, c := range stats.L1PerCore {
		l1Hits += c.Hits
		l1Misses += c.Misses
	}
	l1Total := l1Hits + l1Misses
	l1Rate := 0.0
	if l1Total > 0 {
		l1Rate = float64(l1Hits) / float64(l1Total)
	}

	snap := Snapshot{
		EventsProcessed:        r.processed,
		L1HitRate:              l1Rate,
		L2HitRate:              stats.L2.HitRate(),
		HasL3:                  stats.HasL3,
		HotLines:               r.processor.GetHotLines(8),
		MultiCore:              true,
		FalseSharingEvents:     stats.FalseSharingEvents,
		CoherenceInvalidations: stats.CoherenceInvalidations,
	}
	if stats.HasL3 {
		snap.L3HitRate = stats.L3.HitRate()
	}
	return snap
}
