package tui

import "github.com/ftahirops/cacheexplorer/model"

// Snapshot is the subset of running statistics the dashboard renders,
// taken after each batch of Process calls and handed to the UI as a
// message by the bubbletea command that processed the batch.
type Snapshot struct {
	EventsProcessed        int
	L1HitRate              float64
	L2HitRate              float64
	L3HitRate              float64
	HasL3                  bool
	HotLines               []model.SourceStats
	MultiCore              bool
	FalseSharingEvents     uint64
	CoherenceInvalidations uint64
}

// Runner advances a simulation by one batch of trace events and
// reports the statistics to render. NewSingleCoreRunner and
// NewMultiCoreRunner adapt engine.TraceProcessor and
// engine.MultiCoreTraceProcessor to this interface.
type Runner interface {
	ProcessBatch(events []model.TraceEvent) Snapshot
}
