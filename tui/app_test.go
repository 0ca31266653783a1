package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ftahirops/cacheexplorer/engine"
	"github.com/ftahirops/cacheexplorer/model"
	"github.com/ftahirops/cacheexplorer/trace"
)

func singleCoreHierarchyConfig() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 1024, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 4096, Associativity: 4, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{L1Data: l1, L1Inst: l1, L2: l2, InclusionPolicy: model.Inclusive, Latency: model.DefaultLatencyConfig()}
}

func TestCollectBatchProcessesUpToBatchSize(t *testing.T) {
	p, err := engine.NewTraceProcessor(singleCoreHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	events := trace.Generate(trace.PatternSequential, trace.GeneratorConfig{Count: 250, ElemSize: 4})
	src := trace.NewSliceSource(events)
	runner := NewSingleCoreRunner(p)

	cmd := collectBatch(src, runner, 100)
	msg := cmd()
	batch, ok := msg.(batchMsg)
	if !ok {
		t.Fatalf("msg type = %T, want batchMsg", msg)
	}
	if batch.done {
		t.Fatal("should not be done after consuming only 100 of 250 events")
	}
	if batch.snap.EventsProcessed != 100 {
		t.Fatalf("EventsProcessed = %d, want 100", batch.snap.EventsProcessed)
	}
}

func TestCollectBatchReportsDoneAtEndOfStream(t *testing.T) {
	p, err := engine.NewTraceProcessor(singleCoreHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	events := trace.Generate(trace.PatternSequential, trace.GeneratorConfig{Count: 10, ElemSize: 4})
	src := trace.NewSliceSource(events)
	runner := NewSingleCoreRunner(p)

	cmd := collectBatch(src, runner, 100)
	msg := cmd().(batchMsg)
	if !msg.done {
		t.Fatal("want done=true once the source is exhausted")
	}
	if msg.snap.EventsProcessed != 10 {
		t.Fatalf("EventsProcessed = %d, want 10", msg.snap.EventsProcessed)
	}
}

func TestModelViewRendersHitRates(t *testing.T) {
	m := NewModel(trace.NewSliceSource(nil), nil, 10, time.Millisecond)
	m.snap = Snapshot{EventsProcessed: 42, L1HitRate: 0.91, L2HitRate: 0.5}
	out := m.View()
	if !strings.Contains(out, "91.0%") {
		t.Fatalf("View() = %q, want it to contain the L1 hit rate", out)
	}
	if !strings.Contains(out, "42") {
		t.Fatal("View() should report events processed")
	}
}

func TestModelUpdateQuitsOnQ(t *testing.T) {
	m := NewModel(trace.NewSliceSource(nil), nil, 10, time.Millisecond)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("want a quit command")
	}
	if !updated.(Model).quitting {
		t.Fatal("want quitting=true after 'q'")
	}
}

func TestMultiCoreRunnerAggregatesPerCoreHitRate(t *testing.T) {
	l1 := model.CacheConfig{SizeBytes: 1024, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 4096, Associativity: 4, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	p, err := engine.NewMultiCoreTraceProcessor(2, l1, l2, model.CacheConfig{}, false, model.PrefetchNone, 1)
	if err != nil {
		t.Fatal(err)
	}
	runner := NewMultiCoreRunner(p)
	snap := runner.ProcessBatch([]model.TraceEvent{
		{Address: 0x1000, Size: 4, ThreadID: 1},
		{Address: 0x1000, Size: 4, ThreadID: 1},
	})
	if !snap.MultiCore {
		t.Fatal("MultiCore flag should be set")
	}
	if snap.EventsProcessed != 2 {
		t.Fatalf("EventsProcessed = %d, want 2", snap.EventsProcessed)
	}
}
