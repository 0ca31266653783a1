package engine

import (
	"testing"

	"github.com/ftahirops/cacheexplorer/model"
)

func sampleEvents(n int) []model.TraceEvent {
	events := make([]model.TraceEvent, n)
	for i := range events {
		events[i] = model.TraceEvent{Address: uint64(i * 64), Size: 4, ThreadID: 1}
	}
	return events
}

func TestSegmentCacheMissThenHit(t *testing.T) {
	sc := NewSegmentCache(4, 10)
	events := sampleEvents(8)

	if _, ok := sc.Lookup(events, 0, 7); ok {
		t.Fatal("want miss on an empty cache")
	}
	sc.Store(events, 0, 7, CachedSegmentResult{SegmentLength: 4})

	result, ok := sc.Lookup(events, 0, 7)
	if !ok {
		t.Fatal("want hit after Store")
	}
	if result.SegmentLength != 4 {
		t.Fatalf("result.SegmentLength = %d, want 4", result.SegmentLength)
	}
	if sc.Hits() != 1 || sc.Misses() != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", sc.Hits(), sc.Misses())
	}
}

func TestSegmentCacheDistinctStateHashesAreIndependent(t *testing.T) {
	sc := NewSegmentCache(4, 10)
	events := sampleEvents(8)

	sc.Store(events, 0, 1, CachedSegmentResult{SegmentLength: 4})
	if _, ok := sc.Lookup(events, 0, 2); ok {
		t.Fatal("a different cache-state hash must not hit a stored segment")
	}
}

func TestSegmentCachePatternHashExcludesSourceLocation(t *testing.T) {
	a := []model.TraceEvent{{Address: 0x1000, Size: 4, ThreadID: 1, File: "a.c", Line: 1}}
	b := []model.TraceEvent{{Address: 0x1000, Size: 4, ThreadID: 1, File: "b.c", Line: 99}}
	if HashPattern(a, 0, 1) != HashPattern(b, 0, 1) {
		t.Fatal("pattern hash must be identical regardless of file/line")
	}
}

func TestSegmentCacheEvictsLRUAtCapacity(t *testing.T) {
	sc := NewSegmentCache(1, 2)
	events := sampleEvents(4)

	sc.Store(events, 0, 1, CachedSegmentResult{})
	sc.Store(events, 1, 1, CachedSegmentResult{})
	// Touch segment 0 so segment 1 becomes the LRU entry.
	sc.Lookup(events, 0, 1)
	sc.Store(events, 2, 1, CachedSegmentResult{})

	if sc.Size() != 2 {
		t.Fatalf("size = %d, want 2 (capacity enforced)", sc.Size())
	}
	if _, ok := sc.Lookup(events, 1, 1); ok {
		t.Fatal("segment 1 should have been evicted as least-recently-used")
	}
	if _, ok := sc.Lookup(events, 0, 1); !ok {
		t.Fatal("segment 0 was touched more recently and should survive")
	}
}

func TestSegmentCacheTooShortSegmentIsNoop(t *testing.T) {
	sc := NewSegmentCache(20, 10)
	events := sampleEvents(5)
	sc.Store(events, 0, 1, CachedSegmentResult{})
	if sc.Size() != 0 {
		t.Fatalf("size = %d, want 0: fewer than SegmentLength events remain", sc.Size())
	}
}
