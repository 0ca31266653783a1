package engine

import (
	"testing"

	"github.com/ftahirops/cacheexplorer/model"
)

func testMultiCoreConfigs() (l1, l2, l3 model.CacheConfig) {
	l1 = model.CacheConfig{SizeBytes: 32 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 = model.CacheConfig{SizeBytes: 256 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l3 = model.CacheConfig{SizeBytes: 8 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	return
}

func TestCoreForThreadIsStableRoundRobin(t *testing.T) {
	l1, l2, l3 := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(2, l1, l2, l3, true, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	c1 := h.CoreForThread(10)
	c2 := h.CoreForThread(20)
	if c1 == c2 {
		t.Fatalf("first two distinct threads should map to distinct cores, got %d and %d", c1, c2)
	}
	if h.CoreForThread(10) != c1 {
		t.Fatal("thread->core mapping must be stable across calls")
	}
}

func TestWriteUpgradesL1HitToModified(t *testing.T) {
	l1, l2, l3 := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(1, l1, l2, l3, true, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	h.Read(0x1000, 1, 0, "", 0)
	h.Write(0x1000, 1, 0, "", 0)
	if got := h.l1s[0].GetCoherenceState(0x1000); got != model.StateModified {
		t.Fatalf("state = %v, want Modified", got)
	}
}

func TestCrossCoreWriteInvalidatesPeerAndCountsCoherence(t *testing.T) {
	l1, l2, l3 := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(2, l1, l2, l3, true, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	h.Write(0x1000, 1, 0, "a.c", 10) // thread 1 -> core 0
	h.Write(0x1000, 2, 0, "a.c", 10) // thread 2 -> core 1, invalidates core 0's copy

	if h.coherenceInvalidations == 0 {
		t.Fatal("want at least one coherence invalidation from the cross-core write")
	}
	if h.l1s[0].IsPresent(0x1000) {
		t.Fatal("core 0's copy should have been invalidated by core 1's exclusive request")
	}
}

// TestFalseSharingTwoThreads reproduces spec.md §8 scenario (d): two
// threads writing to distinct offsets of the same line.
func TestFalseSharingTwoThreads(t *testing.T) {
	l1, l2, l3 := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(2, l1, l2, l3, true, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 1000; i++ {
		h.Write(0x1000, 1, 0, "fs.c", 5)
		h.Write(0x1004, 2, 0, "fs.c", 6)
	}

	stats := h.Stats()
	if stats.FalseSharingEvents != 1 {
		t.Fatalf("false_sharing_events = %d, want 1", stats.FalseSharingEvents)
	}
	if stats.CoherenceInvalidations < 1999 {
		t.Fatalf("coherence_invalidations = %d, want >= 1999", stats.CoherenceInvalidations)
	}

	reports := h.GetFalseSharingReports()
	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d, want 1", len(reports))
	}
	if reports[0].CacheLineAddr != 0x1000 {
		t.Fatalf("report line = %#x, want 0x1000", reports[0].CacheLineAddr)
	}
}

func TestOutOfRangeCoreAccessorsReturnZeroValue(t *testing.T) {
	l1, l2, l3 := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(2, l1, l2, l3, true, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stats := h.L1StatsForCore(5); stats.TotalAccesses() != 0 {
		t.Fatalf("out-of-range core stats = %+v, want zero value", stats)
	}
	if stats := h.TLBStatsForCore(-1); stats.TotalAccesses() != 0 {
		t.Fatalf("out-of-range TLB stats = %+v, want zero value", stats)
	}
}

func TestNoL3RoutesMissToMemory(t *testing.T) {
	l1, l2, _ := testMultiCoreConfigs()
	h, err := NewMultiCoreHierarchy(1, l1, l2, model.CacheConfig{}, false, model.PrefetchNone, 2)
	if err != nil {
		t.Fatal(err)
	}
	result := h.Read(0x9000, 1, 0, "", 0)
	if !result.MemoryAccess {
		t.Fatal("want MemoryAccess true when the hierarchy has no L3 and L2 misses")
	}
}
