package engine

import (
	"testing"

	"github.com/ftahirops/cacheexplorer/model"
)

func testHierarchyConfig() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 32 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 256 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l3 := model.CacheConfig{SizeBytes: 8 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data:          l1,
		L1Inst:          l1,
		L2:              l2,
		L3:              l3,
		HasL3:           true,
		InclusionPolicy: model.Inclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
}

func TestSequentialAccessHasHighHitRate(t *testing.T) {
	h, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	// 1024 sequential int32s: each 64B line holds 16 elements, so
	// 15/16 accesses after the first touch of a line are L1 hits.
	for i := 0; i < 1024; i++ {
		h.Read(uint64(i*4), 0)
	}
	stats := h.Stats()
	if stats.L1D.HitRate() < 0.9 {
		t.Fatalf("L1D hit rate = %.3f, want >= 0.9 for sequential int32 access", stats.L1D.HitRate())
	}
}

func TestStridedAccessMatchingLineSizeAlwaysMisses(t *testing.T) {
	h, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 256; i++ {
		h.Read(uint64(i*64), 0)
	}
	stats := h.Stats()
	if stats.L1D.Hits != 0 {
		t.Fatalf("hits = %d, want 0: every access lands on a distinct line", stats.L1D.Hits)
	}
}

func TestTemporalLocalityReused(t *testing.T) {
	h, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	hot := []uint64{0x1000, 0x2000, 0x3000, 0x4000}
	for rep := 0; rep < 100; rep++ {
		for _, addr := range hot {
			h.Read(addr, 0)
		}
	}
	stats := h.Stats()
	if stats.L1D.HitRate() < 0.95 {
		t.Fatalf("hit rate = %.3f, want >= 0.95 for a hot working set that fits L1", stats.L1D.HitRate())
	}
}

func TestWriteSetsDirtyThroughHierarchy(t *testing.T) {
	h, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	h.Write(0x1000, 0)
	if !h.L1Data().IsDirty(0x1000) {
		t.Fatal("write should leave the L1d line dirty")
	}
}

func TestStreamPrefetchImprovesL1HitRate(t *testing.T) {
	withPrefetch, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	withPrefetch.EnablePrefetching(model.PrefetchStream, 4)

	withoutPrefetch, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Touch one line per iteration so each access is a distinct line
	// (a repeat-within-line hit would mask the prefetcher's effect).
	for i := 0; i < 64; i++ {
		addr := uint64(i * 64)
		withPrefetch.Read(addr, 0)
		withoutPrefetch.Read(addr, 0)
	}

	withStats := withPrefetch.Stats()
	withoutStats := withoutPrefetch.Stats()
	if withStats.L1D.Hits <= withoutStats.L1D.Hits {
		t.Fatalf("stream prefetching should raise L1 hits: with=%d without=%d",
			withStats.L1D.Hits, withoutStats.L1D.Hits)
	}
	if withPrefetch.PrefetchStats().Useful == 0 {
		t.Fatal("want at least one useful prefetch credited")
	}
}

func TestUnconsumedPrefetchRetiredAsUselessOnEviction(t *testing.T) {
	l1 := model.CacheConfig{SizeBytes: 256, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 512, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	cfg := model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2,
		InclusionPolicy: model.Inclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
	h, err := NewSingleCoreHierarchy(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.EnablePrefetching(model.PrefetchNextLine, 1)

	// Stride past every prefetched line so none is ever consumed; the
	// tiny hierarchy then evicts them and each must retire as useless.
	for i := 0; i < 64; i++ {
		h.Read(uint64(i*128), 0)
	}
	stats := h.PrefetchStats()
	if stats.Useless == 0 {
		t.Fatal("evicted never-consumed prefetches should be counted useless")
	}
	if stats.Useful != 0 {
		t.Fatalf("useful = %d, want 0: no prefetched line was ever demanded", stats.Useful)
	}
}

func TestInclusiveL2EvictionBackInvalidatesL1(t *testing.T) {
	l1 := model.CacheConfig{SizeBytes: 512, Associativity: 4, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 512, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	cfg := model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2,
		InclusionPolicy: model.Inclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
	h, err := NewSingleCoreHierarchy(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Three lines landing in one 2-way L2 set but a single 4-way L1
	// set: installing the third evicts the first from L2 while the L1
	// copy would otherwise survive, so inclusion forces it out of L1.
	h.Read(0x000, 0)
	h.Read(0x100, 0)
	h.Read(0x200, 0)

	if h.L1Data().IsPresent(0x000) {
		t.Fatal("line evicted from L2 must be back-invalidated in L1 under the inclusive policy")
	}
}

func TestNoL3GoesDirectlyToMemory(t *testing.T) {
	cfg := testHierarchyConfig()
	cfg.HasL3 = false
	h, err := NewSingleCoreHierarchy(cfg)
	if err != nil {
		t.Fatal(err)
	}
	result := h.Read(0x1000, 0)
	if !result.MemoryAccess {
		t.Fatal("a first touch with no L3 should go straight to memory on the L2 miss")
	}
	if result.L3Hit {
		t.Fatal("a hierarchy without L3 must never report an L3 hit")
	}
}

func TestFastModeTogglesTrack3C(t *testing.T) {
	h, err := NewSingleCoreHierarchy(testHierarchyConfig())
	if err != nil {
		t.Fatal(err)
	}
	h.SetFastMode(false)
	h.Read(0x1000, 0)
	if h.Stats().L1D.Compulsory == 0 {
		t.Fatal("3C classification should be active when fast mode is off")
	}
}
