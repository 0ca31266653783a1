package tlb

import (
	"testing"

	"github.com/ftahirops/cacheexplorer/model"
)

func testConfig() model.TLBConfig {
	return model.TLBConfig{Entries: 8, Associativity: 2, PageSize: 4096}
}

func TestAccessMissThenHit(t *testing.T) {
	tb := New(testConfig())
	if hit := tb.Access(0x1000); hit {
		t.Fatal("first access should miss")
	}
	if hit := tb.Access(0x1000); !hit {
		t.Fatal("second access to same page should hit")
	}
	stats := tb.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestAccessWithinSamePageHits(t *testing.T) {
	tb := New(testConfig())
	tb.Access(0x1000)
	if hit := tb.Access(0x1fff); !hit {
		t.Fatal("address within the same 4KB page should hit")
	}
}

func TestLRUEviction(t *testing.T) {
	tb := New(testConfig())
	cfg := testConfig()
	numSets := cfg.NumSets()
	pageSize := uint64(cfg.PageSize)

	// Two pages that land in the same set, 2-way associative: filling
	// both ways then touching a third evicts the LRU way.
	base := uint64(0)
	samePage := func(n int) uint64 { return base + uint64(n*numSets)*pageSize }

	tb.Access(samePage(0))
	tb.Access(samePage(1))
	tb.Access(samePage(0)) // refresh way 0's recency
	tb.Access(samePage(2)) // evicts way holding samePage(1)

	if hit := tb.Access(samePage(0)); !hit {
		t.Fatal("recently touched page should still be resident")
	}
	if hit := tb.Access(samePage(1)); hit {
		t.Fatal("least recently used page should have been evicted")
	}
}

func TestInvalidate(t *testing.T) {
	tb := New(testConfig())
	tb.Access(0x1000)
	tb.Invalidate(0x1000)
	if hit := tb.Access(0x1000); hit {
		t.Fatal("invalidated page should miss")
	}
}

func TestFlush(t *testing.T) {
	tb := New(testConfig())
	tb.Access(0x1000)
	tb.Access(0x2000)
	tb.Flush()
	if hit := tb.Access(0x1000); hit {
		t.Fatal("page should miss after flush")
	}
	if hit := tb.Access(0x2000); hit {
		t.Fatal("page should miss after flush")
	}
}
