package prefetch

import (
	"testing"

	"github.com/ftahirops/cacheexplorer/model"
)

func TestNextLinePrefetchIssuesDegreeLines(t *testing.T) {
	p := New(model.PrefetchNextLine, 3, 64)
	addrs := p.OnMiss(0x1000, 0)
	want := []uint64{0x1040, 0x1080, 0x10c0}
	if len(addrs) != len(want) {
		t.Fatalf("got %v, want %v", addrs, want)
	}
	for i := range want {
		if addrs[i] != want[i] {
			t.Fatalf("got %v, want %v", addrs, want)
		}
	}
	if p.Stats().Issued != 3 {
		t.Fatalf("issued = %d, want 3", p.Stats().Issued)
	}
}

func TestNonePolicyIssuesNothing(t *testing.T) {
	p := New(model.PrefetchNone, 2, 64)
	if addrs := p.OnMiss(0x1000, 0); len(addrs) != 0 {
		t.Fatalf("got %v, want none", addrs)
	}
}

func TestStreamPrefetchDetectsAscendingSequence(t *testing.T) {
	p := New(model.PrefetchStream, 2, 64)
	base := uint64(0x100000)
	// The first access opens a stream at confidence 1; the second
	// sequential access raises it to the threshold (2), from which point
	// each miss prefetches ahead.
	p.OnMiss(base, 0)
	p.OnMiss(base+64, 0)
	addrs := p.OnMiss(base+128, 0)
	if len(addrs) == 0 {
		t.Fatal("expected prefetch addresses once a stream is confident")
	}
	if addrs[0] != base+128+64 {
		t.Fatalf("first prefetch = %#x, want %#x", addrs[0], base+128+64)
	}
}

func TestStreamPrefetchStaysWithinPage(t *testing.T) {
	p := New(model.PrefetchStream, 8, 64)
	// Ascend toward the 0x101000 page boundary with a degree (8) larger
	// than the five lines left in the page: only in-page lines should
	// come back.
	p.OnMiss(0x100e00, 0)
	p.OnMiss(0x100e40, 0)
	addrs := p.OnMiss(0x100e80, 0)
	if len(addrs) == 0 {
		t.Fatal("expected at least one prefetch once the stream is confident")
	}
	for _, a := range addrs {
		if a >= 0x101000 {
			t.Fatalf("prefetch %#x crosses the page boundary", a)
		}
	}
}

func TestStridePrefetchDetectsConstantStride(t *testing.T) {
	p := New(model.PrefetchStride, 2, 64)
	pc := uint64(0xdead)
	stride := int64(128)
	addr := uint64(0x200000)

	p.OnMiss(addr, pc)
	addr = uint64(int64(addr) + stride)
	p.OnMiss(addr, pc)
	addr = uint64(int64(addr) + stride)
	addrs := p.OnMiss(addr, pc)

	if len(addrs) != 2 {
		t.Fatalf("got %v, want 2 prefetches", addrs)
	}
	if addrs[0] != uint64(int64(addr)+stride) {
		t.Fatalf("first prefetch = %#x, want %#x", addrs[0], uint64(int64(addr)+stride))
	}
}

func TestStridePrefetchIgnoresZeroPC(t *testing.T) {
	p := New(model.PrefetchStride, 2, 64)
	addr := uint64(0x200000)
	for i := 0; i < 5; i++ {
		addrs := p.OnMiss(addr, 0)
		if len(addrs) != 0 {
			t.Fatalf("pc=0 should never produce stride prefetches, got %v", addrs)
		}
		addr += 128
	}
}

func TestAdaptivePrefersStrideOverStream(t *testing.T) {
	p := New(model.PrefetchAdaptive, 2, 64)
	pc := uint64(0x1234)
	addr := uint64(0x300000)
	for i := 0; i < 3; i++ {
		p.OnMiss(addr, pc)
		addr += 256
	}
	addrs := p.OnMiss(addr, pc)
	if len(addrs) == 0 {
		t.Fatal("adaptive should fall through to a confident stride detector")
	}
}

func TestRecordCounters(t *testing.T) {
	p := New(model.PrefetchNextLine, 1, 64)
	p.RecordUsefulPrefetch()
	p.RecordLatePrefetch()
	p.RecordUselessPrefetch()
	stats := p.Stats()
	if stats.Useful != 1 || stats.Late != 1 || stats.Useless != 1 {
		t.Fatalf("stats = %+v, want one of each", stats)
	}
}
