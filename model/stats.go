package model

// CacheStats accumulates one CacheLevel's hit/miss/writeback/invalidation
// counters, with an optional 3C miss classification (compulsory,
// capacity, conflict — disabled in --fast mode, spec.md §6).
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Writebacks    uint64
	Invalidations uint64
	Compulsory    uint64
	Capacity      uint64
	Conflict      uint64
}

// TotalAccesses is Hits + Misses.
func (s CacheStats) TotalAccesses() uint64 { return s.Hits + s.Misses }

// HitRate is Hits / TotalAccesses, defined as 0 when TotalAccesses is 0.
func (s CacheStats) HitRate() float64 {
	total := s.TotalAccesses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate is Misses / TotalAccesses, defined as 0 when TotalAccesses is 0.
func (s CacheStats) MissRate() float64 {
	total := s.TotalAccesses()
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// Add accumulates other into s, used when merging segment-cache replays.
func (s *CacheStats) Add(other CacheStats) {
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Writebacks += other.Writebacks
	s.Invalidations += other.Invalidations
	s.Compulsory += other.Compulsory
	s.Capacity += other.Capacity
	s.Conflict += other.Conflict
}

// Reset zeroes every counter.
func (s *CacheStats) Reset() { *s = CacheStats{} }

// TimingStats accumulates cycle estimates per access outcome.
type TimingStats struct {
	L1HitCycles   uint64
	L2HitCycles   uint64
	L3HitCycles   uint64
	MemoryCycles  uint64
	TLBMissCycles uint64
	TotalCycles   uint64
	TotalAccesses uint64
}

// AverageLatency is TotalCycles / TotalAccesses, 0 when TotalAccesses is 0.
func (t TimingStats) AverageLatency() float64 {
	if t.TotalAccesses == 0 {
		return 0
	}
	return float64(t.TotalCycles) / float64(t.TotalAccesses)
}

// Reset zeroes every counter.
func (t *TimingStats) Reset() { *t = TimingStats{} }

// HierarchyStats is the public snapshot returned by
// TraceProcessor.GetStats / SingleCoreHierarchy.Stats.
type HierarchyStats struct {
	L1D    CacheStats
	L1I    CacheStats
	L2     CacheStats
	L3     CacheStats
	HasL3  bool
	Timing TimingStats
}

// TLBStats accumulates one TLB's hit/miss counters.
type TLBStats struct {
	Hits   uint64
	Misses uint64
}

// TotalAccesses is Hits + Misses.
func (s TLBStats) TotalAccesses() uint64 { return s.Hits + s.Misses }

// HitRate is Hits / TotalAccesses, 0 when TotalAccesses is 0.
func (s TLBStats) HitRate() float64 {
	total := s.TotalAccesses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// TLBHierarchyStats bundles the data and instruction TLB snapshots.
type TLBHierarchyStats struct {
	DTLB TLBStats
	ITLB TLBStats
}

// PrefetchStats accumulates a Prefetcher's issued/useful/late/useless
// counters.
type PrefetchStats struct {
	Issued  uint64
	Useful  uint64
	Late    uint64
	Useless uint64
}

// Accuracy is Useful / Issued, 0 when Issued is 0.
func (s PrefetchStats) Accuracy() float64 {
	if s.Issued == 0 {
		return 0
	}
	return float64(s.Useful) / float64(s.Issued)
}

// Reset zeroes every counter.
func (s *PrefetchStats) Reset() { *s = PrefetchStats{} }

// SoftwarePrefetchStats tracks explicit prefetch-hint trace events
// (spec.md §4.7's is_prefetch branch), distinct from the hardware
// Prefetcher's own PrefetchStats.
type SoftwarePrefetchStats struct {
	Issued    uint64
	Useful    uint64
	Redundant uint64
	Evicted   uint64
}

// Accuracy is Useful / Issued, 0 when Issued is 0.
func (s SoftwarePrefetchStats) Accuracy() float64 {
	if s.Issued == 0 {
		return 0
	}
	return float64(s.Useful) / float64(s.Issued)
}

// VectorStats tracks vector/SIMD load and store trace events.
type VectorStats struct {
	Loads             uint64
	Stores            uint64
	BytesLoaded       uint64
	BytesStored       uint64
	CrossLineAccesses uint64
}

// AtomicStats tracks atomic trace events by precedence
// (cmpxchg > rmw > store > load, spec.md §4.7).
type AtomicStats struct {
	LoadCount        uint64
	StoreCount       uint64
	RMWCount         uint64
	CmpxchgCount     uint64
	ContentionEvents uint64
}

// MemoryIntrinsicStats tracks memcpy/memmove/memset trace events.
type MemoryIntrinsicStats struct {
	MemcpyCount  uint64
	MemcpyBytes  uint64
	MemsetCount  uint64
	MemsetBytes  uint64
	MemmoveCount uint64
	MemmoveBytes uint64
}

// SourceStats is one (file, line)'s L1 hit/miss tally, as charged by
// TraceProcessor (only the first line of a split event is charged —
// see DESIGN.md's Open Question decision).
type SourceStats struct {
	File    string
	Line    uint32
	Hits    uint64
	Misses  uint64
	Threads map[uint32]struct{}
}

// Total is Hits + Misses.
func (s SourceStats) Total() uint64 { return s.Hits + s.Misses }

// MissRate is Misses / Total, 0 when Total is 0.
func (s SourceStats) MissRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// FalseSharingAccess is one witnessed access to a line later found to
// exhibit false sharing.
type FalseSharingAccess struct {
	ThreadID   uint32
	ByteOffset uint32
	IsWrite    bool
	File       string
	Line       uint32
}

// FalseSharingReport lists every witnessed access to a cache line that
// triggered the false-sharing detector (spec.md §3's
// FalseSharingWitness, §4.6's detection rule).
type FalseSharingReport struct {
	CacheLineAddr     uint64
	Accesses          []FalseSharingAccess
	InvalidationCount uint32
}

// MultiCoreStats is the public snapshot for a MultiCoreHierarchy.
type MultiCoreStats struct {
	L1PerCore              []CacheStats
	L2                     CacheStats
	L3                     CacheStats
	HasL3                  bool
	CoherenceInvalidations uint64
	FalseSharingEvents     uint64
}
