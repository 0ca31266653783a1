package engine

import (
	"github.com/ftahirops/cacheexplorer/cacheline"
	"github.com/ftahirops/cacheexplorer/model"
	"github.com/ftahirops/cacheexplorer/prefetch"
	"github.com/ftahirops/cacheexplorer/tlb"
)

// SingleCoreHierarchy wires an L1 data, L1 instruction, L2, and
// optional L3 cache behind a shared data/instruction TLB pair and one
// hardware prefetcher, reproducing one CPU core's memory subsystem.
type SingleCoreHierarchy struct {
	inclusion model.InclusionPolicy

	l1d *cacheline.CacheLevel
	l1i *cacheline.CacheLevel
	l2  *cacheline.CacheLevel
	l3  *cacheline.CacheLevel // nil when the hierarchy has no L3

	dtlb *tlb.TLB
	itlb *tlb.TLB

	prefetcher          *prefetch.Prefetcher
	prefetchEnabled     bool
	tlbEnabled          bool
	prefetchedAddresses map[uint64]struct{}

	latency model.LatencyConfig
	timing  model.TimingStats
}

// NewSingleCoreHierarchy builds a hierarchy from cfg, propagating any
// per-level geometry error from the underlying cacheline.New calls.
func NewSingleCoreHierarchy(cfg model.CacheHierarchyConfig) (*SingleCoreHierarchy, error) {
	l1d, err := cacheline.New(cfg.L1Data)
	if err != nil {
		return nil, err
	}
	l1i, err := cacheline.New(cfg.L1Inst)
	if err != nil {
		return nil, err
	}
	l2, err := cacheline.New(cfg.L2)
	if err != nil {
		return nil, err
	}
	var l3 *cacheline.CacheLevel
	if cfg.HasL3 {
		l3, err = cacheline.New(cfg.L3)
		if err != nil {
			return nil, err
		}
	}

	return &SingleCoreHierarchy{
		inclusion:           cfg.InclusionPolicy,
		l1d:                 l1d,
		l1i:                 l1i,
		l2:                  l2,
		l3:                  l3,
		dtlb:                tlb.New(model.DefaultTLBConfig()),
		itlb:                tlb.New(model.DefaultTLBConfig()),
		prefetcher:          prefetch.New(model.PrefetchNone, 2, cfg.L1Data.LineSize),
		tlbEnabled:          true,
		prefetchedAddresses: make(map[uint64]struct{}),
		latency:             cfg.Latency,
	}, nil
}

func (h *SingleCoreHierarchy) hasL3() bool { return h.l3 != nil }

// Read performs a demand load through the data path (L1d, dTLB).
func (h *SingleCoreHierarchy) Read(addr, pc uint64) model.SystemAccessResult {
	return h.accessHierarchy(addr, false, h.l1d, h.dtlb, true, pc)
}

// Write performs a demand store through the data path (L1d, dTLB).
func (h *SingleCoreHierarchy) Write(addr, pc uint64) model.SystemAccessResult {
	return h.accessHierarchy(addr, true, h.l1d, h.dtlb, true, pc)
}

// Fetch performs an instruction fetch through the instruction path
// (L1i, iTLB). Instruction fetches are never writes.
func (h *SingleCoreHierarchy) Fetch(addr, pc uint64) model.SystemAccessResult {
	return h.accessHierarchy(addr, false, h.l1i, h.itlb, false, pc)
}

func (h *SingleCoreHierarchy) accessHierarchy(addr uint64, isWrite bool, l1 *cacheline.CacheLevel, tlbInst *tlb.TLB, isData bool, pc uint64) model.SystemAccessResult {
	var result model.SystemAccessResult

	tlbMiss := false
	if h.tlbEnabled {
		hit := tlbInst.Access(addr)
		tlbMiss = !hit
		if isData {
			result.DTLBHit = hit
		} else {
			result.ITLBHit = hit
		}
	}

	l1Info := l1.Access(addr, isWrite)
	if l1Info.Result == model.Hit {
		result.L1Hit = true
		result.Cycles = h.latency.L1Hit
		if tlbMiss {
			result.Cycles += h.latency.TLBMissPenalty
			h.timing.TLBMissCycles += uint64(h.latency.TLBMissPenalty)
		}
		h.timing.L1HitCycles += uint64(h.latency.L1Hit)
		h.timing.TotalCycles += uint64(result.Cycles)
		h.timing.TotalAccesses++

		if h.prefetchEnabled {
			h.creditIfPrefetched(h.l1d.Config().LineBase(addr))
		}
		return result
	}

	if h.prefetchEnabled {
		pfAddrs := h.prefetcher.OnMiss(addr, pc)
		result.PrefetchesIssued = len(pfAddrs)
		h.issuePrefetches(pfAddrs)
	}

	if l1Info.HadEviction {
		if h.inclusion == model.Exclusive {
			h.l2.Install(l1Info.EvictedAddress, l1Info.WasDirty)
		} else if l1Info.WasDirty {
			result.Writebacks = append(result.Writebacks, l1Info.EvictedAddress)
		}
		h.retirePrefetchIfEvicted(l1Info.EvictedAddress)
	}

	l2Info := h.l2.Access(addr, isWrite)
	if l2Info.Result == model.Hit {
		result.L2Hit = true
		result.Cycles = h.latency.L2Hit
		if tlbMiss {
			result.Cycles += h.latency.TLBMissPenalty
			h.timing.TLBMissCycles += uint64(h.latency.TLBMissPenalty)
		}
		h.timing.L2HitCycles += uint64(h.latency.L2Hit)
		h.timing.TotalCycles += uint64(result.Cycles)
		h.timing.TotalAccesses++

		if h.prefetchEnabled {
			h.creditIfPrefetched(h.l1d.Config().LineBase(addr))
		}

		if h.inclusion == model.Exclusive {
			h.l2.Invalidate(addr)
		}
		return result
	}

	if l2Info.HadEviction {
		if h.inclusion == model.Exclusive && h.hasL3() {
			h.l3.Install(l2Info.EvictedAddress, l2Info.WasDirty)
		} else if l2Info.WasDirty {
			result.Writebacks = append(result.Writebacks, l2Info.EvictedAddress)
		}
		if h.inclusion == model.Inclusive {
			h.l1d.Invalidate(l2Info.EvictedAddress)
			h.l1i.Invalidate(l2Info.EvictedAddress)
		}
		h.retirePrefetchIfEvicted(l2Info.EvictedAddress)
	}

	if h.hasL3() {
		l3Info := h.l3.Access(addr, isWrite)
		if l3Info.Result == model.Hit {
			result.L3Hit = true
			result.Cycles = h.latency.L3Hit
			if tlbMiss {
				result.Cycles += h.latency.TLBMissPenalty
				h.timing.TLBMissCycles += uint64(h.latency.TLBMissPenalty)
			}
			h.timing.L3HitCycles += uint64(h.latency.L3Hit)
			h.timing.TotalCycles += uint64(result.Cycles)
			h.timing.TotalAccesses++

			if h.inclusion == model.Exclusive {
				h.l3.Invalidate(addr)
			}
			return result
		}

		result.MemoryAccess = true
		result.Cycles = h.latency.Memory
		if tlbMiss {
			result.Cycles += h.latency.TLBMissPenalty
			h.timing.TLBMissCycles += uint64(h.latency.TLBMissPenalty)
		}
		h.timing.MemoryCycles += uint64(h.latency.Memory)
		h.timing.TotalCycles += uint64(result.Cycles)
		h.timing.TotalAccesses++

		if l3Info.WasDirty {
			result.Writebacks = append(result.Writebacks, l3Info.EvictedAddress)
		}

		if h.inclusion == model.Inclusive && l3Info.HadEviction {
			h.l2.Invalidate(l3Info.EvictedAddress)
			h.l1d.Invalidate(l3Info.EvictedAddress)
			h.l1i.Invalidate(l3Info.EvictedAddress)
		}
		if l3Info.HadEviction {
			h.retirePrefetchIfEvicted(l3Info.EvictedAddress)
		}
	} else {
		result.MemoryAccess = true
		result.Cycles = h.latency.Memory
		if tlbMiss {
			result.Cycles += h.latency.TLBMissPenalty
			h.timing.TLBMissCycles += uint64(h.latency.TLBMissPenalty)
		}
		h.timing.MemoryCycles += uint64(h.latency.Memory)
		h.timing.TotalCycles += uint64(result.Cycles)
		h.timing.TotalAccesses++
	}

	return result
}

// issuePrefetches installs every candidate address into L1d, L2, and
// (if present) L3 — an Intel DCU-style prefetcher brings data straight
// into L1, so the next demand access to a prefetched line is an L1
// hit, while the fill still threads through L2/L3 so those levels'
// occupancy reflects the prefetch too.
func (h *SingleCoreHierarchy) issuePrefetches(addrs []uint64) {
	for _, addr := range addrs {
		if h.l1d.IsPresent(addr) {
			continue
		}
		l1Info := h.l1d.Install(addr, false)
		if l1Info.HadEviction {
			h.retirePrefetchIfEvicted(l1Info.EvictedAddress)
		}
		if !h.l2.IsPresent(addr) {
			l2Info := h.l2.Install(addr, false)
			if l2Info.HadEviction {
				if h.inclusion == model.Inclusive {
					h.l1d.Invalidate(l2Info.EvictedAddress)
					h.l1i.Invalidate(l2Info.EvictedAddress)
				}
				h.retirePrefetchIfEvicted(l2Info.EvictedAddress)
			}
		}
		if h.hasL3() && !h.l3.IsPresent(addr) {
			l3Info := h.l3.Install(addr, false)
			if l3Info.HadEviction {
				if h.inclusion == model.Inclusive {
					h.l2.Invalidate(l3Info.EvictedAddress)
					h.l1d.Invalidate(l3Info.EvictedAddress)
					h.l1i.Invalidate(l3Info.EvictedAddress)
				}
				h.retirePrefetchIfEvicted(l3Info.EvictedAddress)
			}
		}
		h.prefetchedAddresses[addr] = struct{}{}
	}
}

// retirePrefetchIfEvicted counts a still-unconsumed prefetched line as
// useless once no level holds it anymore, and drops it from the
// tracking set so it can never be credited as useful afterwards.
func (h *SingleCoreHierarchy) retirePrefetchIfEvicted(addr uint64) {
	if _, ok := h.prefetchedAddresses[addr]; !ok {
		return
	}
	if h.l1d.IsPresent(addr) || h.l2.IsPresent(addr) || (h.hasL3() && h.l3.IsPresent(addr)) {
		return
	}
	h.prefetcher.RecordUselessPrefetch()
	delete(h.prefetchedAddresses, addr)
}

func (h *SingleCoreHierarchy) creditIfPrefetched(lineBase uint64) {
	if _, ok := h.prefetchedAddresses[lineBase]; ok {
		h.prefetcher.RecordUsefulPrefetch()
		delete(h.prefetchedAddresses, lineBase)
	}
}

// EnablePrefetching turns on hardware prefetching with the given
// policy and degree (lines issued per detection).
func (h *SingleCoreHierarchy) EnablePrefetching(policy model.PrefetchPolicy, degree int) {
	h.prefetcher.SetPolicy(policy)
	h.prefetcher.SetDegree(degree)
	h.prefetchEnabled = true
}

// DisablePrefetching turns hardware prefetching off.
func (h *SingleCoreHierarchy) DisablePrefetching() {
	h.prefetchEnabled = false
	h.prefetcher.SetPolicy(model.PrefetchNone)
}

// IsPrefetchingEnabled reports whether hardware prefetching is active.
func (h *SingleCoreHierarchy) IsPrefetchingEnabled() bool { return h.prefetchEnabled }

// PrefetchStats returns the hardware prefetcher's accumulated counters.
func (h *SingleCoreHierarchy) PrefetchStats() model.PrefetchStats { return h.prefetcher.Stats() }

// Stats returns a snapshot of every level's hit/miss counters plus
// accumulated timing.
func (h *SingleCoreHierarchy) Stats() model.HierarchyStats {
	var l3Stats model.CacheStats
	if h.hasL3() {
		l3Stats = h.l3.Stats()
	}
	return model.HierarchyStats{
		L1D:    h.l1d.Stats(),
		L1I:    h.l1i.Stats(),
		L2:     h.l2.Stats(),
		L3:     l3Stats,
		HasL3:  h.hasL3(),
		Timing: h.timing,
	}
}

// ResetStats zeroes every level's counters and the timing accumulator.
func (h *SingleCoreHierarchy) ResetStats() {
	h.l1d.ResetStats()
	h.l1i.ResetStats()
	h.l2.ResetStats()
	if h.hasL3() {
		h.l3.ResetStats()
	}
	h.timing.Reset()
}

// TLBStats returns the data and instruction TLB's accumulated counters.
func (h *SingleCoreHierarchy) TLBStats() model.TLBHierarchyStats {
	return model.TLBHierarchyStats{DTLB: h.dtlb.Stats(), ITLB: h.itlb.Stats()}
}

// EnableTLB turns TLB lookups back on.
func (h *SingleCoreHierarchy) EnableTLB() { h.tlbEnabled = true }

// DisableTLB skips TLB lookups entirely (every access behaves as a
// TLB hit with no penalty).
func (h *SingleCoreHierarchy) DisableTLB() { h.tlbEnabled = false }

// IsTLBEnabled reports whether TLB lookups are active.
func (h *SingleCoreHierarchy) IsTLBEnabled() bool { return h.tlbEnabled }

// InclusionPolicy returns the cross-level containment policy this
// hierarchy enforces.
func (h *SingleCoreHierarchy) InclusionPolicy() model.InclusionPolicy { return h.inclusion }

// PrefetchPolicy returns the hardware prefetcher's active policy.
func (h *SingleCoreHierarchy) PrefetchPolicy() model.PrefetchPolicy { return h.prefetcher.Policy() }

// TimingStats returns the accumulated cycle-estimate counters.
func (h *SingleCoreHierarchy) TimingStats() model.TimingStats { return h.timing }

// LatencyConfig returns the per-outcome cycle costs in use.
func (h *SingleCoreHierarchy) LatencyConfig() model.LatencyConfig { return h.latency }

// SetLatencyConfig replaces the per-outcome cycle costs.
func (h *SingleCoreHierarchy) SetLatencyConfig(cfg model.LatencyConfig) { h.latency = cfg }

// SetFastMode disables (enable=true) or enables (enable=false) the
// per-level 3C miss classification on every level in the hierarchy.
func (h *SingleCoreHierarchy) SetFastMode(enable bool) {
	h.l1d.SetTrack3C(!enable)
	h.l1i.SetTrack3C(!enable)
	h.l2.SetTrack3C(!enable)
	if h.hasL3() {
		h.l3.SetTrack3C(!enable)
	}
}

// L1Data exposes the L1 data level for read-only inspection (e.g. by
// the optimization suggester).
func (h *SingleCoreHierarchy) L1Data() *cacheline.CacheLevel { return h.l1d }
