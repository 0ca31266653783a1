package engine

import (
	"sort"

	"github.com/ftahirops/cacheexplorer/model"
)

// MultiCoreTraceProcessor is the multi-threaded counterpart of
// TraceProcessor: it dispatches events into a MultiCoreHierarchy,
// splitting multi-line accesses and maintaining per-source-line
// statistics that record the set of threads that touched each line
// (spec.md §6's multi-core public API).
type MultiCoreTraceProcessor struct {
	hierarchy *MultiCoreHierarchy

	sourceStats map[string]*model.SourceStats
	seenThreads map[uint32]struct{}

	swPrefetched    map[uint64]struct{}
	swPrefetchStats model.SoftwarePrefetchStats
	vectorStats     model.VectorStats
	atomicStats     model.AtomicStats
	memStats        model.MemoryIntrinsicStats

	eventCallback func(model.EventResult)
}

// NewMultiCoreTraceProcessor builds a MultiCoreTraceProcessor around a
// fresh MultiCoreHierarchy.
func NewMultiCoreTraceProcessor(numCores int, l1, l2, l3 model.CacheConfig, hasL3 bool, pfPolicy model.PrefetchPolicy, pfDegree int) (*MultiCoreTraceProcessor, error) {
	h, err := NewMultiCoreHierarchy(numCores, l1, l2, l3, hasL3, pfPolicy, pfDegree)
	if err != nil {
		return nil, err
	}
	return &MultiCoreTraceProcessor{
		hierarchy:    h,
		sourceStats:  make(map[string]*model.SourceStats),
		seenThreads:  make(map[uint32]struct{}),
		swPrefetched: make(map[uint64]struct{}),
	}, nil
}

// Hierarchy exposes the underlying MultiCoreHierarchy.
func (p *MultiCoreTraceProcessor) Hierarchy() *MultiCoreHierarchy { return p.hierarchy }

// SetEventCallback installs a per-line-access callback, as
// TraceProcessor.SetEventCallback does for the single-core path.
func (p *MultiCoreTraceProcessor) SetEventCallback(cb func(model.EventResult)) {
	p.eventCallback = cb
}

// processLineAccess routes one split line through the hierarchy. The
// first split line carries the event's original byte offset so the
// false-sharing witness records where within the line the access
// landed; later lines start at their line base.
func (p *MultiCoreTraceProcessor) processLineAccess(accessAddr, lineAddr uint64, isWrite bool, event model.TraceEvent, chargeSource bool) {
	var result model.MultiCoreAccessResult
	if isWrite {
		result = p.hierarchy.Write(accessAddr, event.ThreadID, event.PC, event.File, event.Line)
	} else {
		result = p.hierarchy.Read(accessAddr, event.ThreadID, event.PC, event.File, event.Line)
	}

	// Same crediting rule as the single-core path: first read
	// consumption credits the prefetch regardless of hit level; writes
	// leave the entry alone.
	if _, ok := p.swPrefetched[lineAddr]; ok && !isWrite {
		p.swPrefetchStats.Useful++
		delete(p.swPrefetched, lineAddr)
	}

	if chargeSource && event.File != "" {
		key := sourceKey(event.File, event.Line)
		stats, ok := p.sourceStats[key]
		if !ok {
			stats = &model.SourceStats{File: event.File, Line: event.Line, Threads: make(map[uint32]struct{})}
			p.sourceStats[key] = stats
		}
		stats.Threads[event.ThreadID] = struct{}{}
		if result.L1Hit {
			stats.Hits++
		} else {
			stats.Misses++
		}
	}

	if p.eventCallback != nil {
		p.eventCallback(model.EventResult{
			L1Hit: result.L1Hit, L2Hit: result.L2Hit, L3Hit: result.L3Hit,
			LineBase: lineAddr, Size: event.Size, File: event.File, Line: event.Line,
		})
	}
}

// dispatchSplit splits [addr, addr+size) into line accesses and routes
// each one, charging SourceStats only for the first line.
func (p *MultiCoreTraceProcessor) dispatchSplit(addr, size uint64, isWrite bool, event model.TraceEvent) {
	for i, lineAddr := range splitLines(addr, size, p.hierarchy.lineSize) {
		accessAddr := lineAddr
		if i == 0 {
			accessAddr = addr
		}
		p.processLineAccess(accessAddr, lineAddr, isWrite, event, i == 0)
	}
}

// Process dispatches one trace event, choosing exactly one branch of
// spec.md §4.7's table. Instruction fetches have no per-core L1i in the
// multi-core model and route through the data path as reads.
func (p *MultiCoreTraceProcessor) Process(event model.TraceEvent) {
	p.seenThreads[event.ThreadID] = struct{}{}

	switch {
	case event.IsPrefetch:
		p.swPrefetchStats.Issued++
		lineAddr := p.hierarchy.lineBase(event.Address)
		p.hierarchy.Read(lineAddr, event.ThreadID, event.PC, "", 0)
		p.swPrefetched[lineAddr] = struct{}{}

	case event.IsMemcpy || event.IsMemmove:
		if event.IsMemcpy {
			p.memStats.MemcpyCount++
			p.memStats.MemcpyBytes += event.Size
		} else {
			p.memStats.MemmoveCount++
			p.memStats.MemmoveBytes += event.Size
		}
		p.dispatchSplit(event.SrcAddress, event.Size, false, event)
		p.dispatchSplit(event.Address, event.Size, true, event)

	case event.IsMemset:
		p.memStats.MemsetCount++
		p.memStats.MemsetBytes += event.Size
		p.dispatchSplit(event.Address, event.Size, true, event)

	default:
		if event.IsVector {
			if event.IsWrite {
				p.vectorStats.Stores++
				p.vectorStats.BytesStored += event.Size
			} else {
				p.vectorStats.Loads++
				p.vectorStats.BytesLoaded += event.Size
			}
			if len(splitLines(event.Address, event.Size, p.hierarchy.lineSize)) > 1 {
				p.vectorStats.CrossLineAccesses++
			}
		}

		if event.IsAtomic {
			switch {
			case event.IsCmpxchg:
				p.atomicStats.CmpxchgCount++
			case event.IsRMW:
				p.atomicStats.RMWCount++
			case event.IsWrite:
				p.atomicStats.StoreCount++
			default:
				p.atomicStats.LoadCount++
			}
		}

		p.dispatchSplit(event.Address, event.Size, event.IsWrite, event)
	}
}

// GetStats returns the underlying hierarchy's per-core/shared-level
// statistics.
func (p *MultiCoreTraceProcessor) GetStats() model.MultiCoreStats { return p.hierarchy.Stats() }

// GetHotLines returns up to limit SourceStats entries sorted by misses
// descending.
func (p *MultiCoreTraceProcessor) GetHotLines(limit int) []model.SourceStats {
	sorted := make([]model.SourceStats, 0, len(p.sourceStats))
	for _, s := range p.sourceStats {
		sorted = append(sorted, *s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Misses > sorted[j].Misses })
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// GetFalseSharingReports returns every line the hierarchy's witness map
// flagged as false-sharing.
func (p *MultiCoreTraceProcessor) GetFalseSharingReports() []model.FalseSharingReport {
	return p.hierarchy.GetFalseSharingReports()
}

// SoftwarePrefetchStats returns the explicit-hint prefetch counters.
func (p *MultiCoreTraceProcessor) SoftwarePrefetchStats() model.SoftwarePrefetchStats {
	return p.swPrefetchStats
}

// VectorStats returns the accumulated vector/SIMD counters.
func (p *MultiCoreTraceProcessor) VectorStats() model.VectorStats { return p.vectorStats }

// AtomicStats returns the accumulated atomic-operation counters.
func (p *MultiCoreTraceProcessor) AtomicStats() model.AtomicStats { return p.atomicStats }

// MemoryIntrinsicStats returns the accumulated memcpy/memmove/memset
// counters.
func (p *MultiCoreTraceProcessor) MemoryIntrinsicStats() model.MemoryIntrinsicStats {
	return p.memStats
}

// ThreadCount returns how many distinct thread ids have been observed.
func (p *MultiCoreTraceProcessor) ThreadCount() int { return len(p.seenThreads) }
