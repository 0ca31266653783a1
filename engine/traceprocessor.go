package engine

import (
	"fmt"
	"sort"

	"github.com/ftahirops/cacheexplorer/model"
)

// TraceProcessor dispatches a stream of model.TraceEvent values into a
// SingleCoreHierarchy, splitting multi-line accesses, maintaining
// per-source-line statistics, and classifying the specialty event
// kinds (software prefetch, memcpy/memmove/memset, vector, atomic)
// spec.md §4.7 describes.
type TraceProcessor struct {
	hierarchy *SingleCoreHierarchy

	sourceStats map[string]*model.SourceStats

	swPrefetched    map[uint64]struct{}
	swPrefetchStats model.SoftwarePrefetchStats
	vectorStats     model.VectorStats
	atomicStats     model.AtomicStats
	memStats        model.MemoryIntrinsicStats

	eventCallback func(model.EventResult)
}

// NewTraceProcessor builds a TraceProcessor around a fresh
// SingleCoreHierarchy built from cfg.
func NewTraceProcessor(cfg model.CacheHierarchyConfig) (*TraceProcessor, error) {
	h, err := NewSingleCoreHierarchy(cfg)
	if err != nil {
		return nil, err
	}
	return &TraceProcessor{
		hierarchy:    h,
		sourceStats:  make(map[string]*model.SourceStats),
		swPrefetched: make(map[uint64]struct{}),
	}, nil
}

// Hierarchy exposes the underlying SingleCoreHierarchy (e.g. to enable
// prefetching or fetch per-level stats directly).
func (p *TraceProcessor) Hierarchy() *SingleCoreHierarchy { return p.hierarchy }

// EnablePrefetching turns on hardware prefetching on the underlying
// hierarchy.
func (p *TraceProcessor) EnablePrefetching(policy model.PrefetchPolicy, degree int) {
	p.hierarchy.EnablePrefetching(policy, degree)
}

// SetEventCallback installs a callback invoked for every line access
// with the access's hit/miss outcome at every level (spec.md §4.7),
// used by streaming output and verbose logging.
func (p *TraceProcessor) SetEventCallback(cb func(model.EventResult)) {
	p.eventCallback = cb
}

func sourceKey(file string, line uint32) string {
	return fmt.Sprintf("%s:%d", file, line)
}

// splitLines enumerates every line-base address the extent
// [addr, addr+size) touches, stepping by lineSize.
func splitLines(addr, size uint64, lineSize int) []uint64 {
	if size == 0 {
		size = 1
	}
	start := addr &^ uint64(lineSize-1)
	end := (addr + size - 1) &^ uint64(lineSize-1)
	lines := make([]uint64, 0, (end-start)/uint64(lineSize)+1)
	for base := start; ; base += uint64(lineSize) {
		lines = append(lines, base)
		if base >= end {
			break
		}
	}
	return lines
}

// processLineAccess routes one split line through the hierarchy,
// charges the first line of a split event against SourceStats (see
// DESIGN.md's Open Question decision — the spec redesigns the
// original "charge every split line" behavior), credits software
// prefetch usefulness on the first read of a prefetched line, and fires the optional
// event callback.
func (p *TraceProcessor) processLineAccess(lineAddr uint64, isWrite, isICache bool, file string, line uint32, threadID uint32, size uint64, chargeSource bool) {
	var result model.SystemAccessResult
	switch {
	case isICache:
		result = p.hierarchy.Fetch(lineAddr, 0)
	case isWrite:
		result = p.hierarchy.Write(lineAddr, 0)
	default:
		result = p.hierarchy.Read(lineAddr, 0)
	}

	// A software-prefetched line is credited useful on its first read
	// consumption, hit or miss: even a line already evicted again was
	// prefetched for this read. Writes neither credit nor clear the
	// entry, since a store never needed the prefetched data.
	if _, ok := p.swPrefetched[lineAddr]; ok && !isWrite {
		p.swPrefetchStats.Useful++
		delete(p.swPrefetched, lineAddr)
	}

	if chargeSource && file != "" {
		key := sourceKey(file, line)
		stats, ok := p.sourceStats[key]
		if !ok {
			stats = &model.SourceStats{File: file, Line: line, Threads: make(map[uint32]struct{})}
			p.sourceStats[key] = stats
		}
		stats.Threads[threadID] = struct{}{}
		if result.L1Hit {
			stats.Hits++
		} else {
			stats.Misses++
		}
	}

	if p.eventCallback != nil {
		p.eventCallback(model.EventResult{
			L1Hit: result.L1Hit, L2Hit: result.L2Hit, L3Hit: result.L3Hit,
			LineBase: lineAddr, Size: size, File: file, Line: line,
		})
	}
}

// dispatchSplit splits [addr, addr+size) into line accesses and routes
// each one, charging SourceStats only for the first line.
func (p *TraceProcessor) dispatchSplit(addr, size uint64, isWrite, isICache bool, file string, line uint32, threadID uint32) {
	lineSize := p.hierarchy.l1d.Config().LineSize
	if isICache {
		lineSize = p.hierarchy.l1i.Config().LineSize
	}
	for i, lineAddr := range splitLines(addr, size, lineSize) {
		p.processLineAccess(lineAddr, isWrite, isICache, file, line, threadID, size, i == 0)
	}
}

// Process dispatches one trace event, choosing exactly one branch of
// spec.md §4.7's table.
func (p *TraceProcessor) Process(event model.TraceEvent) {
	switch {
	case event.IsPrefetch:
		p.swPrefetchStats.Issued++
		lineSize := p.hierarchy.l1d.Config().LineSize
		lineAddr := event.Address &^ uint64(lineSize-1)
		p.hierarchy.Read(lineAddr, event.PC)
		p.swPrefetched[lineAddr] = struct{}{}

	case event.IsMemcpy || event.IsMemmove:
		if event.IsMemcpy {
			p.memStats.MemcpyCount++
			p.memStats.MemcpyBytes += event.Size
		} else {
			p.memStats.MemmoveCount++
			p.memStats.MemmoveBytes += event.Size
		}
		p.dispatchSplit(event.SrcAddress, event.Size, false, false, event.File, event.Line, event.ThreadID)
		p.dispatchSplit(event.Address, event.Size, true, false, event.File, event.Line, event.ThreadID)

	case event.IsMemset:
		p.memStats.MemsetCount++
		p.memStats.MemsetBytes += event.Size
		p.dispatchSplit(event.Address, event.Size, true, false, event.File, event.Line, event.ThreadID)

	default:
		if event.IsVector {
			if event.IsWrite {
				p.vectorStats.Stores++
				p.vectorStats.BytesStored += event.Size
			} else {
				p.vectorStats.Loads++
				p.vectorStats.BytesLoaded += event.Size
			}
			lineSize := p.hierarchy.l1d.Config().LineSize
			if len(splitLines(event.Address, event.Size, lineSize)) > 1 {
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

		p.dispatchSplit(event.Address, event.Size, event.IsWrite, event.IsICache, event.File, event.Line, event.ThreadID)
	}
}

// GetStats returns the underlying hierarchy's per-level statistics.
func (p *TraceProcessor) GetStats() model.HierarchyStats { return p.hierarchy.Stats() }

// GetHotLines returns up to limit SourceStats entries sorted by misses
// descending (spec.md §6's public API).
func (p *TraceProcessor) GetHotLines(limit int) []model.SourceStats {
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

// SoftwarePrefetchStats returns the explicit-hint prefetch counters,
// distinct from the hardware prefetcher's own stats.
func (p *TraceProcessor) SoftwarePrefetchStats() model.SoftwarePrefetchStats { return p.swPrefetchStats }

// VectorStats returns the accumulated vector/SIMD counters.
func (p *TraceProcessor) VectorStats() model.VectorStats { return p.vectorStats }

// AtomicStats returns the accumulated atomic-operation counters.
func (p *TraceProcessor) AtomicStats() model.AtomicStats { return p.atomicStats }

// MemoryIntrinsicStats returns the accumulated memcpy/memmove/memset
// counters.
func (p *TraceProcessor) MemoryIntrinsicStats() model.MemoryIntrinsicStats { return p.memStats }

// Reset clears every statistic and the hierarchy's own counters,
// without rebuilding cache contents.
func (p *TraceProcessor) Reset() {
	p.hierarchy.ResetStats()
	p.sourceStats = make(map[string]*model.SourceStats)
	p.swPrefetchStats = model.SoftwarePrefetchStats{}
	p.vectorStats = model.VectorStats{}
	p.atomicStats = model.AtomicStats{}
	p.memStats = model.MemoryIntrinsicStats{}
	p.swPrefetched = make(map[uint64]struct{})
}
