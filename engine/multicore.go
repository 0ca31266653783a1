package engine

import (
	"github.com/ftahirops/cacheexplorer/cacheline"
	"github.com/ftahirops/cacheexplorer/coherence"
	"github.com/ftahirops/cacheexplorer/model"
	"github.com/ftahirops/cacheexplorer/prefetch"
	"github.com/ftahirops/cacheexplorer/tlb"
)

// lineWitness is one recorded access to a cache line, kept for false-
// sharing detection (spec.md §3's FalseSharingWitness).
type lineWitness struct {
	threadID   uint32
	byteOffset uint32
	isWrite    bool
	file       string
	line       uint32
}

// MultiCoreHierarchy composes a per-core private L1, a shared L2/L3, a
// directory-based coherence controller, per-core prefetchers and
// DTLBs, and a round-robin thread→core map, reproducing a multi-core
// CPU's memory subsystem (spec.md §4.6).
type MultiCoreHierarchy struct {
	numCores int
	lineSize int

	l1s         []*cacheline.CacheLevel
	prefetchers []*prefetch.Prefetcher
	dtlbs       []*tlb.TLB

	l2 *cacheline.CacheLevel
	l3 *cacheline.CacheLevel // nil when the hierarchy has no L3

	coherence *coherence.Controller

	threadToCore map[uint32]int
	nextCore     int

	witnesses         map[uint64][]lineWitness
	falseSharingSeen  map[uint64]struct{}
	lineInvalidations map[uint64]uint32

	coherenceInvalidations uint64
	falseSharingEvents     uint64

	prefetchEnabled bool
}

// l1CacheAdapter satisfies coherence.L1Cache for one core's
// cacheline.CacheLevel, so the controller only ever holds an integer
// core index plus this thin interface handle (spec.md §9's arena
// design note) — never a raw pointer the hierarchy doesn't itself own.
type l1CacheAdapter struct{ lvl *cacheline.CacheLevel }

func (a l1CacheAdapter) IsPresent(addr uint64) bool { return a.lvl.IsPresent(addr) }
func (a l1CacheAdapter) IsDirty(addr uint64) bool   { return a.lvl.IsDirty(addr) }
func (a l1CacheAdapter) Invalidate(addr uint64)     { a.lvl.Invalidate(addr) }
func (a l1CacheAdapter) GetLineForWriteback(addr uint64) (bool, bool) {
	return a.lvl.GetLineForWriteback(addr)
}

// NewMultiCoreHierarchy builds a hierarchy with numCores private L1s
// sharing l1Cfg's geometry, a shared L2/L3 from l2Cfg/l3Cfg (hasL3 false
// models "no L3" and l3Cfg is then ignored), and one independent
// prefetcher per core at the given policy/degree.
func NewMultiCoreHierarchy(numCores int, l1Cfg, l2Cfg, l3Cfg model.CacheConfig, hasL3 bool, pfPolicy model.PrefetchPolicy, pfDegree int) (*MultiCoreHierarchy, error) {
	l2, err := cacheline.New(l2Cfg)
	if err != nil {
		return nil, err
	}
	var l3 *cacheline.CacheLevel
	if hasL3 {
		l3, err = cacheline.New(l3Cfg)
		if err != nil {
			return nil, err
		}
	}

	h := &MultiCoreHierarchy{
		numCores:         numCores,
		lineSize:         l1Cfg.LineSize,
		l1s:              make([]*cacheline.CacheLevel, numCores),
		prefetchers:      make([]*prefetch.Prefetcher, numCores),
		dtlbs:            make([]*tlb.TLB, numCores),
		l2:               l2,
		l3:               l3,
		coherence:        coherence.New(numCores),
		threadToCore:     make(map[uint32]int),
		witnesses:         make(map[uint64][]lineWitness),
		falseSharingSeen:  make(map[uint64]struct{}),
		lineInvalidations: make(map[uint64]uint32),
		prefetchEnabled:  pfPolicy != model.PrefetchNone,
	}

	for i := 0; i < numCores; i++ {
		l1, err := cacheline.New(l1Cfg)
		if err != nil {
			return nil, err
		}
		h.l1s[i] = l1
		h.coherence.RegisterCache(i, l1CacheAdapter{l1})
		h.prefetchers[i] = prefetch.New(pfPolicy, pfDegree, l1Cfg.LineSize)
		h.dtlbs[i] = tlb.New(model.DefaultTLBConfig())
	}

	return h, nil
}

func (h *MultiCoreHierarchy) hasL3() bool { return h.l3 != nil }

// CoreForThread resolves thread to a core, assigning the next core in
// round-robin order on first appearance and remembering it thereafter.
func (h *MultiCoreHierarchy) CoreForThread(thread uint32) int {
	if core, ok := h.threadToCore[thread]; ok {
		return core
	}
	core := h.nextCore % h.numCores
	h.threadToCore[thread] = core
	h.nextCore++
	return core
}

func (h *MultiCoreHierarchy) lineBase(addr uint64) uint64 {
	return addr &^ uint64(h.lineSize-1)
}

// trackFalseSharing appends one witness to addr's line and, when this
// access is the one that first makes the line qualify (≥2 threads, ≥2
// distinct byte offsets, and ≥1 write among its witnesses), adds the
// line to falseSharingSeen and counts one false-sharing event (spec.md §3/§9 — decided independently of the coherence
// directory, which over-reports true sharing).
func (h *MultiCoreHierarchy) trackFalseSharing(addr uint64, thread uint32, isWrite bool, file string, line uint32) {
	lineAddr := h.lineBase(addr)
	byteOffset := uint32(addr & uint64(h.lineSize-1))

	h.witnesses[lineAddr] = append(h.witnesses[lineAddr], lineWitness{
		threadID: thread, byteOffset: byteOffset, isWrite: isWrite, file: file, line: line,
	})

	threads := make(map[uint32]struct{})
	offsets := make(map[uint32]struct{})
	hasWrite := false
	for _, w := range h.witnesses[lineAddr] {
		threads[w.threadID] = struct{}{}
		offsets[w.byteOffset] = struct{}{}
		if w.isWrite {
			hasWrite = true
		}
	}

	if len(threads) > 1 && len(offsets) > 1 && hasWrite {
		if _, already := h.falseSharingSeen[lineAddr]; !already {
			h.falseSharingSeen[lineAddr] = struct{}{}
			h.falseSharingEvents++
		}
	}
}

// issuePrefetches mirrors SingleCoreHierarchy.issuePrefetches for one
// core, tagging fills with Shared or Exclusive depending on whether any
// peer core currently holds the line (spec.md §4.6 step 4).
func (h *MultiCoreHierarchy) issuePrefetches(core int, missAddr, pc uint64) {
	if !h.prefetchEnabled {
		return
	}
	l1 := h.l1s[core]
	for _, pfAddr := range h.prefetchers[core].OnMiss(missAddr, pc) {
		lineAddr := h.lineBase(pfAddr)
		if l1.IsPresent(lineAddr) {
			continue
		}

		othersHaveIt := false
		for other := 0; other < h.numCores; other++ {
			if other == core {
				continue
			}
			if h.l1s[other].IsPresent(lineAddr) {
				othersHaveIt = true
				break
			}
		}
		state := model.StateExclusive
		if othersHaveIt {
			state = model.StateShared
		}

		if !h.l2.IsPresent(lineAddr) {
			if h.hasL3() {
				h.l3.Access(lineAddr, false)
			}
			h.l2.Install(lineAddr, false)
		}
		if info := l1.InstallWithState(lineAddr, state); info.HadEviction {
			h.coherence.EvictLine(core, info.EvictedAddress)
		}
	}
}

// Read performs a demand load from thread, resolving its core, tracking
// false sharing, and routing the access through that core's L1, the
// coherence controller, and the shared L2/L3 (spec.md §4.6).
func (h *MultiCoreHierarchy) Read(addr uint64, thread uint32, pc uint64, file string, line uint32) model.MultiCoreAccessResult {
	core := h.CoreForThread(thread)
	h.trackFalseSharing(addr, thread, false, file, line)

	h.dtlbs[core].Access(addr)

	lineAddr := h.lineBase(addr)
	l1 := h.l1s[core]

	l1Info := l1.Access(lineAddr, false)
	if l1Info.Result == model.Hit {
		return model.MultiCoreAccessResult{L1Hit: true}
	}
	if l1Info.HadEviction {
		h.coherence.EvictLine(core, l1Info.EvictedAddress)
	}

	h.issuePrefetches(core, lineAddr, pc)

	snoop := h.coherence.RequestRead(core, lineAddr)
	if snoop.WasModified {
		h.coherenceInvalidations++
		h.lineInvalidations[lineAddr]++
		h.l1s[snoop.DataSourceCore].DowngradeToShared(lineAddr)
	}

	newState := model.StateExclusive
	if snoop.Found {
		newState = model.StateShared
	}

	l2Info := h.l2.Access(lineAddr, false)
	if l2Info.Result == model.Hit {
		l1.InstallWithState(lineAddr, newState)
		return model.MultiCoreAccessResult{L2Hit: true}
	}

	var l3Hit bool
	if h.hasL3() {
		l3Info := h.l3.Access(lineAddr, false)
		l3Hit = l3Info.Result == model.Hit
	}
	h.l2.Install(lineAddr, false)
	l1.InstallWithState(lineAddr, newState)

	return model.MultiCoreAccessResult{L3Hit: l3Hit, MemoryAccess: !l3Hit}
}

// Write performs a demand store from thread, mirroring Read but always
// requesting exclusive ownership and installing/upgrading to Modified
// (spec.md §4.6's write routing).
func (h *MultiCoreHierarchy) Write(addr uint64, thread uint32, pc uint64, file string, line uint32) model.MultiCoreAccessResult {
	core := h.CoreForThread(thread)
	h.trackFalseSharing(addr, thread, true, file, line)

	h.dtlbs[core].Access(addr)

	lineAddr := h.lineBase(addr)
	l1 := h.l1s[core]

	snoop := h.coherence.RequestExclusive(core, lineAddr)
	if snoop.Found {
		h.coherenceInvalidations++
		h.lineInvalidations[lineAddr]++
	}

	l1Info := l1.Access(lineAddr, true)
	if l1Info.Result == model.Hit {
		l1.SetCoherenceState(lineAddr, model.StateModified)
		return model.MultiCoreAccessResult{L1Hit: true}
	}
	if l1Info.HadEviction {
		h.coherence.EvictLine(core, l1Info.EvictedAddress)
	}

	h.issuePrefetches(core, lineAddr, pc)

	l2Info := h.l2.Access(lineAddr, false)
	if l2Info.Result == model.Hit {
		l1.InstallWithState(lineAddr, model.StateModified)
		return model.MultiCoreAccessResult{L2Hit: true}
	}

	var l3Hit bool
	if h.hasL3() {
		l3Info := h.l3.Access(lineAddr, false)
		l3Hit = l3Info.Result == model.Hit
	}
	h.l2.Install(lineAddr, false)
	l1.InstallWithState(lineAddr, model.StateModified)

	return model.MultiCoreAccessResult{L3Hit: l3Hit, MemoryAccess: !l3Hit}
}

// Stats returns a snapshot of every core's L1, the shared L2/L3, and
// the coherence/false-sharing counters.
func (h *MultiCoreHierarchy) Stats() model.MultiCoreStats {
	perCore := make([]model.CacheStats, h.numCores)
	for i, l1 := range h.l1s {
		perCore[i] = l1.Stats()
	}
	var l3Stats model.CacheStats
	if h.hasL3() {
		l3Stats = h.l3.Stats()
	}
	return model.MultiCoreStats{
		L1PerCore:              perCore,
		L2:                     h.l2.Stats(),
		L3:                     l3Stats,
		HasL3:                  h.hasL3(),
		CoherenceInvalidations: h.coherenceInvalidations,
		FalseSharingEvents:     h.falseSharingEvents,
	}
}

// L1StatsForCore returns core's private L1 counters, or a zero value
// for an out-of-range core id (spec.md §7's OutOfRange semantics).
func (h *MultiCoreHierarchy) L1StatsForCore(core int) model.CacheStats {
	if core < 0 || core >= h.numCores {
		return model.CacheStats{}
	}
	return h.l1s[core].Stats()
}

// TLBStatsForCore returns core's DTLB counters, or a zero value for an
// out-of-range core id.
func (h *MultiCoreHierarchy) TLBStatsForCore(core int) model.TLBStats {
	if core < 0 || core >= h.numCores {
		return model.TLBStats{}
	}
	return h.dtlbs[core].Stats()
}

// PrefetchStatsForCore returns core's prefetcher counters, or a zero
// value for an out-of-range core id.
func (h *MultiCoreHierarchy) PrefetchStatsForCore(core int) model.PrefetchStats {
	if core < 0 || core >= h.numCores {
		return model.PrefetchStats{}
	}
	return h.prefetchers[core].Stats()
}

// GetFalseSharingReports returns one report per line that crossed the
// false-sharing threshold, listing every witnessed access.
func (h *MultiCoreHierarchy) GetFalseSharingReports() []model.FalseSharingReport {
	reports := make([]model.FalseSharingReport, 0, len(h.falseSharingSeen))
	for lineAddr := range h.falseSharingSeen {
		accesses := make([]model.FalseSharingAccess, 0, len(h.witnesses[lineAddr]))
		for _, w := range h.witnesses[lineAddr] {
			accesses = append(accesses, model.FalseSharingAccess{
				ThreadID: w.threadID, ByteOffset: w.byteOffset, IsWrite: w.isWrite,
				File: w.file, Line: w.line,
			})
		}
		reports = append(reports, model.FalseSharingReport{
			CacheLineAddr:     lineAddr,
			Accesses:          accesses,
			InvalidationCount: h.lineInvalidations[lineAddr],
		})
	}
	return reports
}

// SetFastMode disables (enable=true) or enables (enable=false) the
// per-level 3C miss classification on every core's L1 and the shared
// L2/L3, mirroring SingleCoreHierarchy.SetFastMode.
func (h *MultiCoreHierarchy) SetFastMode(enable bool) {
	for _, l1 := range h.l1s {
		l1.SetTrack3C(!enable)
	}
	h.l2.SetTrack3C(!enable)
	if h.hasL3() {
		h.l3.SetTrack3C(!enable)
	}
}

// NumCores returns the number of cores this hierarchy was built with.
func (h *MultiCoreHierarchy) NumCores() int { return h.numCores }

// L1ForCore exposes one core's L1 for read-only inspection (e.g. by
// the optimization suggester or a live dashboard).
func (h *MultiCoreHierarchy) L1ForCore(core int) *cacheline.CacheLevel {
	if core < 0 || core >= h.numCores {
		return nil
	}
	return h.l1s[core]
}
