// Package prefetch implements the hardware prefetch detectors: a fixed
// next-line prefetcher, a per-page stream detector, a per-PC stride
// detector, and the adaptive/Intel-like policies that combine them.
package prefetch

import "github.com/ftahirops/cacheexplorer/model"

const (
	numStreamEntries          = 16
	streamConfidenceThreshold = 2
	streamMaxConfidence       = 8
	strideConfidenceThreshold = 2
	strideMaxConfidence       = 8
)

// streamEntry tracks one candidate sequential stream, keyed implicitly
// by the page its last access fell in.
type streamEntry struct {
	startAddr  uint64
	lastAddr   uint64
	direction  int
	confidence int
	valid      bool
}

// strideEntry tracks the most recent constant-stride pattern observed
// at one program counter.
type strideEntry struct {
	lastAddr   uint64
	stride     int64
	confidence int
	valid      bool
}

// Prefetcher issues prefetch-candidate addresses on a demand miss,
// according to its configured model.PrefetchPolicy.
type Prefetcher struct {
	policy   model.PrefetchPolicy
	degree   int
	lineSize int

	streamTable [numStreamEntries]streamEntry
	strideTable map[uint64]*strideEntry

	stats model.PrefetchStats
}

// New builds a Prefetcher. degree is how many lines ahead to issue per
// detection; lineSize must match the L1 data cache's line size.
func New(policy model.PrefetchPolicy, degree, lineSize int) *Prefetcher {
	return &Prefetcher{
		policy:      policy,
		degree:      degree,
		lineSize:    lineSize,
		strideTable: make(map[uint64]*strideEntry),
	}
}

func (p *Prefetcher) lineAddr(addr uint64) uint64 {
	return addr &^ uint64(p.lineSize-1)
}

func page(addr uint64) uint64 { return addr >> 12 }

// Policy returns the active detection policy.
func (p *Prefetcher) Policy() model.PrefetchPolicy { return p.policy }

// SetPolicy changes the active detection policy.
func (p *Prefetcher) SetPolicy(policy model.PrefetchPolicy) { p.policy = policy }

// Degree returns how many lines ahead a detection issues.
func (p *Prefetcher) Degree() int { return p.degree }

// SetDegree changes how many lines ahead a detection issues.
func (p *Prefetcher) SetDegree(degree int) { p.degree = degree }

// Stats returns a snapshot of this prefetcher's issued/useful/late/
// useless counters.
func (p *Prefetcher) Stats() model.PrefetchStats { return p.stats }

// ResetStats zeroes every counter.
func (p *Prefetcher) ResetStats() { p.stats.Reset() }

// RecordUsefulPrefetch credits a prefetched line that was later
// consumed by a demand access.
func (p *Prefetcher) RecordUsefulPrefetch() { p.stats.Useful++ }

// RecordLatePrefetch credits a prefetch whose demand access arrived
// before the fill completed, providing no latency benefit.
func (p *Prefetcher) RecordLatePrefetch() { p.stats.Late++ }

// RecordUselessPrefetch credits a prefetched line evicted before any
// demand access consumed it.
func (p *Prefetcher) RecordUselessPrefetch() { p.stats.Useless++ }

// OnMiss is called on every demand miss and returns the line-base
// addresses this prefetcher wants installed, if any. pc is 0 when the
// trace event carries no program-counter information.
func (p *Prefetcher) OnMiss(addr, pc uint64) []uint64 {
	var addrs []uint64
	switch p.policy {
	case model.PrefetchNone:
	case model.PrefetchNextLine:
		addrs = p.nextLinePrefetch(addr)
	case model.PrefetchStream:
		addrs = p.streamPrefetch(addr)
	case model.PrefetchStride:
		addrs = p.stridePrefetch(addr, pc)
	case model.PrefetchAdaptive:
		addrs = p.adaptivePrefetch(addr, pc)
	case model.PrefetchIntel:
		addrs = p.intelPrefetch(addr, pc)
	}
	p.stats.Issued += uint64(len(addrs))
	return addrs
}

func (p *Prefetcher) nextLinePrefetch(addr uint64) []uint64 {
	line := p.lineAddr(addr)
	result := make([]uint64, 0, p.degree)
	for i := 1; i <= p.degree; i++ {
		result = append(result, line+uint64(i)*uint64(p.lineSize))
	}
	return result
}

func (p *Prefetcher) streamPrefetch(addr uint64) []uint64 {
	p.updateStreamTable(addr)

	line := p.lineAddr(addr)
	pg := page(addr)
	var result []uint64

	for i := range p.streamTable {
		entry := &p.streamTable[i]
		if !entry.valid || page(entry.lastAddr) != pg {
			continue
		}
		if entry.confidence >= streamConfidenceThreshold {
			for n := 1; n <= p.degree; n++ {
				pf := uint64(int64(line) + int64(entry.direction)*int64(n)*int64(p.lineSize))
				if page(pf) == pg {
					result = append(result, pf)
				}
			}
			break
		}
	}
	return result
}

func (p *Prefetcher) updateStreamTable(addr uint64) {
	line := p.lineAddr(addr)
	pg := page(addr)

	for i := range p.streamTable {
		entry := &p.streamTable[i]
		if !entry.valid || page(entry.lastAddr) != pg {
			continue
		}

		delta := int64(line) - int64(entry.lastAddr)
		switch {
		case delta == int64(p.lineSize) && entry.direction >= 0:
			entry.lastAddr = line
			entry.direction = 1
			entry.confidence = min(entry.confidence+1, streamMaxConfidence)
			return
		case delta == -int64(p.lineSize) && entry.direction <= 0:
			entry.lastAddr = line
			entry.direction = -1
			entry.confidence = min(entry.confidence+1, streamMaxConfidence)
			return
		case abs64(delta) <= 4*int64(p.lineSize):
			entry.confidence--
			if entry.confidence <= 0 {
				entry.valid = false
			}
			return
		}
	}

	for i := range p.streamTable {
		entry := &p.streamTable[i]
		if !entry.valid {
			*entry = streamEntry{startAddr: line, lastAddr: line, confidence: 1, valid: true}
			return
		}
	}

	minIdx := 0
	minConf := p.streamTable[0].confidence
	for i := 1; i < len(p.streamTable); i++ {
		if p.streamTable[i].confidence < minConf {
			minConf = p.streamTable[i].confidence
			minIdx = i
		}
	}
	p.streamTable[minIdx] = streamEntry{startAddr: line, lastAddr: line, confidence: 1, valid: true}
}

func (p *Prefetcher) stridePrefetch(addr, pc uint64) []uint64 {
	p.updateStrideTable(addr, pc)

	entry, ok := p.strideTable[pc]
	if !ok || !entry.valid || entry.confidence < strideConfidenceThreshold || entry.stride == 0 {
		return nil
	}

	line := p.lineAddr(addr)
	result := make([]uint64, 0, p.degree)
	for i := 1; i <= p.degree; i++ {
		result = append(result, uint64(int64(line)+int64(i)*entry.stride))
	}
	return result
}

func (p *Prefetcher) updateStrideTable(addr, pc uint64) {
	if pc == 0 {
		return
	}
	line := p.lineAddr(addr)

	entry, ok := p.strideTable[pc]
	if !ok {
		p.strideTable[pc] = &strideEntry{lastAddr: line, confidence: 1, valid: true}
		return
	}

	newStride := int64(line) - int64(entry.lastAddr)
	if entry.stride == 0 {
		entry.stride = newStride
		entry.lastAddr = line
		return
	}

	if newStride == entry.stride {
		entry.confidence = min(entry.confidence+1, strideMaxConfidence)
	} else {
		entry.confidence--
		if entry.confidence <= 0 {
			entry.stride = newStride
			entry.confidence = 1
		}
	}
	entry.lastAddr = line
}

// adaptivePrefetch tries the more specific stride detector first,
// falling back to the stream detector when stride finds nothing.
func (p *Prefetcher) adaptivePrefetch(addr, pc uint64) []uint64 {
	if result := p.stridePrefetch(addr, pc); len(result) > 0 {
		return result
	}
	return p.streamPrefetch(addr)
}

// intelPrefetch models Intel-style adjacent-line-plus-adaptive
// prefetching. The adjacent-line stage is intentionally disabled: it
// measurably hurt accuracy in the reference simulator this is modeled
// on, so only the adaptive stage runs.
func (p *Prefetcher) intelPrefetch(addr, pc uint64) []uint64 {
	return p.adaptivePrefetch(addr, pc)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
