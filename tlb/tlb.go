// Package tlb implements a set-associative, LRU-replaced translation
// lookaside buffer keyed by virtual page number.
package tlb

import "github.com/ftahirops/cacheexplorer/model"

type entry struct {
	valid      bool
	page       uint64
	lastAccess uint64
}

// TLB is a set-associative page-number cache with LRU replacement,
// mirroring a data or instruction TLB.
type TLB struct {
	cfg      model.TLBConfig
	sets     [][]entry
	accessor uint64
	stats    model.TLBStats
}

// New builds a TLB from cfg.
func New(cfg model.TLBConfig) *TLB {
	numSets := cfg.NumSets()
	sets := make([][]entry, numSets)
	for i := range sets {
		sets[i] = make([]entry, cfg.Associativity)
	}
	return &TLB{cfg: cfg, sets: sets}
}

// Access translates addr's page, returning true on a hit and inserting
// an entry (possibly evicting the LRU way) on a miss.
func (t *TLB) Access(addr uint64) bool {
	page := t.cfg.Page(addr)
	setIdx := t.cfg.SetIndex(page)
	set := t.sets[setIdx]
	t.accessor++

	for i := range set {
		if set[i].valid && set[i].page == page {
			set[i].lastAccess = t.accessor
			t.stats.Hits++
			return true
		}
	}

	t.stats.Misses++

	way := 0
	oldest := ^uint64(0)
	for i := range set {
		if !set[i].valid {
			way = i
			break
		}
		if set[i].lastAccess < oldest {
			oldest = set[i].lastAccess
			way = i
		}
	}

	set[way].page = page
	set[way].valid = true
	set[way].lastAccess = t.accessor
	return false
}

// Invalidate drops addr's page translation if present.
func (t *TLB) Invalidate(addr uint64) {
	page := t.cfg.Page(addr)
	set := t.sets[t.cfg.SetIndex(page)]
	for i := range set {
		if set[i].valid && set[i].page == page {
			set[i].valid = false
			return
		}
	}
}

// Flush invalidates every entry.
func (t *TLB) Flush() {
	for s := range t.sets {
		for i := range t.sets[s] {
			t.sets[s][i].valid = false
		}
	}
}

// Stats returns a snapshot of this TLB's hit/miss counters.
func (t *TLB) Stats() model.TLBStats { return t.stats }

// ResetStats zeroes the hit/miss counters without flushing entries.
func (t *TLB) ResetStats() { t.stats = model.TLBStats{} }
