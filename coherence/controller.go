// Package coherence implements a directory-based MESI-like coherence
// controller shared by every core's L1 in a multi-core hierarchy.
package coherence

import "github.com/ftahirops/cacheexplorer/model"

// L1Cache is the subset of cacheline.CacheLevel the controller needs
// to snoop and invalidate other cores' private L1s. Core registration
// takes this interface rather than a concrete type, so the controller
// never holds anything but an integer core handle per sharer.
type L1Cache interface {
	IsPresent(addr uint64) bool
	IsDirty(addr uint64) bool
	Invalidate(addr uint64)
	GetLineForWriteback(addr uint64) (wasDirty, ok bool)
}

// Controller is a directory-based coherence controller: for each line
// address it knows which cores hold a copy (sharers) and which core
// (if any) holds it exclusively (owner).
type Controller struct {
	l1s []L1Cache

	sharers map[uint64][]int
	owner   map[uint64]int
}

// New builds a Controller sized for numCores cores; RegisterCache must
// be called once per core before any request is issued against it.
func New(numCores int) *Controller {
	return &Controller{
		l1s:     make([]L1Cache, numCores),
		sharers: make(map[uint64][]int),
		owner:   make(map[uint64]int),
	}
}

// RegisterCache associates coreID's private L1 with the controller.
func (c *Controller) RegisterCache(coreID int, cache L1Cache) {
	if coreID >= 0 && coreID < len(c.l1s) {
		c.l1s[coreID] = cache
	}
}

// RequestRead handles requestingCore wanting to satisfy a load. Every
// other core holding the line is added to its sharer set; a core
// holding it modified is downgraded (its dirty bit cleared, as if
// flushed) and reported as the data source.
func (c *Controller) RequestRead(requestingCore int, addr uint64) model.SnoopResult {
	var result model.SnoopResult

	for core, cache := range c.l1s {
		if core == requestingCore || cache == nil {
			continue
		}
		if cache.IsPresent(addr) {
			result.Found = true
			if cache.IsDirty(addr) {
				result.WasModified = true
				result.DataSourceCore = core
				cache.GetLineForWriteback(addr)
			}
			c.addSharer(addr, core)
		}
	}

	c.addSharer(addr, requestingCore)
	return result
}

// addSharer records core as a sharer of addr, keeping the list
// duplicate-free so sharer counts stay meaningful across repeated
// requests for the same line.
func (c *Controller) addSharer(addr uint64, core int) {
	for _, existing := range c.sharers[addr] {
		if existing == core {
			return
		}
	}
	c.sharers[addr] = append(c.sharers[addr], core)
}

// RequestExclusive handles requestingCore wanting to satisfy a store.
// Every other copy is invalidated; requestingCore becomes the sole
// owner and the sharer list is cleared.
func (c *Controller) RequestExclusive(requestingCore int, addr uint64) model.SnoopResult {
	var result model.SnoopResult

	for core, cache := range c.l1s {
		if core == requestingCore || cache == nil {
			continue
		}
		if cache.IsPresent(addr) {
			result.Found = true
			if cache.IsDirty(addr) {
				result.WasModified = true
				result.DataSourceCore = core
			}
			cache.Invalidate(addr)
		}
	}

	delete(c.sharers, addr)
	c.owner[addr] = requestingCore
	return result
}

// DetectFalseSharing reports whether addr's containing line currently
// has more than one recorded sharer. It is advisory only: the
// multi-core hierarchy's witness-based false-sharing detection does not
// call it.
func (c *Controller) DetectFalseSharing(addr uint64, lineSize int) bool {
	lineAddr := addr &^ uint64(lineSize-1)
	return len(c.sharers[lineAddr]) > 1
}

// EvictLine removes coreID from addr's sharer and owner records, called
// when coreID's L1 evicts its copy of the line.
func (c *Controller) EvictLine(coreID int, addr uint64) {
	if cores, ok := c.sharers[addr]; ok {
		filtered := cores[:0]
		for _, core := range cores {
			if core != coreID {
				filtered = append(filtered, core)
			}
		}
		if len(filtered) == 0 {
			delete(c.sharers, addr)
		} else {
			c.sharers[addr] = filtered
		}
	}
	if c.owner[addr] == coreID {
		delete(c.owner, addr)
	}
}

// SharerCount returns how many cores are currently recorded as holding
// addr's line.
func (c *Controller) SharerCount(addr uint64) int {
	return len(c.sharers[addr])
}
