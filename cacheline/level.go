// Package cacheline implements one set-associative cache level: tag
// storage, hit/miss detection, and the replacement policies (LRU, PLRU,
// random, SRRIP, BRRIP) a CacheLevel can be configured with.
package cacheline

import (
	"container/list"
	"math/rand"

	"github.com/ftahirops/cacheexplorer/model"
)

// cacheLine is never exported: callers only ever see line-base addresses
// and AccessInfo results, never a line handle.
type cacheLine struct {
	valid bool
	tag   uint64
	dirty bool

	lruTime uint64
	rrpv    uint8

	coherence model.CoherenceState
}

// randSeed is the fixed default seed for the RANDOM and BRRIP policies'
// PRNG, so two runs over the same trace reproduce the same eviction
// decisions.
const randSeed = 0x5eed

// CacheLevel is one set-associative array of cache lines governed by a
// single model.CacheConfig.
type CacheLevel struct {
	cfg  model.CacheConfig
	sets [][]cacheLine

	// plruBits holds one tree-bit-vector per set for the PLRU policy,
	// packed as a bitmask indexed by the tree-node numbering used in
	// findVictimPLRU/updateReplacementState.
	plruBits []uint64

	accessTime uint64
	rng        *rand.Rand
	stats      model.CacheStats

	track3C    bool
	mruStack   *list.List
	mruIndex   map[uint64]*list.Element
	totalLines int
}

// New builds a CacheLevel from cfg, returning model.ErrConfigInvalid if
// cfg fails validation.
func New(cfg model.CacheConfig) (*CacheLevel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	numSets := cfg.NumSets()
	sets := make([][]cacheLine, numSets)
	for i := range sets {
		sets[i] = make([]cacheLine, cfg.Associativity)
	}
	return &CacheLevel{
		cfg:        cfg,
		sets:       sets,
		plruBits:   make([]uint64, numSets),
		rng:        rand.New(rand.NewSource(randSeed)),
		mruStack:   list.New(),
		mruIndex:   make(map[uint64]*list.Element),
		totalLines: numSets * cfg.Associativity,
	}, nil
}

// Config returns the geometry and policy this level was built with.
func (c *CacheLevel) Config() model.CacheConfig { return c.cfg }

// Stats returns a snapshot of this level's accumulated counters.
func (c *CacheLevel) Stats() model.CacheStats { return c.stats }

// ResetStats zeroes every counter without disturbing cache contents.
func (c *CacheLevel) ResetStats() { c.stats.Reset() }

// SetTrack3C enables or disables compulsory/capacity/conflict miss
// classification. Disabled by default: classification costs an extra
// map lookup and LRU-stack move per access, matching the --fast flag's
// documented effect.
func (c *CacheLevel) SetTrack3C(enabled bool) { c.track3C = enabled }

func (c *CacheLevel) findVictim(setIndex uint64) int {
	set := c.sets[setIndex]
	for i := range set {
		if !set[i].valid {
			return i
		}
	}
	switch c.cfg.Policy {
	case model.LRU:
		return c.findVictimLRU(set)
	case model.PLRU:
		return c.findVictimPLRU(setIndex)
	case model.Random:
		return c.rng.Intn(c.cfg.Associativity)
	case model.SRRIP, model.BRRIP:
		return c.findVictimRRIP(set)
	default:
		return c.findVictimLRU(set)
	}
}

func (c *CacheLevel) findVictimLRU(set []cacheLine) int {
	victim := 0
	oldest := set[0].lruTime
	for i := 1; i < len(set); i++ {
		if set[i].lruTime < oldest {
			oldest = set[i].lruTime
			victim = i
		}
	}
	return victim
}

// findVictimPLRU walks the binary tree of per-set direction bits,
// following the path that has pointed away from recent accesses.
func (c *CacheLevel) findVictimPLRU(setIndex uint64) int {
	bits := c.plruBits[setIndex]
	assoc := c.cfg.Associativity
	node := 0
	way := 0
	for level := assoc / 2; level >= 1; level /= 2 {
		if bits&(1<<uint(node)) != 0 {
			way += level
			node = 2*node + 2
		} else {
			node = 2*node + 1
		}
	}
	return way
}

// updateReplacementState flips the PLRU bits along the path to way so
// that every other leaf becomes more likely to be chosen next.
func (c *CacheLevel) updateReplacementState(setIndex uint64, way int) {
	if c.cfg.Policy != model.PLRU {
		return
	}
	bits := &c.plruBits[setIndex]
	assoc := c.cfg.Associativity
	node := 0
	rangeStart := 0
	rangeSize := assoc
	for rangeSize > 1 {
		mid := rangeStart + rangeSize/2
		if way < mid {
			*bits |= 1 << uint(node)
			rangeSize /= 2
			node = 2*node + 1
		} else {
			*bits &^= 1 << uint(node)
			rangeStart = mid
			rangeSize /= 2
			node = 2*node + 2
		}
	}
}

// findVictimRRIP implements SRRIP/BRRIP eviction: a line with RRPV 3 is
// the victim; if none exists every RRPV is incremented and the search
// repeats.
func (c *CacheLevel) findVictimRRIP(set []cacheLine) int {
	for {
		for i := range set {
			if set[i].rrpv >= 3 {
				return i
			}
		}
		for i := range set {
			if set[i].rrpv < 3 {
				set[i].rrpv++
			}
		}
	}
}

// insertRRPV returns the RRPV a freshly installed line should start at.
func (c *CacheLevel) insertRRPV() uint8 {
	switch c.cfg.Policy {
	case model.SRRIP:
		return 2
	case model.BRRIP:
		if c.rng.Intn(32) == 0 {
			return 2
		}
		return 3
	default:
		return 0
	}
}

// classify3C attributes a miss to compulsory, capacity, or conflict by
// comparing the line's position in a fully-associative LRU stack of the
// same total capacity against the real set-associative outcome (the
// classic Hill & Smith stack-distance method).
func (c *CacheLevel) classify3C(addr uint64) {
	if !c.track3C {
		return
	}
	lineBase := c.cfg.LineBase(addr)
	elem, seen := c.mruIndex[lineBase]
	if !seen {
		e := c.mruStack.PushFront(lineBase)
		c.mruIndex[lineBase] = e
		c.stats.Compulsory++
		return
	}
	depth := 1
	for e := c.mruStack.Front(); e != elem; e = e.Next() {
		depth++
	}
	c.mruStack.MoveToFront(elem)
	if depth <= c.totalLines {
		c.stats.Conflict++
	} else {
		c.stats.Capacity++
	}
}

func (c *CacheLevel) touch3C(addr uint64) {
	if !c.track3C {
		return
	}
	lineBase := c.cfg.LineBase(addr)
	if elem, seen := c.mruIndex[lineBase]; seen {
		c.mruStack.MoveToFront(elem)
		return
	}
	e := c.mruStack.PushFront(lineBase)
	c.mruIndex[lineBase] = e
}

// Access performs a demand read or write: it updates hit/miss stats and
// the replacement state, installing a new line on a miss.
func (c *CacheLevel) Access(addr uint64, isWrite bool) model.AccessInfo {
	tag := c.cfg.Tag(addr)
	index := c.cfg.Index(addr)
	set := c.sets[index]

	c.accessTime++

	for way := range set {
		if set[way].valid && set[way].tag == tag {
			set[way].lruTime = c.accessTime
			if c.cfg.Policy == model.SRRIP || c.cfg.Policy == model.BRRIP {
				set[way].rrpv = 0
			}
			c.updateReplacementState(index, way)
			if isWrite {
				set[way].dirty = true
			}
			c.stats.Hits++
			c.touch3C(addr)
			return model.AccessInfo{Result: model.Hit}
		}
	}

	c.stats.Misses++
	c.classify3C(addr)

	victim := c.findVictim(index)
	hadEviction := set[victim].valid
	wasDirty := hadEviction && set[victim].dirty
	var evictedAddr uint64
	if hadEviction {
		evictedAddr = c.cfg.Rebuild(set[victim].tag, index)
	}
	if wasDirty {
		c.stats.Writebacks++
	}

	set[victim].tag = tag
	set[victim].valid = true
	set[victim].dirty = isWrite
	set[victim].lruTime = c.accessTime
	set[victim].rrpv = c.insertRRPV()
	c.updateReplacementState(index, victim)

	result := model.Miss
	if hadEviction {
		result = model.MissWithEviction
	}
	return model.AccessInfo{Result: result, WasDirty: wasDirty, EvictedAddress: evictedAddr, HadEviction: hadEviction}
}

// Install places a line in the cache without touching hit/miss
// counters, used for hardware-prefetch fills and for coherence fills
// that bypass the demand-access stats path.
func (c *CacheLevel) Install(addr uint64, isDirty bool) model.AccessInfo {
	tag := c.cfg.Tag(addr)
	index := c.cfg.Index(addr)
	set := c.sets[index]

	c.accessTime++

	for way := range set {
		if set[way].valid && set[way].tag == tag {
			set[way].lruTime = c.accessTime
			set[way].dirty = set[way].dirty || isDirty
			if c.cfg.Policy == model.SRRIP || c.cfg.Policy == model.BRRIP {
				set[way].rrpv = 0
			}
			c.updateReplacementState(index, way)
			return model.AccessInfo{Result: model.Hit}
		}
	}

	victim := c.findVictim(index)
	hadEviction := set[victim].valid
	wasDirty := hadEviction && set[victim].dirty
	var evictedAddr uint64
	if hadEviction {
		evictedAddr = c.cfg.Rebuild(set[victim].tag, index)
	}
	if wasDirty {
		c.stats.Writebacks++
	}

	set[victim].tag = tag
	set[victim].valid = true
	set[victim].dirty = isDirty
	set[victim].lruTime = c.accessTime
	set[victim].rrpv = c.insertRRPV()
	c.updateReplacementState(index, victim)

	result := model.Miss
	if hadEviction {
		result = model.MissWithEviction
	}
	return model.AccessInfo{Result: result, WasDirty: wasDirty, EvictedAddress: evictedAddr, HadEviction: hadEviction}
}

// InstallWithState places a line in the cache tagged with an explicit
// coherence state, used by MultiCoreHierarchy when a core's L1 fills
// from a coherence-tracked peer or from L2/L3 (spec.md §4.5's
// install_with_state). It never touches hit/miss counters.
func (c *CacheLevel) InstallWithState(addr uint64, state model.CoherenceState) model.AccessInfo {
	tag := c.cfg.Tag(addr)
	index := c.cfg.Index(addr)
	set := c.sets[index]

	c.accessTime++

	for way := range set {
		if set[way].valid && set[way].tag == tag {
			set[way].lruTime = c.accessTime
			set[way].coherence = state
			if state == model.StateModified {
				set[way].dirty = true
			}
			if c.cfg.Policy == model.SRRIP || c.cfg.Policy == model.BRRIP {
				set[way].rrpv = 0
			}
			c.updateReplacementState(index, way)
			return model.AccessInfo{Result: model.Hit}
		}
	}

	victim := c.findVictim(index)
	hadEviction := set[victim].valid
	wasDirty := hadEviction && set[victim].dirty
	var evictedAddr uint64
	if hadEviction {
		evictedAddr = c.cfg.Rebuild(set[victim].tag, index)
	}
	if wasDirty {
		c.stats.Writebacks++
	}

	set[victim].tag = tag
	set[victim].valid = true
	set[victim].dirty = state == model.StateModified
	set[victim].coherence = state
	set[victim].lruTime = c.accessTime
	set[victim].rrpv = c.insertRRPV()
	c.updateReplacementState(index, victim)

	result := model.Miss
	if hadEviction {
		result = model.MissWithEviction
	}
	return model.AccessInfo{Result: result, WasDirty: wasDirty, EvictedAddress: evictedAddr, HadEviction: hadEviction}
}

// GetCoherenceState reports addr's current MESI-like state, Invalid if
// the line is absent.
func (c *CacheLevel) GetCoherenceState(addr uint64) model.CoherenceState {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			return set[way].coherence
		}
	}
	return model.StateInvalid
}

// SetCoherenceState transitions addr's line to state in place, used to
// upgrade an L1 hit (S or E) to Modified on a store.
func (c *CacheLevel) SetCoherenceState(addr uint64, state model.CoherenceState) {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			set[way].coherence = state
			if state == model.StateModified {
				set[way].dirty = true
			}
			return
		}
	}
}

// IsPresent reports whether addr's line currently holds valid data.
func (c *CacheLevel) IsPresent(addr uint64) bool {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			return true
		}
	}
	return false
}

// IsDirty reports whether addr's line is present and holds modified
// data. Absent lines report false.
func (c *CacheLevel) IsDirty(addr uint64) bool {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			return set[way].dirty
		}
	}
	return false
}

// Invalidate drops addr's line if present, counting an invalidation.
func (c *CacheLevel) Invalidate(addr uint64) {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			set[way].valid = false
			set[way].dirty = false
			set[way].coherence = model.StateInvalid
			c.stats.Invalidations++
			return
		}
	}
}

// DowngradeToShared clears a line's dirty bit without invalidating it,
// the local effect of a coherence downgrade from Modified/Exclusive to
// Shared. It reports whether the line had to flush dirty data first.
func (c *CacheLevel) DowngradeToShared(addr uint64) bool {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			wasDirty := set[way].dirty
			set[way].dirty = false
			set[way].coherence = model.StateShared
			return wasDirty
		}
	}
	return false
}

// GetLineForWriteback reports whether addr is present, and if so clears
// its dirty bit as if its data had just been flushed to the next level.
func (c *CacheLevel) GetLineForWriteback(addr uint64) (wasDirty, ok bool) {
	tag := c.cfg.Tag(addr)
	set := c.sets[c.cfg.Index(addr)]
	for way := range set {
		if set[way].valid && set[way].tag == tag {
			wasDirty = set[way].dirty
			set[way].dirty = false
			return wasDirty, true
		}
	}
	return false, false
}

// GetAllAddresses returns the line-base address of every valid line,
// used to list a level's contents (e.g. in tests).
func (c *CacheLevel) GetAllAddresses() []uint64 {
	var addrs []uint64
	for index := range c.sets {
		for way := range c.sets[index] {
			line := c.sets[index][way]
			if line.valid {
				addrs = append(addrs, c.cfg.Rebuild(line.tag, uint64(index)))
			}
		}
	}
	return addrs
}
