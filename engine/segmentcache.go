package engine

import (
	"container/list"

	"github.com/ftahirops/cacheexplorer/model"
)

const (
	defaultSegmentLength = 20
	defaultSegmentCap    = 10000

	fnvOffsetBasis = 14695981039346656037
	fnvPrime       = 1099511628211
)

// CachedSegmentResult aggregates every level's hit/miss/writeback
// counters and accumulated timing for one simulated window of events,
// so a SegmentCache hit can replay the counters directly instead of
// re-simulating (spec.md §4.8).
type CachedSegmentResult struct {
	L1D, L1I, L2, L3 model.CacheStats
	Timing           model.TimingStats
	SegmentLength    int
}

type segmentKey struct {
	patternHash    uint64
	cacheStateHash uint64
}

// SegmentCache memoizes simulation of repeating fixed-length windows of
// trace events, keyed by an FNV-1a hash of the window's access pattern
// (deliberately excluding source location, spec.md §4.8) combined with
// an externally supplied cache-state hash. Eviction is LRU at a
// configurable entry cap.
type SegmentCache struct {
	segmentLength int
	capacity      int

	entries map[segmentKey]*list.Element
	order   *list.List // front = most recently used

	hits   uint64
	misses uint64
}

type segmentCacheEntry struct {
	key    segmentKey
	result CachedSegmentResult
}

// NewSegmentCache builds a SegmentCache. segmentLength <= 0 defaults to
// 20 events; capacity <= 0 defaults to 10000 entries.
func NewSegmentCache(segmentLength, capacity int) *SegmentCache {
	if segmentLength <= 0 {
		segmentLength = defaultSegmentLength
	}
	if capacity <= 0 {
		capacity = defaultSegmentCap
	}
	return &SegmentCache{
		segmentLength: segmentLength,
		capacity:      capacity,
		entries:       make(map[segmentKey]*list.Element),
		order:         list.New(),
	}
}

// SegmentLength returns the fixed window size this cache keys on.
func (c *SegmentCache) SegmentLength() int { return c.segmentLength }

// HashPattern computes the FNV-1a hash of events[start:start+length]'s
// type-bits/address/size/thread_id, deliberately omitting source
// location so the same loop body hashes identically across iterations
// even if file/line bookkeeping differs.
func HashPattern(events []model.TraceEvent, start, length int) uint64 {
	hash := uint64(fnvOffsetBasis)
	end := start + length
	if end > len(events) {
		end = len(events)
	}
	for i := start; i < end; i++ {
		e := events[i]
		var typeBits uint64
		if e.IsWrite {
			typeBits |= 1
		}
		if e.IsICache {
			typeBits |= 2
		}
		if e.IsVector {
			typeBits |= 4
		}
		if e.IsAtomic {
			typeBits |= 8
		}
		if e.IsPrefetch {
			typeBits |= 16
		}
		hash ^= typeBits
		hash *= fnvPrime
		hash ^= e.Address
		hash *= fnvPrime
		hash ^= e.Size
		hash *= fnvPrime
		hash ^= uint64(e.ThreadID)
		hash *= fnvPrime
	}
	return hash
}

// Lookup returns a cached result for the segment of events starting at
// startIndex, if one exists at cacheStateHash. It reports false if
// fewer than SegmentLength events remain or nothing is cached.
func (c *SegmentCache) Lookup(events []model.TraceEvent, startIndex int, cacheStateHash uint64) (CachedSegmentResult, bool) {
	if startIndex+c.segmentLength > len(events) {
		return CachedSegmentResult{}, false
	}
	key := segmentKey{patternHash: HashPattern(events, startIndex, c.segmentLength), cacheStateHash: cacheStateHash}

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return CachedSegmentResult{}, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*segmentCacheEntry).result, true
}

// Store inserts result for the segment of events starting at
// startIndex at cacheStateHash, evicting the least-recently-used entry
// if the cache is at capacity. A segment too short to hash, or a key
// already present, is a no-op.
func (c *SegmentCache) Store(events []model.TraceEvent, startIndex int, cacheStateHash uint64, result CachedSegmentResult) {
	if startIndex+c.segmentLength > len(events) {
		return
	}
	key := segmentKey{patternHash: HashPattern(events, startIndex, c.segmentLength), cacheStateHash: cacheStateHash}
	if _, exists := c.entries[key]; exists {
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictLRU()
	}

	elem := c.order.PushFront(&segmentCacheEntry{key: key, result: result})
	c.entries[key] = elem
}

func (c *SegmentCache) evictLRU() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.entries, back.Value.(*segmentCacheEntry).key)
}

// Hits returns the number of successful lookups.
func (c *SegmentCache) Hits() uint64 { return c.hits }

// Misses returns the number of failed lookups.
func (c *SegmentCache) Misses() uint64 { return c.misses }

// HitRate is Hits / (Hits + Misses), 0 when both are zero.
func (c *SegmentCache) HitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Size returns the number of segments currently cached.
func (c *SegmentCache) Size() int { return len(c.entries) }

// Clear empties the cache and resets hit/miss counters.
func (c *SegmentCache) Clear() {
	c.entries = make(map[segmentKey]*list.Element)
	c.order = list.New()
	c.hits = 0
	c.misses = 0
}
