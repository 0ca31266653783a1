package model

import (
	"fmt"
	"math/bits"
)

// ErrConfigInvalid is the sentinel a CacheConfig or CacheHierarchyConfig
// validation failure wraps. Matches spec.md's ConfigInvalid error kind.
var ErrConfigInvalid = fmt.Errorf("cache config invalid")

// CacheConfig is the immutable description of one set-associative cache
// level. SizeBytes, Associativity, and LineSize determine NumSets; all
// three geometry fields must make NumSets a positive power of two.
type CacheConfig struct {
	SizeBytes     uint64
	Associativity int
	LineSize      int
	Policy        ReplacementPolicy
	WritePolicy   WritePolicy
}

// NumSets returns SizeBytes / (LineSize * Associativity).
func (c CacheConfig) NumSets() int {
	if c.LineSize <= 0 || c.Associativity <= 0 {
		return 0
	}
	return int(c.SizeBytes) / (c.LineSize * c.Associativity)
}

// Validate enforces spec.md §3's CacheConfig invariants.
func (c CacheConfig) Validate() error {
	if c.SizeBytes == 0 {
		return fmt.Errorf("%w: size must be non-zero", ErrConfigInvalid)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("%w: associativity must be positive", ErrConfigInvalid)
	}
	if c.LineSize <= 0 || !isPowerOfTwo(c.LineSize) {
		return fmt.Errorf("%w: line size must be a power of two", ErrConfigInvalid)
	}
	sets := c.NumSets()
	if sets <= 0 || !isPowerOfTwo(sets) {
		return fmt.Errorf("%w: number of sets (%d) must be a positive power of two", ErrConfigInvalid, sets)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// OffsetBits is log2(LineSize).
func (c CacheConfig) OffsetBits() int { return bits.TrailingZeros(uint(c.LineSize)) }

// IndexBits is log2(NumSets).
func (c CacheConfig) IndexBits() int {
	sets := c.NumSets()
	if sets <= 0 {
		return 0
	}
	return bits.TrailingZeros(uint(sets))
}

// TagBits is 64 - OffsetBits - IndexBits.
func (c CacheConfig) TagBits() int { return 64 - c.OffsetBits() - c.IndexBits() }

// Offset extracts the within-line byte offset of addr.
func (c CacheConfig) Offset(addr uint64) uint64 {
	return addr & uint64(c.LineSize-1)
}

// Index extracts the set index of addr.
func (c CacheConfig) Index(addr uint64) uint64 {
	return (addr >> c.OffsetBits()) & uint64(c.NumSets()-1)
}

// Tag extracts the tag of addr.
func (c CacheConfig) Tag(addr uint64) uint64 {
	return addr >> (c.OffsetBits() + c.IndexBits())
}

// LineBase masks addr down to its containing cache-line base address.
func (c CacheConfig) LineBase(addr uint64) uint64 {
	return addr &^ uint64(c.LineSize-1)
}

// Rebuild reconstructs a line-base address from a (tag, index) pair
// extracted under this config, satisfying spec.md §8 invariant 5.
func (c CacheConfig) Rebuild(tag, index uint64) uint64 {
	return (tag << (c.OffsetBits() + c.IndexBits())) | (index << c.OffsetBits())
}

// LatencyConfig holds the configurable per-outcome cycle costs used for
// the timing estimate. Non-goals (spec.md §1) exclude bit-accurate CPU
// timing; these are plain tunable constants.
type LatencyConfig struct {
	L1Hit          int
	L2Hit          int
	L3Hit          int
	Memory         int
	TLBMissPenalty int
}

// DefaultLatencyConfig mirrors typical desktop-class latencies. A
// hierarchy uses the LatencyConfig its config carries as is; a zero
// LatencyConfig is not replaced by these defaults.
func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		L1Hit:          4,
		L2Hit:          12,
		L3Hit:          40,
		Memory:         200,
		TLBMissPenalty: 30,
	}
}

// CacheHierarchyConfig bundles the per-level configs and policies for a
// single-core cache hierarchy. L3 is optional: HasL3 false means "no
// L3" (L3 is then ignored), tested explicitly wherever L3 routing
// happens (spec.md §9's "option-valued L3" design note).
type CacheHierarchyConfig struct {
	L1Data          CacheConfig
	L1Inst          CacheConfig
	L2              CacheConfig
	L3              CacheConfig
	HasL3           bool
	InclusionPolicy InclusionPolicy
	Latency         LatencyConfig
}

// TLBConfig describes one set-associative TLB.
type TLBConfig struct {
	Entries       int
	Associativity int
	PageSize      int
}

// NumSets returns Entries / Associativity.
func (c TLBConfig) NumSets() int {
	if c.Associativity <= 0 {
		return 0
	}
	return c.Entries / c.Associativity
}

// DefaultTLBConfig matches the 64-entry, 4-way, 4KB-page TLB the
// original simulator wires into every hierarchy by default.
func DefaultTLBConfig() TLBConfig {
	return TLBConfig{Entries: 64, Associativity: 4, PageSize: 4096}
}

// Page returns addr's virtual page number.
func (c TLBConfig) Page(addr uint64) uint64 {
	return addr >> bits.TrailingZeros(uint(c.PageSize))
}

// SetIndex maps a page number onto one of this TLB's sets.
func (c TLBConfig) SetIndex(page uint64) uint64 {
	sets := c.NumSets()
	if sets <= 0 {
		return 0
	}
	return page & uint64(sets-1)
}
