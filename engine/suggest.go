package engine

import (
	"fmt"

	"github.com/ftahirops/cacheexplorer/model"
)

// OptimizationSuggestion is one actionable recommendation produced by
// SuggestOptimizations, supplementing spec.md §2's "optimization
// suggester" component (recovered from
// original_source/.../OptimizationSuggester.hpp).
type OptimizationSuggestion struct {
	Type     string // "false_sharing", "high_miss_rate", "contention", "poor_locality", "coherence_traffic"
	Severity string // "high", "medium", "low"
	Location string // file:line, a cache-line address, or "overall"
	Message  string
	Fix      string
}

// SuggestOptimizations analyzes a multi-core run's false-sharing
// reports and hot lines, plus its aggregate stats, and emits one
// suggestion per actionable pattern found.
func SuggestOptimizations(falseSharing []model.FalseSharingReport, hotLines []model.SourceStats, stats model.MultiCoreStats, lineSize int) []OptimizationSuggestion {
	var suggestions []OptimizationSuggestion

	for _, fs := range falseSharing {
		if len(fs.Accesses) < 2 {
			continue
		}

		type offsetRange struct{ min, max uint32 }
		ranges := make(map[uint32]offsetRange)
		for _, a := range fs.Accesses {
			r, ok := ranges[a.ThreadID]
			if !ok {
				ranges[a.ThreadID] = offsetRange{a.ByteOffset, a.ByteOffset}
				continue
			}
			if a.ByteOffset < r.min {
				r.min = a.ByteOffset
			}
			if a.ByteOffset > r.max {
				r.max = a.ByteOffset
			}
			ranges[a.ThreadID] = r
		}
		if len(ranges) < 2 {
			continue
		}

		minOffset := uint32(lineSize)
		maxOffset := uint32(0)
		for _, r := range ranges {
			if r.min < minOffset {
				minOffset = r.min
			}
			if r.max > maxOffset {
				maxOffset = r.max
			}
		}
		paddingNeeded := uint32(lineSize)
		if span := maxOffset - minOffset + 4; span < uint32(lineSize) {
			paddingNeeded = uint32(lineSize) - span
		}

		loc := fmt.Sprintf("0x%x", fs.CacheLineAddr)
		for _, a := range fs.Accesses {
			if a.File != "" {
				loc = fmt.Sprintf("%s:%d", a.File, a.Line)
				break
			}
		}

		suggestions = append(suggestions, OptimizationSuggestion{
			Type:     "false_sharing",
			Severity: "high",
			Location: loc,
			Message:  "Multiple threads writing to same cache line causes invalidations",
			Fix:      fmt.Sprintf("Add %d bytes padding between fields accessed by different threads", paddingNeeded),
		})
	}

	for _, line := range hotLines {
		if line.MissRate() > 0.5 && line.Misses > 100 {
			severity := "medium"
			if line.MissRate() > 0.8 {
				severity = "high"
			}
			suggestions = append(suggestions, OptimizationSuggestion{
				Type:     "high_miss_rate",
				Severity: severity,
				Location: fmt.Sprintf("%s:%d", line.File, line.Line),
				Message:  fmt.Sprintf("High cache miss rate (%d%%) indicates poor cache utilization", int(line.MissRate()*100)),
				Fix:      "Consider restructuring data access pattern or improving spatial locality",
			})
		}
		if len(line.Threads) > 1 && line.Misses > 50 {
			suggestions = append(suggestions, OptimizationSuggestion{
				Type:     "contention",
				Severity: "medium",
				Location: fmt.Sprintf("%s:%d", line.File, line.Line),
				Message:  fmt.Sprintf("Multiple threads (%d) accessing this location", len(line.Threads)),
				Fix:      "Consider thread-local copies or reducing shared data access",
			})
		}
	}

	if len(stats.L1PerCore) > 0 {
		l1MissRate := 1.0 - stats.L1PerCore[0].HitRate()
		if l1MissRate > 0.3 {
			suggestions = append(suggestions, OptimizationSuggestion{
				Type:     "poor_locality",
				Severity: "medium",
				Location: "overall",
				Message:  fmt.Sprintf("L1 cache miss rate is high (%d%%)", int(l1MissRate*100)),
				Fix:      "Review data structures for cache-friendly layout (arrays vs linked lists, struct of arrays vs array of structs)",
			})
		}
	}

	if stats.CoherenceInvalidations > 1000 {
		suggestions = append(suggestions, OptimizationSuggestion{
			Type:     "coherence_traffic",
			Severity: "high",
			Location: "overall",
			Message:  fmt.Sprintf("High coherence traffic (%d invalidations)", stats.CoherenceInvalidations),
			Fix:      "Reduce sharing between threads or use read-only data where possible",
		})
	}

	return suggestions
}

// SuggestOptimizationsSingleCore is the single-core counterpart: no
// false-sharing or coherence signal exists, so it only inspects hot
// lines and the L1 hit rate. l2Stats is accepted but not consulted.
func SuggestOptimizationsSingleCore(hotLines []model.SourceStats, l1Stats, l2Stats model.CacheStats) []OptimizationSuggestion {
	var suggestions []OptimizationSuggestion

	for _, line := range hotLines {
		if line.MissRate() > 0.5 && line.Misses > 100 {
			severity := "medium"
			if line.MissRate() > 0.8 {
				severity = "high"
			}
			suggestions = append(suggestions, OptimizationSuggestion{
				Type:     "high_miss_rate",
				Severity: severity,
				Location: fmt.Sprintf("%s:%d", line.File, line.Line),
				Message:  fmt.Sprintf("High cache miss rate (%d%%) at this location", int(line.MissRate()*100)),
				Fix:      "Consider improving data locality or prefetching",
			})
		}
	}

	if l1Stats.HitRate() < 0.7 {
		suggestions = append(suggestions, OptimizationSuggestion{
			Type:     "poor_locality",
			Severity: "medium",
			Location: "overall",
			Message:  fmt.Sprintf("L1 cache hit rate is low (%d%%)", int(l1Stats.HitRate()*100)),
			Fix:      "Review loop structure and data access patterns",
		})
	}

	return suggestions
}
