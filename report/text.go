package report

import (
	"fmt"
	"io"
)

func writeLevelText(w io.Writer, name string, r CacheLevelReport) {
	fmt.Fprintf(w, "  %-4s hits=%-10d misses=%-10d hit_rate=%5.1f%% writebacks=%d invalidations=%d\n",
		name, r.Hits, r.Misses, r.HitRate*100, r.Writebacks, r.Invalidations)
	if r.Compulsory+r.Capacity+r.Conflict > 0 {
		fmt.Fprintf(w, "       3C: compulsory=%d capacity=%d conflict=%d\n",
			r.Compulsory, r.Capacity, r.Conflict)
	}
}

func writeHotLinesText(w io.Writer, hot []SourceLineReport) {
	if len(hot) == 0 {
		return
	}
	fmt.Fprintln(w, "hot lines (by misses):")
	for _, h := range hot {
		fmt.Fprintf(w, "  %s:%d  misses=%d hits=%d miss_rate=%.2f\n", h.File, h.Line, h.Misses, h.Hits, h.MissRate)
	}
}

func writeSuggestionsText(w io.Writer, suggestions []SuggestionReport) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, "suggestions:")
	for _, s := range suggestions {
		fmt.Fprintf(w, "  [%s] %s (%s)\n    %s\n    fix: %s\n", s.Severity, s.Type, s.Location, s.Message, s.Fix)
	}
}

// WriteSingleCoreText renders doc as a plain-text summary.
func WriteSingleCoreText(w io.Writer, doc SingleCoreReport) error {
	fmt.Fprintln(w, "cache levels:")
	writeLevelText(w, "l1d", doc.L1D)
	writeLevelText(w, "l1i", doc.L1I)
	writeLevelText(w, "l2", doc.L2)
	if doc.L3 != nil {
		writeLevelText(w, "l3", *doc.L3)
	}
	fmt.Fprintf(w, "timing: total_cycles=%d accesses=%d avg_latency=%.2f cycles\n",
		doc.Timing.TotalCycles, doc.Timing.TotalAccesses, doc.Timing.AverageLatency)
	writeHotLinesText(w, doc.HotLines)
	writeSuggestionsText(w, doc.Suggestions)
	return nil
}

// WriteMultiCoreText renders doc as a plain-text summary.
func WriteMultiCoreText(w io.Writer, doc MultiCoreReport) error {
	fmt.Fprintln(w, "cache levels:")
	for i, c := range doc.L1PerCore {
		writeLevelText(w, fmt.Sprintf("l1c%d", i), c)
	}
	writeLevelText(w, "l2", doc.L2)
	if doc.L3 != nil {
		writeLevelText(w, "l3", *doc.L3)
	}
	fmt.Fprintf(w, "coherence: invalidations=%d false_sharing_events=%d\n",
		doc.CoherenceInvalidations, doc.FalseSharingEvents)
	for _, fs := range doc.FalseSharingReports {
		fmt.Fprintf(w, "  false sharing on line %s (%d witnessed accesses)\n", fs.CacheLineAddr, len(fs.Accesses))
	}
	writeHotLinesText(w, doc.HotLines)
	writeSuggestionsText(w, doc.Suggestions)
	return nil
}
