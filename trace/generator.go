package trace

import "github.com/ftahirops/cacheexplorer/model"

// Pattern names a synthetic access pattern a Generator can produce,
// each modeled on one of original_source/examples/*.c's micro-
// benchmarks so demo runs reproduce the same named behaviors spec.md
// §8's end-to-end scenarios describe.
type Pattern string

const (
	PatternSequential    Pattern = "sequential"
	PatternStrided       Pattern = "strided"
	PatternRowMajor      Pattern = "row-major"
	PatternColumnMajor   Pattern = "column-major"
	PatternFalseSharing  Pattern = "false-sharing"
	PatternWorkingSet    Pattern = "working-set"
	PatternStructOfArray Pattern = "struct-of-arrays"
	PatternArrayOfStruct Pattern = "array-of-structs"
)

// Patterns lists every generator pattern, in a fixed display order.
func Patterns() []Pattern {
	return []Pattern{
		PatternSequential, PatternStrided, PatternRowMajor, PatternColumnMajor,
		PatternFalseSharing, PatternWorkingSet, PatternStructOfArray, PatternArrayOfStruct,
	}
}

// GeneratorConfig parameterizes pattern generation. Not every field
// applies to every pattern; each Generate* function documents which it
// reads.
type GeneratorConfig struct {
	Count      int    // number of elements/iterations
	Stride     uint64 // byte stride, for PatternStrided
	MatrixDim  int    // square matrix side length, for row/column-major
	ElemSize   uint64 // element size in bytes
	WorkingSet uint64 // working-set size in bytes, for PatternWorkingSet
	File       string // source location attached to every event
	Line       uint32
}

// Generate builds a slice of TraceEvent for the named pattern using
// cfg's parameters, applying sane defaults for any zero field.
func Generate(pattern Pattern, cfg GeneratorConfig) []model.TraceEvent {
	cfg = withDefaults(cfg)
	switch pattern {
	case PatternSequential:
		return generateSequential(cfg)
	case PatternStrided:
		return generateStrided(cfg)
	case PatternRowMajor:
		return generateMatrix(cfg, true)
	case PatternColumnMajor:
		return generateMatrix(cfg, false)
	case PatternFalseSharing:
		return generateFalseSharing(cfg)
	case PatternWorkingSet:
		return generateWorkingSet(cfg)
	case PatternStructOfArray:
		return generateStructOfArrays(cfg)
	case PatternArrayOfStruct:
		return generateArrayOfStructs(cfg)
	default:
		return nil
	}
}

func withDefaults(cfg GeneratorConfig) GeneratorConfig {
	if cfg.Count <= 0 {
		cfg.Count = 1024
	}
	if cfg.Stride == 0 {
		cfg.Stride = 64
	}
	if cfg.MatrixDim <= 0 {
		cfg.MatrixDim = 500
	}
	if cfg.ElemSize == 0 {
		cfg.ElemSize = 4
	}
	if cfg.WorkingSet == 0 {
		cfg.WorkingSet = 64 * 1024
	}
	return cfg
}

// generateSequential mirrors examples/sequential.c: a tight forward
// scan over an array, one write per element.
func generateSequential(cfg GeneratorConfig) []model.TraceEvent {
	events := make([]model.TraceEvent, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		events[i] = model.TraceEvent{
			Address: uint64(i) * cfg.ElemSize, Size: cfg.ElemSize, IsWrite: true,
			File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
		}
	}
	return events
}

// generateStrided mirrors examples/strided.c: fixed-stride reads that
// each land on a new cache line.
func generateStrided(cfg GeneratorConfig) []model.TraceEvent {
	events := make([]model.TraceEvent, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		events[i] = model.TraceEvent{
			Address: uint64(i) * cfg.Stride, Size: cfg.ElemSize,
			File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
		}
	}
	return events
}

// generateMatrix mirrors examples/matrix_row.c and matrix_col.c: a full
// traversal of a MatrixDim x MatrixDim array of ElemSize elements,
// either in storage order (rowMajor, contiguous per row) or transposed
// (stride = one full row per step).
func generateMatrix(cfg GeneratorConfig, rowMajor bool) []model.TraceEvent {
	n := cfg.MatrixDim
	events := make([]model.TraceEvent, 0, n*n)
	rowBytes := uint64(n) * cfg.ElemSize
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var addr uint64
			if rowMajor {
				addr = uint64(i)*rowBytes + uint64(j)*cfg.ElemSize
			} else {
				addr = uint64(j)*rowBytes + uint64(i)*cfg.ElemSize
			}
			events = append(events, model.TraceEvent{
				Address: addr, Size: cfg.ElemSize,
				File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
			})
		}
	}
	return events
}

// generateFalseSharing mirrors examples/false_sharing.c: two threads
// interleave writes to adjacent offsets within one cache line.
func generateFalseSharing(cfg GeneratorConfig) []model.TraceEvent {
	const lineAddr = 0x1000
	events := make([]model.TraceEvent, 0, cfg.Count*2)
	for i := 0; i < cfg.Count; i++ {
		events = append(events,
			model.TraceEvent{Address: lineAddr, Size: 4, IsWrite: true, ThreadID: 1, File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != ""},
			model.TraceEvent{Address: lineAddr + 4, Size: 4, IsWrite: true, ThreadID: 2, File: cfg.File, Line: cfg.Line + 1, HasLocation: cfg.File != ""},
		)
	}
	return events
}

// generateWorkingSet mirrors examples/working_set_small.c and
// working_set_large.c: repeated passes over a fixed-size region, large
// enough or small enough relative to the cache under test to probe
// capacity behavior.
func generateWorkingSet(cfg GeneratorConfig) []model.TraceEvent {
	elementsPerPass := int(cfg.WorkingSet / cfg.ElemSize)
	if elementsPerPass <= 0 {
		elementsPerPass = 1
	}
	passes := cfg.Count
	if passes <= 0 {
		passes = 1
	}
	events := make([]model.TraceEvent, 0, elementsPerPass*passes)
	for p := 0; p < passes; p++ {
		for i := 0; i < elementsPerPass; i++ {
			events = append(events, model.TraceEvent{
				Address: uint64(i) * cfg.ElemSize, Size: cfg.ElemSize,
				File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
			})
		}
	}
	return events
}

// generateStructOfArrays mirrors examples/struct_of_arrays.c: Count
// elements of N separate parallel fields, each field laid out as its
// own contiguous array, accessed field-major.
func generateStructOfArrays(cfg GeneratorConfig) []model.TraceEvent {
	const numFields = 3
	fieldBytes := uint64(cfg.Count) * cfg.ElemSize
	events := make([]model.TraceEvent, 0, cfg.Count*numFields)
	for f := 0; f < numFields; f++ {
		base := uint64(f) * fieldBytes
		for i := 0; i < cfg.Count; i++ {
			events = append(events, model.TraceEvent{
				Address: base + uint64(i)*cfg.ElemSize, Size: cfg.ElemSize, IsWrite: true,
				File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
			})
		}
	}
	return events
}

// generateArrayOfStructs mirrors examples/array_of_structs.c: Count
// interleaved records of N fields each, accessed record-major so every
// field of a record shares its cache line.
func generateArrayOfStructs(cfg GeneratorConfig) []model.TraceEvent {
	const numFields = 3
	recordBytes := uint64(numFields) * cfg.ElemSize
	events := make([]model.TraceEvent, 0, cfg.Count*numFields)
	for i := 0; i < cfg.Count; i++ {
		base := uint64(i) * recordBytes
		for f := 0; f < numFields; f++ {
			events = append(events, model.TraceEvent{
				Address: base + uint64(f)*cfg.ElemSize, Size: cfg.ElemSize, IsWrite: true,
				File: cfg.File, Line: cfg.Line, HasLocation: cfg.File != "", ThreadID: 1,
			})
		}
	}
	return events
}
