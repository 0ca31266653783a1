// Package presets holds named hardware cache-hierarchy configurations,
// recovered from original_source/.../HardwarePresets.hpp, so the CLI
// can start from a realistic geometry instead of requiring every flag
// to be spelled out by hand.
package presets

import "github.com/ftahirops/cacheexplorer/model"

const (
	Intel12thGen = "intel-12th-gen"
	AMDZen4      = "amd-zen4"
	AppleMSeries = "apple-m-series"
	Educational  = "educational"
	RaspberryPi4 = "rpi4"
)

var registry = map[string]func() model.CacheHierarchyConfig{
	Intel12thGen: intel12thGen,
	AMDZen4:      amdZen4,
	AppleMSeries: appleMSeries,
	Educational:  educational,
	RaspberryPi4: raspberryPi4,
}

// Lookup returns the named preset's configuration. ok is false for an
// unknown name.
func Lookup(name string) (model.CacheHierarchyConfig, bool) {
	build, ok := registry[name]
	if !ok {
		return model.CacheHierarchyConfig{}, false
	}
	return build(), true
}

// Names returns every registered preset name, in a fixed display order.
func Names() []string {
	return []string{Intel12thGen, AMDZen4, AppleMSeries, Educational, RaspberryPi4}
}

func intel12thGen() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 32 * 1024, Associativity: 8, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 1024 * 1024, Associativity: 8, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	l3 := model.CacheConfig{SizeBytes: 32 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2, L3: l3, HasL3: true,
		InclusionPolicy: model.NINE,
		Latency:         model.DefaultLatencyConfig(),
	}
}

func amdZen4() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 32 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 1024 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l3 := model.CacheConfig{SizeBytes: 32 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2, L3: l3, HasL3: true,
		InclusionPolicy: model.Exclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
}

func appleMSeries() model.CacheHierarchyConfig {
	l1d := model.CacheConfig{SizeBytes: 64 * 1024, Associativity: 8, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	l1i := model.CacheConfig{SizeBytes: 128 * 1024, Associativity: 8, LineSize: 64, Policy: model.PLRU, WritePolicy: model.ReadOnly}
	l2 := model.CacheConfig{SizeBytes: 4 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	l3 := model.CacheConfig{SizeBytes: 32 * 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.PLRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data: l1d, L1Inst: l1i, L2: l2, L3: l3, HasL3: true,
		InclusionPolicy: model.NINE,
		Latency:         model.DefaultLatencyConfig(),
	}
}

func educational() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 1024, Associativity: 2, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 4096, Associativity: 4, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l3 := model.CacheConfig{SizeBytes: 16 * 1024, Associativity: 8, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2, L3: l3, HasL3: true,
		InclusionPolicy: model.Inclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
}

// raspberryPi4 is not present in the recovered hardware profiles: it is
// supplemented here to exercise the optional-L3 code path with a
// realistic two-level embedded geometry (Cortex-A72's actual L1/L2
// sizes), since none of the recovered presets omits an L3.
func raspberryPi4() model.CacheHierarchyConfig {
	l1 := model.CacheConfig{SizeBytes: 32 * 1024, Associativity: 4, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	l2 := model.CacheConfig{SizeBytes: 1024 * 1024, Associativity: 16, LineSize: 64, Policy: model.LRU, WritePolicy: model.WriteBack}
	return model.CacheHierarchyConfig{
		L1Data: l1, L1Inst: l1, L2: l2, HasL3: false,
		InclusionPolicy: model.Inclusive,
		Latency:         model.DefaultLatencyConfig(),
	}
}
