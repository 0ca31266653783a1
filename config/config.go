// Package config persists the user's preferred simulator defaults
// (preset, core count, prefetch settings, output mode) between runs,
// and normalizes whatever it reads against the geometry and policy
// names the simulator actually accepts.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ftahirops/cacheexplorer/presets"
)

// Config holds user-configurable defaults for cache geometry, the
// prefetch policy, and the CLI's output mode.
type Config struct {
	Preset         string `json:"preset"`
	Cores          int    `json:"cores"`
	PrefetchPolicy string `json:"prefetch_policy"`
	PrefetchDegree int    `json:"prefetch_degree"`
	FastMode       bool   `json:"fast_mode"`
	JSONOutput     bool   `json:"json_output"`
	Verbose        bool   `json:"verbose"`
	ServeAddr      string `json:"serve_addr"`
}

// Default returns the defaults used when no config file exists.
func Default() Config {
	return Config{
		Preset:         presets.Intel12thGen,
		Cores:          1,
		PrefetchPolicy: "none",
		PrefetchDegree: 1,
	}
}

// prefetchPolicyNames are the policy spellings the CLI understands; a
// saved config naming anything else would silently run with prefetch
// disabled, so Normalize warns and rewrites it instead.
var prefetchPolicyNames = map[string]struct{}{
	"none": {}, "next-line": {}, "nextline": {}, "stream": {},
	"stride": {}, "adaptive": {}, "intel": {},
}

// Path resolves where the config file lives: $XDG_CONFIG_HOME when
// set, otherwise <home>/.config. An empty string means there is no
// usable config directory and the file is neither read nor written.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "cacheexplorer", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cacheexplorer", "config.json")
}

// Load reads the config file and normalizes it. A missing or
// unreadable file yields the defaults; a file that parses but names an
// unknown preset or prefetch policy is corrected field by field with a
// warning rather than rejected outright, so one stale field doesn't
// discard the rest of the user's settings.
func Load() Config {
	path := Path()
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("cacheexplorer: warning: config parse error: %v", err)
		return Default()
	}
	return Normalize(cfg)
}

// Normalize forces cfg's fields into the simulator's accepted domain:
// the preset must be registered (or the literal "custom"), the
// prefetch policy must be one the CLI can parse, and the core count
// and prefetch degree must be at least 1.
func Normalize(cfg Config) Config {
	if _, ok := presets.Lookup(cfg.Preset); !ok && cfg.Preset != "custom" {
		log.Printf("cacheexplorer: warning: unknown preset %q in config, using %q", cfg.Preset, Default().Preset)
		cfg.Preset = Default().Preset
	}
	if _, ok := prefetchPolicyNames[cfg.PrefetchPolicy]; !ok {
		log.Printf("cacheexplorer: warning: unknown prefetch policy %q in config, disabling prefetch", cfg.PrefetchPolicy)
		cfg.PrefetchPolicy = "none"
	}
	if cfg.Cores < 1 {
		cfg.Cores = 1
	}
	if cfg.PrefetchDegree < 1 {
		cfg.PrefetchDegree = 1
	}
	return cfg
}

// Save normalizes cfg and writes it to Path, creating the directory
// if needed. What lands on disk is always a config Load would accept
// unchanged.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("config: cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Normalize(cfg), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
