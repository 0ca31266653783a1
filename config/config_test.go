package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasUsablePreset(t *testing.T) {
	cfg := Default()
	if cfg.Preset == "" {
		t.Fatal("default config must name a preset")
	}
	if cfg.Cores < 1 {
		t.Fatalf("Cores = %d, want >= 1", cfg.Cores)
	}
}

func TestPathIsUnderConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	p := Path()
	want := "/tmp/xdgtest/cacheexplorer/config.json"
	if p != want {
		t.Fatalf("Path() = %s, want %s", p, want)
	}
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest-missing-cacheexplorer")
	cfg := Load()
	if cfg != Default() {
		t.Fatalf("Load() = %+v, want defaults", cfg)
	}
}

func TestNormalizeRewritesUnknownPreset(t *testing.T) {
	cfg := Default()
	cfg.Preset = "pentium-2"
	got := Normalize(cfg)
	if got.Preset != Default().Preset {
		t.Fatalf("Preset = %q, want fallback to %q", got.Preset, Default().Preset)
	}
}

func TestNormalizeKeepsCustomPreset(t *testing.T) {
	cfg := Default()
	cfg.Preset = "custom"
	if got := Normalize(cfg); got.Preset != "custom" {
		t.Fatalf("Preset = %q, want custom preserved", got.Preset)
	}
}

func TestNormalizeClampsCountsAndPolicy(t *testing.T) {
	cfg := Config{Preset: "custom", Cores: 0, PrefetchPolicy: "psychic", PrefetchDegree: -3}
	got := Normalize(cfg)
	if got.Cores != 1 {
		t.Fatalf("Cores = %d, want clamped to 1", got.Cores)
	}
	if got.PrefetchDegree != 1 {
		t.Fatalf("PrefetchDegree = %d, want clamped to 1", got.PrefetchDegree)
	}
	if got.PrefetchPolicy != "none" {
		t.Fatalf("PrefetchPolicy = %q, want none for an unknown name", got.PrefetchPolicy)
	}
}

func TestLoadNormalizesStaleFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	stale := []byte(`{"preset": "retired-preset", "cores": 0, "prefetch_policy": "stream", "prefetch_degree": 2}`)
	if err := os.WriteFile(path, stale, 0600); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.Preset != Default().Preset {
		t.Fatalf("Preset = %q, want fallback for an unregistered name", cfg.Preset)
	}
	if cfg.Cores != 1 {
		t.Fatalf("Cores = %d, want clamped to 1", cfg.Cores)
	}
	if cfg.PrefetchPolicy != "stream" || cfg.PrefetchDegree != 2 {
		t.Fatalf("valid fields should survive normalization, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Default()
	cfg.Cores = 4
	cfg.PrefetchPolicy = "stream"
	if err := Save(cfg); err != nil {
		t.Fatal(err)
	}

	loaded := Load()
	if loaded.Cores != 4 || loaded.PrefetchPolicy != "stream" {
		t.Fatalf("loaded = %+v, want Cores=4 PrefetchPolicy=stream", loaded)
	}
}
