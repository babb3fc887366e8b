package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/WangYihang/url-dedup/pkg/dedup"
	"github.com/WangYihang/url-dedup/pkg/validate"
	mapset "github.com/deckarep/golang-set/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "url-dedup.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dedup != dedup.DefaultConfig() {
		t.Errorf("Dedup = %+v, want defaults", cfg.Dedup)
	}
	if cfg.Validation.MaxLength != 2000 {
		t.Errorf("MaxLength = %d, want 2000", cfg.Validation.MaxLength)
	}
	if len(cfg.Validation.BlockedDomains) != 5 || len(cfg.Validation.BlockedExtensions) != 15 {
		t.Errorf("unexpected default blocklists: %+v", cfg.Validation)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
dedup:
  max_cache_size: 500
  use_probabilistic_filter: false
validation:
  blocked_domains: [example.org, example.net]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dedup.MaxCacheSize != 500 || cfg.Dedup.UseProbabilisticFilter {
		t.Errorf("Dedup = %+v", cfg.Dedup)
	}
	// Unset keys keep their defaults.
	if cfg.Dedup.FilterCapacity != 10_000_000 || cfg.Dedup.FilterFalsePositiveRate != 0.01 {
		t.Errorf("Dedup filter defaults lost: %+v", cfg.Dedup)
	}
	want := mapset.NewSet("example.org", "example.net")
	if got := mapset.NewSet(cfg.Validation.BlockedDomains...); !got.Equal(want) {
		t.Errorf("BlockedDomains = %v, want %v", got, want)
	}
	if cfg.Validation.MaxLength != 2000 {
		t.Errorf("MaxLength = %d, want 2000", cfg.Validation.MaxLength)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dedup != dedup.DefaultConfig() {
		t.Errorf("Dedup = %+v, want defaults", cfg.Dedup)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "dedup:\n  max_cache_size: 500\n")
	t.Setenv("DEDUP_MAX_CACHE_SIZE", "42")
	t.Setenv("DEDUP_FILTER_FALSE_POSITIVE_RATE", "0.001")
	t.Setenv("VALIDATION_BLOCKED_EXTENSIONS", ".exe,.msi")
	t.Setenv("VALIDATION_MAX_LENGTH", "100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dedup.MaxCacheSize != 42 {
		t.Errorf("MaxCacheSize = %d, want 42", cfg.Dedup.MaxCacheSize)
	}
	if cfg.Dedup.FilterFalsePositiveRate != 0.001 {
		t.Errorf("FilterFalsePositiveRate = %v, want 0.001", cfg.Dedup.FilterFalsePositiveRate)
	}
	if !cfg.Dedup.UseProbabilisticFilter {
		t.Errorf("UseProbabilisticFilter changed without an override")
	}
	want := mapset.NewSet(".exe", ".msi")
	if got := mapset.NewSet(cfg.Validation.BlockedExtensions...); !got.Equal(want) {
		t.Errorf("BlockedExtensions = %v, want %v", got, want)
	}
	if cfg.Validation.MaxLength != 100 {
		t.Errorf("MaxLength = %d, want 100", cfg.Validation.MaxLength)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "dedup:\n  max_cache: 5\n")); err == nil {
			t.Error("Load() should reject unknown keys")
		}
	})

	t.Run("invalid cache size", func(t *testing.T) {
		_, err := Load(writeConfig(t, "dedup:\n  max_cache_size: 0\n"))
		if !errors.Is(err, dedup.ErrInvalidCacheSize) {
			t.Errorf("Load() error = %v, want ErrInvalidCacheSize", err)
		}
	})

	t.Run("invalid max length", func(t *testing.T) {
		t.Setenv("VALIDATION_MAX_LENGTH", "-1")
		_, err := Load("")
		if !errors.Is(err, validate.ErrInvalidMaxLength) {
			t.Errorf("Load() error = %v, want ErrInvalidMaxLength", err)
		}
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("DEDUP_MAX_CACHE_SIZE", "lots")
		if _, err := Load(""); err == nil {
			t.Error("Load() should reject a non-numeric cache size")
		}
	})
}
