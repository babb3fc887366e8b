package dedup

import (
	"errors"
	"fmt"
)

// ErrInvalidCacheSize is returned by Config.Validate when MaxCacheSize < 1
var ErrInvalidCacheSize = errors.New("invalid max cache size: must be at least 1")

// Config holds the deduplicator configuration.
//
// Environment variable overrides (see pkg/config):
//   - DEDUP_MAX_CACHE_SIZE:             exact cache bound (default: 1000000)
//   - DEDUP_USE_PROBABILISTIC_FILTER:   enable the bloom pre-filter (default: true)
//   - DEDUP_FILTER_CAPACITY:            expected distinct URLs (default: 10000000)
//   - DEDUP_FILTER_FALSE_POSITIVE_RATE: bloom false positive rate (default: 0.01)
type Config struct {
	MaxCacheSize            int     `yaml:"max_cache_size"             env:"MAX_CACHE_SIZE"`
	UseProbabilisticFilter  bool    `yaml:"use_probabilistic_filter"   env:"USE_PROBABILISTIC_FILTER"`
	FilterCapacity          uint    `yaml:"filter_capacity"            env:"FILTER_CAPACITY"`
	FilterFalsePositiveRate float64 `yaml:"filter_false_positive_rate" env:"FILTER_FALSE_POSITIVE_RATE"`
}

// DefaultConfig returns the default configuration: a one million entry exact
// cache behind a ten million capacity bloom filter with a 1% false positive rate.
func DefaultConfig() Config {
	return Config{
		MaxCacheSize:            1_000_000,
		UseProbabilisticFilter:  true,
		FilterCapacity:          10_000_000,
		FilterFalsePositiveRate: 0.01,
	}
}

// Validate checks the configuration. Filter parameters are not validated here:
// unusable ones make the deduplicator fall back to exact-only checking.
func (c Config) Validate() error {
	if c.MaxCacheSize < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidCacheSize, c.MaxCacheSize)
	}
	return nil
}

// retainSize is the number of keys kept after an eviction
func (c Config) retainSize() int {
	return c.MaxCacheSize * 3 / 4
}
