// Package dedup decides whether a URL has been seen before. URLs are
// normalized, hashed to a 128-bit key, checked against an optional bloom
// pre-filter and then an exact cache bounded by approximate LFU eviction.
package dedup

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/normalize"
)

// Result reasons
const (
	ReasonInvalidURL     = "Invalid URL format"
	ReasonExactDuplicate = "Exact duplicate"
	reasonErrorPrefix    = "Error: "
)

// initialCacheCapacity caps the map preallocation for very large caches
const initialCacheCapacity = 1 << 16

type entry struct {
	freq uint64
	seq  uint64
}

type counters struct {
	total      int64
	duplicates int64
	unique     int64
	evictions  int64
	invalid    int64
	errors     int64
}

// Deduplicator is safe for concurrent use. All shared state is guarded by a
// single mutex so the filter check, cache check and insert of one URL are
// indivisible.
type Deduplicator struct {
	cfg        Config
	normalizer *normalize.Normalizer
	hash       func(canonical string) URLKey
	metrics    *Metrics
	logger     *slog.Logger

	mu     sync.Mutex
	filter prefilter
	cache  map[URLKey]entry
	seq    uint64
	stats  counters
}

// Option configures a Deduplicator
type Option func(*Deduplicator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deduplicator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(metrics *Metrics) Option {
	return func(d *Deduplicator) {
		d.metrics = metrics
	}
}

// WithNormalizer shares a normalizer instead of creating one
func WithNormalizer(normalizer *normalize.Normalizer) Option {
	return func(d *Deduplicator) {
		d.normalizer = normalizer
	}
}

// New creates a deduplicator. A bloom filter that cannot be built from the
// configured parameters is not an error: the deduplicator logs a warning and
// runs exact-only.
func New(cfg Config, opts ...Option) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Deduplicator{
		cfg:    cfg,
		hash:   KeyOf,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dedup")
	if d.normalizer == nil {
		d.normalizer = normalize.New(d.logger)
	}

	d.filter = d.newPrefilter()
	d.cache = newCache(cfg.MaxCacheSize)

	d.logger.Info("deduplicator created",
		"max_cache_size", cfg.MaxCacheSize,
		"filter_mode", d.filter.mode().String(),
	)
	return d, nil
}

func newCache(maxSize int) map[URLKey]entry {
	return make(map[URLKey]entry, min(maxSize, initialCacheCapacity))
}

func (d *Deduplicator) newPrefilter() prefilter {
	if !d.cfg.UseProbabilisticFilter {
		return exactOnly{}
	}

	f, err := newBloomFilter(d.cfg.FilterCapacity, d.cfg.FilterFalsePositiveRate)
	if err != nil {
		d.logger.Warn("bloom filter unavailable, falling back to exact-only checking", "error", err)
		return exactOnly{}
	}
	return f
}

// Mode returns the filter variant chosen at construction
func (d *Deduplicator) Mode() FilterMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.mode()
}

// Check reports whether raw has been seen before and records it. It never
// fails: malformed URLs and internal faults come back as duplicates with a
// reason so the caller does not process them.
func (d *Deduplicator) Check(raw string) (result entity.DeduplicationResult) {
	if d.metrics != nil {
		start := time.Now()
		defer func() {
			d.metrics.CheckDuration.Observe(time.Since(start).Seconds())
		}()
	}

	counted := false
	defer func() {
		if r := recover(); r != nil {
			result = d.fail(raw, fmt.Errorf("%v", r), counted)
		}
	}()

	canonical, ok := d.normalizer.Normalize(raw)
	var key URLKey
	var hashValue string
	if ok {
		var err error
		canonical, err = d.normalizer.CanonicalQuery(canonical)
		if err != nil {
			return d.fail(raw, err, false)
		}
		key = d.hash(canonical)
		hashValue = key.String()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.total++
	counted = true

	if !ok {
		d.stats.invalid++
		return entity.DeduplicationResult{
			IsDuplicate:   true,
			NormalizedURL: raw,
			Reason:        ReasonInvalidURL,
		}
	}

	return d.admit(canonical, key, hashValue)
}

// CheckBatch checks each URL in order. Calls are independent: every check
// updates shared state before the next one runs.
func (d *Deduplicator) CheckBatch(raws []string) []entity.DeduplicationResult {
	results := make([]entity.DeduplicationResult, len(raws))
	for i, raw := range raws {
		results[i] = d.Check(raw)
	}
	return results
}

// admit runs the filter and cache checks. Caller holds d.mu.
func (d *Deduplicator) admit(canonical string, key URLKey, hashValue string) entity.DeduplicationResult {
	unique := entity.DeduplicationResult{
		HashValue:     hashValue,
		NormalizedURL: canonical,
	}

	// A bloom miss is authoritative, so the exact cache is not consulted.
	if d.filter.admit([]byte(canonical)) {
		d.insert(key)
		return unique
	}

	if e, ok := d.cache[key]; ok {
		e.freq++
		d.cache[key] = e
		d.stats.duplicates++
		return entity.DeduplicationResult{
			IsDuplicate:   true,
			HashValue:     hashValue,
			NormalizedURL: canonical,
			Reason:        ReasonExactDuplicate,
		}
	}

	// Filter false positive, key evicted earlier, or no filter at all.
	d.insert(key)
	return unique
}

// insert adds key with frequency 1 and evicts when the cache is full. Caller
// holds d.mu.
func (d *Deduplicator) insert(key URLKey) {
	d.seq++
	d.cache[key] = entry{freq: 1, seq: d.seq}
	d.stats.unique++

	if len(d.cache) >= d.cfg.MaxCacheSize {
		d.evict()
	}
}

type rankedKey struct {
	key URLKey
	entry
}

// evict keeps the most frequently seen keys, three quarters of MaxCacheSize,
// breaking ties in favour of earlier insertion. The bloom filter is left as is.
// Caller holds d.mu.
func (d *Deduplicator) evict() {
	start := time.Now()
	keep := d.cfg.retainSize()
	if len(d.cache) <= keep {
		return
	}

	ranked := make([]rankedKey, 0, len(d.cache))
	for key, e := range d.cache {
		ranked = append(ranked, rankedKey{key: key, entry: e})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].freq != ranked[j].freq {
			return ranked[i].freq > ranked[j].freq
		}
		return ranked[i].seq < ranked[j].seq
	})

	for _, r := range ranked[keep:] {
		delete(d.cache, r.key)
	}
	d.stats.evictions++

	if d.metrics != nil {
		d.metrics.EvictionDuration.Observe(time.Since(start).Seconds())
	}
	d.logger.Info("cache evicted", "new_size", len(d.cache), "dropped", len(ranked)-keep)
}

// fail converts an internal fault into a duplicate result
func (d *Deduplicator) fail(raw string, err error, counted bool) entity.DeduplicationResult {
	d.logger.Error("error in deduplication", "url", raw, "error", err)

	d.mu.Lock()
	if !counted {
		d.stats.total++
	}
	d.stats.errors++
	d.mu.Unlock()

	return entity.DeduplicationResult{
		IsDuplicate:   true,
		NormalizedURL: raw,
		Reason:        reasonErrorPrefix + err.Error(),
	}
}

// GetStats returns the current counters
func (d *Deduplicator) GetStats() entity.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return entity.Stats{
		TotalURLs:      d.stats.total,
		Duplicates:     d.stats.duplicates,
		UniqueURLs:     d.stats.unique,
		CacheEvictions: d.stats.evictions,
		InvalidURLs:    d.stats.invalid,
		Errors:         d.stats.errors,
		CacheSize:      len(d.cache),
		MaxCacheSize:   d.cfg.MaxCacheSize,
		FilterMode:     d.filter.mode().String(),
		Timestamp:      time.Now().UTC(),
	}
}

// ClearCache empties the exact cache and the bloom filter. It counts as an
// eviction.
func (d *Deduplicator) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = newCache(d.cfg.MaxCacheSize)
	d.filter.reset()
	d.stats.evictions++

	d.logger.Info("cache cleared")
}
