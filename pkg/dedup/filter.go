package dedup

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bloom/v3"
)

// FilterMode tells whether a deduplicator runs with the bloom pre-filter
type FilterMode uint8

const (
	// ModeExactOnly consults the exact cache for every URL
	ModeExactOnly FilterMode = iota
	// ModeWithFilter answers definitely-new URLs from the bloom filter alone
	ModeWithFilter
)

// String returns the mode name
func (m FilterMode) String() string {
	switch m {
	case ModeWithFilter:
		return "with_filter"
	case ModeExactOnly:
		return "exact_only"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// prefilter is the fast membership check in front of the exact cache. The
// variant is picked once at construction.
type prefilter interface {
	// admit reports whether data is definitely unseen, recording it if so
	admit(data []byte) bool
	// reset empties the filter
	reset()
	mode() FilterMode
	// marshal returns the filter state, nil when there is none
	marshal() ([]byte, error)
	// restore builds a filter of the same variant from marshal output
	restore(data []byte) (prefilter, error)
}

// bloomFilter implements prefilter on a bloom filter. It is not safe for
// concurrent use; the deduplicator lock guards it.
type bloomFilter struct {
	filter   *bloom.BloomFilter
	capacity uint
	fpRate   float64
}

// newBloomFilter creates a bloom pre-filter sized for capacity items at the
// given false positive rate
func newBloomFilter(capacity uint, fpRate float64) (f *bloomFilter, err error) {
	if capacity == 0 {
		return nil, fmt.Errorf("filter capacity must be positive")
	}
	if math.IsNaN(fpRate) || fpRate <= 0 || fpRate >= 1 {
		return nil, fmt.Errorf("filter false positive rate must be between 0 and 1, got %f", fpRate)
	}

	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("failed to allocate bloom filter: %v", r)
		}
	}()

	return &bloomFilter{
		filter:   bloom.NewWithEstimates(capacity, fpRate),
		capacity: capacity,
		fpRate:   fpRate,
	}, nil
}

func (f *bloomFilter) admit(data []byte) bool {
	return !f.filter.TestAndAdd(data)
}

func (f *bloomFilter) reset() {
	f.filter = bloom.NewWithEstimates(f.capacity, f.fpRate)
}

func (f *bloomFilter) mode() FilterMode {
	return ModeWithFilter
}

func (f *bloomFilter) marshal() ([]byte, error) {
	return f.filter.MarshalBinary()
}

func (f *bloomFilter) restore(data []byte) (prefilter, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("snapshot has no bloom filter state")
	}

	filter := bloom.New(1, 1)
	if err := filter.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to decode bloom filter: %w", err)
	}

	return &bloomFilter{
		filter:   filter,
		capacity: f.capacity,
		fpRate:   f.fpRate,
	}, nil
}

// exactOnly implements prefilter by never answering: every URL falls through
// to the exact cache
type exactOnly struct{}

func (exactOnly) admit([]byte) bool { return false }

func (exactOnly) reset() {}

func (exactOnly) mode() FilterMode { return ModeExactOnly }

func (exactOnly) marshal() ([]byte, error) { return nil, nil }

// restore ignores any saved filter state; exact-only checking needs none.
func (exactOnly) restore([]byte) (prefilter, error) { return exactOnly{}, nil }
