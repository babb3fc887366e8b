package entity

import "time"

// DeduplicationResult is the outcome of checking one URL against the deduplicator
type DeduplicationResult struct {
	IsDuplicate   bool   `json:"is_duplicate"`
	HashValue     string `json:"hash_value"`
	NormalizedURL string `json:"normalized_url"`
	Reason        string `json:"reason,omitempty"`
}

// ValidationResult is the outcome of validating one URL
type ValidationResult struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason,omitempty"`
}

// Stats is a point-in-time snapshot of deduplicator counters
type Stats struct {
	TotalURLs      int64     `json:"total_urls"`
	Duplicates     int64     `json:"duplicates"`
	UniqueURLs     int64     `json:"unique_urls"`
	CacheEvictions int64     `json:"cache_evictions"`
	InvalidURLs    int64     `json:"invalid_urls"`
	Errors         int64     `json:"errors"`
	CacheSize      int       `json:"cache_size"`
	MaxCacheSize   int       `json:"max_cache_size"`
	FilterMode     string    `json:"filter_mode"`
	Timestamp      time.Time `json:"timestamp"`
}

// URL record statuses
const (
	StatusUnique    = "unique"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
	StatusInvalid   = "invalid"
	StatusError     = "error"
)

// URLRecord represents the pipeline output for one input URL
type URLRecord struct {
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalized_url,omitempty"`
	HashValue     string    `json:"hash_value,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Task represents a batch of raw URLs to check
type Task struct {
	URLs      []string
	Offset    int
	CreatedAt time.Time
}

// Metrics represents pipeline metrics
type Metrics struct {
	QueueLength    int
	ActiveWorkers  int
	TotalWorkers   int
	TasksEnqueued  int64
	TasksProcessed int64
	URLsRead       int64
	URLsRejected   int64
	URLsWritten    int64
	StoreErrors    int64
	Dedup          Stats
	StartTime      time.Time
	LastUpdateTime time.Time
}
