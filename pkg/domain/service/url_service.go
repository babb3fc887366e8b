package service

import "github.com/WangYihang/url-dedup/pkg/domain/entity"

// URLNormalizer canonicalizes URLs
type URLNormalizer interface {
	// Normalize returns the canonical form of a URL
	Normalize(raw string) (string, bool)
	// GetDomain returns the host with mobile and www variations removed
	GetDomain(raw string) (string, bool)
}

// URLValidator decides whether a URL should be processed at all
type URLValidator interface {
	Validate(raw string) entity.ValidationResult
}

// URLDeduplicator tracks which URLs have been seen
type URLDeduplicator interface {
	// CheckBatch checks URLs in order and records them
	CheckBatch(raws []string) []entity.DeduplicationResult
	// GetStats returns the current counters
	GetStats() entity.Stats
}
