package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "urldedup"

// Metrics holds the deduplicator latency histograms
type Metrics struct {
	CheckDuration    prometheus.Histogram
	EvictionDuration prometheus.Histogram
}

// NewMetrics creates the histograms and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "check_duration_seconds",
			Help:      "Time spent checking a single URL.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		EvictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "eviction_duration_seconds",
			Help:      "Time spent evicting keys from the exact cache.",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 4, 8),
		}),
	}

	for _, c := range []prometheus.Collector{m.CheckDuration, m.EvictionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StatsCollector exposes Deduplicator counters as Prometheus metrics. Values
// are read from GetStats at scrape time.
type StatsCollector struct {
	dedup *Deduplicator

	total      *prometheus.Desc
	duplicates *prometheus.Desc
	unique     *prometheus.Desc
	evictions  *prometheus.Desc
	invalid    *prometheus.Desc
	errors     *prometheus.Desc
	cacheSize  *prometheus.Desc
	maxCache   *prometheus.Desc
}

// NewStatsCollector creates a collector for d
func NewStatsCollector(d *Deduplicator) *StatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &StatsCollector{
		dedup:      d,
		total:      desc("urls_total", "URLs checked."),
		duplicates: desc("duplicates_total", "URLs found in the exact cache."),
		unique:     desc("unique_total", "URLs admitted as new."),
		evictions:  desc("cache_evictions_total", "Cache eviction passes, including clears."),
		invalid:    desc("invalid_urls_total", "URLs that could not be normalized."),
		errors:     desc("errors_total", "Checks that failed internally."),
		cacheSize:  desc("cache_size", "Keys currently in the exact cache."),
		maxCache:   desc("cache_max_size", "Configured exact cache bound."),
	}
}

// Describe implements prometheus.Collector
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.total, c.duplicates, c.unique, c.evictions,
		c.invalid, c.errors, c.cacheSize, c.maxCache,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.dedup.GetStats()

	ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(s.TotalURLs))
	ch <- prometheus.MustNewConstMetric(c.duplicates, prometheus.CounterValue, float64(s.Duplicates))
	ch <- prometheus.MustNewConstMetric(c.unique, prometheus.CounterValue, float64(s.UniqueURLs))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.CacheEvictions))
	ch <- prometheus.MustNewConstMetric(c.invalid, prometheus.CounterValue, float64(s.InvalidURLs))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(s.CacheSize))
	ch <- prometheus.MustNewConstMetric(c.maxCache, prometheus.GaugeValue, float64(s.MaxCacheSize))
}
