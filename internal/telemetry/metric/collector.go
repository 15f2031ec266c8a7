package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsistencyStats summarizes one consistency check of a partition.
type ConsistencyStats struct {
	Partition      string
	Objects        int
	ReverseEntries int
	Violations     int
	CheckedAt      time.Time
}

// ConsistencySource returns the latest stats per partition.
type ConsistencySource func() []ConsistencyStats

// Collector exposes the latest consistency check results. Values are read
// from the source at scrape time.
type Collector struct {
	source ConsistencySource

	objects    *prometheus.Desc
	reverse    *prometheus.Desc
	violations *prometheus.Desc
	checkedAt  *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(namespace string, source ConsistencySource) *Collector {
	labels := []string{"partition"}
	return &Collector{
		source: source,
		objects: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consistency", "objects"),
			"Forward entries seen by the last consistency check", labels, nil),
		reverse: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consistency", "reverse_entries"),
			"Reverse entries seen by the last consistency check", labels, nil),
		violations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consistency", "violations"),
			"Violations found by the last consistency check", labels, nil),
		checkedAt: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "consistency", "last_check_timestamp_seconds"),
			"Unix timestamp of the last consistency check", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.objects
	ch <- c.reverse
	ch <- c.violations
	ch <- c.checkedAt
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.objects, prometheus.GaugeValue, float64(s.Objects), s.Partition)
		ch <- prometheus.MustNewConstMetric(c.reverse, prometheus.GaugeValue, float64(s.ReverseEntries), s.Partition)
		ch <- prometheus.MustNewConstMetric(c.violations, prometheus.GaugeValue, float64(s.Violations), s.Partition)
		ch <- prometheus.MustNewConstMetric(c.checkedAt, prometheus.GaugeValue, float64(s.CheckedAt.Unix()), s.Partition)
	}
}
