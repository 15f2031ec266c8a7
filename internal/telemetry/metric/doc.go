// Package metric provides Prometheus metrics for snapmapper.
//
//   - prometheus.go: registry, recording helpers and HTTP handler
//   - collector.go: collector exposing the last consistency check
//
// Metrics include index operation counters, trim scan counters, commit
// latency histograms and the count of fatal inconsistencies. Storage
// engines register their own gauges on the same registry.
package metric
