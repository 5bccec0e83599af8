// Package metrics collects the router's Prometheus metrics: HTTP surface
// counters and latencies, routing outcomes and confidence, registry size
// and change counts, and snapshot cache hit rates.
package metrics
