// Package metrics exposes Prometheus metrics for the monitor and collector.
//
// Key metrics:
//   - Cycle outcomes, durations and errors per symbol
//   - Latest imbalance and fitted band per symbol
//   - Alerts by direction and delivery outcome
//   - Trade writer and live stream counters
package metrics
