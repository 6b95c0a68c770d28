// Package metrics registers the process's Prometheus metrics at
// package init and exposes them via Handler, plus HTTP health/ready/
// liveness handlers and a Timer helper for histogram observations.
//
// Metrics are grouped by the component that owns them: op lifecycle
// counts (OpsByStage, OpsIntegratedTotal, OpsRejectedTotal), the
// validation workflows' batch durations, the fetch pool's queue depth,
// gossip round counts and durations, and storage transaction/cache
// timings. Collector polls a StatsSource (implemented by the space
// registry) on a timer and republishes its counts as gauges.
package metrics
