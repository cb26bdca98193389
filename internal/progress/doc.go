// Package progress carries retrieval outcome events from the coordinator to
// pluggable sinks (structured logs, Prometheus metrics, per-entity
// manifests). Emitting never blocks the scrape: events are queued and
// delivered in batches by a background goroutine.
package progress
