// Package sinks provides progress.Sink implementations: structured logs,
// Prometheus collectors and per-entity YAML manifests.
package sinks
