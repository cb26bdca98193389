// Package scrape defines the domain types shared by the document discovery and
// retrieval pipeline: categories, discovered references, fetch requests and
// per-artifact results, plus the deterministic naming rules for artifacts.
package scrape
