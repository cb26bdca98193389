// Package category assembles the section locator, the time-window rules and
// the retrieval resolvers into one orchestrator per document category. An
// orchestrator never aborts on a single item: it reports the outcome and
// moves on, returning how many artifacts now exist locally.
package category
