// Package coordinator processes entities one at a time: it loads the entity
// detail page once, runs every category orchestrator against it in a fixed
// order and reports the per-entity counts. A failure in one entity never
// stops the batch.
package coordinator
