package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/disclosure-scraper/internal/progress"
)

// PrometheusSink counts artifacts and entities. When a textfile path is set,
// Close writes the gathered registry there in the node-exporter format.
type PrometheusSink struct {
	gatherer prometheus.Gatherer
	textfile string

	artifacts        *prometheus.CounterVec
	artifactBytes    *prometheus.CounterVec
	artifactDuration *prometheus.HistogramVec
	entities         *prometheus.CounterVec
	entityDuration   *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg *prometheus.Registry, textfile string) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &PrometheusSink{
		gatherer: reg,
		textfile: textfile,
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_artifacts_total",
			Help: "Artifacts processed partitioned by category and outcome.",
		}, []string{"category", "outcome"}),
		artifactBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_artifact_bytes_total",
			Help: "Bytes written per category.",
		}, []string{"category"}),
		artifactDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_artifact_duration_seconds",
			Help:    "Retrieval time of newly written artifacts.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60, 300},
		}, []string{"category"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_entities_total",
			Help: "Entities processed partitioned by result.",
		}, []string{"result"}),
		entityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_entity_duration_seconds",
			Help:    "Wall time per entity.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.artifacts,
		s.artifactBytes,
		s.artifactDuration,
		s.entities,
		s.entityDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume implements progress.Sink.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageEntityDone:
			s.observeEntity(evt, "success")
		case progress.StageEntityError:
			s.observeEntity(evt, "error")
		case progress.StageArtifactRetrieved, progress.StageArtifactSkipped, progress.StageArtifactFailed:
			s.observeArtifact(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) observeEntity(evt progress.Event, result string) {
	s.entities.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.entityDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeArtifact(evt progress.Event) {
	category := string(evt.Category)
	s.artifacts.WithLabelValues(category, outcomeLabel(evt.Stage)).Inc()
	if evt.Stage != progress.StageArtifactRetrieved {
		return
	}
	if evt.Bytes > 0 {
		s.artifactBytes.WithLabelValues(category).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.artifactDuration.WithLabelValues(category).Observe(evt.Dur.Seconds())
	}
}

func outcomeLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageArtifactRetrieved:
		return "retrieved"
	case progress.StageArtifactSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Close writes the textfile when configured.
func (s *PrometheusSink) Close(context.Context) error {
	if s.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
