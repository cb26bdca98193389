package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/progress"
)

// LogSink writes each event as a debug-level structured log entry.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume implements progress.Sink.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("entity", evt.Entity),
		}
		if evt.Stage.IsArtifact() {
			fields = append(fields,
				zap.String("category", string(evt.Category)),
				zap.String("url", evt.URL),
				zap.String("path", evt.Path),
				zap.Int64("bytes", evt.Bytes),
				zap.String("strategy", evt.Strategy),
			)
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
