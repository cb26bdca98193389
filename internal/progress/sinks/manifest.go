package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/disclosure-scraper/internal/progress"
)

// ManifestFile is the manifest name inside each entity directory.
const ManifestFile = "manifest.yaml"

// Manifest is the informational record of one entity run.
type Manifest struct {
	RunID     string          `yaml:"run_id"`
	Entity    string          `yaml:"entity"`
	Started   time.Time       `yaml:"started"`
	Finished  time.Time       `yaml:"finished"`
	Result    string          `yaml:"result"`
	Error     string          `yaml:"error,omitempty"`
	Artifacts []ManifestEntry `yaml:"artifacts"`
}

// ManifestEntry describes one artifact outcome.
type ManifestEntry struct {
	Category string `yaml:"category"`
	Outcome  string `yaml:"outcome"`
	URL      string `yaml:"url,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Bytes    int64  `yaml:"bytes,omitempty"`
	SHA256   string `yaml:"sha256,omitempty"`
	Strategy string `yaml:"strategy,omitempty"`
	Note     string `yaml:"note,omitempty"`
}

// ManifestSink accumulates artifact events per entity and writes
// {baseDir}/{entity}/manifest.yaml when the entity finishes.
type ManifestSink struct {
	baseDir string
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*Manifest
}

// NewManifestSink returns a sink rooted at baseDir.
func NewManifestSink(baseDir string, logger *zap.Logger) *ManifestSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManifestSink{
		baseDir: baseDir,
		logger:  logger,
		pending: make(map[string]*Manifest),
	}
}

// Consume implements progress.Sink.
func (s *ManifestSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, evt := range batch {
		m := s.manifestFor(evt)
		switch evt.Stage {
		case progress.StageEntityStart:
			m.Started = evt.TS
		case progress.StageArtifactRetrieved, progress.StageArtifactSkipped, progress.StageArtifactFailed:
			m.Artifacts = append(m.Artifacts, ManifestEntry{
				Category: string(evt.Category),
				Outcome:  outcomeLabel(evt.Stage),
				URL:      evt.URL,
				Path:     evt.Path,
				Bytes:    evt.Bytes,
				SHA256:   evt.Digest,
				Strategy: evt.Strategy,
				Note:     evt.Note,
			})
		case progress.StageEntityDone, progress.StageEntityError:
			m.Finished = evt.TS
			m.Result = "success"
			if evt.Stage == progress.StageEntityError {
				m.Result = "error"
				m.Error = evt.Note
			}
			delete(s.pending, evt.Entity)
			if err := s.write(m); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *ManifestSink) manifestFor(evt progress.Event) *Manifest {
	m, ok := s.pending[evt.Entity]
	if !ok {
		m = &Manifest{
			RunID:   evt.RunUUID().String(),
			Entity:  evt.Entity,
			Started: evt.TS,
		}
		s.pending[evt.Entity] = m
	}
	return m
}

func (s *ManifestSink) write(m *Manifest) error {
	dir := filepath.Join(s.baseDir, m.Entity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	tmp, err := os.CreateTemp(dir, ".manifest.*.part")
	if err != nil {
		return fmt.Errorf("create manifest temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit manifest: %w", err)
	}
	s.logger.Debug("manifest written", zap.String("entity", m.Entity), zap.String("path", path))
	return nil
}

// Close writes manifests for entities that never reported completion.
func (s *ManifestSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for entity, m := range s.pending {
		m.Result = "incomplete"
		if err := s.write(m); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.pending, entity)
	}
	return firstErr
}

// ReadManifest loads a manifest written by ManifestSink.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
