package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

// Stage denotes the milestone an Event records.
type Stage string

// Supported stages.
const (
	StageEntityStart       Stage = "ENTITY_START"
	StageEntityDone        Stage = "ENTITY_DONE"
	StageEntityError       Stage = "ENTITY_ERROR"
	StageArtifactRetrieved Stage = "ARTIFACT_RETRIEVED"
	StageArtifactSkipped   Stage = "ARTIFACT_SKIPPED"
	StageArtifactFailed    Stage = "ARTIFACT_FAILED"
)

// IsArtifact reports whether s describes a single artifact.
func (s Stage) IsArtifact() bool {
	switch s {
	case StageArtifactRetrieved, StageArtifactSkipped, StageArtifactFailed:
		return true
	}
	return false
}

// Event is one progress record.
type Event struct {
	// RunID correlates every event of one process run (UUID bytes).
	RunID [16]byte
	TS    time.Time
	Stage Stage
	// Entity is the identifier being processed.
	Entity string
	// Category is set for artifact events.
	Category scrape.Category
	URL      string
	Path     string
	Bytes    int64
	Digest   string
	// Strategy names the resolver strategy that produced the artifact.
	Strategy string
	Dur      time.Duration
	// Note carries error text or other low-volume detail.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	if e.Entity == "" {
		return errors.New("entity is required")
	}
	switch e.Stage {
	case StageEntityStart, StageEntityDone, StageEntityError:
	case StageArtifactRetrieved, StageArtifactSkipped, StageArtifactFailed:
		if e.Category == "" {
			return fmt.Errorf("%s requires category", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID returns the run identifier as a uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// StageFor maps a retrieval status to its artifact stage.
func StageFor(status scrape.Status) Stage {
	switch status {
	case scrape.StatusRetrieved:
		return StageArtifactRetrieved
	case scrape.StatusSkipped:
		return StageArtifactSkipped
	default:
		return StageArtifactFailed
	}
}

// ArtifactEvent builds the event describing res.
func ArtifactEvent(runID [16]byte, entity string, category scrape.Category, res scrape.Result, ts time.Time) Event {
	evt := Event{
		RunID:    runID,
		TS:       ts,
		Stage:    StageFor(res.Status),
		Entity:   entity,
		Category: category,
		URL:      res.URL,
		Path:     res.Path,
		Bytes:    res.Bytes,
		Digest:   res.Digest,
		Strategy: res.Strategy,
		Dur:      res.Duration,
		Note:     res.Note,
	}
	if res.Err != nil {
		evt.Note = res.Err.Error()
	}
	return evt
}
