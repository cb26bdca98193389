package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageEntityStart))
	hub.Emit(sampleEvent(StageEntityStart))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageEntityStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubFlush(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageEntityStart))
	hub.Emit(sampleEvent(StageEntityDone))
	require.NoError(t, hub.Flush(context.Background()))
	assert.Equal(t, 2, sink.Total())
}

func TestHubCloseDeliversAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Hour}, sink)
	hub.Emit(sampleEvent(StageEntityStart))

	require.NoError(t, hub.Close(context.Background()))
	assert.Equal(t, 1, sink.Total())
	assert.True(t, sink.closed)

	hub.Emit(sampleEvent(StageEntityDone))
	require.NoError(t, hub.Flush(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	assert.Equal(t, 1, sink.Total())
}

func TestHubDropsWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{cfg: Config{}, events: make(chan Event), logger: newStubLogger()}
	start := time.Now()
	hub.Emit(sampleEvent(StageEntityStart))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, hub.Dropped())
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{}, sink)
	hub.Emit(Event{Stage: StageEntityStart})
	require.NoError(t, hub.Close(context.Background()))
	assert.Zero(t, sink.Total())
}

func TestHubReportsSinkCloseError(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	sink.closeErr = errors.New("disk full")
	hub := NewHub(Config{}, sink)
	require.ErrorIs(t, hub.Close(context.Background()), sink.closeErr)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sampleEvent(StageEntityStart).Validate())

	missingCategory := sampleEvent(StageArtifactRetrieved)
	missingCategory.Category = ""
	require.Error(t, missingCategory.Validate())

	unknown := sampleEvent("BOGUS")
	require.Error(t, unknown.Validate())

	negative := sampleEvent(StageEntityDone)
	negative.Dur = -time.Second
	require.Error(t, negative.Validate())
}

func TestArtifactEvent(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	evt := ArtifactEvent(runID, "TCS", scrape.CategoryAnnualReports, scrape.Result{
		Status: scrape.StatusFailed,
		URL:    "https://x.example/a.pdf",
		Err:    errors.New("both strategies failed"),
	}, time.Now())
	assert.Equal(t, StageArtifactFailed, evt.Stage)
	assert.Equal(t, "both strategies failed", evt.Note)
	assert.True(t, evt.Stage.IsArtifact())
	require.NoError(t, evt.Validate())

	assert.Equal(t, StageArtifactSkipped, StageFor(scrape.StatusSkipped))
	assert.Equal(t, StageArtifactRetrieved, StageFor(scrape.StatusRetrieved))
}

type stubSink struct {
	mu       sync.Mutex
	batches  [][]Event
	closed   bool
	closeErr error
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *stubSink) Total() int {
	total := 0
	for _, b := range s.Batches() {
		total += len(b)
	}
	return total
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		RunID:  UUIDToBytes(uuid.New()),
		TS:     time.Now(),
		Stage:  stage,
		Entity: "TCS",
	}
	if stage.IsArtifact() {
		evt.Category = scrape.CategoryAnnualReports
	}
	return evt
}

func newStubLogger() *zap.Logger {
	return zap.NewNop()
}
