package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub.
type Config struct {
	// BufferSize is the queue capacity (default 1024).
	BufferSize int
	// MaxBatchEvents flushes once this many events are pending (default 64).
	MaxBatchEvents int
	// MaxBatchWait flushes a partial batch after this long (default 250ms).
	MaxBatchWait time.Duration
	// SinkTimeout bounds each sink call (default 10s).
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 64
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
)

// Hub queues events and delivers them to sinks in batches. Emit never blocks;
// when the queue is full the event is counted as dropped.
type Hub struct {
	cfg     Config
	sinks   []Sink
	logger  *zap.Logger
	events  chan Event
	flushes chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
	closed  atomic.Bool
	once    sync.Once
}

// NewHub starts a Hub delivering to sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:     cfg,
		sinks:   append([]Sink(nil), sinks...),
		logger:  logger.Named("progress"),
		events:  make(chan Event, cfg.BufferSize),
		flushes: make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Emit enqueues evt. Invalid events are discarded.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		if n := h.dropped.Add(1); n == 1 || n%100 == 0 {
			h.logger.Warn("progress events dropped", zap.Int64("dropped", n))
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Flush blocks until every event emitted before the call reached the sinks.
func (h *Hub) Flush(ctx context.Context) error {
	if h == nil || h.closed.Load() {
		return nil
	}
	ack := make(chan struct{})
	select {
	case h.flushes <- ack:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress flush: %w", ctx.Err())
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress flush wait: %w", ctx.Err())
	}
}

// Close delivers queued events, closes every sink and stops the hub. Later
// calls only wait for shutdown.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.stop)
	})
	select {
	case <-h.done:
	case <-ctx.Done():
		return fmt.Errorf("progress hub close: %w", ctx.Err())
	}
	var firstErr error
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *Hub) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.cfg.MaxBatchWait)
	defer ticker.Stop()

	batch := make([]Event, 0, h.cfg.MaxBatchEvents)
	deliver := func() {
		if len(batch) == 0 {
			return
		}
		h.deliver(batch)
		batch = batch[:0]
	}
	// pending moves everything already queued into the batch.
	pending := func() {
		for {
			select {
			case evt := <-h.events:
				batch = append(batch, evt)
				if len(batch) >= h.cfg.MaxBatchEvents {
					deliver()
				}
			default:
				return
			}
		}
	}

	for {
		select {
		case evt := <-h.events:
			batch = append(batch, evt)
			if len(batch) >= h.cfg.MaxBatchEvents {
				deliver()
			}
		case <-ticker.C:
			deliver()
		case ack := <-h.flushes:
			pending()
			deliver()
			close(ack)
		case <-h.stop:
			pending()
			deliver()
			return
		}
	}
}

func (h *Hub) deliver(batch []Event) {
	out := append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}
