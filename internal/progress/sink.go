package progress

import "context"

// Sink consumes batches of progress events. Consume is only ever called from
// the hub's delivery goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops every event.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(Event) {}
