package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/elys-network/stablevault/internal/logger"
	"github.com/elys-network/stablevault/internal/types"
)

// Emitter receives vault and harvester notifications.
type Emitter interface {
	Emit(ctx context.Context, ev types.Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, types.Event) {}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev types.Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, ev)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *Recorder) Emit(_ context.Context, ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of what has been recorded.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events with the given type name.
func (r *Recorder) OfType(name string) []types.Event {
	var out []types.Event
	for _, ev := range r.Events() {
		if ev.EventType() == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogEmitter writes each event to the structured log.
type LogEmitter struct {
	log zerolog.Logger
}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{log: logger.GetForComponent("events")}
}

func (l *LogEmitter) Emit(_ context.Context, ev types.Event) {
	entry := l.log.Info()
	if _, ok := ev.(types.RebaseLossDetected); ok {
		entry = l.log.Warn()
	}
	entry.Str("event", ev.EventType()).Interface("payload", ev).Msg("Vault event")
}
