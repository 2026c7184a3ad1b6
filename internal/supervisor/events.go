package supervisor

import (
	"time"

	"github.com/rs/zerolog"
)

// Event represents a supervisor lifecycle event.
// Minimal and stable: name + instance name and optional fields via key/values.
type Event struct {
	Name     string
	Instance string
	Time     time.Time
	Fields   map[string]any
}

// EventPublisher receives events from the supervisor. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Debug().Str("event", e.Name).Str("instance", e.Instance)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("supervisor event")
}

func (s *Supervisor) emit(name, instance string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	s.publisher.Publish(Event{Name: name, Instance: instance, Time: time.Now(), Fields: fields})
}
