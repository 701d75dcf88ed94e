// Package notify fans pipeline events out to external sinks. Delivery is
// entirely best-effort: the pipeline emits and moves on, and a sink failure
// never reaches ticket handling.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the pipeline.
const (
	EventResponseGenerated    = "response.generated"
	EventTicketEscalated      = "ticket.escalated"
	EventArticlePendingReview = "article.pending_review"
	EventLearningPassFinished = "learning.pass_finished"
)

// Event is one pipeline occurrence worth telling the outside world about.
type Event struct {
	Type      string         `json:"type"`
	TicketID  int64          `json:"ticket_id,omitempty"`
	TraceID   string         `json:"trace_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink consumes events. Errors are logged by the bus, not propagated.
type Sink interface {
	Name() string
	Send(ctx context.Context, e *Event) error
}

// Bus buffers events and dispatches them to registered sinks.
type Bus struct {
	events chan *Event
	log    *slog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// NewBus creates a Bus with a bounded buffer.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{events: make(chan *Event, 100), log: log}
}

// Register adds a sink. Sinks registered after Dispatch starts still
// receive subsequent events.
func (b *Bus) Register(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
	b.log.Info("notify sink registered", "sink", s.Name())
}

// Publish queues an event. A full buffer drops the event rather than
// blocking the pipeline.
func (b *Bus) Publish(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}
	select {
	case b.events <- e:
	default:
		b.log.Warn("notify buffer full, event dropped", "type", e.Type, "ticket_id", e.TicketID)
	}
}

// Dispatch delivers queued events to every sink until ctx is cancelled.
// Run it as a goroutine.
func (b *Bus) Dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-b.events:
			b.mu.RLock()
			sinks := make([]Sink, len(b.sinks))
			copy(sinks, b.sinks)
			b.mu.RUnlock()

			for _, s := range sinks {
				if err := s.Send(ctx, e); err != nil {
					b.log.Warn("notify delivery failed",
						"sink", s.Name(),
						"type", e.Type,
						"trace_id", e.TraceID,
						"error", err)
				}
			}
		}
	}
}

// Pending returns the number of undelivered events.
func (b *Bus) Pending() int {
	return len(b.events)
}
