package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/cognitive-os/core/events"
)

// Event is a single tracked action as it is persisted and delivered.
type Event struct {
	ID        string         `json:"id"`
	Name      events.Name    `json:"event"`
	Payload   events.Payload `json:"payload"`
	Timestamp string         `json:"timestamp"`
	Synced    bool           `json:"synced"`
}

// Store is the durable append log backing the queue.
//
// Implementations must make Append atomic with respect to concurrent
// appenders, keep insertion order in ReadAll and never flip Synced back to
// false.
type Store interface {
	ReadAll(ctx context.Context) ([]Event, error)
	Append(ctx context.Context, event Event) error
	MarkSynced(ctx context.Context, ids []string) error
	// DeleteSynced removes events already confirmed as delivered and reports
	// how many were removed.
	DeleteSynced(ctx context.Context) (int, error)
}

// Deliverer sends one batch to the remote collector.
type Deliverer interface {
	Deliver(ctx context.Context, batch []Event) error
}

// newEventID returns a UUIDv7: a millisecond timestamp followed by random
// bits, unique even for events created within the same millisecond.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func unsynced(all []Event) []Event {
	out := make([]Event, 0, len(all))
	for _, event := range all {
		if !event.Synced {
			out = append(out, event)
		}
	}
	return out
}
