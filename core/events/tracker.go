package events

// Tracker records events. Implementations must make the event durable before
// Track returns; delivery to a remote collector may happen later.
type Tracker interface {
	Track(name Name, payload Payload) error
}

// Emit records a typed event on tracker. A nil tracker drops the event.
func Emit(tracker Tracker, event Event) error {
	if tracker == nil || event == nil {
		return nil
	}
	return tracker.Track(event.Name(), event.Payload())
}

type nopTracker struct{}

func (nopTracker) Track(Name, Payload) error { return nil }

// NopTracker discards every event.
var NopTracker Tracker = nopTracker{}
