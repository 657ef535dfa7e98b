package telemetry

import "fmt"

// DeliveryError is returned by Flush when the collector rejected or never
// received a batch. It never reaches callers of Track.
type DeliveryError struct {
	Count int
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %d events: %v", e.Count, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
