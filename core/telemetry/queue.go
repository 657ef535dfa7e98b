package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/koscakluka/cognitive-os/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBatchSize     = 5
	DefaultFlushInterval = 5 * time.Second

	disposeFlushTimeout = 10 * time.Second
)

// Queue records events durably and delivers them to the collector in
// batches, either once the in-memory queue reaches the batch size or on the
// background timer.
//
// A Queue is constructed explicitly and owns its timer; Init starts it and
// Dispose stops it.
type Queue struct {
	store     Store
	deliverer Deliverer

	batchSize int
	interval  time.Duration
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger

	mu sync.Mutex
	// pending is the in-memory queue of events not yet confirmed as synced.
	pending []Event
	// unpersisted holds events whose Append failed; they are retried before
	// every flush.
	unpersisted []Event
	// disposing stops Track from starting batch flushes once Dispose waits
	// for them.
	disposing bool

	flights singleflight.Group
	flushes sync.WaitGroup

	lifecycleMu sync.Mutex
	stop        chan struct{}
	stopped     chan struct{}
}

type QueueOption func(*Queue)

// WithBatchSize sets the in-memory queue length that triggers an eager
// flush. Values below 1 are ignored.
func WithBatchSize(size int) QueueOption {
	return func(q *Queue) {
		if size > 0 {
			q.batchSize = size
		}
	}
}

// WithFlushInterval sets the background timer period. Values below or equal
// to zero are ignored.
func WithFlushInterval(interval time.Duration) QueueOption {
	return func(q *Queue) {
		if interval > 0 {
			q.interval = interval
		}
	}
}

func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

func withClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func withIDs(newID func() string) QueueOption {
	return func(q *Queue) { q.newID = newID }
}

func NewQueue(store Store, deliverer Deliverer, opts ...QueueOption) *Queue {
	q := &Queue{
		store:     store,
		deliverer: deliverer,
		batchSize: DefaultBatchSize,
		interval:  DefaultFlushInterval,
		now:       time.Now,
		newID:     newEventID,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Init reloads events left unsynced by a previous process into the
// in-memory queue and starts the background flush timer. Calling Init on a
// running queue is a no-op.
func (q *Queue) Init(ctx context.Context) error {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()
	if q.stop != nil {
		return nil
	}

	all, err := q.store.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted events: %w", err)
	}

	q.mu.Lock()
	q.disposing = false
	for _, event := range unsynced(all) {
		if !slices.ContainsFunc(q.pending, func(p Event) bool { return p.ID == event.ID }) {
			q.pending = append(q.pending, event)
		}
	}
	q.mu.Unlock()

	q.stop = make(chan struct{})
	q.stopped = make(chan struct{})
	go q.runTimer(q.interval, q.stop, q.stopped)

	return nil
}

// Dispose stops the timer, waits for in-flight flushes and makes one last
// delivery attempt. Events that still fail to deliver stay in the store for
// the next process.
func (q *Queue) Dispose() {
	q.lifecycleMu.Lock()
	stop, stopped := q.stop, q.stopped
	q.stop, q.stopped = nil, nil
	q.lifecycleMu.Unlock()

	q.mu.Lock()
	q.disposing = true
	q.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}
	q.flushes.Wait()

	if q.Len() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), disposeFlushTimeout)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		q.logger.Warn("final telemetry flush failed", "error", err)
	}
}

func (q *Queue) runTimer(interval time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if q.Len() == 0 {
				continue
			}
			if err := q.Flush(context.Background()); err != nil {
				q.logger.Warn("scheduled telemetry flush failed", "error", err)
			}
		}
	}
}

// Track records an event. The event is appended to the in-memory queue and
// written to the store before Track returns. Reaching the batch size starts
// a flush in the background.
//
// A store failure is returned, but the event is kept in memory and its
// persistence is retried on the next flush.
func (q *Queue) Track(name events.Name, payload events.Payload) error {
	if payload == nil {
		payload = events.Payload{}
	}
	if !events.IsKnown(name) {
		q.logger.Warn("tracking event outside of the known vocabulary", "event", string(name))
	}

	event := Event{
		ID:        q.newID(),
		Name:      name,
		Payload:   payload,
		Timestamp: formatTimestamp(q.now()),
		Synced:    false,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var storeErr error
	if err := q.store.Append(context.Background(), event); err != nil {
		storeErr = fmt.Errorf("failed to persist event %s: %w", event.ID, err)
		q.unpersisted = append(q.unpersisted, event)
		q.logger.Error("failed to persist telemetry event", "event", string(name), "error", err)
	}
	q.pending = append(q.pending, event)
	q.logger.Debug("tracked event", "event", string(name), "id", event.ID)

	if len(q.pending) >= q.batchSize && !q.disposing {
		q.flushAsync()
	}

	return storeErr
}

func (q *Queue) flushAsync() {
	q.flushes.Add(1)
	go func() {
		defer q.flushes.Done()
		if err := q.Flush(context.Background()); err != nil {
			q.logger.Warn("batch telemetry flush failed", "error", err)
		}
	}()
}

// Flush delivers every persisted event that is not yet synced in a single
// batch. Concurrent calls share one delivery.
func (q *Queue) Flush(ctx context.Context) error {
	_, err, _ := q.flights.Do("flush", func() (any, error) {
		return nil, q.flush(ctx)
	})
	return err
}

func (q *Queue) flush(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "flush telemetry")
	defer span.End()

	if err := q.persistRetries(ctx); err != nil {
		span.RecordError(err)
	}

	all, err := q.store.ReadAll(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read persisted events: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	batch := unsynced(all)
	span.SetAttributes(attribute.Int("telemetry.batch_size", len(batch)))
	if len(batch) == 0 {
		// only what was read is known to be synced; events tracked since
		// then stay queued
		q.forget(eventIDs(all))
		return nil
	}

	if q.deliverer == nil {
		return &DeliveryError{Count: len(batch), Err: errors.New("no deliverer configured")}
	}

	if err := q.deliverer.Deliver(ctx, batch); err != nil {
		deliveryErr := &DeliveryError{Count: len(batch), Err: err}
		span.RecordError(deliveryErr)
		span.SetStatus(codes.Error, deliveryErr.Error())
		q.logger.Warn("telemetry delivery failed, will retry", "events", len(batch), "error", err)
		return deliveryErr
	}

	ids := eventIDs(batch)
	if err := q.store.MarkSynced(ctx, ids); err != nil {
		err = fmt.Errorf("failed to mark %d events as synced: %w", len(ids), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	q.forget(ids)
	q.logger.Info("telemetry synced", "events", len(ids))

	if _, err := q.Compact(ctx); err != nil {
		span.RecordError(err)
		q.logger.Warn("failed to compact telemetry store", "error", err)
	}
	return nil
}

func eventIDs(batch []Event) []string {
	ids := make([]string, len(batch))
	for i, event := range batch {
		ids[i] = event.ID
	}
	return ids
}

// persistRetries appends events whose first write failed.
func (q *Queue) persistRetries(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	remaining := q.unpersisted[:0]
	for _, event := range q.unpersisted {
		if err := q.store.Append(ctx, event); err != nil {
			errs = append(errs, err)
			remaining = append(remaining, event)
		}
	}
	q.unpersisted = remaining
	return errors.Join(errs...)
}

// forget drops synced events from the in-memory queue.
func (q *Queue) forget(ids []string) {
	if len(ids) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = slices.DeleteFunc(q.pending, func(event Event) bool {
		return slices.Contains(ids, event.ID)
	})
}

// Compact removes synced events from the store. Flush runs it after every
// successful delivery.
func (q *Queue) Compact(ctx context.Context) (int, error) {
	removed, err := q.store.DeleteSynced(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to compact telemetry store: %w", err)
	}
	return removed, nil
}

// Len returns the number of events in the in-memory queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// waitForFlushes blocks until batch-triggered flushes have returned.
func (q *Queue) waitForFlushes() {
	q.flushes.Wait()
}
