// Package redisstore keeps the telemetry log in redis: a list holds event IDs
// in insertion order and a hash holds the encoded events keyed by ID.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/koscakluka/cognitive-os/core/telemetry"
)

const (
	DefaultPrefix = "cognitive-os:telemetry"

	maxWatchRetries = 5
)

type Store struct {
	rdb      goredis.UniversalClient
	orderKey string
	eventKey string
}

type Option func(*Store)

// WithPrefix namespaces the keys used by the store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.orderKey, s.eventKey = keys(prefix)
		}
	}
}

func New(rdb goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb}
	s.orderKey, s.eventKey = keys(DefaultPrefix)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the connection with a ping.
func Dial(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return New(rdb, opts...), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func keys(prefix string) (order, events string) {
	return prefix + ":order", prefix + ":events"
}

func (s *Store) ReadAll(ctx context.Context) ([]telemetry.Event, error) {
	ctx, span := tracer.Start(ctx, "read telemetry events")
	defer span.End()

	ids, err := s.rdb.LRange(ctx, s.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry order: %w", err)
	}
	if len(ids) == 0 {
		return []telemetry.Event{}, nil
	}

	raw, err := s.rdb.HMGet(ctx, s.eventKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry events: %w", err)
	}

	all := make([]telemetry.Event, 0, len(raw))
	for i, value := range raw {
		encoded, ok := value.(string)
		if !ok {
			// order entry without a body, left behind by a crashed compaction
			logger.Warn("telemetry event missing from hash", "id", ids[i])
			continue
		}

		var event telemetry.Event
		if err := json.Unmarshal([]byte(encoded), &event); err != nil {
			logger.Warn("dropping undecodable telemetry event", "id", ids[i], "error", err)
			continue
		}
		all = append(all, event)
	}
	return all, nil
}

func (s *Store) Append(ctx context.Context, event telemetry.Event) error {
	ctx, span := tracer.Start(ctx, "append telemetry event")
	defer span.End()

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode telemetry event %s: %w", event.ID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.eventKey, event.ID, encoded)
		pipe.RPush(ctx, s.orderKey, event.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append telemetry event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "mark telemetry synced")
	defer span.End()

	return s.watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HMGet(ctx, s.eventKey, ids...).Result()
		if err != nil {
			return err
		}

		updates := make([]any, 0, 2*len(ids))
		for i, value := range raw {
			encoded, ok := value.(string)
			if !ok {
				continue
			}
			var event telemetry.Event
			if err := json.Unmarshal([]byte(encoded), &event); err != nil {
				continue
			}
			event.Synced = true
			updated, err := json.Marshal(event)
			if err != nil {
				return err
			}
			updates = append(updates, ids[i], updated)
		}
		if len(updates) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, s.eventKey, updates...)
			return nil
		})
		return err
	})
}

func (s *Store) DeleteSynced(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "compact telemetry events")
	defer span.End()

	removed := 0
	err := s.watch(ctx, func(tx *goredis.Tx) error {
		removed = 0

		all, err := tx.HGetAll(ctx, s.eventKey).Result()
		if err != nil {
			return err
		}

		var synced []string
		for id, encoded := range all {
			var event telemetry.Event
			if err := json.Unmarshal([]byte(encoded), &event); err != nil {
				continue
			}
			if event.Synced {
				synced = append(synced, id)
			}
		}
		if len(synced) == 0 {
			return nil
		}
		slices.Sort(synced)

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HDel(ctx, s.eventKey, synced...)
			for _, id := range synced {
				pipe.LRem(ctx, s.orderKey, 0, id)
			}
			return nil
		})
		if err == nil {
			removed = len(synced)
		}
		return err
	})
	return removed, err
}

// watch runs fn as an optimistic transaction over both keys, retrying when
// another client changed them in between.
func (s *Store) watch(ctx context.Context, fn func(*goredis.Tx) error) error {
	for range maxWatchRetries {
		err := s.rdb.Watch(ctx, fn, s.orderKey, s.eventKey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis telemetry transaction failed: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redis telemetry transaction failed after %d attempts: %w", maxWatchRetries, goredis.TxFailedErr)
}
