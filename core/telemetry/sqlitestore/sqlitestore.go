// Package sqlitestore keeps the telemetry log in an sqlite table. Insertion
// order is the autoincrement sequence, and synced flags only ever move from
// 0 to 1.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koscakluka/cognitive-os/core/events"
	"github.com/koscakluka/cognitive-os/core/telemetry"
	"github.com/koscakluka/cognitive-os/internal/sqlitedb"
)

type Store struct {
	db     *sql.DB
	ownsDB bool
}

// Open opens (or creates) the database at path and prepares the schema.
func Open(path string) (*Store, error) {
	db, err := sqlitedb.Open(path, sqlitedb.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	store, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// New uses an already opened database, typically one shared with the
// library.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlitestore: missing database connection")
	}

	for _, stmt := range []string{schemaEvents, schemaEventsIndexes} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare telemetry schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if s == nil || !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ReadAll(ctx context.Context) ([]telemetry.Event, error) {
	ctx, span := tracer.Start(ctx, "read telemetry events")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, timestamp, synced
		FROM telemetry_events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry events: %w", err)
	}
	defer rows.Close()

	all := []telemetry.Event{}
	for rows.Next() {
		var (
			event   telemetry.Event
			name    string
			payload string
			synced  int
		)
		if err := rows.Scan(&event.ID, &name, &payload, &event.Timestamp, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry event: %w", err)
		}

		event.Name = events.Name(name)
		event.Synced = synced == 1
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			logger.Warn("dropping undecodable telemetry payload", "id", event.ID, "error", err)
			event.Payload = events.Payload{}
		}
		all = append(all, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read telemetry events: %w", err)
	}

	return all, nil
}

func (s *Store) Append(ctx context.Context, event telemetry.Event) error {
	ctx, span := tracer.Start(ctx, "append telemetry event")
	defer span.End()

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload of %s: %w", event.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO telemetry_events (id, name, payload, timestamp, synced)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, event.ID, string(event.Name), string(payload), event.Timestamp, boolToInt(event.Synced))
	if err != nil {
		return fmt.Errorf("failed to insert telemetry event %s: %w", event.ID, err)
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "mark telemetry synced")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"UPDATE telemetry_events SET synced = 1 WHERE id IN (%s)",
		strings.Join(placeholders, ","),
	)
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark telemetry events synced: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteSynced(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "compact telemetry events")
	defer span.End()

	result, err := s.db.ExecContext(ctx, "DELETE FROM telemetry_events WHERE synced = 1")
	if err != nil {
		return 0, fmt.Errorf("failed to delete synced telemetry events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
