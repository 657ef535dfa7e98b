// Package sqlitedb opens the embedded sqlite database shared by the library
// and the telemetry store.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const MemoryPath = ":memory:"

type Options struct {
	BusyTimeout time.Duration
	Synchronous string
}

func Open(path string, options Options) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitedb: missing database path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if path != MemoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	synchronous := options.Synchronous
	if synchronous == "" {
		synchronous = "NORMAL"
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA synchronous=%s", synchronous)); err != nil {
		_ = db.Close()
		return nil, err
	}

	busyTimeout := options.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = 5 * time.Second
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", int(busyTimeout/time.Millisecond))); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
