package sqlitestore

const schemaEvents = `
CREATE TABLE IF NOT EXISTS telemetry_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	timestamp TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0 CHECK (synced IN (0, 1))
);`

const schemaEventsIndexes = `
CREATE INDEX IF NOT EXISTS idx_telemetry_events_synced ON telemetry_events(synced);`
