package library

const schemaMaterials = `
CREATE TABLE IF NOT EXISTS materials (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	cover_color TEXT NOT NULL DEFAULT '',
	progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	status TEXT NOT NULL DEFAULT 'new',
	last_accessed INTEGER NOT NULL,
	is_favorite INTEGER NOT NULL DEFAULT 0 CHECK (is_favorite IN (0, 1)),
	modules_count INTEGER NOT NULL DEFAULT 0,
	raw_text TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT ''
);`

const schemaMaterialsIndexes = `
CREATE INDEX IF NOT EXISTS idx_materials_last_accessed ON materials(last_accessed);`
