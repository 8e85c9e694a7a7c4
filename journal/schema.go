package journal

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id   TEXT NOT NULL UNIQUE,
	slug       TEXT NOT NULL,
	source     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 0,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_entries_slug_kind ON entries(slug, kind, seq);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS entries (
	seq        BIGSERIAL PRIMARY KEY,
	entry_id   TEXT NOT NULL UNIQUE,
	slug       TEXT NOT NULL,
	source     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	version    BIGINT NOT NULL DEFAULT 0,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_entries_slug_kind ON entries(slug, kind, seq);
`
