package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS feeds (
    url                  TEXT PRIMARY KEY,
    etag                 TEXT,
    last_modified        TEXT,
    sha256               TEXT NOT NULL,
    size_bytes           INTEGER NOT NULL,
    body                 BLOB NOT NULL,
    fetched_at           TEXT NOT NULL,
    checked_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fetch_log (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    url                  TEXT NOT NULL,
    status               INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL DEFAULT 0,
    duration_ms          INTEGER NOT NULL DEFAULT 0,
    error                TEXT,
    at                   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fetch_log_at ON fetch_log(at);
`
