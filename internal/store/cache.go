// Package store provides a SQLite-backed cache for fetched CSV feeds.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache stores the last body seen for each feed URL along with the
// validators needed for conditional requests.
type Cache struct {
	db *sql.DB
}

// DefaultDir returns the platform-appropriate cache directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "adpulse")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "adpulse")
}

// DefaultPath returns the full path to the cache database.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "feeds.db")
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Entry is one cached feed body.
type Entry struct {
	URL          string
	ETag         string
	LastModified string
	SHA256       string
	Body         []byte
	FetchedAt    time.Time
	CheckedAt    time.Time
}

// Info is an Entry without its body.
type Info struct {
	URL       string
	ETag      string
	SHA256    string
	SizeBytes int64
	FetchedAt time.Time
	CheckedAt time.Time
}

// Hash returns the hex SHA-256 of body.
func Hash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached entry for url. ok is false when nothing is cached.
func (c *Cache) Get(url string) (e Entry, ok bool, err error) {
	var etag, lastMod sql.NullString
	var fetched, checked string
	err = c.db.QueryRow(`SELECT url, etag, last_modified, sha256, body, fetched_at, checked_at
		FROM feeds WHERE url = ?`, url).Scan(&e.URL, &etag, &lastMod, &e.SHA256, &e.Body, &fetched, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.ETag = etag.String
	e.LastModified = lastMod.String
	e.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	e.CheckedAt, _ = time.Parse(time.RFC3339Nano, checked)
	return e, true, nil
}

// Put stores a freshly fetched body. SHA256 and timestamps are filled in
// when empty. It reports whether the body differs from what was cached.
func (c *Cache) Put(e Entry) (changed bool, err error) {
	if e.SHA256 == "" {
		e.SHA256 = Hash(e.Body)
	}
	now := time.Now().UTC()
	if e.FetchedAt.IsZero() {
		e.FetchedAt = now
	}
	if e.CheckedAt.IsZero() {
		e.CheckedAt = e.FetchedAt
	}

	tx, err := c.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var prev string
	err = tx.QueryRow("SELECT sha256 FROM feeds WHERE url = ?", e.URL).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		changed = true
	case err != nil:
		return false, err
	default:
		changed = prev != e.SHA256
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO feeds
		(url, etag, last_modified, sha256, size_bytes, body, fetched_at, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.URL, e.ETag, e.LastModified, e.SHA256, len(e.Body), e.Body,
		e.FetchedAt.UTC().Format(time.RFC3339Nano), e.CheckedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	return changed, tx.Commit()
}

// Touch records that url was revalidated without a new body.
func (c *Cache) Touch(url string, at time.Time) error {
	_, err := c.db.Exec("UPDATE feeds SET checked_at = ? WHERE url = ?",
		at.UTC().Format(time.RFC3339Nano), url)
	return err
}

// Delete removes a cached feed.
func (c *Cache) Delete(url string) error {
	_, err := c.db.Exec("DELETE FROM feeds WHERE url = ?", url)
	return err
}

// Clear removes every cached feed and the fetch log.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM feeds; DELETE FROM fetch_log;")
	return err
}

// List returns every cached feed without bodies, ordered by URL.
func (c *Cache) List() ([]Info, error) {
	rows, err := c.db.Query(`SELECT url, etag, sha256, size_bytes, fetched_at, checked_at
		FROM feeds ORDER BY url`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Info
	for rows.Next() {
		var in Info
		var etag sql.NullString
		var fetched, checked string
		if err := rows.Scan(&in.URL, &etag, &in.SHA256, &in.SizeBytes, &fetched, &checked); err != nil {
			return nil, err
		}
		in.ETag = etag.String
		in.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
		in.CheckedAt, _ = time.Parse(time.RFC3339Nano, checked)
		out = append(out, in)
	}
	return out, rows.Err()
}

// Fetch is one logged transport attempt.
type Fetch struct {
	URL       string
	Status    int
	SizeBytes int
	Duration  time.Duration
	Err       string
	At        time.Time
}

// LogFetch appends a transport attempt to the fetch log.
func (c *Cache) LogFetch(f Fetch) error {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	var errText sql.NullString
	if f.Err != "" {
		errText = sql.NullString{String: f.Err, Valid: true}
	}
	_, err := c.db.Exec(`INSERT INTO fetch_log (url, status, size_bytes, duration_ms, error, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.URL, f.Status, f.SizeBytes, f.Duration.Milliseconds(), errText, f.At.UTC().Format(time.RFC3339Nano))
	return err
}

// RecentFetches returns up to limit fetch log entries, newest first.
func (c *Cache) RecentFetches(limit int) ([]Fetch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.Query(`SELECT url, status, size_bytes, duration_ms, error, at
		FROM fetch_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Fetch
	for rows.Next() {
		var f Fetch
		var ms int64
		var errText sql.NullString
		var at string
		if err := rows.Scan(&f.URL, &f.Status, &f.SizeBytes, &ms, &errText, &at); err != nil {
			return nil, err
		}
		f.Duration = time.Duration(ms) * time.Millisecond
		f.Err = errText.String
		f.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FeedCount returns the number of cached feeds.
func (c *Cache) FeedCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	return count, err
}
