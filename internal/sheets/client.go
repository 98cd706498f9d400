// Package sheets fetches CSV published from online spreadsheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/theirongolddev/adpulse/internal/store"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 32 << 20 // 32 MiB
	userAgent      = "github.com/theirongolddev/adpulse/1.0"
)

var (
	// ErrNotFound indicates the URL does not exist or is no longer published.
	ErrNotFound = errors.New("sheets: not found (is the sheet still published?)")
	// ErrUnauthorized indicates the sheet is private.
	ErrUnauthorized = errors.New("sheets: unauthorized (sheet is not public)")
	// ErrRateLimited indicates the host throttled us.
	ErrRateLimited = errors.New("sheets: rate limited")
	// ErrNotCSV indicates an HTML page came back, usually a sign-in wall.
	ErrNotCSV = errors.New("sheets: response is HTML, not CSV")
	// ErrTooLarge indicates the body exceeded the size limit.
	ErrTooLarge = errors.New("sheets: response too large")
)

// Cache is the part of store.Cache the client needs.
type Cache interface {
	Get(url string) (store.Entry, bool, error)
	Put(e store.Entry) (bool, error)
	Touch(url string, at time.Time) error
	LogFetch(f store.Fetch) error
}

// Client fetches published CSV text, revalidating against a cache when one
// is configured.
type Client struct {
	http    *http.Client
	cache   Cache
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables conditional requests backed by c.
func WithCache(c Cache) Option { return func(cl *Client) { cl.cache = c } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(cl *Client) { cl.http = h } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(cl *Client) { cl.log = l } }

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: defaultTimeout,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result describes one fetch.
type Result struct {
	Body []byte
	// Status is the HTTP status the server answered with.
	Status int
	// NotModified is true when the cached body was reused after a 304.
	NotModified bool
	// Changed is true when the body differs from the previously cached one.
	Changed bool
	ETag    string
}

// Fetch returns the CSV text at url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Get fetches url, sending cache validators when a cached copy exists. A
// transport or status error is always returned, even when a cached body
// exists.
func (c *Client) Get(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeURL(url), nil)
	if err != nil {
		return nil, fmt.Errorf("sheets: creating request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")
	req.Header.Set("User-Agent", userAgent)

	var cached store.Entry
	var haveCached bool
	if c.cache != nil {
		cached, haveCached, err = c.cache.Get(url)
		if err != nil {
			c.log.WithError(err).Warn("reading feed cache")
			haveCached = false
		}
		if haveCached {
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}
			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		}
	}

	start := time.Now()
	res, err := c.do(req, url, cached, haveCached)
	c.logFetch(url, res, err, time.Since(start))
	return res, err
}

func (c *Client) do(req *http.Request, url string, cached store.Entry, haveCached bool) (*Result, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if !haveCached {
			return nil, fmt.Errorf("sheets: 304 without a cached copy of %s", url)
		}
		if err := c.cache.Touch(url, time.Now()); err != nil {
			c.log.WithError(err).Warn("updating feed cache")
		}
		return &Result{Body: cached.Body, Status: resp.StatusCode, NotModified: true, ETag: cached.ETag}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound, http.StatusGone:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets: unexpected status %d", resp.StatusCode)
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "text/html" {
		return nil, ErrNotCSV
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("sheets: reading response: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, ErrTooLarge
	}

	res := &Result{Body: body, Status: resp.StatusCode, Changed: true, ETag: resp.Header.Get("ETag")}
	if c.cache != nil {
		changed, err := c.cache.Put(store.Entry{
			URL:          url,
			ETag:         res.ETag,
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		})
		if err != nil {
			c.log.WithError(err).Warn("writing feed cache")
		} else {
			res.Changed = changed
		}
	}
	return res, nil
}

func (c *Client) logFetch(url string, res *Result, err error, elapsed time.Duration) {
	f := store.Fetch{URL: url, Duration: elapsed}
	if res != nil {
		f.Status = res.Status
		f.SizeBytes = len(res.Body)
	}
	if err != nil {
		f.Err = err.Error()
	}

	entry := c.log.WithFields(logrus.Fields{
		"url":      url,
		"status":   f.Status,
		"bytes":    f.SizeBytes,
		"duration": elapsed.Round(time.Millisecond),
	})
	if err != nil {
		entry.WithError(err).Warn("fetch failed")
	} else {
		entry.Debug("fetched")
	}

	if c.cache != nil {
		if lerr := c.cache.LogFetch(f); lerr != nil {
			c.log.WithError(lerr).Debug("writing fetch log")
		}
	}
}
