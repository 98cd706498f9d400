package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/adpulse/internal/config"
	"github.com/theirongolddev/adpulse/internal/model"
	"github.com/theirongolddev/adpulse/internal/source"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source is one resolved feed to load.
type Source struct {
	Name      string
	Schema    *source.Schema
	URL       string
	SkipLines int
}

// SourcesFromConfig resolves configured sources, skipping those without a
// URL. Only names listed in only are kept when only is non-empty.
func SourcesFromConfig(cfg []config.SourceConfig, only []string) ([]Source, error) {
	var out []Source
	for _, sc := range cfg {
		if strings.TrimSpace(sc.URL) == "" {
			continue
		}
		if len(only) > 0 && !containsFold(only, sc.Name) {
			continue
		}
		schema, err := source.SchemaByName(sc.Schema)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", sc.Name, err)
		}
		name := sc.Name
		if name == "" {
			name = schema.Name
		}
		out = append(out, Source{Name: name, Schema: schema, URL: sc.URL, SkipLines: sc.SkipLines})
	}
	return out, nil
}

// Fetcher retrieves the raw CSV text behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SourceStats reports how one source loaded.
type SourceStats struct {
	Name    string        `json:"name"`
	Schema  string        `json:"schema"`
	Bytes   int           `json:"bytes"`
	Rows    int           `json:"rows"`
	Records int           `json:"records"`
	Dropped int           `json:"dropped"`
	Elapsed time.Duration `json:"elapsed"`
}

// LoadResult holds the output of the full data loading pipeline.
type LoadResult struct {
	Records  []model.Record
	Sources  []SourceStats
	Dropped  int
	LoadedAt time.Time
	LoadTime time.Duration
}

// ProgressFunc is called during loading to report progress.
// current is the number of sources processed so far, total is the total count.
type ProgressFunc func(current, total int)

// LoadOptions tunes Load.
type LoadOptions struct {
	Brands []source.BrandRule
	Logger logrus.FieldLogger
	// Concurrency bounds parallel fetches; 0 means one per source.
	Concurrency int
	Progress    ProgressFunc
}

// Load fetches and parses every source concurrently and concatenates their
// records in source order, with derived metrics computed. Any fetch or CSV
// failure aborts the load; row-level problems only count as drops.
func Load(ctx context.Context, f Fetcher, sources []Source, opts LoadOptions) (*LoadResult, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	results := make([]source.ParseResult, len(sources))
	stats := make([]SourceStats, len(sources))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			t0 := time.Now()
			body, err := fetchBody(gctx, f, src.URL)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", src.Name, err)
			}
			res, err := source.Parse(bytes.NewReader(body), src.Schema, source.Options{
				Source:    src.Name,
				SkipLines: src.SkipLines,
				Brands:    opts.Brands,
				Logger:    log,
			})
			if err != nil {
				return fmt.Errorf("parsing %s: %w", src.Name, err)
			}
			results[i] = res
			stats[i] = SourceStats{
				Name:    src.Name,
				Schema:  src.Schema.Name,
				Bytes:   len(body),
				Rows:    res.Rows,
				Records: len(res.Records),
				Dropped: res.Dropped,
				Elapsed: time.Since(t0),
			}
			n := processed.Add(1)
			if opts.Progress != nil {
				opts.Progress(int(n), len(sources))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &LoadResult{Sources: stats, LoadedAt: time.Now()}
	for i, res := range results {
		out.Records = append(out.Records, WithMetrics(res.Records)...)
		out.Dropped += res.Dropped
		log.WithFields(logrus.Fields{
			"source":  stats[i].Name,
			"records": stats[i].Records,
			"dropped": stats[i].Dropped,
		}).Debug("source loaded")
	}
	out.LoadTime = time.Since(start)
	return out, nil
}

// fetchBody reads http(s) URLs through the fetcher and anything else from
// the local filesystem.
func fetchBody(ctx context.Context, f Fetcher, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if f == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", url)
		}
		return f.Fetch(ctx, url)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(strings.TrimPrefix(url, "file://"))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
