package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Refresh when a newer refresh started before
// this one finished. Its result is discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// LoadFunc performs one full load.
type LoadFunc func(ctx context.Context) (*LoadResult, error)

// Refresher serializes reloads so that the last fetch wins. Starting a
// refresh cancels the one in flight, and a result that finishes after a
// newer refresh started is never delivered.
type Refresher struct {
	load LoadFunc

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewRefresher wraps load.
func NewRefresher(load LoadFunc) *Refresher {
	return &Refresher{load: load}
}

// Refresh runs a load, superseding any in-flight one.
func (r *Refresher) Refresh(ctx context.Context) (*LoadResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.mu.Unlock()

	res, err := r.load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return nil, ErrSuperseded
	}
	r.cancel = nil
	return res, err
}

// Generation is the number of refreshes started so far.
func (r *Refresher) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Stop cancels the in-flight refresh, if any.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
