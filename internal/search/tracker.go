// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"sync"

	"github.com/pdiddy/paperlib/pkg/types"
)

// Tracker remembers the latest query per provider label. Starting a new
// query cancels the previous one for the same label, and results can be
// checked against the current tag before they are shown.
type Tracker struct {
	mu      sync.Mutex
	current map[string]inflight
}

type inflight struct {
	query  string
	cancel context.CancelFunc
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{current: make(map[string]inflight)}
}

// Begin registers query as the current request for label, cancelling the
// previous one. The returned context is cancelled by the next Begin for
// the same label or by End.
func (t *Tracker) Begin(parent context.Context, label, query string) (context.Context, types.QueryTag) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if prev, ok := t.current[label]; ok {
		prev.cancel()
	}
	t.current[label] = inflight{query: query, cancel: cancel}
	t.mu.Unlock()

	return ctx, types.QueryTag{Label: label, Query: query}
}

// IsCurrent reports whether tag is the latest request for its label.
func (t *Tracker) IsCurrent(tag types.QueryTag) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.current[tag.Label]
	return ok && cur.query == tag.Query
}

// End releases the request of tag if it is still current.
func (t *Tracker) End(tag types.QueryTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.current[tag.Label]; ok && cur.query == tag.Query {
		cur.cancel()
		delete(t.current, tag.Label)
	}
}
