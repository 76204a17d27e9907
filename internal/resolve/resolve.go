// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve decides whether incoming paper metadata refers to a paper
// the library already holds. Identifying keys are tried from most to least
// specific; the first match absorbs values it is missing and nothing it
// already has is overwritten. When no key matches a new paper is created.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

// maxAttempts bounds how often a conflicting write is re-read and retried.
const maxAttempts = 3

// Repository is the paper store the resolver reconciles against.
type Repository interface {
	FindByField(ctx context.Context, field types.IdentityField, value string) (types.CanonicalPaper, error)
	Create(ctx context.Context, info types.PaperInfo) (types.CanonicalPaper, error)
	Save(ctx context.Context, p *types.CanonicalPaper) error
	AttachDocument(ctx context.Context, p *types.CanonicalPaper, filename string, data []byte) error
}

// Keys holds candidate identifying values by field. Empty values are
// ignored.
type Keys map[types.IdentityField]string

// KeysFor returns the identifying values carried by info.
func KeysFor(info types.PaperInfo) Keys {
	k := Keys{}
	for _, f := range types.IdentityPrecedence {
		if v := info.Identity(f); v != "" {
			k[f] = v
		}
	}
	return k
}

// WithID returns a copy of k that also carries a library id.
func (k Keys) WithID(id int64) Keys {
	out := Keys{types.FieldID: strconv.FormatInt(id, 10)}
	for f, v := range k {
		if f != types.FieldID {
			out[f] = v
		}
	}
	return out
}

// Resolver serializes find-or-create against a Repository.
type Resolver struct {
	mu   sync.Mutex
	repo Repository
	log  logrus.FieldLogger
}

// New returns a Resolver over repo. log may be nil.
func New(repo Repository, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{repo: repo, log: log}
}

// ResolveOrCreate returns the paper identified by keys, creating it from
// info when no key matches. Keys take the place of the same fields in
// info. After a match, every key checked later in precedence order and
// every field of info fills the matched paper only where it is empty. The
// bool reports whether a paper was created.
//
// A created paper claims the content hash of info, so a concurrent import
// of the same document resolves to it. A matched paper's hash is only set
// when its document is attached.
func (r *Resolver) ResolveOrCreate(ctx context.Context, keys Keys, info types.PaperInfo) (types.CanonicalPaper, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := KeysFor(info)
	for f, v := range keys {
		if v == "" {
			continue
		}
		all[f] = v
		if f != types.FieldID {
			info.Set(string(f), v)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p, created, err := r.resolveOnce(ctx, all, info)
		if err == nil {
			return p, created, nil
		}
		if !errors.Is(err, library.ErrConflict) {
			return types.CanonicalPaper{}, false, err
		}
		// Another writer took one of our keys; look again and merge.
		r.log.WithError(err).WithField("attempt", attempt).Warn("identity conflict, re-reading")
		lastErr = err
	}
	return types.CanonicalPaper{}, false, fmt.Errorf("resolving paper after %d attempts: %w", maxAttempts, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, keys Keys, info types.PaperInfo) (types.CanonicalPaper, bool, error) {
	p, matched, err := r.lookup(ctx, keys)
	if err != nil {
		return types.CanonicalPaper{}, false, err
	}

	if matched == "" {
		p, err := r.repo.Create(ctx, info)
		if err != nil {
			return types.CanonicalPaper{}, false, fmt.Errorf("creating paper: %w", err)
		}
		r.log.WithFields(logrus.Fields{"paper": p.ID, "title": p.Title}).Info("paper created")
		return p, true, nil
	}

	changed := r.fillFrom(ctx, &p, matched, keys, info)
	if len(changed) == 0 {
		return p, false, nil
	}
	if err := r.repo.Save(ctx, &p); err != nil {
		return types.CanonicalPaper{}, false, fmt.Errorf("updating paper %d: %w", p.ID, err)
	}
	r.log.WithFields(logrus.Fields{"paper": p.ID, "by": string(matched), "filled": changed}).Info("paper updated")
	return p, false, nil
}

// lookup tries each key in precedence order and returns the first match
// and the field it matched on.
func (r *Resolver) lookup(ctx context.Context, keys Keys) (types.CanonicalPaper, types.IdentityField, error) {
	for _, f := range types.IdentityPrecedence {
		v := keys[f]
		if v == "" {
			continue
		}
		p, err := r.repo.FindByField(ctx, f, v)
		if errors.Is(err, library.ErrNotFound) {
			continue
		}
		if err != nil {
			return types.CanonicalPaper{}, "", fmt.Errorf("looking up %s: %w", f, err)
		}
		return p, f, nil
	}
	return types.CanonicalPaper{}, "", nil
}

// fillFrom adopts values for empty fields of p. Identity keys that
// another paper already holds are skipped so one paper never takes over
// another's identity.
func (r *Resolver) fillFrom(ctx context.Context, p *types.CanonicalPaper, matched types.IdentityField, keys Keys, info types.PaperInfo) []string {
	var changed []string
	after := false
	for _, f := range types.IdentityPrecedence {
		if f == matched {
			after = true
			continue
		}
		if !after || f == types.FieldID || f == types.FieldFullTextMD5 {
			continue
		}
		v := keys[f]
		if v == "" || p.Identity(f) != "" {
			continue
		}
		if f != types.FieldTitle {
			if other, err := r.repo.FindByField(ctx, f, v); err == nil && other.ID != p.ID {
				r.log.WithFields(logrus.Fields{"paper": p.ID, "other": other.ID, "field": string(f)}).
					Warn("identifier already held by another paper")
				continue
			}
		}
		p.Set(string(f), v)
		changed = append(changed, string(f))
	}

	// Identity fields are settled above; clear them before filling the rest.
	rest := info
	for _, f := range types.IdentityPrecedence {
		if f != types.FieldID {
			rest.Set(string(f), "")
		}
	}
	changed = append(changed, p.FillMissing(rest)...)
	return changed
}
