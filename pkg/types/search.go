// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the import pipeline:
// transient paper records, canonical library records, search results, and
// configuration.
package types

import (
	"strings"

	"github.com/google/uuid"
)

// transientPrefix marks ids of search results that are not yet imported.
// Repository ids are integers and never carry it.
const transientPrefix = "transient-"

// QueryTag identifies the request a search result belongs to. Callers
// compare it with the current query to discard stale results.
type QueryTag struct {
	Label string `json:"label" yaml:"label"`
	Query string `json:"query" yaml:"query"`
}

// SearchResult is a paper found by a search provider that has not been
// imported into the library.
type SearchResult struct {
	PaperInfo `yaml:",inline"`

	// Label identifies the provider that produced the result (e.g. "arxiv").
	Label string `json:"label" yaml:"label"`

	// Tag is the (provider, query) pair the result was fetched for.
	Tag QueryTag `json:"tag" yaml:"tag"`

	// TransientID is a synthetic "not-yet-imported" id.
	TransientID string `json:"transient_id" yaml:"transient_id"`
}

// NewSearchResult wraps info as a result of the given tag with a fresh
// transient id.
func NewSearchResult(info PaperInfo, tag QueryTag) SearchResult {
	return SearchResult{
		PaperInfo:   info,
		Label:       tag.Label,
		Tag:         tag,
		TransientID: transientPrefix + uuid.NewString(),
	}
}

// IsTransientID reports whether id was minted for a not-yet-imported result.
func IsTransientID(id string) bool {
	return strings.HasPrefix(id, transientPrefix)
}

// Item is either a paper already in the library or a search result that
// has not been imported. The interface is sealed; switch on the concrete
// type.
type Item interface {
	isItem()
	// Info returns the paper fields known for the item.
	Info() PaperInfo
}

// Persisted is an Item backed by a library record.
type Persisted struct {
	Paper CanonicalPaper
}

// Transient is an Item that only exists as a provider result.
type Transient struct {
	Result        SearchResult
	ProviderLabel string
}

func (Persisted) isItem() {}
func (Transient) isItem() {}

// Info returns the stored fields of the paper.
func (p Persisted) Info() PaperInfo { return p.Paper.PaperInfo }

// Info returns the fields scraped by the provider.
func (t Transient) Info() PaperInfo { return t.Result.PaperInfo }
