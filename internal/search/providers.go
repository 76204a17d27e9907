// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/pkg/types"
)

// Labels lists the provider labels known to NewProvider.
var Labels = []string{"arxiv", "pubmed", "google_scholar", "jstor"}

// NewProvider builds the provider with the given label.
func NewProvider(label string, cfg types.SearchConfig, client Fetcher) (Provider, error) {
	switch label {
	case "arxiv":
		return NewArxiv(client, cfg.ArxivMaxResults), nil
	case "pubmed":
		return NewPubMed(client, cfg.NCBIAPIKey), nil
	case "google_scholar":
		return NewScholar(client), nil
	case "jstor":
		return NewJSTOR(cfg.JSTORMaxResults), nil
	}
	return nil, fmt.Errorf("unknown search provider %q", label)
}

// NewSources wraps every provider enabled in cfg.
func NewSources(cfg types.SearchConfig, client Fetcher, log logrus.FieldLogger) ([]*Source, error) {
	sources := make([]*Source, 0, len(cfg.Providers))
	for _, label := range cfg.Providers {
		p, err := NewProvider(label, cfg, client)
		if err != nil {
			return nil, err
		}
		sources = append(sources, NewSource(p, client, log))
	}
	return sources, nil
}

// Find returns the source with the given label, or nil.
func Find(sources []*Source, label string) *Source {
	for _, s := range sources {
		if s.Label() == label {
			return s
		}
	}
	return nil
}
