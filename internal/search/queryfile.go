// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperlib/pkg/types"
)

// QueryFile is the on-disk representation of a search and its results.
// A saved search can be reloaded later without querying the providers.
type QueryFile struct {
	Query     string               `yaml:"query"`
	Providers []string             `yaml:"providers"`
	Results   []types.SearchResult `yaml:"results"`
	Summary   QuerySummary         `yaml:"summary"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	ProviderErrors    []string  `yaml:"provider_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a search and its results to a YAML file.
func WriteQueryFile(path, query string, providers []string, out Output) error {
	qf := QueryFile{
		Query:     query,
		Providers: providers,
		Results:   out.Results,
		Summary: QuerySummary{
			Total:             len(out.Results),
			DuplicatesRemoved: out.DupsRemoved,
			ProviderErrors:    out.ProviderErrors,
			Timestamp:         time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Output returns the saved results in the form SearchAll produces.
func (qf *QueryFile) Output() Output {
	return Output{
		Results:        qf.Results,
		DupsRemoved:    qf.Summary.DuplicatesRemoved,
		ProviderErrors: qf.Summary.ProviderErrors,
	}
}

// Restore puts saved results back into the cache of the matching sources
// so that importing a saved hit does not repeat the search.
func (qf *QueryFile) Restore(sources []*Source) {
	byLabel := map[string][]types.SearchResult{}
	for _, r := range qf.Results {
		byLabel[r.Label] = append(byLabel[r.Label], r)
	}
	for label, results := range byLabel {
		if s := Find(sources, label); s != nil {
			s.mu.Lock()
			s.cache[qf.Query] = results
			s.mu.Unlock()
		}
	}
}
