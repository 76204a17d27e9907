// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries bibliographic web services (arXiv, PubMed, Google
// Scholar, JSTOR) and returns their hits as transient search results.
//
// Each service is a Provider that only knows how to build a request, parse
// a response, and complete a chosen hit. A Source wraps a Provider with
// the behaviour shared by all of them: the per-query result cache, the
// request tag, and panic-free error reporting.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/httputil"
	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

// ErrEmptyQuery is returned by SearchAll for a blank query.
var ErrEmptyQuery = errors.New("query is empty")

// Fetcher is the HTTP client used by sources and providers.
// *httputil.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*httputil.Response, error)
	Do(ctx context.Context, req *http.Request) (*httputil.Response, error)
}

// Provider is one bibliographic web service.
type Provider interface {
	// Label is the short stable name used in tags and saved searches.
	Label() string

	// Name is the human-readable name.
	Name() string

	// UniqueKey is the identity field that makes two hits of this
	// provider the same paper.
	UniqueKey() types.IdentityField

	// PrepareQuery builds the search request for query.
	PrepareQuery(ctx context.Context, query string) (*http.Request, error)

	// ParseResponse turns the search response body into records.
	// Providers that need follow-up requests issue them here.
	ParseResponse(ctx context.Context, body []byte) ([]types.PaperInfo, error)

	// ImportAfterSearch completes a chosen hit. It returns the completed
	// record and the document bytes when the provider fetched them.
	ImportAfterSearch(ctx context.Context, result types.SearchResult) (types.PaperInfo, []byte, error)
}

// Source wraps a Provider with a result cache keyed by the exact query
// string. Entries are dropped only by ClearCache.
type Source struct {
	provider Provider
	client   Fetcher
	log      logrus.FieldLogger

	mu    sync.Mutex
	cache map[string][]types.SearchResult
}

// NewSource returns a Source for p. log may be nil.
func NewSource(p Provider, client Fetcher, log logrus.FieldLogger) *Source {
	if log == nil {
		log = logging.Discard()
	}
	return &Source{
		provider: p,
		client:   client,
		log:      log.WithField("provider", p.Label()),
		cache:    make(map[string][]types.SearchResult),
	}
}

// Provider returns the wrapped provider.
func (s *Source) Provider() Provider { return s.provider }

// Label returns the provider label.
func (s *Source) Label() string { return s.provider.Label() }

// Search returns the results for query, from the cache when the same
// query ran before. An empty query yields an empty list and leaves the
// cache alone.
func (s *Source) Search(ctx context.Context, query string) (types.QueryTag, []types.SearchResult, error) {
	tag := types.QueryTag{Label: s.provider.Label(), Query: query}
	if query == "" {
		return tag, []types.SearchResult{}, nil
	}

	s.mu.Lock()
	cached, ok := s.cache[query]
	s.mu.Unlock()
	if ok {
		s.log.WithField("query", query).Debug("result already in cache")
		return tag, cloneResults(cached), nil
	}

	s.log.WithField("query", query).Info("query not cached, starting new search")
	infos, err := s.fetch(ctx, query)
	if err != nil {
		return tag, nil, err
	}

	results := make([]types.SearchResult, len(infos))
	for i, info := range infos {
		results[i] = types.NewSearchResult(info, tag)
	}

	s.mu.Lock()
	s.cache[query] = results
	s.mu.Unlock()
	return tag, cloneResults(results), nil
}

// SearchAsync runs Search in a goroutine. Exactly one of done or onErr is
// called.
func (s *Source) SearchAsync(ctx context.Context, query string, done func(types.QueryTag, []types.SearchResult), onErr func(types.QueryTag, error)) {
	go func() {
		tag, results, err := s.Search(ctx, query)
		if err != nil {
			onErr(tag, err)
			return
		}
		done(tag, results)
	}()
}

// ClearCache drops the cached results of query.
func (s *Source) ClearCache(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, query)
}

// Cached reports whether results for query are cached.
func (s *Source) Cached(query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache[query]
	return ok
}

// Import completes a hit previously returned by Search.
func (s *Source) Import(ctx context.Context, result types.SearchResult) (info types.PaperInfo, doc []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			info, doc = result.PaperInfo, nil
			err = fmt.Errorf("%s import: %v", s.provider.Label(), rec)
		}
	}()
	s.log.WithField("title", result.Title).Info("importing search result")
	return s.provider.ImportAfterSearch(ctx, result)
}

func (s *Source) fetch(ctx context.Context, query string) (infos []types.PaperInfo, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			infos = nil
			err = fmt.Errorf("%s search: %v", s.provider.Label(), rec)
		}
	}()

	req, err := s.provider.PrepareQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: preparing query: %w", s.provider.Label(), err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Label(), err)
	}
	infos, err = s.provider.ParseResponse(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing response: %w", s.provider.Label(), err)
	}
	s.log.WithField("results", len(infos)).Debug("search finished")
	return infos, nil
}

// cloneResults copies results deeply enough that merging duplicates into
// the copy leaves the cached Authors and Data untouched.
func cloneResults(in []types.SearchResult) []types.SearchResult {
	out := make([]types.SearchResult, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Authors != nil {
			out[i].Authors = append([]string(nil), out[i].Authors...)
		}
		if out[i].Data != nil {
			data := make(map[string]string, len(out[i].Data))
			for k, v := range out[i].Data {
				data[k] = v
			}
			out[i].Data = data
		}
	}
	return out
}

// Output holds merged results and per-provider failures.
type Output struct {
	Results        []types.SearchResult
	DupsRemoved    int
	ProviderErrors []string
}

// SearchAll queries every source concurrently, then merges the results in
// source order, folding hits that share a DOI or a normalized title.
// Provider failures are reported to w and collected in the output.
func SearchAll(ctx context.Context, sources []*Source, query string, w io.Writer) (Output, error) {
	if strings.TrimSpace(query) == "" {
		return Output{}, ErrEmptyQuery
	}
	if len(sources) == 0 {
		return Output{}, fmt.Errorf("no search providers configured")
	}

	type sourceResult struct {
		results []types.SearchResult
		err     error
	}
	collected := make([]sourceResult, len(sources))

	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func(i int, s *Source) {
			defer wg.Done()
			_, results, err := s.Search(ctx, query)
			collected[i] = sourceResult{results: results, err: err}
		}(i, s)
	}
	wg.Wait()

	var all []types.SearchResult
	var providerErrors []string
	for i, sr := range collected {
		if sr.err != nil {
			providerErrors = append(providerErrors, fmt.Sprintf("%s: %v", sources[i].Label(), sr.err))
			fmt.Fprintf(w, "warning: provider %s failed: %v\n", sources[i].Label(), sr.err)
			continue
		}
		all = append(all, sr.results...)
	}

	deduped, removed := deduplicate(all)
	return Output{Results: deduped, DupsRemoved: removed, ProviderErrors: providerErrors}, nil
}

// deduplicate merges results that share a DOI or normalized title. The
// first occurrence keeps its position and provider.
func deduplicate(results []types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]int)
	var deduped []types.SearchResult
	removed := 0

	for _, r := range results {
		keys := dedupKeys(r)
		merged := false
		for _, k := range keys {
			if idx, ok := seen[k]; ok {
				deduped[idx].FillMissing(r.PaperInfo)
				for _, k2 := range keys {
					if _, exists := seen[k2]; !exists {
						seen[k2] = idx
					}
				}
				removed++
				merged = true
				break
			}
		}
		if merged {
			continue
		}

		idx := len(deduped)
		deduped = append(deduped, r)
		for _, k := range keys {
			seen[k] = idx
		}
	}
	return deduped, removed
}

func dedupKeys(r types.SearchResult) []string {
	var keys []string
	if doi := strings.ToLower(strings.TrimSpace(r.DOI)); doi != "" {
		keys = append(keys, "doi:"+doi)
	}
	if t := normalizeTitle(r.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %s\n",
		"#", "Title", "Authors", "Year", "Provider")
	fmt.Fprintln(w, strings.Repeat("-", 104))

	for i, r := range out.Results {
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), r.Year, r.Label)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Results))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Results)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
