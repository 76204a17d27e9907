// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperlib/internal/httputil"
	"github.com/pdiddy/paperlib/pkg/types"
)

// --- fake provider ---

type fakeProvider struct {
	label   string
	baseURL string
	infos   []types.PaperInfo
	err     error
	panics  bool
}

func (f *fakeProvider) Label() string { return f.label }
func (f *fakeProvider) Name() string { return strings.ToUpper(f.label) }
func (f *fakeProvider) UniqueKey() types.IdentityField { return types.FieldDOI }

func (f *fakeProvider) PrepareQuery(ctx context.Context, query string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/?q="+query, nil)
}

func (f *fakeProvider) ParseResponse(context.Context, []byte) ([]types.PaperInfo, error) {
	if f.panics {
		panic("parser exploded")
	}
	return f.infos, f.err
}

func (f *fakeProvider) ImportAfterSearch(_ context.Context, r types.SearchResult) (types.PaperInfo, []byte, error) {
	if f.panics {
		panic("import exploded")
	}
	return r.PaperInfo, []byte("%PDF"), nil
}

// countingServer answers every request with 200 and counts them.
func countingServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func testClient(ts *httptest.Server) *httputil.Client {
	return httputil.NewClient(types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "paperlib-test"},
		httputil.WithHTTPClient(ts.Client()))
}

// --- Source ---

func TestSource_CachesByExactQuery(t *testing.T) {
	ts, hits := countingServer(t)
	p := &fakeProvider{label: "fake", baseURL: ts.URL, infos: []types.PaperInfo{{Title: "A"}, {Title: "B"}}}
	s := NewSource(p, testClient(ts), nil)
	ctx := context.Background()

	tag, first, err := s.Search(ctx, "neurons")
	require.NoError(t, err)
	assert.Equal(t, types.QueryTag{Label: "fake", Query: "neurons"}, tag)
	require.Len(t, first, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, second, err := s.Search(ctx, "neurons")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "second search must be served from cache")

	_, _, err = s.Search(ctx, "Neurons")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "cache key is the exact query")

	s.ClearCache("neurons")
	assert.False(t, s.Cached("neurons"))
	_, _, err = s.Search(ctx, "neurons")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestSource_ResultsCarryTagAndTransientID(t *testing.T) {
	ts, _ := countingServer(t)
	p := &fakeProvider{label: "fake", baseURL: ts.URL, infos: []types.PaperInfo{{Title: "A"}}}
	s := NewSource(p, testClient(ts), nil)

	_, results, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fake", results[0].Label)
	assert.Equal(t, "q", results[0].Tag.Query)
	assert.True(t, types.IsTransientID(results[0].TransientID))
}

func TestSource_EmptyQuery(t *testing.T) {
	ts, hits := countingServer(t)
	s := NewSource(&fakeProvider{label: "fake", baseURL: ts.URL}, testClient(ts), nil)

	tag, results, err := s.Search(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, "fake", tag.Label)
	assert.Zero(t, atomic.LoadInt32(hits))
	assert.False(t, s.Cached(""))
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	ts, hits := countingServer(t)
	p := &fakeProvider{label: "fake", baseURL: ts.URL, err: errors.New("bad xml")}
	s := NewSource(p, testClient(ts), nil)

	_, _, err := s.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad xml")
	assert.False(t, s.Cached("q"))

	_, _, err = s.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestSource_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	s := NewSource(&fakeProvider{label: "fake", baseURL: ts.URL}, testClient(ts), nil)
	_, _, err := s.Search(context.Background(), "q")
	assert.ErrorIs(t, err, httputil.ErrStatus)
}

func TestSource_PanicsBecomeErrors(t *testing.T) {
	ts, _ := countingServer(t)
	s := NewSource(&fakeProvider{label: "fake", baseURL: ts.URL, panics: true}, testClient(ts), nil)

	_, _, err := s.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser exploded")

	info, doc, err := s.Import(context.Background(), types.SearchResult{PaperInfo: types.PaperInfo{Title: "T"}})
	require.Error(t, err)
	assert.Equal(t, "T", info.Title)
	assert.Nil(t, doc)
}

func TestSource_SearchAsync(t *testing.T) {
	ts, _ := countingServer(t)
	ok := NewSource(&fakeProvider{label: "ok", baseURL: ts.URL, infos: []types.PaperInfo{{Title: "A"}}}, testClient(ts), nil)
	bad := NewSource(&fakeProvider{label: "bad", baseURL: ts.URL, err: errors.New("boom")}, testClient(ts), nil)

	results := make(chan []types.SearchResult, 1)
	failures := make(chan error, 1)
	never := func(types.QueryTag, error) { t.Error("onErr called for a successful search") }
	ok.SearchAsync(context.Background(), "q", func(_ types.QueryTag, r []types.SearchResult) { results <- r }, never)
	bad.SearchAsync(context.Background(), "q",
		func(types.QueryTag, []types.SearchResult) { t.Error("done called for a failed search") },
		func(tag types.QueryTag, err error) {
			assert.Equal(t, "bad", tag.Label)
			failures <- err
		})

	select {
	case r := <-results:
		assert.Len(t, r, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("done not called")
	}
	select {
	case err := <-failures:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("onErr not called")
	}
}

// --- Tracker ---

func TestTracker_BeginCancelsPrevious(t *testing.T) {
	tr := NewTracker()
	ctx1, tag1 := tr.Begin(context.Background(), "arxiv", "first")
	assert.True(t, tr.IsCurrent(tag1))

	ctx2, tag2 := tr.Begin(context.Background(), "arxiv", "second")
	assert.Error(t, ctx1.Err(), "previous request must be cancelled")
	assert.NoError(t, ctx2.Err())
	assert.False(t, tr.IsCurrent(tag1))
	assert.True(t, tr.IsCurrent(tag2))

	_, other := tr.Begin(context.Background(), "pubmed", "first")
	assert.True(t, tr.IsCurrent(other))
	assert.True(t, tr.IsCurrent(tag2), "labels are tracked independently")

	tr.End(tag1)
	assert.True(t, tr.IsCurrent(tag2), "ending a stale tag is a no-op")
	tr.End(tag2)
	assert.Error(t, ctx2.Err())
	assert.False(t, tr.IsCurrent(tag2))
}

// --- Deduplication ---

func result(label string, info types.PaperInfo) types.SearchResult {
	return types.NewSearchResult(info, types.QueryTag{Label: label, Query: "q"})
}

func TestDeduplicate_ByDOI(t *testing.T) {
	results := []types.SearchResult{
		result("arxiv", types.PaperInfo{DOI: "10.1/ABC", Title: "Paper A"}),
		result("pubmed", types.PaperInfo{DOI: "10.1/abc", Title: "Paper A, revised", PubMedID: "123"}),
		result("arxiv", types.PaperInfo{Title: "Paper B"}),
	}

	deduped, removed := deduplicate(results)
	assert.Equal(t, 1, removed)
	require.Len(t, deduped, 2)
	assert.Equal(t, "Paper A", deduped[0].Title)
	assert.Equal(t, "123", deduped[0].PubMedID, "empty fields are filled from the duplicate")
	assert.Equal(t, "arxiv", deduped[0].Label)
}

func TestDeduplicate_ByNormalizedTitle(t *testing.T) {
	results := []types.SearchResult{
		result("arxiv", types.PaperInfo{Title: "Attention Is All You Need"}),
		result("google_scholar", types.PaperInfo{Title: "attention is all you need!", Year: "2017"}),
		result("jstor", types.PaperInfo{Title: "Something Else"}),
	}

	deduped, removed := deduplicate(results)
	assert.Equal(t, 1, removed)
	require.Len(t, deduped, 2)
	assert.Equal(t, "2017", deduped[0].Year)
}

func TestSearchAll(t *testing.T) {
	ts, _ := countingServer(t)
	c := testClient(ts)
	sources := []*Source{
		NewSource(&fakeProvider{label: "one", baseURL: ts.URL, infos: []types.PaperInfo{{Title: "Shared", DOI: "10.1/x"}, {Title: "Only One"}}}, c, nil),
		NewSource(&fakeProvider{label: "two", baseURL: ts.URL, infos: []types.PaperInfo{{Title: "shared", Journal: "J"}}}, c, nil),
		NewSource(&fakeProvider{label: "three", baseURL: ts.URL, err: errors.New("down")}, c, nil),
	}

	var w bytes.Buffer
	out, err := SearchAll(context.Background(), sources, "q", &w)
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "Shared", out.Results[0].Title)
	assert.Equal(t, "J", out.Results[0].Journal)
	assert.Equal(t, 1, out.DupsRemoved)
	require.Len(t, out.ProviderErrors, 1)
	assert.Contains(t, out.ProviderErrors[0], "three")
	assert.Contains(t, w.String(), "warning: provider three failed")
}

func TestSearchAll_MergingLeavesCacheUntouched(t *testing.T) {
	ts, _ := countingServer(t)
	c := testClient(ts)
	one := NewSource(&fakeProvider{label: "one", baseURL: ts.URL, infos: []types.PaperInfo{
		{Title: "Shared", DOI: "10.1/x", Data: map[string]string{"id": "a1"}},
	}}, c, nil)
	two := NewSource(&fakeProvider{label: "two", baseURL: ts.URL, infos: []types.PaperInfo{
		{Title: "Shared", DOI: "10.1/x", Authors: []string{"Smith"}, Data: map[string]string{"link": "/p"}},
	}}, c, nil)

	out, err := SearchAll(context.Background(), []*Source{one, two}, "q", &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, map[string]string{"id": "a1", "link": "/p"}, out.Results[0].Data)
	out.Results[0].Authors[0] = "Changed"

	_, cached, err := one.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, map[string]string{"id": "a1"}, cached[0].Data)
	assert.Empty(t, cached[0].Authors)

	_, cached, err = two.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith"}, cached[0].Authors)
}

func TestSearchAll_EmptyQuery(t *testing.T) {
	_, err := SearchAll(context.Background(), nil, "  ", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

// --- Formatting ---

func TestFormatTable(t *testing.T) {
	out := Output{
		Results: []types.SearchResult{
			result("arxiv", types.PaperInfo{Title: "A Rather Short Title", Authors: []string{"Ada Lovelace", "Charles Babbage"}, Year: "1843"}),
		},
		DupsRemoved: 2,
	}
	var buf bytes.Buffer
	FormatTable(out, &buf)

	s := buf.String()
	assert.Contains(t, s, "A Rather Short Title")
	assert.Contains(t, s, "Ada Lovelace et al.")
	assert.Contains(t, s, "1843")
	assert.Contains(t, s, "arxiv")
	assert.Contains(t, s, "1 results (2 duplicates removed)")

	buf.Reset()
	FormatTable(Output{}, &buf)
	assert.Equal(t, "No results found.\n", buf.String())
}

func TestFormatJSON(t *testing.T) {
	out := Output{Results: []types.SearchResult{result("jstor", types.PaperInfo{Title: "T", DOI: "10.2/y"})}}
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(out, &buf))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "T", decoded[0]["title"])
	assert.Equal(t, "jstor", decoded[0]["label"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", truncate(strings.Repeat("é", 20), 10))
}
