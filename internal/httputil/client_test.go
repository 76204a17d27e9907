// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperlib/pkg/types"
)

func testConfig() types.HTTPConfig {
	return types.HTTPConfig{
		Timeout:   5 * time.Second,
		UserAgent: "paperlib-test/0.1",
	}
}

func TestClientGet_SetsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/x-bibtex; charset=utf-8")
		w.Write([]byte("@article{k, title={T}}"))
	}))
	defer ts.Close()

	c := NewClient(testConfig(), WithHTTPClient(ts.Client()))
	resp, err := c.Get(context.Background(), ts.URL, http.Header{"Accept": {"text/bibliography; style=bibtex"}})
	require.NoError(t, err)

	assert.Equal(t, "paperlib-test/0.1", gotUA)
	assert.Equal(t, "text/bibliography; style=bibtex", gotAccept)
	assert.Equal(t, "text/x-bibtex", resp.MediaType())
	assert.Equal(t, "@article{k, title={T}}", string(resp.Body))
	assert.True(t, resp.OK())
}

func TestClientGet_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(testConfig(), WithHTTPClient(ts.Client()))
	resp, err := c.Get(context.Background(), ts.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	require.NotNil(t, resp)
	assert.False(t, resp.OK())
}

func TestClientGet_FollowsRedirectsAndReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(testConfig(), WithHTTPClient(ts.Client()))
	resp, err := c.Get(context.Background(), ts.URL+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/final", resp.URL)
}

func TestClientGet_BodyCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 10
	c := NewClient(cfg, WithHTTPClient(ts.Client()))
	_, err := c.Get(context.Background(), ts.URL, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestResponseMediaType(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"application/pdf", "application/pdf"},
		{"Text/HTML; charset=ISO-8859-1", "text/html"},
		{"application/octet-stream;", "application/octet-stream"},
	}
	for _, tt := range tests {
		r := &Response{Header: http.Header{}}
		if tt.header != "" {
			r.Header.Set("Content-Type", tt.header)
		}
		assert.Equal(t, tt.want, r.MediaType(), "header=%q", tt.header)
	}
}
