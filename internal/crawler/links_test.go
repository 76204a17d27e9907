// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperlib/pkg/types"
)

func TestExtractLinks(t *testing.T) {
	const page = "http://ex.com/Papers/page"
	tests := []struct {
		name string
		html string
		want []Link
	}{
		{
			name: "self link in different case",
			html: `<a href="HTTP://EX.COM/Papers/page">PDF</a><a href="http://ex.com/papers/PAGE">pdf</a>`,
		},
		{
			name: "relative self link",
			html: `<a href="page">Get the PDF</a>`,
		},
		{
			name: "self link with fragment",
			html: `<a href="page#download">PDF</a><a href="#top">pdf</a>`,
		},
		{
			name: "pdf suffix with query",
			html: `<a href="/files/y.pdf?dl=1">download</a>`,
			want: []Link{{URL: "http://ex.com/files/y.pdf?dl=1", PDF: true}},
		},
		{
			name: "anchor text",
			html: `<a href="/get?id=3">Full text (PDF)</a><a href="/export?id=3">BibTeX</a>`,
			want: []Link{
				{URL: "http://ex.com/get?id=3", PDF: true},
				{URL: "http://ex.com/export?id=3", BibTeX: true},
			},
		},
		{
			name: "relative bib file",
			html: `<a href="cite.BIB">cite</a>`,
			want: []Link{{URL: "http://ex.com/Papers/cite.BIB", BibTeX: true}},
		},
		{
			name: "non-http schemes",
			html: `<a href="mailto:someone@ex.com?subject=pdf">pdf</a><a href="ftp://ex.com/z.pdf">z</a><a href="javascript:open('a.pdf')">pdf</a>`,
		},
		{
			name: "duplicates keep first",
			html: `<a href="/x.pdf">one</a><a href="http://ex.com/x.pdf#page=2">two</a><a href="/x.pdf">PDF</a>`,
			want: []Link{{URL: "http://ex.com/x.pdf", PDF: true}},
		},
		{
			name: "unrelated links",
			html: `<a href="/about">About</a><a href="">pdf</a><a>pdf</a>`,
		},
		{
			name: "discovery order",
			html: `<a href="/b.bib">b</a><a href="/a.pdf">a</a>`,
			want: []Link{
				{URL: "http://ex.com/b.bib", BibTeX: true},
				{URL: "http://ex.com/a.pdf", PDF: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractLinks(page, []byte("<html><body>"+tt.html+"</body></html>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractLinks_InvalidPageURL(t *testing.T) {
	_, err := ExtractLinks("http://[::1", []byte("<a href='x.pdf'>x</a>"))
	assert.Error(t, err)
}

func TestResolve_SelfLinksAreNotFetchedAgain(t *testing.T) {
	var s *site
	s = newSite(t, map[string]http.HandlerFunc{
		"/Papers/page": func(w http.ResponseWriter, r *http.Request) {
			self := strings.ToUpper(s.URL) + "/Papers/page"
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<a href="` + self + `">PDF</a><a href="page#pdf">pdf</a><a href="/x.pdf">paper</a>`))
		},
		"/x.pdf": serve("application/pdf", fakePDF),
	})

	res := newCrawler(s).Resolve(context.Background(), s.URL+"/Papers/page", types.PaperInfo{})
	require.NoError(t, res.Err)
	assert.Equal(t, fakePDF, string(res.Document))
	assert.Equal(t, 1, s.hitCount("/Papers/page"))
	assert.Equal(t, 1, s.hitCount("/x.pdf"))
}
