// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paperlib/internal/crawler"
	"github.com/pdiddy/paperlib/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "http://export.arxiv.org/api/query"

// arxivFieldQuery matches queries that already use arXiv field syntax.
var arxivFieldQuery = regexp.MustCompile(`^(ti|au|abs|co|jr|cat|rn|id):\w+`)

// Arxiv searches the arXiv e-print archive through its Atom API.
type Arxiv struct {
	client     Fetcher
	maxResults int
}

// NewArxiv returns the arXiv provider. maxResults <= 0 means 100.
func NewArxiv(client Fetcher, maxResults int) *Arxiv {
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Arxiv{client: client, maxResults: maxResults}
}

func (a *Arxiv) Label() string { return "arxiv" }
func (a *Arxiv) Name() string { return "arXiv" }
func (a *Arxiv) UniqueKey() types.IdentityField { return types.FieldImportURL }

// PrepareQuery prefixes plain queries with "all:" and sorts by last update.
func (a *Arxiv) PrepareQuery(ctx context.Context, query string) (*http.Request, error) {
	if !arxivFieldQuery.MatchString(query) {
		query = "all:" + query
	}
	v := url.Values{}
	v.Set("sortBy", "lastUpdatedDate")
	v.Set("sortOrder", "descending")
	v.Set("max_results", strconv.Itoa(a.maxResults))
	v.Set("search_query", query)
	return http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+v.Encode(), nil)
}

// ParseResponse reads the Atom feed. The feed carries everything needed
// for an import; no further request is made.
func (a *Arxiv) ParseResponse(_ context.Context, body []byte) ([]types.PaperInfo, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	var papers []types.PaperInfo
	for _, e := range feed.Entries {
		title := collapseSpace(e.Title)
		if title == "" {
			continue
		}
		info := types.PaperInfo{
			Title:    title,
			DOI:      strings.TrimSpace(e.DOI),
			Journal:  collapseSpace(e.JournalRef),
			Abstract: strings.TrimSpace(strings.ReplaceAll(e.Summary, "\n", " ")),
			Data:     map[string]string{"arxiv_id": strings.TrimSpace(e.ID)},
		}
		for _, l := range e.Links {
			if l.Title == "pdf" {
				info.ImportURL = l.Href
				break
			}
		}
		for _, au := range e.Authors {
			if name := strings.TrimSpace(au.Name); name != "" {
				info.Authors = append(info.Authors, name)
			}
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			info.Year = strconv.Itoa(t.Year())
		}
		papers = append(papers, info)
	}
	return papers, nil
}

// ImportAfterSearch downloads the PDF behind import_url. A failed or
// non-PDF download still returns the search record.
func (a *Arxiv) ImportAfterSearch(ctx context.Context, result types.SearchResult) (types.PaperInfo, []byte, error) {
	info := result.PaperInfo
	if info.ImportURL == "" {
		return info, nil, nil
	}
	resp, err := a.client.Get(ctx, info.ImportURL, nil)
	if err != nil {
		return info, nil, fmt.Errorf("fetching arXiv PDF: %w", err)
	}
	if crawler.Classify(resp) != crawler.KindPDF {
		return info, nil, nil
	}
	return info, resp.Body, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string        `xml:"id"`
	Title      string        `xml:"title"`
	Summary    string        `xml:"summary"`
	Published  string        `xml:"published"`
	Authors    []arxivAuthor `xml:"author"`
	Links      []arxivLink   `xml:"link"`
	DOI        string        `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string        `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
