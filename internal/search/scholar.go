// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/pdiddy/paperlib/internal/bibtex"
	"github.com/pdiddy/paperlib/pkg/types"
)

// scholarBase is the Google Scholar site root. Declared as a var so tests
// can substitute an httptest server.
var scholarBase = "http://scholar.google.com/"

// Scholar scrapes Google Scholar result pages. The GSP preference cookie
// makes Scholar include "Import into BibTeX" links, which import follows.
type Scholar struct {
	client   Fetcher
	googleID string
}

// NewScholar returns the Google Scholar provider with a fresh preference id.
func NewScholar(client Fetcher) *Scholar {
	sum := md5.Sum([]byte(uuid.NewString()))
	return &Scholar{client: client, googleID: hex.EncodeToString(sum[:])[:16]}
}

func (s *Scholar) Label() string { return "google_scholar" }
func (s *Scholar) Name() string { return "Google Scholar" }
func (s *Scholar) UniqueKey() types.IdentityField { return types.FieldImportURL }

func (s *Scholar) cookie() string {
	return fmt.Sprintf("GSP=ID=%s:CF=4", s.googleID)
}

// absolute turns a site-relative href into a full URL.
func (s *Scholar) absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return scholarBase + strings.TrimPrefix(href, "/")
}

// PrepareQuery builds the result page request with the preference cookie.
func (s *Scholar) PrepareQuery(ctx context.Context, query string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		scholarBase+"scholar?"+url.Values{"q": {query}}.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", s.cookie())
	return req, nil
}

// ParseResponse reads the div.gs_r result blocks. The BibTeX link of each
// hit is kept in Data for the import step.
func (s *Scholar) ParseResponse(_ context.Context, body []byte) ([]types.PaperInfo, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing Scholar page: %w", err)
	}

	var papers []types.PaperInfo
	doc.Find("div.gs_r").Each(func(_ int, result *goquery.Selection) {
		var info types.PaperInfo

		titleNode := result.Find("h3.gs_rt").First()
		if link := titleNode.Find("a").First(); link.Length() > 0 {
			info.Title = collapseSpace(link.Text())
			if href := strings.TrimSpace(link.AttrOr("href", "")); href != "" {
				info.ImportURL = s.absolute(href)
			}
		} else {
			info.Title = collapseSpace(titleNode.Text())
		}
		if info.Title == "" && info.ImportURL == "" {
			return
		}

		parseScholarByline(&info, result.Find("div.gs_a").First().Text())
		info.Abstract = collapseSpace(result.Find("div.gs_rs").First().Text())

		result.Find("div.gs_fl a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := a.AttrOr("href", "")
			if strings.HasPrefix(href, "/scholar.bib") {
				info.Data = map[string]string{"bibtex_link": href}
				return false
			}
			return true
		})
		papers = append(papers, info)
	})
	return papers, nil
}

// parseScholarByline splits "authors - journal, year - publisher".
func parseScholarByline(info *types.PaperInfo, line string) {
	parts := strings.Split(line, " - ")
	if len(parts) < 2 {
		return
	}

	for _, a := range strings.Split(parts[0], ",") {
		a = strings.TrimSpace(strings.Trim(strings.TrimSpace(a), "…"))
		if a != "" {
			info.Authors = append(info.Authors, a)
		}
	}

	journalYear := strings.Split(parts[1], ",")
	switch len(journalYear) {
	case 1:
		v := strings.TrimSpace(journalYear[0])
		if n, err := strconv.Atoi(v); err == nil {
			info.Year = strconv.Itoa(n)
		} else {
			info.Journal = strings.Trim(v, "… ")
		}
	case 2:
		info.Journal = strings.Trim(strings.TrimSpace(journalYear[0]), "… ")
		info.Year = strings.TrimSpace(journalYear[1])
	}

	if len(parts) >= 3 {
		info.Publisher = strings.TrimSpace(parts[2])
	}
}

// ImportAfterSearch fetches the hit's BibTeX link and parses it. The
// scraped record fills whatever the BibTeX lacks, typically the URL.
func (s *Scholar) ImportAfterSearch(ctx context.Context, result types.SearchResult) (types.PaperInfo, []byte, error) {
	link := result.Data["bibtex_link"]
	if link == "" {
		return result.PaperInfo, nil, nil
	}

	header := http.Header{}
	header.Set("Cookie", s.cookie())
	resp, err := s.client.Get(ctx, s.absolute(link), header)
	if err != nil {
		return result.PaperInfo, nil, fmt.Errorf("fetching Scholar BibTeX: %w", err)
	}

	info := bibtex.PaperInfoFromBibTeX(string(resp.Body))
	info.FillMissing(result.PaperInfo)
	return info, nil, nil
}
