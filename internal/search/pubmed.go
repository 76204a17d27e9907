// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paperlib/pkg/types"
)

// pubmedBase is the NCBI E-utilities endpoint. Declared as a var so tests
// can substitute an httptest server.
var pubmedBase = "http://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

// PubMed searches the PubMed citation database. A search takes two
// requests: esearch stores the hits on the server, esummary returns them.
// Import fetches the full record with efetch.
type PubMed struct {
	client Fetcher
	apiKey string
}

// NewPubMed returns the PubMed provider. apiKey may be empty.
func NewPubMed(client Fetcher, apiKey string) *PubMed {
	return &PubMed{client: client, apiKey: apiKey}
}

func (p *PubMed) Label() string { return "pubmed" }
func (p *PubMed) Name() string { return "PubMed" }
func (p *PubMed) UniqueKey() types.IdentityField { return types.FieldPubMedID }

func (p *PubMed) endpoint(path string, v url.Values) string {
	if p.apiKey != "" {
		v.Set("api_key", p.apiKey)
	}
	return pubmedBase + path + "?" + v.Encode()
}

// PrepareQuery builds the esearch request with server-side history.
func (p *PubMed) PrepareQuery(ctx context.Context, query string) (*http.Request, error) {
	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("term", query)
	v.Set("usehistory", "y")
	return http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("esearch.fcgi", v), nil)
}

// ParseResponse reads the esearch reply and, when there are hits, fetches
// their summaries.
func (p *PubMed) ParseResponse(ctx context.Context, body []byte) ([]types.PaperInfo, error) {
	var search esearchResult
	if err := xml.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("parsing esearch reply: %w", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(search.Count))
	if err != nil {
		return nil, fmt.Errorf("esearch count %q: %w", search.Count, err)
	}
	if count == 0 {
		return nil, nil
	}

	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("query_key", strings.TrimSpace(search.QueryKey))
	v.Set("WebEnv", strings.TrimSpace(search.WebEnv))
	resp, err := p.client.Get(ctx, p.endpoint("esummary.fcgi", v), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching summaries: %w", err)
	}
	return parseESummary(resp.Body)
}

func parseESummary(body []byte) ([]types.PaperInfo, error) {
	var summary esummaryResult
	if err := xml.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("parsing esummary reply: %w", err)
	}

	papers := make([]types.PaperInfo, 0, len(summary.Docs))
	for _, d := range summary.Docs {
		id := strings.TrimSpace(d.ID)
		info := types.PaperInfo{
			PubMedID: id,
			Data:     map[string]string{"pubmed_id": id},
			Title:    firstItem(d.Items, "Title"),
			Journal:  firstItem(d.Items, "FullJournalName"),
			Authors:  findItems(d.Items, "Author"),
		}
		if doi := firstItem(d.Items, "DOI"); doi != "" {
			info.DOI = doi
			info.ImportURL = "http://dx.doi.org/" + doi
		}
		if date := firstItem(d.Items, "PubDate"); len(date) >= 4 {
			info.Year = date[:4]
		}
		papers = append(papers, info)
	}
	return papers, nil
}

// ImportAfterSearch fetches the full PubMed record and fills the search
// record with it. PubMed serves no documents.
func (p *PubMed) ImportAfterSearch(ctx context.Context, result types.SearchResult) (types.PaperInfo, []byte, error) {
	id := result.Data["pubmed_id"]
	if id == "" {
		id = result.PubMedID
	}
	if id == "" {
		return result.PaperInfo, nil, fmt.Errorf("search result has no PubMed id")
	}

	v := url.Values{}
	v.Set("db", "pubmed")
	v.Set("id", id)
	v.Set("retmode", "xml")
	resp, err := p.client.Get(ctx, p.endpoint("efetch.fcgi", v), nil)
	if err != nil {
		return result.PaperInfo, nil, fmt.Errorf("fetching PubMed record %s: %w", id, err)
	}

	info, err := parseEFetch(resp.Body)
	if err != nil {
		return result.PaperInfo, nil, err
	}
	info.FillMissing(result.PaperInfo)
	return info, nil, nil
}

func parseEFetch(body []byte) (types.PaperInfo, error) {
	var set efetchSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return types.PaperInfo{}, fmt.Errorf("parsing efetch reply: %w", err)
	}
	if len(set.Articles) == 0 {
		return types.PaperInfo{}, nil
	}

	a := set.Articles[0]
	art := a.Article
	info := types.PaperInfo{
		Title:   strings.TrimSpace(art.ArticleTitle),
		Journal: strings.TrimSpace(art.Journal.Title),
		Volume:  strings.TrimSpace(art.Journal.Volume),
		Issue:   strings.TrimSpace(art.Journal.Issue),
		Pages:   strings.TrimSpace(art.Pages),
		Year:    strings.TrimSpace(art.ArticleDateYear),
	}
	if info.Year == "" {
		info.Year = strings.TrimSpace(art.Journal.PubYear)
	}

	var abstract []string
	for _, part := range art.Abstract {
		if part = strings.TrimSpace(part); part != "" {
			abstract = append(abstract, part)
		}
	}
	info.Abstract = strings.Join(abstract, " ")

	for _, au := range art.Authors {
		name := strings.TrimSpace(strings.TrimSpace(au.ForeName) + " " + strings.TrimSpace(au.LastName))
		if name != "" {
			info.Authors = append(info.Authors, name)
		}
	}
	for _, aid := range a.IDs {
		switch aid.Type {
		case "doi":
			info.DOI = strings.TrimSpace(aid.Value)
		case "pubmed":
			info.PubMedID = strings.TrimSpace(aid.Value)
		}
	}
	return info, nil
}

// E-utilities XML structures.
type esearchResult struct {
	Count    string `xml:"Count"`
	QueryKey string `xml:"QueryKey"`
	WebEnv   string `xml:"WebEnv"`
}

type esummaryResult struct {
	Docs []esummaryDoc `xml:"DocSum"`
}

type esummaryDoc struct {
	ID    string         `xml:"Id"`
	Items []esummaryItem `xml:"Item"`
}

// esummaryItem is a named value; list items (AuthorList) nest further items.
type esummaryItem struct {
	Name  string         `xml:"Name,attr"`
	Value string         `xml:",chardata"`
	Items []esummaryItem `xml:"Item"`
}

// findItems returns the values of all items named name, at any depth.
// Names are compared case-insensitively.
func findItems(items []esummaryItem, name string) []string {
	var out []string
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			if v := strings.TrimSpace(it.Value); v != "" {
				out = append(out, v)
			}
		}
		out = append(out, findItems(it.Items, name)...)
	}
	return out
}

func firstItem(items []esummaryItem, name string) string {
	if vs := findItems(items, name); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

type efetchSet struct {
	Articles []efetchArticle `xml:"PubmedArticle"`
}

type efetchArticle struct {
	Article struct {
		Journal struct {
			Title   string `xml:"Title"`
			Volume  string `xml:"JournalIssue>Volume"`
			Issue   string `xml:"JournalIssue>Issue"`
			PubYear string `xml:"JournalIssue>PubDate>Year"`
		} `xml:"Journal"`
		ArticleTitle    string   `xml:"ArticleTitle"`
		Pages           string   `xml:"Pagination>MedlinePgn"`
		Abstract        []string `xml:"Abstract>AbstractText"`
		ArticleDateYear string   `xml:"ArticleDate>Year"`
		Authors         []struct {
			LastName string `xml:"LastName"`
			ForeName string `xml:"ForeName"`
		} `xml:"AuthorList>Author"`
	} `xml:"MedlineCitation>Article"`
	IDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}
