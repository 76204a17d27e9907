// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paperlib/pkg/types"
)

// jstorSRUBase is the JSTOR Data for Research SRU endpoint. Declared as a
// var so tests can substitute an httptest server.
var jstorSRUBase = "http://dfr.jstor.org/sru/"

// jstorFields maps JSTOR record element names to PaperInfo record names.
var jstorFields = map[string]string{
	"title":        "title",
	"id":           "doi",
	"abstract":     "abstract",
	"journaltitle": "journal",
	"volume":       "volume",
	"issue":        "issue",
	"year":         "year",
	"pagerange":    "pages",
	"publisher":    "publisher",
}

// JSTOR searches the JSTOR archive through its SRU interface. A single
// request returns everything; import adds nothing.
type JSTOR struct {
	maxResults int
}

// NewJSTOR returns the JSTOR provider. maxResults <= 0 means 20.
func NewJSTOR(maxResults int) *JSTOR {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &JSTOR{maxResults: maxResults}
}

func (j *JSTOR) Label() string { return "jstor" }
func (j *JSTOR) Name() string { return "JSTOR" }
func (j *JSTOR) UniqueKey() types.IdentityField { return types.FieldDOI }

// PrepareQuery builds the searchRetrieve request.
func (j *JSTOR) PrepareQuery(ctx context.Context, query string) (*http.Request, error) {
	u := fmt.Sprintf("%s?version=1.1&operation=searchRetrieve&query=%s&maximumRecords=%d&recordSchema=info:srw/schema/srw_jstor",
		jstorSRUBase, url.QueryEscape(query), j.maxResults)
	return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
}

// ParseResponse reads every srw:record/srw:recordData element. Fields are
// matched by local element name anywhere below recordData.
func (j *JSTOR) ParseResponse(_ context.Context, body []byte) ([]types.PaperInfo, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false

	var papers []types.PaperInfo
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return papers, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing JSTOR reply: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "recordData") {
			continue
		}
		info, err := readJSTORRecord(dec)
		if err != nil {
			return nil, fmt.Errorf("parsing JSTOR record: %w", err)
		}
		papers = append(papers, info)
	}
}

// readJSTORRecord consumes tokens up to the end of the current recordData.
func readJSTORRecord(dec *xml.Decoder) (types.PaperInfo, error) {
	var info types.PaperInfo
	depth := 1
	var current string
	var text strings.Builder

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return info, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			current = strings.ToLower(t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			depth--
			name := strings.ToLower(t.Name.Local)
			if name == current {
				setJSTORField(&info, name, strings.TrimSpace(text.String()))
			}
			current = ""
			text.Reset()
		}
	}

	if info.Year != "" {
		if _, err := strconv.Atoi(info.Year); err != nil && len(info.Year) >= 5 {
			// "YEAR: 2012" style values keep the trailing year.
			info.Year = strings.TrimSpace(info.Year[len(info.Year)-5:])
		}
	}
	return info, nil
}

func setJSTORField(info *types.PaperInfo, element, value string) {
	if value == "" {
		return
	}
	if element == "author" {
		info.Authors = append(info.Authors, value)
		return
	}
	if field, ok := jstorFields[element]; ok && info.Get(field) == "" {
		info.Set(field, value)
	}
}

// ImportAfterSearch returns the search record unchanged.
func (j *JSTOR) ImportAfterSearch(_ context.Context, result types.SearchResult) (types.PaperInfo, []byte, error) {
	return result.PaperInfo, nil, nil
}
