// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is a candidate URL found on an HTML page.
type Link struct {
	URL    string
	PDF    bool
	BibTeX bool
}

// ExtractLinks returns the PDF and BibTeX candidate links of an HTML page
// in discovery order, without duplicates. Relative hrefs are resolved
// against pageURL and links pointing back to the page itself are skipped.
func ExtractLinks(pageURL string, body []byte) ([]Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	self := withoutFragment(base)
	seen := map[string]bool{}
	var links []Link

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.EqualFold(href, pageURL) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		target := withoutFragment(abs)
		if strings.EqualFold(target, self) {
			return
		}

		text := strings.ToLower(a.Text())
		path := strings.ToLower(stripQuery(href))
		l := Link{
			URL:    target,
			PDF:    strings.HasSuffix(path, ".pdf") || strings.Contains(text, "pdf"),
			BibTeX: strings.HasSuffix(path, ".bib") || strings.Contains(text, "bibtex"),
		}
		if !l.PDF && !l.BibTeX {
			return
		}
		if seen[target] {
			return
		}
		seen[target] = true
		links = append(links, l)
	})
	return links, nil
}

// stripQuery removes a trailing "?query" and "#fragment" from href.
func stripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

func withoutFragment(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
