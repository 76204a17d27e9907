// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paperlib/pkg/types"
)

// fieldMap maps BibTeX field names to PaperInfo record names.
var fieldMap = map[string]string{
	"doi":       "doi",
	"url":       "import_url",
	"title":     "title",
	"pages":     "pages",
	"abstract":  "abstract",
	"journal":   "journal",
	"year":      "year",
	"publisher": "publisher",
	"volume":    "volume",
	"number":    "issue",
}

// doiPrefixes are resolver URL prefixes stripped from doi values.
var doiPrefixes = []string{
	"http://dx.doi.org/",
	"http://doi.acm.org/",
	"https://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	blanks     = regexp.MustCompile(`[ \t\r]+`)
)

// PaperInfoFromBibTeX parses text and maps the first entry onto a
// PaperInfo. Empty or unparseable input yields an empty record. The raw
// text is kept in the BibTeX field whenever an entry was found.
func PaperInfoFromBibTeX(text string) types.PaperInfo {
	var info types.PaperInfo
	if strings.TrimSpace(text) == "" {
		return info
	}

	text = strings.ReplaceAll(text, "<br>", "\n")
	doc, err := Parse(text)
	if err != nil {
		return info
	}

	fields := doc.Fields()
	for name, raw := range fields {
		target, ok := fieldMap[name]
		if !ok {
			continue
		}
		if target == "abstract" {
			info.Abstract = cleanMultiline(raw)
			continue
		}
		info.Set(target, cleanValue(raw))
	}
	info.DOI = StripDOIPrefix(info.DOI)
	info.Authors = SplitAuthors(fields["author"])
	info.BibTeX = text
	return info
}

// SplitAuthors splits a BibTeX author list on " and " (any case) outside
// braces and returns the cleaned names in source order, so a braced
// corporate name such as {Barnes and Noble} stays one author.
func SplitAuthors(raw string) []string {
	raw = strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
	var authors []string
	add := func(name string) {
		if name = cleanValue(name); name != "" {
			authors = append(authors, name)
		}
	}

	depth, start := 0, 0
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ' ':
			if depth == 0 && i+len(authorSep) <= len(raw) && strings.EqualFold(raw[i:i+len(authorSep)], authorSep) {
				add(raw[start:i])
				start = i + len(authorSep)
				i = start - 1
			}
		}
	}
	add(raw[start:])
	return authors
}

// Institution returns the institution behind the first entry of text:
// its institution, school or organization field, whichever comes first.
func Institution(text string) string {
	doc, err := Parse(text)
	if err != nil {
		return ""
	}
	fields := doc.Fields()
	for _, name := range []string{"institution", "school", "organization"} {
		if v := cleanValue(fields[name]); v != "" {
			return v
		}
	}
	return ""
}

// StripDOIPrefix removes a known DOI resolver URL prefix.
func StripDOIPrefix(doi string) string {
	for _, prefix := range doiPrefixes {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			return doi[len(prefix):]
		}
	}
	return doi
}

const authorSep = " and "

// cleanValue removes grouping braces and collapses whitespace.
func cleanValue(v string) string {
	v = strings.NewReplacer("{", "", "}", "").Replace(v)
	return strings.TrimSpace(whitespace.ReplaceAllString(v, " "))
}

// cleanMultiline is cleanValue for text whose line breaks matter.
func cleanMultiline(v string) string {
	lines := strings.Split(strings.NewReplacer("{", "", "}", "").Replace(v), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(blanks.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
