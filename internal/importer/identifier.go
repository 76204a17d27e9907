// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package importer

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/paperlib/internal/bibtex"
	"github.com/pdiddy/paperlib/pkg/types"
)

// IdentifierType classifies a user-supplied identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeArxiv
	TypeDOI
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeArxiv:
		return "arxiv"
	case TypeDOI:
		return "doi"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?i:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// Classify determines the identifier type and returns the normalized form.
// DOIs lose a "doi:" or resolver URL prefix; arXiv IDs lose "arXiv:".
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}

	if doi := NormalizeDOI(identifier); doiPattern.MatchString(doi) {
		return TypeDOI, doi
	}

	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, identifier
	}

	return TypeUnknown, identifier
}

// Slugify folds s to a lowercase ASCII filename stem. Accents are
// stripped and every run of characters other than letters, digits, dots
// and underscores becomes one hyphen.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(unicode.ToLower(r))
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

// FileName returns the stored document name for p: by DOI when known,
// then by PubMed id, then by library id.
func FileName(p types.CanonicalPaper) string {
	var stem string
	switch {
	case p.DOI != "":
		stem = "doi_" + p.DOI
	case p.PubMedID != "":
		stem = "pubmed_" + p.PubMedID
	default:
		stem = "internal_id_" + strconv.FormatInt(p.ID, 10)
	}
	return Slugify(stem) + ".pdf"
}

// NormalizeDOI strips a "doi:" label or a resolver URL from doi.
func NormalizeDOI(doi string) string {
	doi = bibtex.StripDOIPrefix(strings.TrimSpace(doi))
	for _, prefix := range []string{"doi:", "https://doi.org/", "http://doi.org/", "https://dx.doi.org/"} {
		if len(doi) >= len(prefix) && strings.EqualFold(doi[:len(prefix)], prefix) {
			return strings.TrimSpace(doi[len(prefix):])
		}
	}
	return doi
}
