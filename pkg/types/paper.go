// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// IdentityField names a field that can identify a paper within the library.
type IdentityField string

const (
	FieldID          IdentityField = "id"
	FieldDOI         IdentityField = "doi"
	FieldPubMedID    IdentityField = "pubmed_id"
	FieldImportURL   IdentityField = "import_url"
	FieldFullTextMD5 IdentityField = "full_text_md5"
	FieldTitle       IdentityField = "title"
)

// IdentityPrecedence lists the identifying fields from most to least
// specific. Lookups try them in this order.
var IdentityPrecedence = []IdentityField{
	FieldID,
	FieldDOI,
	FieldPubMedID,
	FieldImportURL,
	FieldFullTextMD5,
	FieldTitle,
}

// PaperInfo is a transient, partially filled paper record. It is built up
// from BibTeX, PDF metadata, scraped HTML, or a provider response and is
// discarded once merged into a CanonicalPaper.
type PaperInfo struct {
	Title         string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors       []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	DOI           string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	PubMedID      string   `json:"pubmed_id,omitempty" yaml:"pubmed_id,omitempty"`
	ImportURL     string   `json:"import_url,omitempty" yaml:"import_url,omitempty"`
	Journal       string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume        string   `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue         string   `json:"issue,omitempty" yaml:"issue,omitempty"`
	Year          string   `json:"year,omitempty" yaml:"year,omitempty"`
	Pages         string   `json:"pages,omitempty" yaml:"pages,omitempty"`
	Abstract      string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Publisher     string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	BibTeX        string   `json:"bibtex,omitempty" yaml:"bibtex,omitempty"`
	ExtractedText string   `json:"-" yaml:"-"`
	FullTextMD5   string   `json:"full_text_md5,omitempty" yaml:"full_text_md5,omitempty"`

	// Data is an opaque provider payload retained for a second-stage fetch
	// (a PubMed id, a Google Scholar BibTeX link, ...).
	Data map[string]string `json:"data,omitempty" yaml:"data,omitempty"`
}

// Get returns the value of a textual field by its record name. Authors are
// joined with " and ". Unknown names return "".
func (p PaperInfo) Get(field string) string {
	if ptr := p.stringField(field); ptr != nil {
		return *ptr
	}
	if field == "authors" {
		return strings.Join(p.Authors, " and ")
	}
	return ""
}

// Set assigns a textual field by its record name. It reports false for an
// unknown name.
func (p *PaperInfo) Set(field, value string) bool {
	if ptr := p.stringField(field); ptr != nil {
		*ptr = value
		return true
	}
	if field == "authors" {
		p.Authors = nil
		for _, a := range strings.Split(value, " and ") {
			if a = strings.TrimSpace(a); a != "" {
				p.Authors = append(p.Authors, a)
			}
		}
		return true
	}
	return false
}

func (p *PaperInfo) stringField(field string) *string {
	switch field {
	case "title":
		return &p.Title
	case "doi":
		return &p.DOI
	case "pubmed_id":
		return &p.PubMedID
	case "import_url":
		return &p.ImportURL
	case "journal":
		return &p.Journal
	case "volume":
		return &p.Volume
	case "issue":
		return &p.Issue
	case "year":
		return &p.Year
	case "pages":
		return &p.Pages
	case "abstract":
		return &p.Abstract
	case "publisher":
		return &p.Publisher
	case "bibtex":
		return &p.BibTeX
	case "extracted_text":
		return &p.ExtractedText
	case "full_text_md5":
		return &p.FullTextMD5
	}
	return nil
}

// textFields lists the record names handled by Get/Set, excluding authors.
var textFields = []string{
	"title", "doi", "pubmed_id", "import_url", "journal", "volume", "issue",
	"year", "pages", "abstract", "publisher", "bibtex", "extracted_text",
	"full_text_md5",
}

// IsEmpty reports whether no field of the record carries a value.
func (p PaperInfo) IsEmpty() bool {
	if len(p.Authors) > 0 || len(p.Data) > 0 {
		return false
	}
	for _, f := range textFields {
		if p.Get(f) != "" {
			return false
		}
	}
	return true
}

// FillMissing copies values from other into fields of p that are empty.
// Fields already set on p are never overwritten. It returns the names of
// the fields that changed.
func (p *PaperInfo) FillMissing(other PaperInfo) []string {
	var changed []string
	for _, f := range textFields {
		if p.Get(f) == "" {
			if v := other.Get(f); v != "" {
				p.Set(f, v)
				changed = append(changed, f)
			}
		}
	}
	if len(p.Authors) == 0 && len(other.Authors) > 0 {
		p.Authors = append([]string(nil), other.Authors...)
		changed = append(changed, "authors")
	}
	for k, v := range other.Data {
		if _, ok := p.Data[k]; ok {
			continue
		}
		if p.Data == nil {
			p.Data = make(map[string]string)
		}
		p.Data[k] = v
	}
	return changed
}

// Identity returns the value of an identifying field, or "" for FieldID,
// which a PaperInfo never carries.
func (p PaperInfo) Identity(field IdentityField) string {
	if field == FieldID {
		return ""
	}
	return p.Get(string(field))
}

// Entity is a normalized, named record shared between papers: an author,
// a source (journal), or an organization.
type Entity struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// CanonicalPaper is the durable library record. It holds the union of all
// PaperInfo fields plus fields managed by the repository.
type CanonicalPaper struct {
	ID int64 `json:"id" yaml:"id"`

	PaperInfo `yaml:",inline"`

	// Source is the journal or venue entity, when known.
	Source *Entity `json:"source,omitempty" yaml:"source,omitempty"`

	// AuthorEntities are the normalized authors in authorship order.
	AuthorEntities []Entity `json:"author_entities,omitempty" yaml:"author_entities,omitempty"`

	FullTextPath string    `json:"full_text_path,omitempty" yaml:"full_text_path,omitempty"`
	Rating       int       `json:"rating" yaml:"rating"`
	ReadCount    int       `json:"read_count" yaml:"read_count"`
	Created      time.Time `json:"created" yaml:"created"`
	Updated      time.Time `json:"updated" yaml:"updated"`
}
