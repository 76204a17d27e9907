// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperInfo_GetSet(t *testing.T) {
	var p PaperInfo
	assert.True(t, p.Set("title", "Deep Nets"))
	assert.True(t, p.Set("doi", "10.1/dn"))
	assert.True(t, p.Set("authors", "Y. LeCun and  G. Hinton and "))
	assert.False(t, p.Set("color", "blue"))

	assert.Equal(t, "Deep Nets", p.Get("title"))
	assert.Equal(t, "10.1/dn", p.Get("doi"))
	assert.Equal(t, []string{"Y. LeCun", "G. Hinton"}, p.Authors)
	assert.Equal(t, "Y. LeCun and G. Hinton", p.Get("authors"))
	assert.Empty(t, p.Get("color"))
}

func TestPaperInfo_IsEmpty(t *testing.T) {
	assert.True(t, PaperInfo{}.IsEmpty())
	assert.False(t, PaperInfo{Year: "2015"}.IsEmpty())
	assert.False(t, PaperInfo{Authors: []string{"A"}}.IsEmpty())
	assert.False(t, PaperInfo{Data: map[string]string{"pmid": "1"}}.IsEmpty())
}

func TestPaperInfo_FillMissing(t *testing.T) {
	p := PaperInfo{
		Title: "Kept",
		Data:  map[string]string{"bib_url": "kept"},
	}
	other := PaperInfo{
		Title:   "Replacement",
		Authors: []string{"A. Author"},
		Year:    "2001",
		Data:    map[string]string{"bib_url": "other", "pmid": "42"},
	}

	changed := p.FillMissing(other)

	assert.ElementsMatch(t, []string{"year", "authors"}, changed)
	assert.Equal(t, "Kept", p.Title)
	assert.Equal(t, "2001", p.Year)
	assert.Equal(t, []string{"A. Author"}, p.Authors)
	assert.Equal(t, map[string]string{"bib_url": "kept", "pmid": "42"}, p.Data)

	// Authors are copied, not aliased.
	other.Authors[0] = "Changed"
	assert.Equal(t, "A. Author", p.Authors[0])

	assert.Empty(t, p.FillMissing(other), "second fill changes nothing")
}

func TestPaperInfo_Identity(t *testing.T) {
	p := PaperInfo{
		Title:       "T",
		DOI:         "10.1/x",
		PubMedID:    "123",
		ImportURL:   "http://example.com/p",
		FullTextMD5: "abc",
	}
	want := map[IdentityField]string{
		FieldID:          "",
		FieldDOI:         "10.1/x",
		FieldPubMedID:    "123",
		FieldImportURL:   "http://example.com/p",
		FieldFullTextMD5: "abc",
		FieldTitle:       "T",
	}
	for _, f := range IdentityPrecedence {
		assert.Equal(t, want[f], p.Identity(f), f)
	}
	assert.Equal(t, FieldID, IdentityPrecedence[0])
	assert.Equal(t, FieldTitle, IdentityPrecedence[len(IdentityPrecedence)-1])
}

func TestNewSearchResult(t *testing.T) {
	tag := QueryTag{Label: "arxiv", Query: "graphs"}
	a := NewSearchResult(PaperInfo{Title: "A"}, tag)
	b := NewSearchResult(PaperInfo{Title: "B"}, tag)

	assert.Equal(t, "arxiv", a.Label)
	assert.Equal(t, tag, a.Tag)
	assert.True(t, IsTransientID(a.TransientID))
	assert.NotEqual(t, a.TransientID, b.TransientID)
	assert.False(t, IsTransientID("17"))
}

func TestItem(t *testing.T) {
	items := []Item{
		Persisted{Paper: CanonicalPaper{ID: 3, PaperInfo: PaperInfo{Title: "Stored"}}},
		Transient{Result: NewSearchResult(PaperInfo{Title: "Found"}, QueryTag{Label: "pubmed"}), ProviderLabel: "pubmed"},
	}

	var titles []string
	for _, it := range items {
		switch v := it.(type) {
		case Persisted:
			require.Equal(t, int64(3), v.Paper.ID)
		case Transient:
			require.Equal(t, "pubmed", v.ProviderLabel)
		}
		titles = append(titles, it.Info().Title)
	}
	assert.Equal(t, []string{"Stored", "Found"}, titles)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "paperlib/0.1", cfg.HTTP.UserAgent)
	assert.Equal(t, 20, cfg.Crawl.MaxLinks)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, "library", cfg.Library.Dir)
	assert.NotEmpty(t, cfg.Search.Providers)
}
