// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package importer drives the import flows: a URL, a DOI, pasted BibTeX, a
// local PDF or a search hit is turned into metadata and a document,
// resolved against the library and stored.
package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/bibtex"
	"github.com/pdiddy/paperlib/internal/crawler"
	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/internal/pdfinfo"
	"github.com/pdiddy/paperlib/internal/progress"
	"github.com/pdiddy/paperlib/internal/resolve"
	"github.com/pdiddy/paperlib/internal/search"
	"github.com/pdiddy/paperlib/pkg/types"
)

// ErrNothingFound is returned when an import yields neither metadata nor a
// document. It is the only import failure shown to users as such.
var ErrNothingFound = errors.New("nothing could be imported")

// Resolver base URLs. Declared as vars so tests can substitute httptest
// servers.
var (
	doiResolverBase = "http://dx.doi.org/"
	arxivAbsBase    = "https://arxiv.org/abs/"
)

// bibtexAccept asks a DOI resolver for a BibTeX rendering.
const bibtexAccept = "text/bibliography; style=bibtex"

// Library is the store the importer writes to.
type Library interface {
	resolve.Repository
	FindOrCreateAuthor(ctx context.Context, name string) (types.Entity, error)
	FindOrCreateSource(ctx context.Context, name string) (types.Entity, error)
	FindOrCreateOrganization(ctx context.Context, name string) (types.Entity, error)
	SetAuthors(ctx context.Context, paperID int64, authors []types.Entity) error
	AddAuthorOrganization(ctx context.Context, authorID, organizationID int64) error
}

// Importer runs the import flows against one library.
type Importer struct {
	lib      Library
	resolver *resolve.Resolver
	crawler  *crawler.Crawler
	client   crawler.Fetcher
	notifier progress.Notifier
	workers  int
	log      logrus.FieldLogger
}

// New returns an Importer. notifier and log may be nil.
func New(lib Library, client crawler.Fetcher, cfg types.CrawlConfig, notifier progress.Notifier, log logrus.FieldLogger) *Importer {
	if log == nil {
		log = logging.Discard()
	}
	if notifier == nil {
		notifier = progress.Multi{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Importer{
		lib:      lib,
		resolver: resolve.New(lib, log),
		crawler:  crawler.New(client, cfg, log),
		client:   client,
		notifier: notifier,
		workers:  workers,
		log:      log,
	}
}

// track registers a progress entry and returns the function removing it.
func (im *Importer) track(status string) func() {
	id := progress.NewTaskID()
	im.notifier.Add(id, status)
	return func() { im.notifier.Remove(id) }
}

// FetchBibTeXForDOI asks the DOI resolver for a BibTeX rendering of doi.
func (im *Importer) FetchBibTeXForDOI(ctx context.Context, doi string) (string, error) {
	doi = NormalizeDOI(doi)
	if doi == "" {
		return "", fmt.Errorf("empty DOI")
	}
	resp, err := im.client.Get(ctx, doiResolverBase+doi, http.Header{"Accept": {bibtexAccept}})
	if err != nil {
		return "", fmt.Errorf("fetching BibTeX for %s: %w", doi, err)
	}
	text := strings.TrimSpace(string(resp.Body))
	if !strings.HasPrefix(text, "@") {
		return "", fmt.Errorf("fetching BibTeX for %s: resolver returned %s", doi, resp.MediaType())
	}
	return text, nil
}

// ImportURL crawls rawURL and imports what it leads to.
func (im *Importer) ImportURL(ctx context.Context, rawURL string) (types.CanonicalPaper, error) {
	defer im.track("importing: " + rawURL)()

	res := im.crawler.Resolve(ctx, rawURL, types.PaperInfo{})
	if res.Info.IsEmpty() && len(res.Document) == 0 {
		return types.CanonicalPaper{}, nothingFound(rawURL, res.Err)
	}
	if res.Info.ImportURL == "" {
		res.Info.ImportURL = rawURL
	}
	return im.complete(ctx, nil, res.Info, res.Document)
}

// ImportDOI imports the paper a DOI resolves to. When the landing page
// yields nothing the resolver's BibTeX rendering is used.
func (im *Importer) ImportDOI(ctx context.Context, doi string) (types.CanonicalPaper, error) {
	doi = NormalizeDOI(doi)
	if doi == "" {
		return types.CanonicalPaper{}, fmt.Errorf("%w: empty DOI", ErrNothingFound)
	}
	defer im.track("importing DOI: " + doi)()

	res := im.crawler.Resolve(ctx, doiResolverBase+doi, types.PaperInfo{})
	info := res.Info
	if info.IsEmpty() && len(res.Document) == 0 {
		text, err := im.FetchBibTeXForDOI(ctx, doi)
		if err != nil {
			return types.CanonicalPaper{}, nothingFound(doi, errors.Join(res.Err, err))
		}
		info = bibtex.PaperInfoFromBibTeX(text)
	}
	info.DOI = doi
	return im.complete(ctx, resolve.Keys{types.FieldDOI: doi}, info, res.Document)
}

// ImportIdentifier classifies identifier and runs the matching flow.
func (im *Importer) ImportIdentifier(ctx context.Context, identifier string) (types.CanonicalPaper, error) {
	kind, norm := Classify(identifier)
	switch kind {
	case TypeDOI:
		return im.ImportDOI(ctx, norm)
	case TypeArxiv:
		return im.ImportURL(ctx, arxivAbsBase+norm)
	case TypeURL:
		return im.ImportURL(ctx, norm)
	}
	return types.CanonicalPaper{}, fmt.Errorf("unrecognized identifier format: %q", identifier)
}

// ImportBibTeX imports a pasted BibTeX entry. Its url, or else its DOI,
// is crawled for a document with the entry as known metadata.
func (im *Importer) ImportBibTeX(ctx context.Context, text string) (types.CanonicalPaper, error) {
	info := bibtex.PaperInfoFromBibTeX(text)
	if info.IsEmpty() {
		return types.CanonicalPaper{}, fmt.Errorf("%w: no BibTeX entry", ErrNothingFound)
	}
	defer im.track("importing BibTeX: " + info.Title)()

	target := info.ImportURL
	if target == "" && info.DOI != "" {
		target = doiResolverBase + info.DOI
	}
	if target == "" {
		return im.complete(ctx, nil, info, nil)
	}

	res := im.crawler.Resolve(ctx, target, info)
	if res.Err != nil {
		im.log.WithError(res.Err).WithField("url", target).Info("no document for BibTeX entry")
	}
	return im.complete(ctx, nil, res.Info, res.Document)
}

// ImportPDF imports a document whose bytes are already at hand. name is
// used in progress messages only.
func (im *Importer) ImportPDF(ctx context.Context, name string, data []byte) (types.CanonicalPaper, error) {
	if len(data) == 0 {
		return types.CanonicalPaper{}, fmt.Errorf("%w: %s is empty", ErrNothingFound, name)
	}
	defer im.track("importing file: " + name)()
	return im.complete(ctx, nil, types.PaperInfo{}, data)
}

// ImportSearchResult runs the second import stage of a search hit and
// stores the outcome. A hit whose provider returned no document is crawled
// from its import URL.
func (im *Importer) ImportSearchResult(ctx context.Context, src *search.Source, result types.SearchResult) (types.CanonicalPaper, error) {
	defer im.track("importing: " + result.Title)()
	return im.importResult(ctx, src, result)
}

func (im *Importer) importResult(ctx context.Context, src *search.Source, result types.SearchResult) (types.CanonicalPaper, error) {
	log := im.log.WithFields(logrus.Fields{"provider": src.Label(), "title": result.Title})

	info, doc, err := src.Import(ctx, result)
	if err != nil {
		log.WithError(err).Warn("provider import failed, using search data")
		info = result.PaperInfo
	}
	if len(doc) == 0 && info.ImportURL != "" {
		res := im.crawler.Resolve(ctx, info.ImportURL, info)
		info, doc = res.Info, res.Document
	}
	if info.IsEmpty() && len(doc) == 0 {
		return types.CanonicalPaper{}, nothingFound(result.Title, err)
	}

	key := src.Provider().UniqueKey()
	var keys resolve.Keys
	if v := info.Identity(key); v != "" {
		keys = resolve.Keys{key: v}
	}
	return im.complete(ctx, keys, info, doc)
}

// Complete stores metadata and an optional document as one paper. PDF
// metadata fills only fields info lacks. When no title is known but a DOI
// is, BibTeX for the DOI is fetched first. The document is attached under
// a name derived from the paper's identifiers, then authors and the
// journal are recorded as library entities.
func (im *Importer) Complete(ctx context.Context, info types.PaperInfo, doc []byte) (types.CanonicalPaper, error) {
	return im.complete(ctx, nil, info, doc)
}

func (im *Importer) complete(ctx context.Context, keys resolve.Keys, info types.PaperInfo, doc []byte) (types.CanonicalPaper, error) {
	if info.IsEmpty() && len(doc) == 0 {
		return types.CanonicalPaper{}, ErrNothingFound
	}

	if len(doc) > 0 {
		info.FillMissing(pdfinfo.Extract(doc))
		info.FullTextMD5 = library.DocumentMD5(doc)
	}

	if info.Title == "" && info.DOI != "" {
		if text, err := im.FetchBibTeXForDOI(ctx, info.DOI); err != nil {
			im.log.WithError(err).WithField("doi", info.DOI).Debug("no BibTeX for DOI")
		} else {
			fetched := bibtex.PaperInfoFromBibTeX(text)
			fetched.FillMissing(info)
			info = fetched
		}
	}

	p, created, err := im.resolver.ResolveOrCreate(ctx, keys, info)
	if err != nil {
		return types.CanonicalPaper{}, err
	}
	log := im.log.WithFields(logrus.Fields{"paper": p.ID, "created": created})

	if len(doc) > 0 && p.FullTextPath == "" {
		err := im.lib.AttachDocument(ctx, &p, FileName(p), doc)
		switch {
		case errors.Is(err, library.ErrConflict):
			log.WithError(err).Warn("document already stored")
		case err != nil:
			return p, fmt.Errorf("storing document: %w", err)
		}
	}

	if err := im.normalizeEntities(ctx, &p); err != nil {
		return p, err
	}
	log.WithField("title", p.Title).Info("paper imported")
	return p, nil
}

// normalizeEntities records the authors and journal of p as shared
// entities when that has not been done yet. Newly recorded authors are
// linked to the institution of a BibTeX entry.
func (im *Importer) normalizeEntities(ctx context.Context, p *types.CanonicalPaper) error {
	if len(p.AuthorEntities) == 0 && len(p.Authors) > 0 {
		entities := make([]types.Entity, 0, len(p.Authors))
		for _, name := range p.Authors {
			if strings.TrimSpace(name) == "" {
				continue
			}
			e, err := im.lib.FindOrCreateAuthor(ctx, name)
			if err != nil {
				return fmt.Errorf("recording author %q: %w", name, err)
			}
			entities = append(entities, e)
		}
		if err := im.lib.SetAuthors(ctx, p.ID, entities); err != nil {
			return err
		}
		p.AuthorEntities = entities
		if err := im.linkInstitution(ctx, p); err != nil {
			return err
		}
	}

	if p.Source == nil && strings.TrimSpace(p.Journal) != "" {
		src, err := im.lib.FindOrCreateSource(ctx, p.Journal)
		if err != nil {
			return fmt.Errorf("recording journal %q: %w", p.Journal, err)
		}
		p.Source = &src
		if err := im.lib.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// linkInstitution records the institution named in the BibTeX of p, if
// any, as the organization of each of its authors.
func (im *Importer) linkInstitution(ctx context.Context, p *types.CanonicalPaper) error {
	name := bibtex.Institution(p.BibTeX)
	if name == "" || len(p.AuthorEntities) == 0 {
		return nil
	}
	org, err := im.lib.FindOrCreateOrganization(ctx, name)
	if err != nil {
		return fmt.Errorf("recording organization %q: %w", name, err)
	}
	for _, a := range p.AuthorEntities {
		if err := im.lib.AddAuthorOrganization(ctx, a.ID, org.ID); err != nil {
			return err
		}
	}
	return nil
}

func nothingFound(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrNothingFound, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrNothingFound, what, cause)
}
