// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawler fetches a URL, classifies the response, and for HTML
// pages follows candidate PDF and BibTeX links one hop further until both
// metadata and a document are found.
package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/bibtex"
	"github.com/pdiddy/paperlib/internal/httputil"
	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

// ErrNotFound is the soft failure reported when neither metadata nor a
// document could be obtained.
var ErrNotFound = errors.New("no document or metadata found")

// Fetcher performs GET requests. *httputil.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*httputil.Response, error)
}

// Kind is the classification of a fetched resource.
type Kind int

const (
	KindOther Kind = iota
	KindPDF
	KindBibTeX
	KindHTML
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindBibTeX:
		return "bibtex"
	case KindHTML:
		return "html"
	}
	return "other"
}

// Classify inspects the declared content type and, where the type is
// missing or generic, the body itself.
func Classify(resp *httputil.Response) Kind {
	switch mt := resp.MediaType(); mt {
	case "application/pdf":
		return KindPDF
	case "application/octet-stream":
		if LooksLikePDF(resp.Body) {
			return KindPDF
		}
	case "text/x-bibtex", "application/x-bibtex":
		return KindBibTeX
	case "text/html", "application/xhtml+xml":
		return KindHTML
	}
	if LooksLikeBibTeX(resp.Body) {
		return KindBibTeX
	}
	return KindOther
}

// LooksLikePDF reports whether body starts with the PDF magic number.
func LooksLikePDF(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("%PDF"))
}

// LooksLikeBibTeX reports whether the first non-whitespace byte is '@'.
func LooksLikeBibTeX(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\f\v\ufeff")
	return len(trimmed) > 0 && trimmed[0] == '@'
}

// Result is the outcome of one top-level resolution.
type Result struct {
	Info     types.PaperInfo
	Document []byte

	// URL is the final URL of the top-level request.
	URL string

	// Err is a soft failure: a transport error on the top-level URL or
	// ErrNotFound. Info and Document still carry whatever was obtained.
	Err error
}

// Complete reports whether both metadata and a document were obtained.
func (r Result) Complete() bool {
	return !r.Info.IsEmpty() && len(r.Document) > 0
}

// Crawler resolves URLs to paper metadata and documents.
type Crawler struct {
	client   Fetcher
	maxLinks int
	log      logrus.FieldLogger
}

// New returns a Crawler. log may be nil.
func New(client Fetcher, cfg types.CrawlConfig, log logrus.FieldLogger) *Crawler {
	if log == nil {
		log = logging.Discard()
	}
	return &Crawler{client: client, maxLinks: cfg.MaxLinks, log: log}
}

// ResolveAsync runs Resolve in a goroutine and calls done exactly once
// with its result.
func (c *Crawler) ResolveAsync(ctx context.Context, rawURL string, known types.PaperInfo, done func(Result)) {
	go func() {
		var res Result
		defer func() {
			if rec := recover(); rec != nil {
				res = Result{Info: known, URL: rawURL, Err: fmt.Errorf("resolving %s: %v", rawURL, rec)}
			}
			done(res)
		}()
		res = c.Resolve(ctx, rawURL, known)
	}()
}

// Resolve fetches rawURL and returns the metadata and document it leads
// to. known is the metadata already available to the caller; it is kept
// unless it was empty and BibTeX was found. Resolve never panics on bad
// input and never follows HTML found behind a candidate link.
func (c *Crawler) Resolve(ctx context.Context, rawURL string, known types.PaperInfo) Result {
	log := c.log.WithField("url", rawURL)
	res := Result{Info: known, URL: rawURL}

	resp, err := c.client.Get(ctx, rawURL, nil)
	if err != nil {
		log.WithError(err).Warn("fetch failed")
		res.Err = err
		return res
	}
	res.URL = resp.URL

	visited := map[string]bool{rawURL: true, resp.URL: true}

	switch kind := Classify(resp); kind {
	case KindPDF:
		res.Document = resp.Body
	case KindBibTeX:
		if known.IsEmpty() {
			res.Info = bibtex.PaperInfoFromBibTeX(string(resp.Body))
		}
	case KindHTML:
		links, err := ExtractLinks(resp.URL, resp.Body)
		if err != nil {
			log.WithError(err).Debug("cannot read page")
			break
		}
		log.WithField("candidates", len(links)).Debug("searching page for links")
		res.Info, res.Document = c.follow(ctx, links, visited, res.Info, nil)
	default:
		log.WithField("content_type", resp.MediaType()).Info("unhandled content type")
	}

	if res.Info.IsEmpty() && len(res.Document) == 0 {
		res.Err = ErrNotFound
	}
	return res
}

// follow visits candidate links in order until both info and a document
// are present. Only PDF and BibTeX responses are used.
func (c *Crawler) follow(ctx context.Context, links []Link, visited map[string]bool, info types.PaperInfo, doc []byte) (types.PaperInfo, []byte) {
	fetched := 0
	for _, l := range links {
		if !info.IsEmpty() && len(doc) > 0 {
			break
		}
		if c.maxLinks > 0 && fetched >= c.maxLinks {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if visited[l.URL] {
			continue
		}
		visited[l.URL] = true
		fetched++

		log := c.log.WithField("url", l.URL)
		resp, err := c.client.Get(ctx, l.URL, nil)
		if err != nil {
			log.WithError(err).Debug("candidate fetch failed")
			continue
		}
		visited[resp.URL] = true

		switch Classify(resp) {
		case KindPDF:
			if len(doc) == 0 {
				log.Debug("found document")
				doc = resp.Body
			}
		case KindBibTeX:
			if info.IsEmpty() {
				log.Debug("found bibtex")
				info = bibtex.PaperInfoFromBibTeX(string(resp.Body))
			}
		}
	}
	return info, doc
}
