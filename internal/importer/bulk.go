// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package importer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/paperlib/internal/search"
	"github.com/pdiddy/paperlib/pkg/types"
)

// Outcome is the result of importing one input of a batch.
type Outcome struct {
	Input string
	Paper types.CanonicalPaper
	Err   error
}

// BatchResult holds the outcomes of a batch import in input order.
type BatchResult struct {
	Outcomes []Outcome
}

// Imported returns the number of successful imports.
func (r BatchResult) Imported() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of failed imports.
func (r BatchResult) Failed() int {
	return len(r.Outcomes) - r.Imported()
}

// HasFailures reports whether any import failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed() > 0
}

// ImportSearchResults imports hits one after another under a single
// progress entry. Hits are matched to sources by label; a hit whose
// provider is not among sources fails. It continues after failures.
func (im *Importer) ImportSearchResults(ctx context.Context, sources []*search.Source, results []types.SearchResult, w io.Writer) BatchResult {
	defer im.track(fmt.Sprintf("Importing %d papers", len(results)))()

	var batch BatchResult
	for _, r := range results {
		o := Outcome{Input: r.Title}
		if ctx.Err() != nil {
			o.Err = ctx.Err()
		} else if src := search.Find(sources, r.Label); src == nil {
			o.Err = fmt.Errorf("no provider %q for %q", r.Label, r.Title)
		} else {
			o.Paper, o.Err = im.importResult(ctx, src, r)
		}
		report(w, o)
		batch.Outcomes = append(batch.Outcomes, o)
	}
	summarize(w, batch)
	return batch
}

// ImportURLs imports identifiers (URLs, DOIs or arXiv IDs) with at most
// the configured number of imports in flight. Each import is sequential
// end to end; only separate inputs overlap.
func (im *Importer) ImportURLs(ctx context.Context, inputs []string, w io.Writer) BatchResult {
	batch := BatchResult{Outcomes: make([]Outcome, len(inputs))}

	var wg sync.WaitGroup
	sem := make(chan struct{}, im.workers)
	for i, in := range inputs {
		wg.Add(1)
		go func(idx int, input string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			o := Outcome{Input: input}
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Paper, o.Err = im.ImportIdentifier(ctx, input)
			}
			batch.Outcomes[idx] = o
		}(i, in)
	}
	wg.Wait()

	for _, o := range batch.Outcomes {
		report(w, o)
	}
	summarize(w, batch)
	return batch
}

// ImportFiles imports PDF files. Directories are walked for files with a
// .pdf extension.
func (im *Importer) ImportFiles(ctx context.Context, paths []string, w io.Writer) (BatchResult, error) {
	files, err := pdfFiles(paths)
	if err != nil {
		return BatchResult{}, err
	}

	var batch BatchResult
	for _, path := range files {
		o := Outcome{Input: path}
		data, err := os.ReadFile(path)
		if err != nil {
			o.Err = fmt.Errorf("reading %s: %w", path, err)
		} else {
			o.Paper, o.Err = im.ImportPDF(ctx, filepath.Base(path), data)
		}
		report(w, o)
		batch.Outcomes = append(batch.Outcomes, o)
	}
	summarize(w, batch)
	return batch, nil
}

// pdfFiles expands paths to the PDF files they name or contain.
func pdfFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func report(w io.Writer, o Outcome) {
	if w == nil {
		return
	}
	if o.Err != nil {
		fmt.Fprintf(w, "failed:   %s (%v)\n", o.Input, o.Err)
		return
	}
	fmt.Fprintf(w, "imported: %s -> #%d %s\n", o.Input, o.Paper.ID, o.Paper.Title)
}

func summarize(w io.Writer, batch BatchResult) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "\nBatch summary: %d imported, %d failed (total: %d)\n",
		batch.Imported(), batch.Failed(), len(batch.Outcomes))
}
