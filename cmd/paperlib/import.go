// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperlib/internal/importer"
	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/pkg/types"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import papers into the library",
	Long: `Import locates the full text and metadata of a paper and merges it into
the library. A paper already in the library (same DOI, PubMed id, URL,
document or title) is updated rather than duplicated; known fields are
never overwritten.`,
}

var importURLCmd = &cobra.Command{
	Use:   "url [urls or identifiers...]",
	Short: "Import from URLs, DOIs or arXiv IDs",
	Long: `Import each argument. URLs are crawled one hop deep for a PDF and a
BibTeX record; DOIs and arXiv IDs are turned into resolver URLs first.
Several arguments are imported concurrently (crawl.workers).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, store, err := newImporter()
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			p, err := im.ImportIdentifier(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printImported(cmd.OutOrStdout(), p)
			return nil
		}
		return batchErr(im.ImportURLs(cmd.Context(), args, cmd.OutOrStdout()))
	},
}

var importDOICmd = &cobra.Command{
	Use:   "doi [doi]",
	Short: "Import a paper by DOI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, store, err := newImporter()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := im.ImportDOI(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printImported(cmd.OutOrStdout(), p)
		return nil
	},
}

var importBibTeXCmd = &cobra.Command{
	Use:   "bibtex [file]",
	Short: "Import a BibTeX entry from a file or stdin",
	Long: `Import the first entry of a BibTeX file ("-" or no argument reads stdin).
The entry's url, or else its DOI, is crawled for the full text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		im, store, err := newImporter()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := im.ImportBibTeX(cmd.Context(), text)
		if err != nil {
			return err
		}
		printImported(cmd.OutOrStdout(), p)
		return nil
	},
}

var importPDFCmd = &cobra.Command{
	Use:   "pdf [files or directories...]",
	Short: "Import local PDF files",
	Long: `Import PDF files. Directories are searched recursively for *.pdf.
Metadata is read from each document; when it carries a DOI the BibTeX
record is fetched from the DOI resolver.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, store, err := newImporter()
		if err != nil {
			return err
		}
		defer store.Close()

		batch, err := im.ImportFiles(cmd.Context(), args, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return batchErr(batch)
	},
}

func init() {
	importCmd.AddCommand(importURLCmd, importDOICmd, importBibTeXCmd, importPDFCmd)
	rootCmd.AddCommand(importCmd)
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func printImported(w io.Writer, p types.CanonicalPaper) {
	fmt.Fprintf(w, "imported: %s\n", library.Summary(p))
	if p.FullTextPath != "" {
		fmt.Fprintf(w, "  document: %s\n", p.FullTextPath)
	}
}

func batchErr(batch importer.BatchResult) error {
	if !batch.HasFailures() {
		return nil
	}
	if batch.Imported() == 0 {
		return fmt.Errorf("%w: %d input(s) failed", importer.ErrNothingFound, batch.Failed())
	}
	return fmt.Errorf("%d input(s) failed", batch.Failed())
}
