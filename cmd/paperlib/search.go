// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperlib/internal/search"
	"github.com/pdiddy/paperlib/pkg/types"
)

var (
	searchProviders []string
	searchFormat    string
	searchSave      string
	searchLoad      string
	searchImport    []int
	searchImportAll bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search bibliographic providers",
	Long: `Search queries the enabled providers concurrently and prints the merged
results. Hits sharing a DOI or a title are shown once.

Provider-specific syntax is passed through unchanged, for example
"au:lecun" for arXiv or "author:smith" for JSTOR.

Results can be saved with --save and reloaded later with --load, which
skips the providers entirely. --import imports hits by their 1-based
position in the output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" && searchLoad == "" {
			return search.ErrEmptyQuery
		}

		sc := cfg.Search
		if len(searchProviders) > 0 {
			sc.Providers = searchProviders
		}
		sources, err := search.NewSources(sc, newClient(), log)
		if err != nil {
			return err
		}

		var out search.Output
		if searchLoad != "" {
			qf, err := search.ReadQueryFile(searchLoad)
			if err != nil {
				return err
			}
			qf.Restore(sources)
			out = qf.Output()
			query = qf.Query
		} else {
			out, err = search.SearchAll(cmd.Context(), sources, query, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}

		if err := writeResults(cmd.OutOrStdout(), out); err != nil {
			return err
		}

		if searchSave != "" {
			if err := search.WriteQueryFile(searchSave, query, sc.Providers, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d result(s) to %s\n", len(out.Results), searchSave)
		}

		selected, err := selectResults(out.Results, searchImport, searchImportAll)
		if err != nil || len(selected) == 0 {
			return err
		}

		im, store, err := newImporter()
		if err != nil {
			return err
		}
		defer store.Close()
		return batchErr(im.ImportSearchResults(cmd.Context(), sources, selected, cmd.OutOrStdout()))
	},
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchProviders, "providers", nil,
		fmt.Sprintf("providers to query (%s); default from search.providers", strings.Join(search.Labels, ", ")))
	searchCmd.Flags().StringVar(&searchFormat, "format", "table", "output format: table, json, csl")
	searchCmd.Flags().StringVar(&searchSave, "save", "", "save the query and results to a YAML file")
	searchCmd.Flags().StringVar(&searchLoad, "load", "", "load results from a saved YAML file instead of searching")
	searchCmd.Flags().IntSliceVar(&searchImport, "import", nil, "import the results at these positions (1-based)")
	searchCmd.Flags().BoolVar(&searchImportAll, "import-all", false, "import every result")
	rootCmd.AddCommand(searchCmd)
}

func writeResults(w io.Writer, out search.Output) error {
	switch searchFormat {
	case "table":
		search.FormatTable(out, w)
		return nil
	case "json":
		return search.FormatJSON(out, w)
	case "csl":
		return search.FormatCSL(out, w)
	}
	return fmt.Errorf("unknown format %q (want table, json or csl)", searchFormat)
}

// selectResults picks results by 1-based position.
func selectResults(results []types.SearchResult, positions []int, all bool) ([]types.SearchResult, error) {
	if all {
		return results, nil
	}
	var selected []types.SearchResult
	for _, pos := range positions {
		if pos < 1 || pos > len(results) {
			return nil, fmt.Errorf("--import position %d out of range (1-%d)", pos, len(results))
		}
		selected = append(selected, results[pos-1])
	}
	return selected, nil
}
