// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect and maintain the local library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every paper in the library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		papers, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, p := range papers {
			fmt.Fprintln(w, library.Summary(p))
		}
		fmt.Fprintf(w, "\n%d paper(s)\n", len(papers))
		return nil
	},
}

var libraryShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a paper record as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		store, err := openLibrary()
		if err != nil {
			return err
		}
		defer store.Close()

		p, err := store.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("paper %d: %w", id, err)
		}
		data, err := yaml.Marshal(&p)
		if err != nil {
			return fmt.Errorf("marshaling paper %d: %w", id, err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// entityCommands builds the list and merge subcommands for one entity kind.
func entityCommands(
	kind string,
	list func(*library.Store, context.Context) ([]types.Entity, error),
	merge func(*library.Store, context.Context, int64, int64) error,
) []*cobra.Command {
	listCmd := &cobra.Command{
		Use:   kind + "s",
		Short: fmt.Sprintf("List %ss with their ids", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLibrary()
			if err != nil {
				return err
			}
			defer store.Close()

			entities, err := list(store, cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entities {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6d %s\n", e.ID, e.Name)
			}
			return nil
		},
	}

	mergeCmd := &cobra.Command{
		Use:   fmt.Sprintf("merge-%ss [keep-id] [duplicate-id]", kind),
		Short: fmt.Sprintf("Merge a duplicate %s into another", kind),
		Long: fmt.Sprintf(`Every reference to the duplicate %[1]s is moved to the kept %[1]s,
then the duplicate is deleted.`, kind),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := parseID(args[0])
			if err != nil {
				return err
			}
			dup, err := parseID(args[1])
			if err != nil {
				return err
			}
			store, err := openLibrary()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := merge(store, cmd.Context(), keep, dup); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %s %d into %d\n", kind, dup, keep)
			return nil
		},
	}
	return []*cobra.Command{listCmd, mergeCmd}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, libraryShowCmd)
	libraryCmd.AddCommand(entityCommands("author", (*library.Store).ListAuthors, (*library.Store).MergeAuthors)...)
	libraryCmd.AddCommand(entityCommands("source", (*library.Store).ListSources, (*library.Store).MergeSources)...)
	libraryCmd.AddCommand(entityCommands("organization", (*library.Store).ListOrganizations, (*library.Store).MergeOrganizations)...)
	rootCmd.AddCommand(libraryCmd)
}
