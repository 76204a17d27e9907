// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperlib CLI: importing papers
// from URLs, DOIs, BibTeX and PDFs, searching bibliographic providers, and
// maintaining the local library.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperlib/internal/httputil"
	"github.com/pdiddy/paperlib/internal/importer"
	"github.com/pdiddy/paperlib/internal/library"
	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/internal/progress"
	"github.com/pdiddy/paperlib/internal/secrets"
	"github.com/pdiddy/paperlib/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Loaded in PersistentPreRunE.
var (
	cfg types.Config
	log *logrus.Entry
)

// rootCmd is the base command for the paperlib CLI.
var rootCmd = &cobra.Command{
	Use:   "paperlib",
	Short: "Import, search and deduplicate academic papers",
	Long: `paperlib maintains a personal reference library. It imports papers from
URLs, DOIs, pasted BibTeX and local PDFs, searches arXiv, PubMed, Google
Scholar and JSTOR, and merges everything it finds into one record per paper.

The library lives in a directory holding library.db and a papers/ folder
with the full-text documents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		log, err = logging.New(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}

		s, err := secrets.LoadAll(".secrets/", ".env", log)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.WithField("keys", keys).Debug("loaded secrets")
		}
		secrets.Apply(&cfg, s)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperlib.yaml or ~/.config/paperlib/paperlib.yaml)")
	rootCmd.PersistentFlags().String("library", "", "library directory (overrides library.dir)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("library.dir", rootCmd.PersistentFlags().Lookup("library"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperlib")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperlib"))
		}
	}

	viper.SetEnvPrefix("PAPERLIB")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, importer.ErrNothingFound) {
			fmt.Fprintln(os.Stderr, "No document or metadata could be found.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// newClient builds the shared HTTP client.
func newClient() *httputil.Client {
	return httputil.NewClient(cfg.HTTP, httputil.WithLogger(log))
}

// openLibrary opens the configured library.
func openLibrary() (*library.Store, error) {
	return library.Open(cfg.Library, log)
}

// newImporter opens the library and builds an Importer over it. The
// caller closes the returned store.
func newImporter() (*importer.Importer, *library.Store, error) {
	store, err := openLibrary()
	if err != nil {
		return nil, nil, err
	}
	notifier := progress.LogNotifier{Log: log}
	return importer.New(store, newClient(), cfg.Crawl, notifier, log), store, nil
}
