// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/paperlib/pkg/types"
)

// envKeyReplacer maps config keys to variable names: http.user_agent is
// read from PAPERLIB_HTTP_USER_AGENT.
var envKeyReplacer = strings.NewReplacer(".", "_")

// setDefaults registers every configuration key so environment variables
// can override keys absent from the config file.
func setDefaults(d types.Config) {
	defaults := map[string]any{
		"http.timeout":             d.HTTP.Timeout,
		"http.user_agent":          d.HTTP.UserAgent,
		"http.requests_per_second": d.HTTP.RequestsPerSecond,
		"http.max_retries":         d.HTTP.MaxRetries,
		"http.max_body_bytes":      d.HTTP.MaxBodyBytes,
		"crawl.max_links":          d.Crawl.MaxLinks,
		"crawl.workers":            d.Crawl.Workers,
		"search.providers":         d.Search.Providers,
		"search.arxiv_max_results": d.Search.ArxivMaxResults,
		"search.jstor_max_results": d.Search.JSTORMaxResults,
		"search.ncbi_api_key":      d.Search.NCBIAPIKey,
		"library.dir":              d.Library.Dir,
		"log.env":                  d.Log.Env,
		"log.level":                d.Log.Level,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig decodes the merged configuration.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}
