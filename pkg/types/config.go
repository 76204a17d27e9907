// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that makes
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paperlib/0.1"). arXiv rejects requests without one.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond bounds the outgoing request rate (0 disables the limiter).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxBodyBytes caps the size of a response body (default 64 MiB).
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// CrawlConfig holds settings for the content crawler.
type CrawlConfig struct {
	// MaxLinks bounds the number of candidate links followed from one page
	// (0 means no bound beyond the page itself).
	MaxLinks int `json:"max_links" yaml:"max_links" mapstructure:"max_links"`

	// Workers is the number of URLs imported concurrently in bulk imports.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// SearchConfig holds settings for the search providers.
type SearchConfig struct {
	// Providers lists the enabled provider labels
	// (arxiv, pubmed, google_scholar, jstor).
	Providers []string `json:"providers" yaml:"providers" mapstructure:"providers"`

	// ArxivMaxResults is the arXiv max_results parameter (default 100).
	ArxivMaxResults int `json:"arxiv_max_results" yaml:"arxiv_max_results" mapstructure:"arxiv_max_results"`

	// JSTORMaxResults is the JSTOR maximumRecords parameter (default 20).
	JSTORMaxResults int `json:"jstor_max_results" yaml:"jstor_max_results" mapstructure:"jstor_max_results"`

	// NCBIAPIKey is an optional PubMed E-utilities key for higher rate limits.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`
}

// LibraryConfig holds settings for the sqlite-backed paper repository.
type LibraryConfig struct {
	// Dir is the library base directory (contains papers/ and library.db).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// LogConfig selects the logger format and level.
type LogConfig struct {
	// Env is "dev" (text output) or "prod" (JSON output).
	Env string `json:"env" yaml:"env" mapstructure:"env"`

	// Level is a logrus level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// Config groups the settings of every component.
type Config struct {
	HTTP    HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	Crawl   CrawlConfig   `json:"crawl" yaml:"crawl" mapstructure:"crawl"`
	Search  SearchConfig  `json:"search" yaml:"search" mapstructure:"search"`
	Library LibraryConfig `json:"library" yaml:"library" mapstructure:"library"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the settings used when no configuration file or
// environment override is present.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:           60 * time.Second,
			UserAgent:         "paperlib/0.1",
			RequestsPerSecond: 2,
			MaxRetries:        5,
			MaxBodyBytes:      64 << 20,
		},
		Crawl: CrawlConfig{
			MaxLinks: 20,
			Workers:  4,
		},
		Search: SearchConfig{
			Providers:       []string{"arxiv", "pubmed", "google_scholar", "jstor"},
			ArxivMaxResults: 100,
			JSTORMaxResults: 20,
		},
		Library: LibraryConfig{
			Dir: "library",
		},
		Log: LogConfig{
			Env:   "dev",
			Level: "info",
		},
	}
}
