// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and contact details from a directory of
// plain-text files and an optional .env file. Each file in the directory
// represents one secret: the filename is the key name and the file
// contents (trimmed) are the value.
//
// Supported keys: ncbi-api-key, contact-email.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

// Key names.
const (
	NCBIAPIKey   = "ncbi-api-key"
	ContactEmail = "contact-email"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped. log may be nil.
func Load(dir string, log logrus.FieldLogger) (map[string]string, error) {
	if log == nil {
		log = logging.Discard()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("secret", name).Warn("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnv reads a .env file. Variable names are mapped to key names by
// lowercasing and replacing underscores with hyphens, so NCBI_API_KEY
// becomes ncbi-api-key. A missing file yields an empty map.
func LoadEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if v = strings.TrimSpace(v); v != "" {
			out[strings.ReplaceAll(strings.ToLower(k), "_", "-")] = v
		}
	}
	return out, nil
}

// LoadAll merges the .env file at envPath with the directory dir. Files in
// dir take precedence.
func LoadAll(dir, envPath string, log logrus.FieldLogger) (map[string]string, error) {
	merged, err := LoadEnv(envPath)
	if err != nil {
		return nil, err
	}
	files, err := Load(dir, log)
	if err != nil {
		return nil, err
	}
	for k, v := range files {
		merged[k] = v
	}
	return merged, nil
}

// Apply fills configuration from secrets. Values already configured are
// kept. A contact email is appended to the User-Agent as a mailto link.
func Apply(cfg *types.Config, s map[string]string) {
	if cfg.Search.NCBIAPIKey == "" {
		cfg.Search.NCBIAPIKey = s[NCBIAPIKey]
	}
	if email := s[ContactEmail]; email != "" && !strings.Contains(cfg.HTTP.UserAgent, "mailto:") {
		cfg.HTTP.UserAgent = strings.TrimSpace(cfg.HTTP.UserAgent + " (mailto:" + email + ")")
	}
}
