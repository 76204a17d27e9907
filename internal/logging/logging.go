// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the logrus logger shared by every component.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/pkg/types"
)

// New returns a logger writing to w. The "prod" environment logs JSON at
// info level unless cfg.Level says otherwise; anything else logs text.
func New(cfg types.LogConfig, w io.Writer) (*logrus.Entry, error) {
	l := logrus.New()
	l.SetOutput(w)

	level := logrus.DebugLevel
	if cfg.Env == "prod" {
		l.Formatter = &logrus.JSONFormatter{}
		level = logrus.InfoLevel
	} else {
		l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	l.SetLevel(level)

	env := cfg.Env
	if env == "" {
		env = "dev"
	}
	return l.WithField("env", env), nil
}

// Discard returns a logger that drops everything. Tests and library
// callers that do not care about logs use it.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
