// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library is the sqlite-backed paper repository. It stores
// canonical papers and the normalized author, source (journal) and
// organization entities they refer to, and keeps full-text documents under
// the library directory.
//
// At most one paper holds a given non-empty DOI, PubMed id, import URL or
// full-text hash; the database enforces this with partial unique indexes
// and violations surface as ErrConflict.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

const (
	documentsDir = "papers"
	dbFile       = "library.db"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would give a second paper the
	// same identifying value.
	ErrConflict = errors.New("identity conflict")
)

// Store manages the library database and document directory.
type Store struct {
	db  *sql.DB
	dir string
	log logrus.FieldLogger
}

// Open opens or creates the library at cfg.Dir. The database lives at
// cfg.Dir/library.db and documents under cfg.Dir/papers. log may be nil.
func Open(cfg types.LibraryConfig, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, documentsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.WithField("db", dbPath).Debug("library opened")
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the library base directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS author_organizations (
			author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
			organization_id INTEGER NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			PRIMARY KEY (author_id, organization_id)
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			doi TEXT NOT NULL DEFAULT '',
			pubmed_id TEXT NOT NULL DEFAULT '',
			import_url TEXT NOT NULL DEFAULT '',
			journal TEXT NOT NULL DEFAULT '',
			volume TEXT NOT NULL DEFAULT '',
			issue TEXT NOT NULL DEFAULT '',
			year TEXT NOT NULL DEFAULT '',
			pages TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			publisher TEXT NOT NULL DEFAULT '',
			bibtex TEXT NOT NULL DEFAULT '',
			extracted_text TEXT NOT NULL DEFAULT '',
			full_text_md5 TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '{}',
			source_id INTEGER REFERENCES sources(id) ON DELETE SET NULL,
			full_text_path TEXT NOT NULL DEFAULT '',
			rating INTEGER NOT NULL DEFAULT 0,
			read_count INTEGER NOT NULL DEFAULT 0,
			created TEXT NOT NULL,
			updated TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi) WHERE doi <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_pubmed_id ON papers(pubmed_id) WHERE pubmed_id <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_import_url ON papers(import_url) WHERE import_url <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_full_text_md5 ON papers(full_text_md5) WHERE full_text_md5 <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_papers_title ON papers(title)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_source_id ON papers(source_id)`,
		`CREATE TABLE IF NOT EXISTS paper_authors (
			paper_id INTEGER NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			author_id INTEGER NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			PRIMARY KEY (paper_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_authors_author_id ON paper_authors(author_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// mapErr turns sqlite unique-constraint violations into ErrConflict.
func mapErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
