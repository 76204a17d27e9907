// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/pkg/types"
)

// entityTable names the tables holding named entities.
type entityTable string

const (
	authorsTable       entityTable = "authors"
	sourcesTable       entityTable = "sources"
	organizationsTable entityTable = "organizations"
)

// FindOrCreateAuthor returns the author called name, creating it if needed.
func (s *Store) FindOrCreateAuthor(ctx context.Context, name string) (types.Entity, error) {
	return s.findOrCreate(ctx, authorsTable, name)
}

// FindOrCreateSource returns the source (journal) called name, creating it
// if needed.
func (s *Store) FindOrCreateSource(ctx context.Context, name string) (types.Entity, error) {
	return s.findOrCreate(ctx, sourcesTable, name)
}

// FindOrCreateOrganization returns the organization called name, creating
// it if needed.
func (s *Store) FindOrCreateOrganization(ctx context.Context, name string) (types.Entity, error) {
	return s.findOrCreate(ctx, organizationsTable, name)
}

func (s *Store) findOrCreate(ctx context.Context, table entityTable, name string) (types.Entity, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return types.Entity{}, fmt.Errorf("empty %s name", table)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+string(table)+` (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return types.Entity{}, fmt.Errorf("creating %s %q: %w", table, name, err)
	}
	e := types.Entity{Name: name}
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM `+string(table)+` WHERE name = ?`, name).Scan(&e.ID); err != nil {
		return types.Entity{}, fmt.Errorf("reading %s %q: %w", table, name, err)
	}
	return e, nil
}

// ListAuthors returns every author in name order.
func (s *Store) ListAuthors(ctx context.Context) ([]types.Entity, error) {
	return s.listEntities(ctx, authorsTable)
}

// ListSources returns every source in name order.
func (s *Store) ListSources(ctx context.Context) ([]types.Entity, error) {
	return s.listEntities(ctx, sourcesTable)
}

// ListOrganizations returns every organization in name order.
func (s *Store) ListOrganizations(ctx context.Context) ([]types.Entity, error) {
	return s.listEntities(ctx, organizationsTable)
}

func (s *Store) listEntities(ctx context.Context, table entityTable) ([]types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM `+string(table)+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	defer rows.Close()
	var out []types.Entity
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("listing %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetAuthors replaces the ordered author entities of a paper.
func (s *Store) SetAuthors(ctx context.Context, paperID int64, authors []types.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_authors WHERE paper_id = ?`, paperID); err != nil {
		return fmt.Errorf("clearing authors of paper %d: %w", paperID, err)
	}
	for i, a := range authors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paper_authors (paper_id, author_id, position) VALUES (?, ?, ?)`,
			paperID, a.ID, i); err != nil {
			return fmt.Errorf("adding author %d to paper %d: %w", a.ID, paperID, err)
		}
	}
	return tx.Commit()
}

// AddAuthorOrganization records that an author belongs to an organization.
func (s *Store) AddAuthorOrganization(ctx context.Context, authorID, organizationID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO author_organizations (author_id, organization_id) VALUES (?, ?)`,
		authorID, organizationID)
	if err != nil {
		return fmt.Errorf("linking author %d to organization %d: %w", authorID, organizationID, err)
	}
	return nil
}

// AuthorOrganizations returns the organizations of an author.
func (s *Store) AuthorOrganizations(ctx context.Context, authorID int64) ([]types.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.name FROM author_organizations ao JOIN organizations o ON o.id = ao.organization_id
		WHERE ao.author_id = ? ORDER BY o.name`, authorID)
	if err != nil {
		return nil, fmt.Errorf("loading organizations of author %d: %w", authorID, err)
	}
	defer rows.Close()
	var out []types.Entity
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MergeAuthors folds the author dupID into keepID: every paper and
// organization of the duplicate moves to the kept author and the
// duplicate is deleted, all in one transaction.
func (s *Store) MergeAuthors(ctx context.Context, keepID, dupID int64) error {
	return s.merge(ctx, authorsTable, keepID, dupID, []string{
		`UPDATE paper_authors SET author_id = ?1 WHERE author_id = ?2`,
		// A paper listing both authors keeps the earlier position only.
		`DELETE FROM paper_authors WHERE author_id = ?1 AND EXISTS (
			SELECT 1 FROM paper_authors p2
			WHERE p2.paper_id = paper_authors.paper_id AND p2.author_id = ?1
			AND p2.position < paper_authors.position)`,
		`INSERT OR IGNORE INTO author_organizations (author_id, organization_id)
			SELECT ?1, organization_id FROM author_organizations WHERE author_id = ?2`,
		`DELETE FROM author_organizations WHERE author_id = ?2`,
	})
}

// MergeSources folds the source dupID into keepID.
func (s *Store) MergeSources(ctx context.Context, keepID, dupID int64) error {
	return s.merge(ctx, sourcesTable, keepID, dupID, []string{
		`UPDATE papers SET source_id = ?1 WHERE source_id = ?2`,
	})
}

// MergeOrganizations folds the organization dupID into keepID.
func (s *Store) MergeOrganizations(ctx context.Context, keepID, dupID int64) error {
	return s.merge(ctx, organizationsTable, keepID, dupID, []string{
		`INSERT OR IGNORE INTO author_organizations (author_id, organization_id)
			SELECT author_id, ?1 FROM author_organizations WHERE organization_id = ?2`,
		`DELETE FROM author_organizations WHERE organization_id = ?2`,
	})
}

func (s *Store) merge(ctx context.Context, table entityTable, keepID, dupID int64, repoint []string) error {
	if keepID == dupID {
		return fmt.Errorf("cannot merge %s %d into itself", table, keepID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []int64{keepID, dupID} {
		var found int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM `+string(table)+` WHERE id = ?`, id).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("reading %s %d: %w", table, id, err)
		}
	}

	// Statements bind ?1 to the kept id and ?2 to the duplicate.
	for _, stmt := range repoint {
		if _, err := tx.ExecContext(ctx, stmt, keepID, dupID); err != nil {
			return fmt.Errorf("merging %s %d into %d: %w", table, dupID, keepID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(table)+` WHERE id = ?`, dupID); err != nil {
		return fmt.Errorf("deleting %s %d: %w", table, dupID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing merge: %w", err)
	}

	s.log.WithFields(logrus.Fields{"kind": string(table), "keep": keepID, "dup": dupID}).Info("entities merged")
	return nil
}
