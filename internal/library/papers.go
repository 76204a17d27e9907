// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/pkg/types"
)

const paperColumns = `id, title, authors, doi, pubmed_id, import_url, journal, volume, issue,
	year, pages, abstract, publisher, bibtex, extracted_text, full_text_md5, data,
	source_id, full_text_path, rating, read_count, created, updated`

// lookupColumn returns the column holding an identity field.
func lookupColumn(field types.IdentityField) (string, error) {
	switch field {
	case types.FieldID, types.FieldDOI, types.FieldPubMedID, types.FieldImportURL,
		types.FieldFullTextMD5, types.FieldTitle:
		return string(field), nil
	}
	return "", fmt.Errorf("unknown identity field %q", field)
}

// FindByField returns the paper whose field equals value. Title matches
// are exact; when several papers share a title the oldest wins. An empty
// value never matches.
func (s *Store) FindByField(ctx context.Context, field types.IdentityField, value string) (types.CanonicalPaper, error) {
	col, err := lookupColumn(field)
	if err != nil {
		return types.CanonicalPaper{}, err
	}
	if value == "" {
		return types.CanonicalPaper{}, ErrNotFound
	}

	var arg any = value
	if field == types.FieldID {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return types.CanonicalPaper{}, ErrNotFound
		}
		arg = id
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE `+col+` = ? ORDER BY id LIMIT 1`, arg)
	p, err := scanPaper(row)
	if err != nil {
		return types.CanonicalPaper{}, err
	}
	return s.loadRelations(ctx, p)
}

// Get returns the paper with the given id.
func (s *Store) Get(ctx context.Context, id int64) (types.CanonicalPaper, error) {
	return s.FindByField(ctx, types.FieldID, strconv.FormatInt(id, 10))
}

// Create inserts a new paper holding info. Identity fields that are not
// set are stored as empty strings.
func (s *Store) Create(ctx context.Context, info types.PaperInfo) (types.CanonicalPaper, error) {
	now := time.Now().UTC()
	p := types.CanonicalPaper{PaperInfo: info, Created: now, Updated: now}

	authors, data, err := encodeLists(info)
	if err != nil {
		return types.CanonicalPaper{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (title, authors, doi, pubmed_id, import_url, journal, volume, issue,
			year, pages, abstract, publisher, bibtex, extracted_text, full_text_md5, data,
			created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Title, authors, info.DOI, info.PubMedID, info.ImportURL, info.Journal,
		info.Volume, info.Issue, info.Year, info.Pages, info.Abstract, info.Publisher,
		info.BibTeX, info.ExtractedText, info.FullTextMD5, data,
		formatTime(now), formatTime(now))
	if err != nil {
		return types.CanonicalPaper{}, fmt.Errorf("creating paper: %w", mapErr(err))
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return types.CanonicalPaper{}, fmt.Errorf("reading paper id: %w", err)
	}
	s.log.WithFields(logrus.Fields{"paper": p.ID, "title": info.Title}).Debug("paper created")
	return p, nil
}

// Save writes every stored field of p and bumps its Updated time. The
// source reference is taken from p.Source; author entities are managed
// with SetAuthors.
func (s *Store) Save(ctx context.Context, p *types.CanonicalPaper) error {
	authors, data, err := encodeLists(p.PaperInfo)
	if err != nil {
		return err
	}
	var sourceID sql.NullInt64
	if p.Source != nil && p.Source.ID != 0 {
		sourceID = sql.NullInt64{Int64: p.Source.ID, Valid: true}
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET title = ?, authors = ?, doi = ?, pubmed_id = ?, import_url = ?,
			journal = ?, volume = ?, issue = ?, year = ?, pages = ?, abstract = ?,
			publisher = ?, bibtex = ?, extracted_text = ?, full_text_md5 = ?, data = ?,
			source_id = ?, full_text_path = ?, rating = ?, read_count = ?, updated = ?
		WHERE id = ?`,
		p.Title, authors, p.DOI, p.PubMedID, p.ImportURL, p.Journal, p.Volume, p.Issue,
		p.Year, p.Pages, p.Abstract, p.Publisher, p.BibTeX, p.ExtractedText,
		p.FullTextMD5, data, sourceID, p.FullTextPath, p.Rating, p.ReadCount,
		formatTime(now), p.ID)
	if err != nil {
		return fmt.Errorf("saving paper %d: %w", p.ID, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving paper %d: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("saving paper %d: %w", p.ID, ErrNotFound)
	}
	p.Updated = now
	return nil
}

// List returns every paper in id order.
func (s *Store) List(ctx context.Context) ([]types.CanonicalPaper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paperColumns+` FROM papers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var papers []types.CanonicalPaper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}

	for i := range papers {
		if papers[i], err = s.loadRelations(ctx, papers[i]); err != nil {
			return nil, err
		}
	}
	return papers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (types.CanonicalPaper, error) {
	var (
		p                types.CanonicalPaper
		authors, data    string
		sourceID         sql.NullInt64
		created, updated string
	)
	err := row.Scan(&p.ID, &p.Title, &authors, &p.DOI, &p.PubMedID, &p.ImportURL,
		&p.Journal, &p.Volume, &p.Issue, &p.Year, &p.Pages, &p.Abstract, &p.Publisher,
		&p.BibTeX, &p.ExtractedText, &p.FullTextMD5, &data, &sourceID, &p.FullTextPath,
		&p.Rating, &p.ReadCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("reading paper: %w", err)
	}

	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return p, fmt.Errorf("decoding authors of paper %d: %w", p.ID, err)
	}
	if len(p.Authors) == 0 {
		p.Authors = nil
	}
	if data != "" && data != "{}" {
		if err := json.Unmarshal([]byte(data), &p.Data); err != nil {
			return p, fmt.Errorf("decoding data of paper %d: %w", p.ID, err)
		}
	}
	if sourceID.Valid {
		p.Source = &types.Entity{ID: sourceID.Int64}
	}
	p.Created, _ = time.Parse(time.RFC3339Nano, created)
	p.Updated, _ = time.Parse(time.RFC3339Nano, updated)
	return p, nil
}

// loadRelations fills the source name and the author entities of p.
func (s *Store) loadRelations(ctx context.Context, p types.CanonicalPaper) (types.CanonicalPaper, error) {
	if p.Source != nil {
		err := s.db.QueryRowContext(ctx, `SELECT name FROM sources WHERE id = ?`, p.Source.ID).Scan(&p.Source.Name)
		if err != nil {
			return p, fmt.Errorf("loading source of paper %d: %w", p.ID, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name FROM paper_authors pa JOIN authors a ON a.id = pa.author_id
		WHERE pa.paper_id = ? ORDER BY pa.position`, p.ID)
	if err != nil {
		return p, fmt.Errorf("loading authors of paper %d: %w", p.ID, err)
	}
	defer rows.Close()
	p.AuthorEntities = nil
	for rows.Next() {
		var e types.Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return p, fmt.Errorf("loading authors of paper %d: %w", p.ID, err)
		}
		p.AuthorEntities = append(p.AuthorEntities, e)
	}
	return p, rows.Err()
}

func encodeLists(info types.PaperInfo) (authors, data string, err error) {
	list := info.Authors
	if list == nil {
		list = []string{}
	}
	a, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("encoding authors: %w", err)
	}
	d := []byte("{}")
	if len(info.Data) > 0 {
		if d, err = json.Marshal(info.Data); err != nil {
			return "", "", fmt.Errorf("encoding data: %w", err)
		}
	}
	return string(a), string(d), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Summary returns a one-line description of p for listings.
func Summary(p types.CanonicalPaper) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d  %s", p.ID, p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, " (%s", p.Authors[0])
		if len(p.Authors) > 1 {
			b.WriteString(" et al.")
		}
		b.WriteString(")")
	}
	if p.Year != "" {
		fmt.Fprintf(&b, " %s", p.Year)
	}
	if p.DOI != "" {
		fmt.Fprintf(&b, " doi:%s", p.DOI)
	}
	return b.String()
}
