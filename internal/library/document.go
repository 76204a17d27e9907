// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/pkg/types"
)

// DocumentMD5 returns the hex md5 digest used to identify full-text files.
func DocumentMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// AttachDocument stores data as the full text of p under the library's
// papers directory and records its path and digest on the paper. A
// document whose digest already belongs to another paper is rejected with
// ErrConflict and nothing is written. When filename is already taken by
// another paper's document, the paper id is appended to the stem.
func (s *Store) AttachDocument(ctx context.Context, p *types.CanonicalPaper, filename string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("attaching document to paper %d: empty document", p.ID)
	}
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return fmt.Errorf("attaching document to paper %d: invalid file name", p.ID)
	}

	sum := DocumentMD5(data)
	if other, err := s.FindByField(ctx, types.FieldFullTextMD5, sum); err == nil && other.ID != p.ID {
		return fmt.Errorf("document already stored for paper %d: %w", other.ID, ErrConflict)
	}

	rel, err := s.freeDocumentName(ctx, p, filename, sum)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, rel), data); err != nil {
		return err
	}

	prevPath, prevSum := p.FullTextPath, p.FullTextMD5
	p.FullTextPath = rel
	p.FullTextMD5 = sum
	if err := s.Save(ctx, p); err != nil {
		p.FullTextPath, p.FullTextMD5 = prevPath, prevSum
		return err
	}
	s.log.WithFields(logrus.Fields{"paper": p.ID, "path": rel, "bytes": len(data)}).Info("document attached")
	return nil
}

// freeDocumentName returns the path, relative to the library, under which
// p's document can be written without replacing another paper's file.
func (s *Store) freeDocumentName(ctx context.Context, p *types.CanonicalPaper, filename, sum string) (string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for n := 0; n < 100; n++ {
		name := filename
		switch {
		case n == 1:
			name = fmt.Sprintf("%s-%d%s", stem, p.ID, ext)
		case n > 1:
			name = fmt.Sprintf("%s-%d-%d%s", stem, p.ID, n, ext)
		}
		rel := filepath.Join(documentsDir, name)
		taken, err := s.documentTaken(ctx, p, rel, sum)
		if err != nil {
			return "", err
		}
		if !taken {
			return rel, nil
		}
	}
	return "", fmt.Errorf("attaching document to paper %d: no free file name for %s", p.ID, filename)
}

// documentTaken reports whether rel belongs to another paper, or exists on
// disk with content other than sum.
func (s *Store) documentTaken(ctx context.Context, p *types.CanonicalPaper, rel, sum string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM papers WHERE full_text_path = ? AND id <> ? LIMIT 1`, rel, p.ID).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("checking document path %s: %w", rel, err)
	}
	if rel == p.FullTextPath {
		return false, nil
	}
	existing, err := os.ReadFile(filepath.Join(s.dir, rel))
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist), nil
	}
	return DocumentMD5(existing) != sum, nil
}

// DocumentPath returns the absolute path of the stored full text of p, or
// the empty string when it has none.
func (s *Store) DocumentPath(p types.CanonicalPaper) string {
	if p.FullTextPath == "" {
		return ""
	}
	return filepath.Join(s.dir, p.FullTextPath)
}

// writeFileAtomic writes data to a temp file next to destPath and renames
// it into place.
func writeFileAtomic(destPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".document-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing document: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
