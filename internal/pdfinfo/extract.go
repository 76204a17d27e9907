// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfinfo extracts a partial PaperInfo from raw PDF bytes: the
// document-information dictionary, the plain text, and a DOI scraped from
// the text when the metadata carries none. Every step is best-effort.
package pdfinfo

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paperlib/internal/logging"
	"github.com/pdiddy/paperlib/pkg/types"
)

// maxTextBytes bounds the extracted text kept on the record.
const maxTextBytes = 1 << 20

var textDOI = regexp.MustCompile(`(?i)doi:\s*(10\.\d+/\S+)`)

// Extractor reads PDF documents. The zero value is usable and discards
// log output.
type Extractor struct {
	Log logrus.FieldLogger
}

// Extract is Extractor{}.Extract.
func Extract(data []byte) types.PaperInfo {
	return Extractor{}.Extract(data)
}

// Extract returns whatever could be read from data. A corrupt or encrypted
// PDF yields a partial (possibly empty) record, never an error. The content
// hash is always set for non-empty input.
func (x Extractor) Extract(data []byte) types.PaperInfo {
	log := x.Log
	if log == nil {
		log = logging.Discard()
	}

	var info types.PaperInfo
	if len(data) == 0 {
		return info
	}
	sum := md5.Sum(data)
	info.FullTextMD5 = hex.EncodeToString(sum[:])

	r, err := open(data)
	if err != nil {
		log.WithError(err).Debug("pdf: cannot open document")
		return info
	}

	if err := guard(func() { readInfoDict(r, &info) }); err != nil {
		log.WithError(err).Debug("pdf: reading info dictionary")
	}
	if err := guard(func() { info.ExtractedText = plainText(r) }); err != nil {
		log.WithError(err).Debug("pdf: extracting text")
	}
	if info.DOI == "" {
		info.DOI = FindDOI(info.ExtractedText)
	}
	return info
}

func open(data []byte) (*pdf.Reader, error) {
	var (
		r       *pdf.Reader
		openErr error
	)
	if err := guard(func() {
		r, openErr = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	}); err != nil {
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	return r, nil
}

// guard runs fn and converts a panic raised by the PDF library on
// malformed input into an error.
func guard(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	fn()
	return nil
}

func readInfoDict(r *pdf.Reader, info *types.PaperInfo) {
	dict := r.Trailer().Key("Info")
	if dict.IsNull() {
		return
	}
	if author := strings.TrimSpace(dict.Key("Author").Text()); author != "" {
		info.Authors = SplitAuthors(author)
	}
	title, doi := ParseTitle(dict.Key("Title").Text())
	info.Title = title
	if doi != "" {
		info.DOI = doi
	}
}

func plainText(r *pdf.Reader) string {
	rd, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	var b bytes.Buffer
	if _, err := io.Copy(&b, io.LimitReader(rd, maxTextBytes)); err != nil {
		return ""
	}
	return b.String()
}

// SplitAuthors splits an Info-dictionary Author value. Separators are tried
// in order (";", " AND ", ","), each only when the previous one is absent.
// The comma split misreads "Last, First" as two authors.
func SplitAuthors(raw string) []string {
	var parts []string
	switch {
	case strings.Contains(raw, ";"):
		parts = strings.Split(raw, ";")
	case strings.Contains(raw, " AND "):
		parts = strings.Split(raw, " AND ")
	case strings.Contains(raw, ","):
		parts = strings.Split(raw, ",")
	default:
		parts = []string{raw}
	}
	var authors []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}

// ParseTitle interprets an Info-dictionary Title value. Publishers
// sometimes store "doi:10.x/y" there; in that case the DOI is returned
// and the title is empty.
func ParseTitle(raw string) (title, doi string) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 4 && strings.EqualFold(raw[:4], "doi:") {
		return "", strings.TrimSpace(raw[4:])
	}
	return raw, ""
}

// FindDOI returns the first "doi: 10.x/y" found in text, or "".
func FindDOI(text string) string {
	m := textDOI.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], ".,;)]")
}
