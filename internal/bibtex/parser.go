// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibtex parses loosely formatted BibTeX text and maps it onto a
// PaperInfo record. Parsing is tolerant: text outside entries is treated as
// an implicit comment and a malformed entry is skipped without failing the
// rest of the document.
package bibtex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEntries is returned by Parse when the text contains no usable entry.
var ErrNoEntries = errors.New("no bibtex entries found")

// Entry is a single @type{key, field = value, ...} record.
type Entry struct {
	// Type is the lowercased entry type (e.g. "article").
	Type string

	// Key is the cite key with its original case.
	Key string

	// Fields maps lowercased field names to their concatenated values.
	Fields map[string]string

	// Order lists field names in source order.
	Order []string
}

// Document is the result of parsing a BibTeX text.
type Document struct {
	Entries   []Entry
	Strings   map[string]string
	Preambles []string
	Comments  []string
}

// Fields returns the fields of the first entry, or an empty map.
func (d *Document) Fields() map[string]string {
	if d == nil || len(d.Entries) == 0 {
		return map[string]string{}
	}
	return d.Entries[0].Fields
}

// Parse parses text into a Document. It never fails on malformed content;
// the error is ErrNoEntries when nothing usable was found. The returned
// Document is non-nil in both cases.
func Parse(text string) (*Document, error) {
	p := &parser{
		src: text,
		doc: &Document{Strings: map[string]string{}},
	}
	p.run()
	if len(p.doc.Entries) == 0 {
		return p.doc, ErrNoEntries
	}
	return p.doc, nil
}

type parser struct {
	src string
	pos int
	doc *Document
}

// syntaxError aborts the current block; the parser resumes at the next '@'.
type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.pos, e.msg)
}

func (p *parser) fail(format string, args ...any) error {
	return &syntaxError{pos: p.pos, msg: fmt.Sprintf(format, args...)}
}

func (p *parser) run() {
	for p.pos < len(p.src) {
		at := strings.IndexByte(p.src[p.pos:], '@')
		if at < 0 {
			p.implicitComment(p.src[p.pos:])
			return
		}
		p.implicitComment(p.src[p.pos : p.pos+at])
		p.pos += at
		start := p.pos
		if err := p.block(); err != nil {
			// Skip past the '@' that started the broken block.
			p.pos = start + 1
		}
	}
}

func (p *parser) implicitComment(s string) {
	if s = strings.TrimSpace(s); s != "" {
		p.doc.Comments = append(p.doc.Comments, s)
	}
}

// block parses one @-introduced construct starting at p.pos.
func (p *parser) block() error {
	p.pos++ // '@'
	p.skipSpace()
	kind := strings.ToLower(p.name())
	if kind == "" {
		return p.fail("missing entry type")
	}
	p.skipSpace()

	if kind == "comment" {
		return p.comment()
	}

	closer, err := p.open()
	if err != nil {
		return err
	}

	switch kind {
	case "preamble":
		v, err := p.value()
		if err != nil {
			return err
		}
		p.doc.Preambles = append(p.doc.Preambles, v)
		return p.close(closer)
	case "string":
		return p.macroDefinitions(closer)
	default:
		return p.entry(kind, closer)
	}
}

// comment consumes an @comment block: a balanced group if one follows,
// otherwise the remainder of the line.
func (p *parser) comment() error {
	if p.pos < len(p.src) && (p.src[p.pos] == '{' || p.src[p.pos] == '(') {
		open := p.src[p.pos]
		closeCh := byte('}')
		if open == '(' {
			closeCh = ')'
		}
		body, err := p.balanced(open, closeCh)
		if err != nil {
			return err
		}
		p.implicitComment(body)
		return nil
	}
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		end = len(p.src) - p.pos
	}
	p.implicitComment(p.src[p.pos : p.pos+end])
	p.pos += end
	return nil
}

func (p *parser) open() (byte, error) {
	if p.pos >= len(p.src) {
		return 0, p.fail("unexpected end of input")
	}
	switch p.src[p.pos] {
	case '{':
		p.pos++
		return '}', nil
	case '(':
		p.pos++
		return ')', nil
	}
	return 0, p.fail("expected '{' or '('")
}

func (p *parser) close(closer byte) error {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == closer {
		p.pos++
		return nil
	}
	return p.fail("expected %q", closer)
}

func (p *parser) macroDefinitions(closer byte) error {
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return p.fail("unterminated @string")
		}
		switch p.src[p.pos] {
		case closer:
			p.pos++
			return nil
		case ',':
			p.pos++
			continue
		}
		name := strings.ToLower(p.name())
		if name == "" {
			return p.fail("expected macro name")
		}
		if err := p.expect('='); err != nil {
			return err
		}
		v, err := p.value()
		if err != nil {
			return err
		}
		p.doc.Strings[name] = v
	}
}

func (p *parser) entry(kind string, closer byte) error {
	e := Entry{Type: kind, Fields: map[string]string{}}

	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == closer || isSpace(c) {
			break
		}
		p.pos++
	}
	e.Key = p.src[start:p.pos]

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return p.fail("unterminated entry %q", e.Key)
		}
		switch p.src[p.pos] {
		case closer:
			p.pos++
			p.doc.Entries = append(p.doc.Entries, e)
			return nil
		case ',':
			p.pos++
			continue
		}

		field := strings.ToLower(p.name())
		if field == "" {
			return p.fail("expected field name in entry %q", e.Key)
		}
		if err := p.expect('='); err != nil {
			return err
		}
		v, err := p.value()
		if err != nil {
			return err
		}
		if _, dup := e.Fields[field]; !dup {
			e.Order = append(e.Order, field)
		}
		e.Fields[field] = v
	}
}

// value parses piece ('#' piece)*.
func (p *parser) value() (string, error) {
	var b strings.Builder
	for {
		p.skipSpace()
		piece, err := p.piece()
		if err != nil {
			return "", err
		}
		b.WriteString(piece)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '#' {
			p.pos++
			continue
		}
		return b.String(), nil
	}
}

func (p *parser) piece() (string, error) {
	if p.pos >= len(p.src) {
		return "", p.fail("expected value")
	}
	c := p.src[p.pos]
	switch {
	case c == '{':
		return p.balanced('{', '}')
	case c == '"':
		return p.quoted()
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		return p.src[start:p.pos], nil
	}

	ref := p.name()
	if ref == "" {
		return "", p.fail("unexpected %q in value", c)
	}
	if v, ok := p.doc.Strings[strings.ToLower(ref)]; ok {
		return v, nil
	}
	// Undefined macros (months, journal abbreviations) stay as their name.
	return strings.ToLower(ref), nil
}

// balanced reads a group delimited by open/closeCh with nesting and returns
// the inner text, keeping nested delimiters.
func (p *parser) balanced(open, closeCh byte) (string, error) {
	start := p.pos + 1
	depth := 0
	for i := p.pos; i < len(p.src); i++ {
		switch p.src[i] {
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				p.pos = i + 1
				return p.src[start:i], nil
			}
		}
	}
	return "", p.fail("unbalanced %q", open)
}

// quoted reads a "..." value. Braces inside the quotes may nest and may
// protect a '"'.
func (p *parser) quoted() (string, error) {
	start := p.pos + 1
	depth := 0
	for i := start; i < len(p.src); i++ {
		switch p.src[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '"':
			if depth == 0 {
				p.pos = i + 1
				return p.src[start:i], nil
			}
		}
	}
	return "", p.fail("unterminated quoted value")
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return nil
	}
	return p.fail("expected %q", c)
}

// name reads an identifier: any run of characters that are not whitespace
// or BibTeX punctuation.
func (p *parser) name() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isSpace(c) || strings.IndexByte(`"#%'(),={}@`, c) >= 0 {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
