// Package script splits SQL scripts into statements and runs them.
//
// The tokenizer only recognizes "--" line comments, single-quoted strings
// and the ';' terminator. It does not parse SQL.
package script

import (
	"strings"
	"unicode"
)

type state int

const (
	normal state = iota
	minusSeen
	inComment
	inString
	quoteSeen
	complete
	endOfFile
)

// Tokenizer yields the statements of a script one at a time.
type Tokenizer struct {
	src   *strings.Reader
	state state
	buf   strings.Builder
}

// NewTokenizer returns a tokenizer over src.
func NewTokenizer(src string) *Tokenizer {
	return &Tokenizer{src: strings.NewReader(src)}
}

// Next returns the next statement without its terminator and surrounding
// whitespace. Empty statements are skipped. ok is false once the input is
// exhausted. A trailing statement without ';' is still returned.
func (t *Tokenizer) Next() (stmt string, ok bool) {
	for t.state != endOfFile {
		t.state = normal
		t.buf.Reset()
		for t.state != complete && t.state != endOfFile {
			r, _, err := t.src.ReadRune()
			if err != nil {
				if t.state == minusSeen {
					t.buf.WriteByte('-')
				}
				t.state = endOfFile
				break
			}
			t.step(r)
		}
		if s := strings.TrimSpace(t.buf.String()); s != "" {
			return s, true
		}
	}
	return "", false
}

func (t *Tokenizer) step(r rune) {
	switch t.state {
	case minusSeen:
		if r == '-' {
			t.state = inComment
			return
		}
		t.buf.WriteByte('-')
		t.state = normal
		t.normal(r)
	case inComment:
		if r == '\n' {
			t.buf.WriteByte('\n')
			t.state = normal
		}
	case inString:
		t.buf.WriteRune(r)
		if r == '\'' {
			t.state = quoteSeen
		}
	case quoteSeen:
		// A doubled quote is an escaped quote; anything else ends the string.
		if r == '\'' {
			t.buf.WriteRune(r)
			t.state = inString
			return
		}
		t.state = normal
		t.normal(r)
	default:
		t.normal(r)
	}
}

func (t *Tokenizer) normal(r rune) {
	switch r {
	case '-':
		t.state = minusSeen
	case '\'':
		t.buf.WriteRune(r)
		t.state = inString
	case ';':
		t.state = complete
	default:
		t.buf.WriteRune(r)
	}
}

// Split returns every statement of src.
func Split(src string) []string {
	var stmts []string
	t := NewTokenizer(src)
	for {
		s, ok := t.Next()
		if !ok {
			return stmts
		}
		stmts = append(stmts, s)
	}
}

// Canonical returns src as its statements, comments removed, each followed
// by ';' and separated by one space. Runs of whitespace outside quoted text
// collapse to a single space, so scripts differing only in layout share a
// canonical form.
func Canonical(src string) string {
	var b strings.Builder
	for i, stmt := range Split(src) {
		if i > 0 {
			b.WriteByte(' ')
		}
		collapse(&b, stmt)
		b.WriteByte(';')
	}
	return b.String()
}

// collapse writes stmt to b with whitespace runs outside single- or
// double-quoted text reduced to one space. stmt has no surrounding space.
func collapse(b *strings.Builder, stmt string) {
	var quote rune
	space := false
	for _, r := range stmt {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
}
