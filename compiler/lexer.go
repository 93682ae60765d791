package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Lexer: cursor over fx source text
// ---------------------------------------------------------------------------

// MaxTokenLen is the longest name the lexer accepts.
const MaxTokenLen = 100

// excerptLen bounds the source text quoted in error messages.
const excerptLen = 20

// Lexer is a cursor over an fx expression. It does not produce a token
// stream: the compiler inspects the text at the cursor and advances past
// what it consumes.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Pos returns the byte offset of the cursor.
func (l *Lexer) Pos() int { return l.pos }

// AtEnd reports whether only whitespace remains.
func (l *Lexer) AtEnd() bool {
	l.SkipSpace()
	return l.pos >= len(l.input)
}

// Advance moves the cursor n bytes forward.
func (l *Lexer) Advance(n int) {
	l.pos += n
	if l.pos > len(l.input) {
		l.pos = len(l.input)
	}
}

// Seek moves the cursor to an absolute offset.
func (l *Lexer) Seek(offset int) {
	l.pos = min(max(offset, 0), len(l.input))
}

// SkipSpace skips whitespace.
func (l *Lexer) SkipSpace() {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
}

// Peek skips whitespace and returns the byte at the cursor, or 0 at the
// end of input.
func (l *Lexer) Peek() byte {
	l.SkipSpace()
	return l.At(0)
}

// At returns the byte n positions past the cursor without skipping
// whitespace, or 0 past the end of input.
func (l *Lexer) At(n int) byte {
	if l.pos+n < len(l.input) && l.pos+n >= 0 {
		return l.input[l.pos+n]
	}
	return 0
}

// HasPrefix skips whitespace and reports whether the text at the cursor
// starts with s.
func (l *Lexer) HasPrefix(s string) bool {
	l.SkipSpace()
	return strings.HasPrefix(l.input[l.pos:], s)
}

// Accept consumes s if the text at the cursor starts with it.
func (l *Lexer) Accept(s string) bool {
	if !l.HasPrefix(s) {
		return false
	}
	l.pos += len(s)
	return true
}

// Token returns the name starting at the cursor without consuming it: a
// letter followed by letters, digits and underscores. The "icc-" and
// "device-" colour prefixes are part of the name. An empty string means
// the cursor is not on a name.
func (l *Lexer) Token() string {
	l.SkipSpace()
	s := l.input[l.pos:]
	if s == "" || !isLetter(s[0]) {
		return ""
	}
	n := 0
	for _, prefix := range []string{"icc-", "device-"} {
		if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) && isLetter(s[len(prefix)]) {
			n = len(prefix)
			break
		}
	}
	for n < len(s) && (isLetter(s[n]) || isDigit(s[n]) || s[n] == '_') {
		n++
	}
	return s[:n]
}

// Slice returns the source text between two offsets.
func (l *Lexer) Slice(start, end int) string {
	return l.input[start:end]
}

// Excerpt returns a short piece of the source starting at offset.
func (l *Lexer) Excerpt(offset int) string {
	if offset >= len(l.input) {
		return ""
	}
	s := l.input[offset:]
	if len(s) > excerptLen {
		s = s[:excerptLen]
	}
	return s
}

// Position converts a byte offset to a line and column.
func (l *Lexer) Position(offset int) Position {
	if offset > len(l.input) {
		offset = len(l.input)
	}
	pos := Position{Offset: offset, Line: 1, Column: 1}
	for i := 0; i < offset; i++ {
		if l.input[i] == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}
