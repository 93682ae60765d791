package compiler

import (
	"fmt"
	"strings"
)

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Error is a compile error. Excerpt holds the source text at the point
// of failure, truncated for display.
type Error struct {
	Pos     Position
	Message string
	Excerpt string

	source string
}

func (e *Error) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("fx: %s: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("fx: %s: %s at %q", e.Pos, e.Message, e.Excerpt)
}

// Snippet renders the offending line with a caret under the error column,
// preceded by the previous line when there is one.
//
//	fx error at 1:5: expected ')'
//
//	   1 | (1+2
//	     |     ^
func (e *Error) Snippet() string {
	lines := strings.Split(e.source, "\n")
	line := e.Pos.Line
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "fx error at %s: %s\n\n", e.Pos, e.Message)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	pad := e.Pos.Column - 1
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", pad))
	return b.String()
}
