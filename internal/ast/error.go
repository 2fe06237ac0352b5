package ast

import "fmt"

// Position is a human-facing line/column location, derived from a Span.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Error is a single lexer or parser diagnostic anchored to a span. The
// macro expander and normalizer produce their own diagnostics on top of
// internal/diag; this type covers only the front half of the pipeline.
type Error struct {
	Span Span
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Span.Position(), e.Msg)
}

// ErrorList collects the zero-or-more recoverable errors produced while
// lexing or parsing a single source buffer. Lexing and parsing never abort
// on the first error: each resynchronizes (skip to the next newline, or to
// a matching delimiter) and keeps going, so a single pass reports every
// independent mistake it can find.
type ErrorList struct {
	Errors []*Error
}

func (l *ErrorList) Add(span Span, format string, args ...any) {
	l.Errors = append(l.Errors, &Error{Span: span, Msg: fmt.Sprintf(format, args...)})
}

func (l *ErrorList) Ok() bool {
	return len(l.Errors) == 0
}
