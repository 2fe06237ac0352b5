package ast

import "sort"

// SourceBuffer owns an input program's text and hands out immutable,
// byte-indexed Spans over it. This is the "source buffer & span service"
// leaf component of spec.md §2: every other component addresses source
// text only through a Span computed here, never through raw offsets.
type SourceBuffer struct {
	File string
	Text string

	lineStarts []int // byte offset of the first byte of each line
}

// NewSourceBuffer indexes text's line starts once, up front.
func NewSourceBuffer(file, text string) *SourceBuffer {
	b := &SourceBuffer{File: file, Text: text, lineStarts: []int{0}}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
	return b
}

// Span returns the half-open byte range [start, end) over this buffer.
func (b *SourceBuffer) Span(start, end int) Span {
	return Span{buf: b, Start: start, End: end}
}

// Position converts a byte offset into a 1-based line/column pair.
func (b *SourceBuffer) Position(offset int) Position {
	// lineStarts is sorted; find the last line start <= offset.
	i := sort.Search(len(b.lineStarts), func(i int) bool { return b.lineStarts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return Position{File: b.File, Line: i + 1, Col: offset - b.lineStarts[i] + 1}
}

// Span is an immutable, byte-indexed range over a SourceBuffer. Every AST
// node and token carries one (spec.md §3 invariants).
type Span struct {
	buf        *SourceBuffer
	Start, End int
}

// Text returns the source text covered by the span.
func (s Span) Text() string {
	if s.buf == nil {
		return ""
	}
	return s.buf.Text[s.Start:s.End]
}

// Position returns the span's starting line/column.
func (s Span) Position() Position {
	if s.buf == nil {
		return Position{}
	}
	return s.buf.Position(s.Start)
}

// Join returns the smallest span covering both s and other. Used when
// building a span that covers the contributing source of a composite AST
// node (e.g. an instruction spanning mnemonic through its last operand).
func (s Span) Join(other Span) Span {
	if s.buf == nil {
		return other
	}
	if other.buf == nil {
		return s
	}
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{buf: s.buf, Start: start, End: end}
}
