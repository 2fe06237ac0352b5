package ast

// Cursor is a random-access view over a token slice with checkpoint/restore,
// the form spec.md §2 item 3 asks for: the macro matcher needs to try a
// rule, fail partway through, and rewind to retry the next one or backtrack
// a repetition group by one iteration (§4.4). This generalizes the
// teacher's single-token unread buffer (internal/ast/parse.go's
// next/unread) to arbitrary-depth rewind by indexing into the full token
// slice instead of pushing tokens back onto a stack.
type Cursor struct {
	tokens []Token
	pos    int
}

// NewCursor wraps a pre-lexed token slice (normally the output of Tokenize,
// or a macro-transcribed splice) for pull-based parsing.
func NewCursor(tokens []Token) *Cursor {
	return &Cursor{tokens: tokens}
}

// Peek returns the token at the cursor without advancing.
func (c *Cursor) Peek() Token {
	return c.PeekAt(0)
}

// PeekAt returns the token n places ahead of the cursor without advancing.
// Reading past the end of the stream yields the final EOF token repeatedly.
func (c *Cursor) PeekAt(n int) Token {
	i := c.pos + n
	if i >= len(c.tokens) {
		return c.tokens[len(c.tokens)-1] // EOF sentinel
	}
	return c.tokens[i]
}

// Next returns the current token and advances the cursor.
func (c *Cursor) Next() Token {
	t := c.Peek()
	if c.pos < len(c.tokens) {
		c.pos++
	}
	return t
}

// Checkpoint returns a mark that Restore can rewind to.
func (c *Cursor) Checkpoint() int {
	return c.pos
}

// Restore rewinds the cursor to a previously taken Checkpoint.
func (c *Cursor) Restore(mark int) {
	c.pos = mark
}

// AtEOF reports whether the cursor has reached the end of the stream.
func (c *Cursor) AtEOF() bool {
	return c.Peek().Kind == KindEOF
}

// Last returns the most recently consumed token, used to compute the
// closing edge of a multi-token node's span once parsing it is done.
func (c *Cursor) Last() Token {
	if c.pos == 0 {
		return c.tokens[0]
	}
	return c.tokens[c.pos-1]
}

// Slice returns the tokens consumed between two checkpoints, [from, to).
// The macro matcher uses this to record exactly which source tokens a
// typed capture spanned, so the transcriber can splice them back in
// verbatim rather than re-rendering a captured AST node as text.
func (c *Cursor) Slice(from, to int) []Token {
	return c.tokens[from:to]
}

// Splice replaces the tokens from the cursor's current position up to (and
// not including) upTo with repl, and positions the cursor at the start of
// the replacement so the next Next() reads the first spliced token. Used
// by the macro expander to re-parse a transcribed token stream in place of
// the invocation it replaces (spec.md §4.4 step 6).
func (c *Cursor) Splice(upTo int, repl []Token) {
	tail := append([]Token{}, c.tokens[upTo:]...)
	c.tokens = append(c.tokens[:c.pos], append(repl, tail...)...)
}
