package ast

import "fmt"

// Kind identifies the lexical class of a Token. Reserved-word subsets
// (instruction mnemonics, register names, section names) are classified by
// the lexer itself, not deferred to the parser, per spec.md §4.1.
type Kind byte

//go:generate go run golang.org/x/tools/cmd/stringer@latest -type Kind

const (
	KindEOF       Kind = iota
	KindNewline        // statement terminator
	KindComment        // "; ..." to end of line
	KindIdent          // bare identifier, not a reserved word
	KindLocalIdent     // ".name" — local-label reference
	KindSection        // ".TEXT", ".DATA", ".BSS"
	KindMnemonic       // reserved instruction mnemonic
	KindRegister       // reserved register name or ABI alias
	KindDirective      // "#WORD", lexeme includes the '#'
	KindNumber         // decimal/hex/octal/binary integer literal
	KindString         // "double quoted"
	KindChar           // 'single quoted'
	KindPunct          // operators and structural punctuation
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindNewline:
		return "Newline"
	case KindComment:
		return "Comment"
	case KindIdent:
		return "Ident"
	case KindLocalIdent:
		return "LocalIdent"
	case KindSection:
		return "Section"
	case KindMnemonic:
		return "Mnemonic"
	case KindRegister:
		return "Register"
	case KindDirective:
		return "Directive"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindChar:
		return "Char"
	case KindPunct:
		return "Punct"
	default:
		return "Invalid"
	}
}

// Token is a single lexeme: its class, its source span, and — for the
// kinds that carry one — its decoded value.
type Token struct {
	Kind Kind
	Span Span

	// Decoded values, populated according to Kind:
	Int int64  // KindNumber
	Str string // KindString (unescaped), KindDirective/KindSection/KindLocalIdent (name text, '#'/'.' stripped)
	Ch  rune   // KindChar
}

// Text returns the raw source text of the token.
func (t Token) Text() string { return t.Span.Text() }

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%s", t.Kind, t.Text(), t.Span.Position())
}

// Is reports whether the token is a KindPunct (or KindNewline/KindComment)
// with exactly this text — the idiom used throughout the parser for
// matching fixed punctuation like "," or "=>".
func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text() == text
}
