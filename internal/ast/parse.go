package ast

import "github.com/rvasm/rvasm/internal/riscv"

// Parser is a recursive-descent parser with arbitrary lookahead over a
// Cursor, following the teacher project's panic/recover error-unwind idiom
// (internal/ast/parse.go's throwError/parseOne) generalized with
// checkpoint/restore so the macro matcher can trial a sub-grammar without
// reporting diagnostics for rejected alternatives (spec.md §4.4 step 2).
type Parser struct {
	cur  *Cursor
	errs *ErrorList
}

// NewParser builds a parser over a pre-lexed token slice. The slice may
// come directly from Tokenize, or from a macro transcriber's output —
// either way every token carries its own span into the original source.
func NewParser(tokens []Token) *Parser {
	return &Parser{cur: NewCursor(ensureEOF(tokens)), errs: &ErrorList{}}
}

func (p *Parser) Cursor() *Cursor    { return p.cur }
func (p *Parser) Errors() *ErrorList { return p.errs }

func sp(s Span) spanned { return spanned{SourceSpan: s} }

// parseAbort is panicked by throw to unwind to the nearest recovery point.
type parseAbort struct{}

// throw records a diagnostic and aborts the current statement/rule parse.
func (p *Parser) throw(span Span, format string, args ...any) {
	p.errs.Add(span, format, args...)
	panic(parseAbort{})
}

func (p *Parser) expectPunct(text string) Span {
	tok := p.cur.Peek()
	if !tok.Is(KindPunct, text) {
		p.throw(tok.Span, "expected %q, got %v %q", text, tok.Kind, tok.Text())
	}
	return p.cur.Next().Span
}

// tryParse runs fn and reports whether it completed without throwing,
// rewinding the cursor and discarding any recorded diagnostics on failure.
func (p *Parser) tryParse(fn func()) (ok bool) {
	mark := p.cur.Checkpoint()
	savedErrs := len(p.errs.Errors)
	defer func() {
		if r := recover(); r != nil {
			if _, isAbort := r.(parseAbort); !isAbort {
				panic(r)
			}
			p.cur.Restore(mark)
			p.errs.Errors = p.errs.Errors[:savedErrs]
			ok = false
		}
	}()
	fn()
	return true
}

func (p *Parser) skipToNewline() {
	for {
		t := p.cur.Next()
		if t.Kind == KindNewline || t.Kind == KindEOF {
			return
		}
	}
}

func (p *Parser) skipBlankLines() {
	for p.cur.Peek().Kind == KindNewline {
		p.cur.Next()
	}
}

// --- Top level ---

// ParseRoot parses an entire translation unit.
func (p *Parser) ParseRoot() *Root {
	start := p.cur.Peek().Span
	root := &Root{Preamble: p.parsePreamble()}
	for !p.cur.AtEOF() {
		sec := p.parseSection()
		if sec != nil {
			root.Sections = append(root.Sections, sec)
		}
	}
	root.SourceSpan = start.Join(p.cur.Last().Span)
	return root
}

func (p *Parser) parsePreamble() *Preamble {
	start := p.cur.Peek().Span
	pre := &Preamble{}
	for {
		p.skipBlankLines()
		if p.cur.AtEOF() || p.atSectionHeader() {
			break
		}
		pre.Lines = append(pre.Lines, p.parseLine(true))
	}
	pre.SourceSpan = start.Join(p.cur.Last().Span)
	return pre
}

func (p *Parser) atSectionHeader() bool {
	t := p.cur.Peek()
	return t.Kind == KindDirective && t.Str == "SECTION"
}

func (p *Parser) parseSection() *Section {
	p.skipBlankLines()
	if p.cur.AtEOF() {
		return nil
	}
	hdr := p.cur.Peek()
	if !p.atSectionHeader() {
		p.errs.Add(hdr.Span, "expected #SECTION header, got %v %q", hdr.Kind, hdr.Text())
		p.skipToNewline()
		return nil
	}
	p.cur.Next() // #SECTION
	nameTok := p.cur.Next()
	sec := &Section{}
	switch {
	case nameTok.Kind != KindSection:
		p.errs.Add(nameTok.Span, "expected section name .TEXT, .DATA, or .BSS")
	default:
		switch nameTok.Str {
		case "TEXT":
			sec.Kind = SectionText
		case "DATA":
			sec.Kind = SectionData
		case "BSS":
			sec.Kind = SectionBSS
		}
	}
	if p.cur.Peek().Kind == KindComment {
		p.cur.Next()
	}
	if p.cur.Peek().Kind == KindNewline {
		p.cur.Next()
	}
	for {
		p.skipBlankLines()
		if p.cur.AtEOF() || p.atSectionHeader() {
			break
		}
		sec.Lines = append(sec.Lines, p.parseLine(false))
	}
	sec.SourceSpan = hdr.Span.Join(p.cur.Last().Span)
	return sec
}

// parseLine parses {optional statement, optional comment, newline}
// (spec.md §4.2).
func (p *Parser) parseLine(inPreamble bool) *Line {
	start := p.cur.Peek().Span
	line := &Line{}
	ok := p.tryParseLineBody(line, inPreamble)
	if !ok {
		p.skipToNewline()
	} else {
		if p.cur.Peek().Kind == KindComment {
			c := p.cur.Next()
			line.Comment = &c
		}
		if p.cur.Peek().Kind == KindNewline {
			p.cur.Next()
		} else if !p.cur.AtEOF() {
			tok := p.cur.Peek()
			p.errs.Add(tok.Span, "expected end of line, got %v %q", tok.Kind, tok.Text())
			p.skipToNewline()
		}
	}
	line.SourceSpan = start.Join(p.cur.Last().Span)
	return line
}

// tryParseLineBody parses a line's statement. Unlike tryParse, a failed
// parse keeps its diagnostic, since here it is a real syntax error rather
// than a rejected alternative; the cursor is still rewound to the line
// start so parseLine can resynchronize at the next newline.
func (p *Parser) tryParseLineBody(line *Line, inPreamble bool) (ok bool) {
	mark := p.cur.Checkpoint()
	defer func() {
		if r := recover(); r != nil {
			if _, isAbort := r.(parseAbort); !isAbort {
				panic(r)
			}
			p.cur.Restore(mark)
			ok = false
		}
	}()
	t := p.cur.Peek()
	if t.Kind == KindNewline || t.Kind == KindComment || t.Kind == KindEOF {
		return true
	}
	stmt := p.parseStatementDispatch()
	if inPreamble && !isPreambleStatement(stmt) {
		p.errs.Add(stmt.Span(), "only #CONST and macro definitions are allowed in the preamble")
	}
	line.Stmt = stmt
	return true
}

func isPreambleStatement(stmt Statement) bool {
	switch s := stmt.(type) {
	case *MacroDefinition:
		return true
	case *Directive:
		return s.Kind == DirConst
	default:
		return false
	}
}

// parseStatementDispatch implements the dispatch rules of spec.md §4.2:
// a macro definition, a macro invocation, a labeled block, a directive, or
// an instruction, chosen by the first one or two tokens of the line.
func (p *Parser) parseStatementDispatch() Statement {
	tok := p.cur.Peek()
	switch {
	case tok.Kind == KindIdent && tok.Text() == "define_macro" && p.cur.PeekAt(1).Is(KindPunct, "!"):
		return p.parseMacroDefinition()
	case tok.Kind == KindIdent && p.cur.PeekAt(1).Is(KindPunct, "!"):
		return p.parseMacroInvocation()
	case tok.Kind == KindIdent && p.cur.PeekAt(1).Is(KindPunct, "{"):
		return p.parseLabeledBlock()
	case tok.Kind == KindDirective:
		return p.parseDirectiveStatement()
	case tok.Kind == KindMnemonic:
		return p.parseInstructionStatement()
	default:
		p.throw(tok.Span, "unexpected %v %q", tok.Kind, tok.Text())
		panic("unreachable")
	}
}

// ParseStatementSequence parses a flat token stream as zero or more
// complete statements with no newline separators required between them.
// This is how a macro transcription is turned back into statements
// (spec.md §4.4 step 6): the transcriber's output is a spliced token
// stream, not source text with its own line breaks, so statement
// boundaries are found purely by the grammar itself — each statement
// consumes exactly the tokens its shape calls for, and the next one
// starts immediately after.
func ParseStatementSequence(tokens []Token) ([]Statement, *ErrorList) {
	p := NewParser(tokens)
	var stmts []Statement
	recovering := false
	for !p.cur.AtEOF() {
		p.skipBlankLines()
		if p.cur.AtEOF() {
			break
		}
		ok := p.tryParse(func() {
			stmts = append(stmts, p.parseStatementDispatch())
		})
		if !ok {
			// Report the first token of each run of unparseable tokens once.
			if !recovering {
				tok := p.cur.Peek()
				p.errs.Add(tok.Span, "cannot parse a statement at %v %q", tok.Kind, tok.Text())
			}
			recovering = true
			p.cur.Next() // drop one token and retry, bounded by AtEOF
		} else {
			recovering = false
		}
	}
	return stmts, p.errs
}

func ensureEOF(tokens []Token) []Token {
	if len(tokens) > 0 && tokens[len(tokens)-1].Kind == KindEOF {
		return tokens
	}
	var last Span
	if len(tokens) > 0 {
		last = tokens[len(tokens)-1].Span
	}
	return append(append([]Token{}, tokens...), Token{Kind: KindEOF, Span: last})
}

// --- Reentrant sub-parsers, exposed for the macro matcher (spec.md §9) ---
//
// Each of these attempts one grammar production and reports whether it
// succeeded; a failed attempt rewinds the cursor and records no diagnostic,
// since a typed capture failing to match is an ordinary part of trying
// successive macro rules, not a syntax error.

// ParseStmt attempts to parse one complete statement, for a `$name:stmt`
// capture.
func (p *Parser) ParseStmt() (Statement, bool) {
	var stmt Statement
	ok := p.tryParse(func() { stmt = p.parseStatementDispatch() })
	if !ok {
		return nil, false
	}
	return stmt, true
}

// ParseInstruction attempts to parse a complete instruction, for a
// `$name:inst` capture.
func (p *Parser) ParseInstruction() (*Instruction, bool) {
	var inst *Instruction
	ok := p.tryParse(func() {
		if p.cur.Peek().Kind != KindMnemonic {
			p.throw(p.cur.Peek().Span, "expected instruction mnemonic")
		}
		inst = p.parseInstructionStatement()
	})
	if !ok {
		return nil, false
	}
	return inst, true
}

// ParseDirective attempts to parse a complete directive, for a
// `$name:dir` capture.
func (p *Parser) ParseDirective() (*Directive, bool) {
	var dir *Directive
	ok := p.tryParse(func() {
		if p.cur.Peek().Kind != KindDirective {
			p.throw(p.cur.Peek().Span, "expected directive")
		}
		dir = p.parseDirectiveStatement()
	})
	if !ok {
		return nil, false
	}
	return dir, true
}

// ParseReg attempts to parse a register operand, for a `$name:reg` capture.
func (p *Parser) ParseReg() (*Register, bool) {
	var reg *Register
	ok := p.tryParse(func() { reg = p.parseRegister() })
	if !ok {
		return nil, false
	}
	return reg, true
}

// ParseIdentTok attempts to consume a bare identifier token, for a
// `$name:ident` capture.
func (p *Parser) ParseIdentTok() (Token, bool) {
	tok := p.cur.Peek()
	if tok.Kind != KindIdent {
		return Token{}, false
	}
	p.cur.Next()
	return tok, true
}

// ParseImm attempts to parse an immediate expression, for a `$name:imm`
// capture.
func (p *Parser) ParseImm() (Immediate, bool) {
	var imm Immediate
	ok := p.tryParse(func() { imm = p.parseImmediate() })
	if !ok {
		return nil, false
	}
	return imm, true
}

// --- Labeled blocks ---

func (p *Parser) parseLabeledBlock() *LabeledBlock {
	nameTok := p.cur.Next()
	p.expectPunct("{")
	blk := &LabeledBlock{Label: nameTok.Text()}
	for {
		p.skipBlankLines()
		if p.cur.Peek().Is(KindPunct, "}") {
			break
		}
		if p.cur.Peek().Kind == KindEOF {
			p.throw(p.cur.Peek().Span, "unterminated labeled block %q", nameTok.Text())
		}
		blk.Lines = append(blk.Lines, p.parseLine(false))
	}
	closeTok := p.cur.Next()
	blk.SourceSpan = nameTok.Span.Join(closeTok.Span)
	return blk
}

// --- Directives ---

func (p *Parser) parseDirectiveStatement() *Directive {
	tok := p.cur.Next()
	switch tok.Str {
	case "BYTES":
		return p.parseValueListDirective(tok, DirBytes)
	case "HALVES":
		return p.parseValueListDirective(tok, DirHalves)
	case "WORDS":
		return p.parseValueListDirective(tok, DirWords)
	case "RES_BYTES":
		return p.parseValueListDirective(tok, DirResBytes)
	case "RES_HALVES":
		return p.parseValueListDirective(tok, DirResHalves)
	case "RES_WORDS":
		return p.parseValueListDirective(tok, DirResWords)
	case "CONST":
		name, ok := p.parseIdentName()
		if !ok {
			p.throw(tok.Span, "expected constant name after #CONST")
		}
		value := p.parseImmediate()
		return &Directive{spanned: sp(tok.Span.Join(p.cur.Last().Span)), Kind: DirConst, ConstName: name, ConstValue: value}
	case "SECTION":
		p.throw(tok.Span, "#SECTION must appear at a section-header position")
		panic("unreachable")
	default:
		p.throw(tok.Span, "unknown directive #%s", tok.Str)
		panic("unreachable")
	}
}

func (p *Parser) parseValueListDirective(tok Token, kind DirectiveKind) *Directive {
	var vals []Immediate
	vals = append(vals, p.parseImmediate())
	for p.cur.Peek().Is(KindPunct, ",") {
		p.cur.Next()
		vals = append(vals, p.parseImmediate())
	}
	return &Directive{spanned: sp(tok.Span.Join(p.cur.Last().Span)), Kind: kind, Values: vals}
}

func (p *Parser) parseIdentName() (string, bool) {
	tok := p.cur.Peek()
	if tok.Kind != KindIdent {
		return "", false
	}
	p.cur.Next()
	return tok.Text(), true
}

// --- Instructions ---

func (p *Parser) parseRegister() *Register {
	tok := p.cur.Peek()
	if tok.Kind != KindRegister {
		p.throw(tok.Span, "expected register, got %v %q", tok.Kind, tok.Text())
	}
	p.cur.Next()
	return &Register{spanned: sp(tok.Span), Name: tok.Text(), Index: -1}
}

func (p *Parser) parseAddress() *AddressOperand {
	start := p.expectPunct("[")
	base := p.parseRegister()
	var offset Immediate
	signTok := p.cur.Peek()
	switch {
	case signTok.Is(KindPunct, "+"), signTok.Is(KindPunct, "-"):
		p.cur.Next()
		operand := p.parseImmediate()
		if signTok.Text() == "-" {
			offset = &UnaryExpr{spanned: sp(signTok.Span.Join(operand.Span())), Op: UnaryMinus, Operand: operand}
		} else {
			offset = operand
		}
	default:
		offset = &Literal{spanned: sp(signTok.Span), Kind: LiteralInt, Int: 0}
	}
	end := p.expectPunct("]")
	return &AddressOperand{spanned: sp(start.Join(end)), Base: base, Offset: offset}
}

func (p *Parser) parseOrderingMask() *OrderingMask {
	tok := p.cur.Peek()
	if tok.Kind != KindIdent {
		p.throw(tok.Span, "expected fence ordering mask (subset of i,o,r,w), got %v %q", tok.Kind, tok.Text())
	}
	p.cur.Next()
	m := &OrderingMask{spanned: sp(tok.Span)}
	for _, r := range tok.Text() {
		switch r {
		case 'i':
			m.I = true
		case 'o':
			m.O = true
		case 'r':
			m.R = true
		case 'w':
			m.W = true
		default:
			p.errs.Add(tok.Span, "invalid fence ordering character %q", r)
		}
	}
	return m
}

func (p *Parser) parseInstructionStatement() *Instruction {
	tok := p.cur.Next()
	info, known := riscv.LookupMnemonic(tok.Text())
	if !known {
		p.throw(tok.Span, "unknown instruction mnemonic %q", tok.Text())
	}
	inst := &Instruction{Mnemonic: tok.Text(), Shape: info.Shape}
	switch info.Shape {
	case riscv.ShapeIType:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.Rs1 = p.parseRegister()
		p.expectPunct(",")
		inst.Imm = p.parseImmediate()
	case riscv.ShapeRType:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.Rs1 = p.parseRegister()
		p.expectPunct(",")
		inst.Rs2 = p.parseRegister()
	case riscv.ShapeUType, riscv.ShapeJType:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.Imm = p.parseImmediate()
	case riscv.ShapeITypeJump:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.Rs1 = p.parseRegister()
		p.expectPunct(",")
		inst.Imm = p.parseImmediate()
	case riscv.ShapeBType:
		inst.Rs1 = p.parseRegister()
		p.expectPunct(",")
		inst.Rs2 = p.parseRegister()
		p.expectPunct(",")
		inst.Imm = p.parseImmediate()
	case riscv.ShapeLoad:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.Addr = p.parseAddress()
	case riscv.ShapeStore:
		inst.Rs2 = p.parseRegister()
		p.expectPunct(",")
		inst.Addr = p.parseAddress()
	case riscv.ShapeFenceMem:
		inst.Pred = p.parseOrderingMask()
		p.expectPunct(",")
		inst.Succ = p.parseOrderingMask()
	case riscv.ShapeFenceTSO, riscv.ShapeEnv, riscv.ShapeFenceI:
		// no operands
	case riscv.ShapeCSRReg:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.CSR = p.parseImmediate()
		p.expectPunct(",")
		inst.Rs1 = p.parseRegister()
	case riscv.ShapeCSRImm:
		inst.Rd = p.parseRegister()
		p.expectPunct(",")
		inst.CSR = p.parseImmediate()
		p.expectPunct(",")
		inst.Uimm = p.parseImmediate()
	default:
		p.throw(tok.Span, "mnemonic %q has no known operand shape", tok.Text())
	}
	inst.SourceSpan = tok.Span.Join(p.cur.Last().Span)
	return inst
}

// --- Immediate expressions (spec.md §4.2 precedence ladder) ---

func (p *Parser) parseImmediate() Immediate {
	return p.parseTernary()
}

// parseTernary is `cond ? then : else`, right-associative: the else-branch
// recurses back into parseTernary so a chain of ternaries nests to the
// right (spec.md §4.2).
func (p *Parser) parseTernary() Immediate {
	cond := p.parseBinary(1)
	if p.cur.Peek().Is(KindPunct, "?") {
		p.cur.Next()
		thenE := p.parseTernary()
		p.expectPunct(":")
		elseE := p.parseTernary()
		return &TernaryExpr{spanned: sp(cond.Span().Join(elseE.Span())), Cond: cond, Then: thenE, Else: elseE}
	}
	return cond
}

// parseBinary is precedence-climbing over the 11-level ladder in arith.go;
// every level is left-associative.
func (p *Parser) parseBinary(minPrec int) Immediate {
	left := p.parseUnary()
	for {
		tok := p.cur.Peek()
		if tok.Kind != KindPunct {
			break
		}
		op, ok := binOpFromText(tok.Text())
		if !ok {
			break
		}
		prec := precedence[op]
		if prec < minPrec {
			break
		}
		p.cur.Next()
		right := p.parseBinary(prec + 1)
		left = &BinaryExpr{spanned: sp(left.Span().Join(right.Span())), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Immediate {
	tok := p.cur.Peek()
	if tok.Kind == KindPunct {
		switch tok.Text() {
		case "+", "-", "!", "~":
			op, _ := unaryOpFromText(tok.Text())
			p.cur.Next()
			operand := p.parseUnary()
			return &UnaryExpr{spanned: sp(tok.Span.Join(operand.Span())), Op: op, Operand: operand}
		}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() Immediate {
	tok := p.cur.Peek()
	switch {
	case tok.Kind == KindNumber:
		p.cur.Next()
		return &Literal{spanned: sp(tok.Span), Kind: LiteralInt, Int: tok.Int}
	case tok.Kind == KindChar:
		p.cur.Next()
		return &Literal{spanned: sp(tok.Span), Kind: LiteralChar, Int: int64(tok.Ch)}
	case tok.Kind == KindString:
		p.cur.Next()
		return &Literal{spanned: sp(tok.Span), Kind: LiteralString, Str: tok.Str}
	case tok.Kind == KindLocalIdent:
		p.cur.Next()
		return &LocalLabelRef{spanned: sp(tok.Span), Name: tok.Str}
	case tok.Kind == KindIdent:
		p.cur.Next()
		return &LabelRef{spanned: sp(tok.Span), Name: tok.Text()}
	case tok.Is(KindPunct, "("):
		open := p.cur.Next()
		inner := p.parseTernary()
		closeSpan := p.expectPunct(")")
		if lit, isLit := inner.(*Literal); isLit {
			lit.SourceSpan = open.Span.Join(closeSpan)
		}
		return inner
	default:
		p.throw(tok.Span, "expected immediate expression, got %v %q", tok.Kind, tok.Text())
		panic("unreachable")
	}
}

// --- Macro invocations ---

func delimiterFor(open string) (Delimiter, string, bool) {
	switch open {
	case "(":
		return DelimParen, ")", true
	case "[":
		return DelimBrack, "]", true
	case "{":
		return DelimBrace, "}", true
	default:
		return 0, "", false
	}
}

// parseMacroInvocation captures the invocation body as a raw, un-reparsed
// token slice, bracket-depth aware so nested delimiters of the same kind
// don't close early. Expansion happens later, in internal/macro, to avoid
// an import cycle between this package and the macro expander that must
// import it (spec.md §4.2, §4.4).
func (p *Parser) parseMacroInvocation() *MacroInvocation {
	nameTok := p.cur.Next()
	p.cur.Next() // "!"
	openTok := p.cur.Peek()
	if openTok.Kind != KindPunct {
		p.throw(openTok.Span, "expected a delimited body after %s!", nameTok.Text())
	}
	delim, closeText, ok := delimiterFor(openTok.Text())
	if !ok {
		p.throw(openTok.Span, "expected (, [, or { after %s!", nameTok.Text())
	}
	openText := openTok.Text()
	p.cur.Next()
	var body []Token
	depth := 1
loop:
	for {
		t := p.cur.Peek()
		switch {
		case t.Kind == KindEOF:
			p.throw(t.Span, "unterminated invocation of %s!", nameTok.Text())
		case t.Kind == KindPunct && t.Text() == openText:
			depth++
		case t.Kind == KindPunct && t.Text() == closeText:
			depth--
			if depth == 0 {
				p.cur.Next()
				break loop
			}
		}
		body = append(body, p.cur.Next())
	}
	return &MacroInvocation{
		spanned: sp(nameTok.Span.Join(p.cur.Last().Span)),
		Name:    nameTok.Text(),
		Delim:   delim,
		Body:    body,
	}
}

// --- Macro definitions ---

func (p *Parser) parseMacroDefinition() *MacroDefinition {
	defTok := p.cur.Next() // "define_macro"
	p.cur.Next()           // "!"
	nameTok := p.cur.Next()
	if nameTok.Kind != KindIdent {
		p.throw(nameTok.Span, "expected macro name after define_macro!")
	}
	p.expectPunct("{")
	def := &MacroDefinition{Name: nameTok.Text()}
	first := true
	for {
		p.skipBlankLines()
		if p.cur.Peek().Is(KindPunct, "}") {
			break
		}
		if p.cur.Peek().Kind == KindEOF {
			p.throw(p.cur.Peek().Span, "unterminated definition of %s", nameTok.Text())
		}
		rule, delim := p.parseMacroRule()
		if first {
			def.Delim = delim
			first = false
		} else if delim != def.Delim {
			p.errs.Add(rule.Span, "macro rule delimiter must match the definition's first rule")
		}
		def.Rules = append(def.Rules, rule)
		if p.cur.Peek().Is(KindPunct, ",") {
			p.cur.Next()
		}
		p.skipBlankLines()
	}
	closeTok := p.cur.Next()
	def.SourceSpan = defTok.Span.Join(closeTok.Span)
	return def
}

func (p *Parser) parseMacroRule() (*MacroRule, Delimiter) {
	openTok := p.cur.Peek()
	if openTok.Kind != KindPunct {
		p.throw(openTok.Span, "expected macro rule delimiter")
	}
	delim, closeText, ok := delimiterFor(openTok.Text())
	if !ok {
		p.throw(openTok.Span, "expected (, [, or { to start a macro rule")
	}
	openText := openTok.Text()
	p.cur.Next()
	matcher := p.parseMatchItems(closeText)
	p.expectPunct(closeText)
	p.expectPunct("=>")
	openTok2 := p.cur.Peek()
	if !openTok2.Is(KindPunct, openText) {
		p.throw(openTok2.Span, "transcriber delimiter must match the matcher's %q", openText)
	}
	p.cur.Next()
	trans := p.parseTransItems(closeText)
	closeTok2 := p.expectPunct(closeText)
	return &MacroRule{Span: openTok.Span.Join(closeTok2), Matcher: matcher, Transcriber: trans}, delim
}

func (p *Parser) parseMatchItems(closeText string) []MacroMatchItem {
	var items []MacroMatchItem
	for {
		t := p.cur.Peek()
		if t.Kind == KindEOF {
			p.throw(t.Span, "unterminated macro matcher")
		}
		if t.Kind == KindPunct && t.Text() == closeText {
			return items
		}
		items = append(items, p.parseOneMatchItem())
	}
}

// parseOneMatchItem parses a literal token, a typed capture `$name:kind`,
// or a repetition group `$( ... )Q` (spec.md §4.3). The group's delimiters
// are hard-coded as "(" ")" regardless of the rule's own delimiter choice.
func (p *Parser) parseOneMatchItem() MacroMatchItem {
	t := p.cur.Peek()
	if t.Is(KindPunct, "$") {
		if p.cur.PeekAt(1).Is(KindPunct, "(") {
			dollarTok := p.cur.Next()
			p.cur.Next() // "("
			inner := p.parseMatchItems(")")
			p.expectPunct(")")
			qTok := p.cur.Next()
			var quant RepeatQuant
			switch qTok.Text() {
			case "?":
				quant = RepeatZeroOrOne
			case "*":
				quant = RepeatZeroOrMore
			case "+":
				quant = RepeatOneOrMore
			default:
				p.throw(qTok.Span, "expected repetition quantifier ?, *, or + after group, got %q", qTok.Text())
			}
			return MacroMatchItem{Span: dollarTok.Span.Join(qTok.Span), Kind: MatchGroup, Quant: quant, Inner: inner}
		}
		dollarTok := p.cur.Next()
		nameTok := p.cur.Next()
		if nameTok.Kind != KindIdent {
			p.throw(nameTok.Span, "expected capture name after '$'")
		}
		p.expectPunct(":")
		kindTok := p.cur.Next()
		kind, ok := captureKindFromName(kindTok.Text())
		if !ok {
			p.throw(kindTok.Span, "unknown capture kind %q (want inst, reg, dir, ident, imm, or stmt)", kindTok.Text())
		}
		return MacroMatchItem{Span: dollarTok.Span.Join(kindTok.Span), Kind: MatchCapture, CaptureName: nameTok.Text(), Capture: kind}
	}
	p.cur.Next()
	return MacroMatchItem{Span: t.Span, Kind: MatchLiteral, LiteralTok: t}
}

func (p *Parser) parseTransItems(closeText string) []TransItem {
	var items []TransItem
	for {
		t := p.cur.Peek()
		if t.Kind == KindEOF {
			p.throw(t.Span, "unterminated macro transcriber")
		}
		if t.Kind == KindPunct && t.Text() == closeText {
			return items
		}
		items = append(items, p.parseOneTransItem())
	}
}

// parseOneTransItem mirrors parseOneMatchItem for the transcriber side. A
// repetition group's trailing quantifier is optional here: the iteration
// count is inferred from the captures referenced inside the group, not
// declared (spec.md §8 scenario 4's push! example has a group with no
// internal capture alongside one that does, and both must repeat in step).
func (p *Parser) parseOneTransItem() TransItem {
	t := p.cur.Peek()
	if t.Is(KindPunct, "$") {
		if p.cur.PeekAt(1).Is(KindPunct, "(") {
			dollarTok := p.cur.Next()
			p.cur.Next() // "("
			inner := p.parseTransItems(")")
			closeTok := p.expectPunct(")")
			item := TransItem{Span: dollarTok.Span.Join(closeTok), Kind: TransGroup, Inner: inner}
			switch p.cur.Peek().Text() {
			case "?":
				item.Quant = RepeatZeroOrOne
				p.cur.Next()
			case "*":
				item.Quant = RepeatZeroOrMore
				p.cur.Next()
			case "+":
				item.Quant = RepeatOneOrMore
				p.cur.Next()
			}
			return item
		}
		dollarTok := p.cur.Next()
		nameTok := p.cur.Next()
		if nameTok.Kind != KindIdent {
			p.throw(nameTok.Span, "expected capture reference name after '$'")
		}
		return TransItem{Span: dollarTok.Span.Join(nameTok.Span), Kind: TransRef, RefName: nameTok.Text()}
	}
	p.cur.Next()
	return TransItem{Span: t.Span, Kind: TransLiteral, LiteralTok: t}
}
