package ast

import "testing"

func mustParse(t *testing.T, src string) *Root {
	t.Helper()
	buf := NewSourceBuffer("test.s", src)
	tokens, lexErrs := Tokenize(buf)
	if !lexErrs.Ok() {
		t.Fatalf("unexpected lex errors: %v", lexErrs.Errors)
	}
	p := NewParser(tokens)
	root := p.ParseRoot()
	if !p.Errors().Ok() {
		t.Fatalf("unexpected parse errors: %v", p.Errors().Errors)
	}
	return root
}

func TestParseSectionsAndInstruction(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\naddi r1, r0, 1\n")
	if len(root.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(root.Sections))
	}
	sec := root.Sections[0]
	if sec.Kind != SectionText {
		t.Errorf("expected SectionText, got %v", sec.Kind)
	}
	if len(sec.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(sec.Lines))
	}
	inst, ok := sec.Lines[0].Stmt.(*Instruction)
	if !ok {
		t.Fatalf("expected *Instruction, got %T", sec.Lines[0].Stmt)
	}
	if inst.Mnemonic != "addi" || inst.Rd.Name != "r1" || inst.Rs1.Name != "r0" {
		t.Errorf("unexpected instruction fields: %+v", inst)
	}
}

func TestParseMultipleSections(t *testing.T) {
	root := mustParse(t, "#SECTION .DATA\n#WORDS 1, 2\n#SECTION .BSS\n#RES_BYTES 4\n")
	if len(root.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(root.Sections))
	}
	if root.Sections[0].Kind != SectionData || root.Sections[1].Kind != SectionBSS {
		t.Errorf("unexpected section kinds: %v, %v", root.Sections[0].Kind, root.Sections[1].Kind)
	}
	dir := root.Sections[0].Lines[0].Stmt.(*Directive)
	if dir.Kind != DirWords || len(dir.Values) != 2 {
		t.Errorf("unexpected #WORDS directive: %+v", dir)
	}
}

func TestParsePreambleConstAndMacroDef(t *testing.T) {
	root := mustParse(t, "#CONST X 1+2\n"+
		"define_macro! nop { () => ( addi r0, r0, 0 ) }\n"+
		"#SECTION .TEXT\n")
	if root.Preamble == nil || len(root.Preamble.Lines) != 2 {
		t.Fatalf("expected 2 preamble lines, got %+v", root.Preamble)
	}
	dir, ok := root.Preamble.Lines[0].Stmt.(*Directive)
	if !ok || dir.Kind != DirConst || dir.ConstName != "X" {
		t.Errorf("expected #CONST X, got %+v", root.Preamble.Lines[0].Stmt)
	}
	def, ok := root.Preamble.Lines[1].Stmt.(*MacroDefinition)
	if !ok || def.Name != "nop" || len(def.Rules) != 1 {
		t.Errorf("expected macro definition nop, got %+v", root.Preamble.Lines[1].Stmt)
	}
}

func TestParsePreambleRejectsInstructions(t *testing.T) {
	buf := NewSourceBuffer("test.s", "addi r0, r0, 0\n#SECTION .TEXT\n")
	tokens, lexErrs := Tokenize(buf)
	if !lexErrs.Ok() {
		t.Fatalf("unexpected lex errors: %v", lexErrs.Errors)
	}
	p := NewParser(tokens)
	p.ParseRoot()
	if p.Errors().Ok() {
		t.Fatal("expected an error: instructions are not allowed in the preamble")
	}
}

func TestParseLabeledBlock(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\nstart {\n  addi r0, r0, 0\n  addi r0, r0, 1\n}\n")
	blk, ok := root.Sections[0].Lines[0].Stmt.(*LabeledBlock)
	if !ok {
		t.Fatalf("expected *LabeledBlock, got %T", root.Sections[0].Lines[0].Stmt)
	}
	if blk.Label != "start" {
		t.Errorf("expected label start, got %q", blk.Label)
	}
	if len(blk.Lines) != 2 {
		t.Fatalf("expected 2 lines inside block, got %d", len(blk.Lines))
	}
}

func TestParseImmediatePrecedence(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\naddi r1, r0, 1+2*3\n")
	inst := root.Sections[0].Lines[0].Stmt.(*Instruction)
	bin, ok := inst.Imm.(*BinaryExpr)
	if !ok {
		t.Fatalf("expected *BinaryExpr at top, got %T", inst.Imm)
	}
	if bin.Op != BinAdd {
		t.Fatalf("expected top operator to be +, got %v (precedence should bind * tighter)", bin.Op)
	}
	right, ok := bin.Right.(*BinaryExpr)
	if !ok || right.Op != BinMul {
		t.Fatalf("expected right subtree to be 2*3, got %+v", bin.Right)
	}
}

func TestParseTernaryRightAssociative(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\naddi r1, r0, 1 ? 2 : 0 ? 3 : 4\n")
	inst := root.Sections[0].Lines[0].Stmt.(*Instruction)
	outer, ok := inst.Imm.(*TernaryExpr)
	if !ok {
		t.Fatalf("expected *TernaryExpr, got %T", inst.Imm)
	}
	if _, ok := outer.Else.(*TernaryExpr); !ok {
		t.Fatalf("expected else-branch to itself be a ternary (right-associative), got %T", outer.Else)
	}
}

func TestParseAddressOperandWithOffset(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\nsw r1, [sp+8]\n")
	inst := root.Sections[0].Lines[0].Stmt.(*Instruction)
	if inst.Addr == nil || inst.Addr.Base.Name != "sp" {
		t.Fatalf("expected address base sp, got %+v", inst.Addr)
	}
	lit, ok := inst.Addr.Offset.(*Literal)
	if !ok || lit.Int != 8 {
		t.Fatalf("expected offset literal 8, got %+v", inst.Addr.Offset)
	}
}

func TestParseAddressOperandNoOffsetDefaultsZero(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\nsw r1, [sp]\n")
	inst := root.Sections[0].Lines[0].Stmt.(*Instruction)
	lit, ok := inst.Addr.Offset.(*Literal)
	if !ok || lit.Int != 0 {
		t.Fatalf("expected default offset literal 0, got %+v", inst.Addr.Offset)
	}
}

func TestParseMacroInvocationPreservesRawBody(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\nli!(a0, 0x2A)\n")
	inv, ok := root.Sections[0].Lines[0].Stmt.(*MacroInvocation)
	if !ok {
		t.Fatalf("expected *MacroInvocation, got %T", root.Sections[0].Lines[0].Stmt)
	}
	if inv.Name != "li" || inv.Delim != DelimParen {
		t.Errorf("unexpected invocation name/delim: %q %v", inv.Name, inv.Delim)
	}
	if len(inv.Body) == 0 {
		t.Error("expected a non-empty raw body")
	}
}

func TestParseMacroDefinitionWithRepetitionGroup(t *testing.T) {
	root := mustParse(t, "define_macro! push { ($($r:reg)+) => ( $( addi sp, sp, -4 ) $( sw $r, [sp+0] )+ ) }\n"+
		"#SECTION .TEXT\n")
	def := root.Preamble.Lines[0].Stmt.(*MacroDefinition)
	rule := def.Rules[0]
	if len(rule.Matcher) != 1 || rule.Matcher[0].Kind != MatchGroup {
		t.Fatalf("expected a single repetition group matcher, got %+v", rule.Matcher)
	}
	if rule.Matcher[0].Quant != RepeatOneOrMore {
		t.Errorf("expected + quantifier, got %v", rule.Matcher[0].Quant)
	}
	inner := rule.Matcher[0].Inner
	if len(inner) != 1 || inner[0].Kind != MatchCapture || inner[0].Capture != CaptureReg {
		t.Fatalf("expected inner $r:reg capture, got %+v", inner)
	}
}

func TestParseUnknownDirectiveIsError(t *testing.T) {
	buf := NewSourceBuffer("test.s", "#SECTION .TEXT\n#BOGUS 1\n")
	tokens, _ := Tokenize(buf)
	p := NewParser(tokens)
	p.ParseRoot()
	if p.Errors().Ok() {
		t.Fatal("expected an error for unknown directive #BOGUS")
	}
}

func TestParseUnterminatedLabeledBlockIsError(t *testing.T) {
	buf := NewSourceBuffer("test.s", "#SECTION .TEXT\nstart {\naddi r0, r0, 0\n")
	tokens, _ := Tokenize(buf)
	p := NewParser(tokens)
	p.ParseRoot()
	if p.Errors().Ok() {
		t.Fatal("expected an unterminated-block error")
	}
}

func TestParseStatementSequenceNoNewlineSeparators(t *testing.T) {
	buf := NewSourceBuffer("test.s", "addi r0, r0, 0 addi r0, r0, 1")
	tokens, lexErrs := Tokenize(buf)
	if !lexErrs.Ok() {
		t.Fatalf("unexpected lex errors: %v", lexErrs.Errors)
	}
	stmts, errs := ParseStatementSequence(tokens)
	if !errs.Ok() {
		t.Fatalf("unexpected parse errors: %v", errs.Errors)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if _, ok := stmts[0].(*Instruction); !ok {
		t.Errorf("expected first statement to be *Instruction, got %T", stmts[0])
	}
	if _, ok := stmts[1].(*Instruction); !ok {
		t.Errorf("expected second statement to be *Instruction, got %T", stmts[1])
	}
}

func TestParseLocalLabelRefAndLabelRef(t *testing.T) {
	root := mustParse(t, "#SECTION .TEXT\naddi r1, r0, foo\n")
	inst := root.Sections[0].Lines[0].Stmt.(*Instruction)
	ref, ok := inst.Imm.(*LabelRef)
	if !ok || ref.Name != "foo" {
		t.Fatalf("expected *LabelRef(foo), got %+v", inst.Imm)
	}
}
