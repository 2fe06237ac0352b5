package macro

import (
	"testing"

	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// parseProgram lexes and parses src, failing the test on any diagnostic
// from either stage, and returns the resulting root.
func parseProgram(t *testing.T, src string) *ast.Root {
	t.Helper()
	buf := ast.NewSourceBuffer("test.s", src)
	tokens, lexErrs := ast.Tokenize(buf)
	if !lexErrs.Ok() {
		t.Fatalf("lex errors: %v", lexErrs.Errors)
	}
	p := ast.NewParser(tokens)
	root := p.ParseRoot()
	if !p.Errors().Ok() {
		t.Fatalf("parse errors: %v", p.Errors().Errors)
	}
	return root
}

func firstInstruction(t *testing.T, lines []*ast.Line) *ast.Instruction {
	t.Helper()
	for _, l := range lines {
		if inst, ok := l.Stmt.(*ast.Instruction); ok {
			return inst
		}
	}
	t.Fatal("no instruction found")
	return nil
}

func instructions(lines []*ast.Line) []*ast.Instruction {
	var out []*ast.Instruction
	for _, l := range lines {
		if inst, ok := l.Stmt.(*ast.Instruction); ok {
			out = append(out, inst)
		}
	}
	return out
}

func literalInt(t *testing.T, imm ast.Immediate) int64 {
	t.Helper()
	lit, ok := imm.(*ast.Literal)
	if !ok {
		t.Fatalf("expected *ast.Literal, got %T", imm)
	}
	return lit.Int
}

// TestExpandNop covers spec.md §8 scenario 2: a zero-argument macro
// expanding to one fixed instruction.
func TestExpandNop(t *testing.T) {
	src := "define_macro! nop { () => ( addi r0, r0, 0 ) }\n" +
		"#SECTION .TEXT\n" +
		"nop!()\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)
	if sink.HasError() {
		t.Fatalf("unexpected errors: %v", sink.Errors())
	}

	insts := instructions(root.Sections[0].Lines)
	if len(insts) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(insts))
	}
	inst := insts[0]
	if inst.Mnemonic != "addi" {
		t.Errorf("expected addi, got %q", inst.Mnemonic)
	}
	if inst.Rd.Name != "r0" || inst.Rs1.Name != "r0" {
		t.Errorf("expected all-zero register operands, got rd=%q rs1=%q", inst.Rd.Name, inst.Rs1.Name)
	}
	if got := literalInt(t, inst.Imm); got != 0 {
		t.Errorf("expected immediate 0, got %d", got)
	}
}

// TestExpandLi covers spec.md §8 scenario 3: a macro with a register
// capture and an immediate capture substituted into a single instruction.
func TestExpandLi(t *testing.T) {
	src := "define_macro! li { ($rd:reg, $v:imm) => ( addi $rd, r0, $v ) }\n" +
		"#SECTION .TEXT\n" +
		"li!(a0, 0x2A)\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)
	if sink.HasError() {
		t.Fatalf("unexpected errors: %v", sink.Errors())
	}

	inst := firstInstruction(t, root.Sections[0].Lines)
	if inst.Mnemonic != "addi" {
		t.Errorf("expected addi, got %q", inst.Mnemonic)
	}
	if inst.Rd.Name != "a0" {
		t.Errorf("expected rd=a0, got %q", inst.Rd.Name)
	}
	if inst.Rs1.Name != "r0" {
		t.Errorf("expected rs1=r0, got %q", inst.Rs1.Name)
	}
	if got := literalInt(t, inst.Imm); got != 0x2A {
		t.Errorf("expected immediate 42, got %d", got)
	}
}

// TestExpandPush covers spec.md §8 scenario 4: a repetition capture
// ($($r:reg)+) driving two transcriber groups in lockstep, one of which
// (the sp decrements) never references the capture at all and must infer
// its iteration count from the other.
func TestExpandPush(t *testing.T) {
	src := "define_macro! push { ($($r:reg)+) => ( $( addi sp, sp, -4 ) $( sw $r, [sp+0] )+ ) }\n" +
		"#SECTION .TEXT\n" +
		"push!(a0 a1)\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)
	if sink.HasError() {
		t.Fatalf("unexpected errors: %v", sink.Errors())
	}

	insts := instructions(root.Sections[0].Lines)
	if len(insts) != 4 {
		t.Fatalf("expected 4 instructions (2 decrements + 2 stores), got %d", len(insts))
	}
	for i := 0; i < 2; i++ {
		if insts[i].Mnemonic != "addi" {
			t.Errorf("instruction %d: expected addi, got %q", i, insts[i].Mnemonic)
		}
		if insts[i].Rd.Name != "sp" || insts[i].Rs1.Name != "sp" {
			t.Errorf("instruction %d: expected sp, sp operands, got %q, %q", i, insts[i].Rd.Name, insts[i].Rs1.Name)
		}
		// The transcribed "-4" is re-parsed as unary minus applied to 4;
		// folding it to a literal is the normalizer's job, not expansion's.
		neg, ok := insts[i].Imm.(*ast.UnaryExpr)
		if !ok || neg.Op != ast.UnaryMinus {
			t.Errorf("instruction %d: expected immediate -4 as unary minus, got %T", i, insts[i].Imm)
		} else if got := literalInt(t, neg.Operand); got != 4 {
			t.Errorf("instruction %d: expected immediate -4, got -%d", i, got)
		}
	}
	wantRegs := []string{"a0", "a1"}
	for i, want := range wantRegs {
		sw := insts[2+i]
		if sw.Mnemonic != "sw" {
			t.Errorf("instruction %d: expected sw, got %q", 2+i, sw.Mnemonic)
		}
		if sw.Rs2.Name != want {
			t.Errorf("instruction %d: expected rs2=%s, got %q", 2+i, want, sw.Rs2.Name)
		}
		if sw.Addr.Base.Name != "sp" {
			t.Errorf("instruction %d: expected base=sp, got %q", 2+i, sw.Addr.Base.Name)
		}
	}
}

// TestExpandUndefinedMacro covers the error path: invoking a name with no
// matching definition reports CodeUndefinedMacro instead of panicking.
func TestExpandUndefinedMacro(t *testing.T) {
	src := "#SECTION .TEXT\n" +
		"frobnicate!()\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)

	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Code != diag.CodeUndefinedMacro {
		t.Errorf("expected CodeUndefinedMacro, got %v", errs[0].Code)
	}
}

// TestExpandNoMatchingRule covers a macro whose single rule's matcher
// cannot consume the invocation body at all.
func TestExpandNoMatchingRule(t *testing.T) {
	src := "define_macro! li { ($rd:reg, $v:imm) => ( addi $rd, r0, $v ) }\n" +
		"#SECTION .TEXT\n" +
		"li!(a0)\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)

	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Code != diag.CodeMacroNoMatch {
		t.Errorf("expected CodeMacroNoMatch, got %v", errs[0].Code)
	}
}

// TestExpandCaptureDepthMismatchScalarInRepetition covers spec.md §4.4 step
// 5 / §9: a capture bound once (outside any matcher repetition) but
// referenced inside a transcriber repetition group must be rejected, not
// silently repeated.
func TestExpandCaptureDepthMismatchScalarInRepetition(t *testing.T) {
	src := "define_macro! bad { ($v:imm, $($r:reg)+) => ( $( addi $r, r0, $v )+ ) }\n" +
		"#SECTION .TEXT\n" +
		"bad!(1, a0 a1)\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)

	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Code != diag.CodeMacroCaptureDepthMismatch {
		t.Errorf("expected CodeMacroCaptureDepthMismatch, got %v", errs[0].Code)
	}
	if len(instructions(root.Sections[0].Lines)) != 0 {
		t.Error("expected no instructions to survive a rejected expansion")
	}
}

// TestExpandCaptureDepthMismatchVectorOutsideRepetition covers the
// symmetric case: a capture bound inside a matcher repetition group
// (a vector) referenced as a bare scalar in the transcriber.
func TestExpandCaptureDepthMismatchVectorOutsideRepetition(t *testing.T) {
	src := "define_macro! bad2 { ($($r:reg)+) => ( addi $r, r0, 0 ) }\n" +
		"#SECTION .TEXT\n" +
		"bad2!(a0 a1)\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)
	Expand(root, store, sink, 128)

	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Code != diag.CodeMacroCaptureDepthMismatch {
		t.Errorf("expected CodeMacroCaptureDepthMismatch, got %v", errs[0].Code)
	}
}

// TestStoreRedefinition covers macro redefinition being reported rather
// than silently overwriting the first definition (spec.md §4.3).
func TestStoreRedefinition(t *testing.T) {
	src := "define_macro! nop { () => ( addi r0, r0, 0 ) }\n" +
		"define_macro! nop { () => ( addi r0, r0, 1 ) }\n" +
		"#SECTION .TEXT\n" +
		"nop!()\n"
	root := parseProgram(t, src)
	sink := diag.NewSink(20)
	store := CollectDefinitions(root, sink)

	errs := sink.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 redefinition error, got %d: %v", len(errs), errs)
	}
	if errs[0].Code != diag.CodeRedefinedMacro {
		t.Errorf("expected CodeRedefinedMacro, got %v", errs[0].Code)
	}

	// The first definition should still be the one in effect.
	Expand(root, store, sink, 128)
	inst := firstInstruction(t, root.Sections[0].Lines)
	if got := literalInt(t, inst.Imm); got != 0 {
		t.Errorf("expected first definition (imm=0) to win, got %d", got)
	}
}
