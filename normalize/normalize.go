// Package normalize implements the last front-end stage (spec.md §4.5): it
// walks a macro-free AST, builds the #CONST environment, resolves register
// aliases to canonical indices, folds immediate expressions, range-checks
// the results, and validates each section's statement-kind rules. The
// output is handed to the (out-of-scope) code generator unchanged in
// shape: normalization never adds or removes statements, only rewrites
// operand fields in place.
package normalize

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
	"github.com/rvasm/rvasm/internal/riscv"
)

// Normalize runs the full normalization pass over root and returns it
// (mutated in place) for chaining. extensions gates which mnemonics are
// permitted to appear (spec.md §6, SPEC_FULL.md domain stack).
func Normalize(root *ast.Root, extensions riscv.ExtensionSet, sink *diag.Sink) *ast.Root {
	labels := collectLabels(root, sink)
	consts := BuildConstEnv(root, labels, sink)

	n := &normalizer{consts: consts, allLabels: labels, extensions: extensions, sink: sink}

	if root.Preamble != nil {
		n.walkLines(root.Preamble.Lines, sectionNone)
	}
	for _, sec := range root.Sections {
		n.walkLines(sec.Lines, sec.Kind)
	}
	return root
}

// sectionNone marks statements outside any section (preamble), which are
// not subject to §4.5 item 5's per-section statement rules.
const sectionNone ast.SectionKind = 255

type normalizer struct {
	consts     map[string]int64
	allLabels  map[string]bool
	extensions riscv.ExtensionSet
	sink       *diag.Sink
	blockDepth int
}

func (n *normalizer) inBlock() bool { return n.blockDepth > 0 }

func (n *normalizer) enterBlock(*ast.LabeledBlock) { n.blockDepth++ }
func (n *normalizer) leaveBlock()                  { n.blockDepth-- }

func (n *normalizer) walkLines(lines []*ast.Line, kind ast.SectionKind) {
	for _, line := range lines {
		if line.Stmt == nil {
			continue
		}
		n.checkSectionRule(line.Stmt, kind)
		n.walkStatement(line.Stmt, kind)
	}
}

func (n *normalizer) walkStatement(stmt ast.Statement, kind ast.SectionKind) {
	switch s := stmt.(type) {
	case *ast.LabeledBlock:
		n.enterBlock(s)
		n.walkLines(s.Lines, kind)
		n.leaveBlock()
	case *ast.Directive:
		n.normalizeDirective(s)
	case *ast.Instruction:
		n.normalizeInstruction(s)
	case *ast.MacroDefinition, *ast.MacroInvocation:
		// The expander guarantees none remain by the time normalization runs
		// (spec.md §3 invariants). Seeing one here means that guarantee was
		// broken upstream, not a normal user-facing error.
		n.sink.AddAt(stmt, diag.SeverityError, diag.CodeInternalAssertion,
			"%T reached normalization unexpanded", stmt)
	}
}

func (n *normalizer) fold(imm ast.Immediate) ast.Immediate {
	return foldImmediate(imm, n)
}

func (n *normalizer) normalizeDirective(d *ast.Directive) {
	switch d.Kind {
	case ast.DirBytes:
		n.normalizeDataList(d, 8)
	case ast.DirHalves:
		n.normalizeDataList(d, 16)
	case ast.DirWords:
		n.normalizeDataList(d, 32)
	case ast.DirResBytes, ast.DirResHalves, ast.DirResWords:
		n.normalizeReservationList(d)
	case ast.DirConst:
		// BuildConstEnv has already evaluated this value and reported any
		// cycle, undefined name or division by zero in it; a value it could
		// not resolve is left as written.
		if _, ok := n.consts[d.ConstName]; ok {
			d.ConstValue = n.fold(d.ConstValue)
		}
	}
}

func (n *normalizer) normalizeDataList(d *ast.Directive, bits int) {
	for i, v := range d.Values {
		folded := n.fold(v)
		checkDataWidth(folded, bits, n.sink)
		d.Values[i] = folded
	}
}

func (n *normalizer) normalizeReservationList(d *ast.Directive) {
	for i, v := range d.Values {
		folded := n.fold(v)
		checkNonNegative(folded, n.sink)
		d.Values[i] = folded
	}
}

func (n *normalizer) normalizeInstruction(inst *ast.Instruction) {
	info, known := riscv.LookupMnemonic(inst.Mnemonic)
	if known && !n.extensions.Enabled(info) {
		n.sink.AddAt(inst, diag.SeverityError, diag.CodeExtensionDisabled,
			"mnemonic %q requires an extension that is not enabled", inst.Mnemonic)
	}

	n.resolveRegister(inst.Rd)
	n.resolveRegister(inst.Rs1)
	n.resolveRegister(inst.Rs2)

	if inst.Imm != nil {
		inst.Imm = n.fold(inst.Imm)
		if width := inst.Shape.Immediate(); width.Bits > 0 {
			checkImmediateRange(inst.Imm, width, n.sink)
		}
	}
	if inst.Addr != nil {
		n.resolveRegister(inst.Addr.Base)
		inst.Addr.Offset = n.fold(inst.Addr.Offset)
		checkImmediateRange(inst.Addr.Offset, riscv.ImmediateWidth{Bits: 12, Signed: true}, n.sink)
	}
	if inst.CSR != nil {
		inst.CSR = n.fold(inst.CSR)
		checkImmediateRange(inst.CSR, riscv.ImmediateWidth{Bits: 12, Signed: false}, n.sink)
	}
	if inst.Uimm != nil {
		inst.Uimm = n.fold(inst.Uimm)
		checkImmediateRange(inst.Uimm, riscv.ImmediateWidth{Bits: 5, Signed: false}, n.sink)
	}
}

func (n *normalizer) resolveRegister(r *ast.Register) {
	if r == nil {
		return
	}
	idx, ok := riscv.LookupRegister(r.Name)
	if !ok {
		n.sink.AddAt(r, diag.SeverityError, diag.CodeUnknownRegister, "unknown register %q", r.Name)
		return
	}
	r.Index = idx
}
