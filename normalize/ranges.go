package normalize

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
	"github.com/rvasm/rvasm/internal/riscv"
)

// checkImmediateRange reports an ImmediateOverflow diagnostic if imm is a
// folded literal that does not fit width (spec.md §4.5 item 4). An
// unresolved label reference is skipped: its value is not known until the
// code generator assigns addresses.
func checkImmediateRange(imm ast.Immediate, width riscv.ImmediateWidth, sink *diag.Sink) {
	lit, ok := imm.(*ast.Literal)
	if !ok || width.Bits == 0 {
		return
	}
	if lit.Kind == ast.LiteralString {
		sink.AddAt(lit, diag.SeverityError, diag.CodeInvalidImmediate, "string literal is not a valid immediate value")
		return
	}
	if width.LowBitZero && lit.Int%2 != 0 {
		sink.AddAt(lit, diag.SeverityError, diag.CodeImmediateOverflow,
			"value %d has a nonzero low bit, but this operand's low bit is implicit zero", lit.Int)
		return
	}
	lo, hi := rangeFor(width)
	if lit.Int < lo || lit.Int > hi {
		sink.AddAt(lit, diag.SeverityError, diag.CodeImmediateOverflow,
			"value %d does not fit in a %d-bit %s immediate (range [%d, %d])",
			lit.Int, width.Bits, signedness(width), lo, hi)
	}
}

func signedness(w riscv.ImmediateWidth) string {
	if w.Signed {
		return "signed"
	}
	return "unsigned"
}

func rangeFor(w riscv.ImmediateWidth) (lo, hi int64) {
	if !w.Signed {
		hi := (uint64(1) << uint(w.Bits)) - 1
		return 0, int64(hi)
	}
	half := uint64(1) << uint(w.Bits-1)
	return -int64(half), int64(half - 1)
}

// checkDataWidth validates a #BYTES/#HALVES/#WORDS literal, accepting
// either its signed or unsigned bits-wide representation — an assembler
// convention letting -1 stand for a byte's all-one-bits pattern just as
// 0xFF does (spec.md §3: "each must fit in 8/16/32 bits respectively").
func checkDataWidth(imm ast.Immediate, bits int, sink *diag.Sink) {
	lit, ok := imm.(*ast.Literal)
	if !ok {
		return
	}
	if lit.Kind == ast.LiteralString {
		sink.AddAt(lit, diag.SeverityError, diag.CodeInvalidImmediate, "string literal is not a valid immediate value")
		return
	}
	signedLo, _ := rangeFor(riscv.ImmediateWidth{Bits: bits, Signed: true})
	_, unsignedHi := rangeFor(riscv.ImmediateWidth{Bits: bits, Signed: false})
	if lit.Int < signedLo || lit.Int > unsignedHi {
		sink.AddAt(lit, diag.SeverityError, diag.CodeImmediateOverflow,
			"value %d does not fit in %d bits", lit.Int, bits)
	}
}

// checkNonNegative validates a #RES_* reservation count.
func checkNonNegative(imm ast.Immediate, sink *diag.Sink) {
	lit, ok := imm.(*ast.Literal)
	if !ok {
		return
	}
	if lit.Int < 0 {
		sink.AddAt(lit, diag.SeverityError, diag.CodeImmediateOverflow, "reservation count %d must be non-negative", lit.Int)
	}
}
