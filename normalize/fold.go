package normalize

import (
	"github.com/rvasm/rvasm/internal/ast"
	"github.com/rvasm/rvasm/internal/diag"
)

// foldImmediate reduces imm to the simplest form its operands allow: a
// *ast.Literal when every leaf is a literal or a resolved #CONST, or the
// original (partially folded) node when it still references an unresolved
// label — the handoff to the code generator per spec.md §4.5 item 6.
func foldImmediate(imm ast.Immediate, n *normalizer) ast.Immediate {
	switch e := imm.(type) {
	case *ast.Literal:
		return e

	case *ast.LabelRef:
		if v, ok := n.consts[e.Name]; ok {
			return &ast.Literal{Kind: ast.LiteralInt, Int: v}
		}
		// Not a constant: leave as an unresolved label reference for the
		// code generator, but check it names a label somewhere in the unit
		// so a typo is caught now rather than at link time.
		if !n.allLabels[e.Name] {
			n.sink.AddAt(e, diag.SeverityError, diag.CodeUnknownSymbol, "undefined symbol %q", e.Name)
		}
		return e

	case *ast.LocalLabelRef:
		if !n.inBlock() {
			n.sink.AddAt(e, diag.SeverityError, diag.CodeUnknownSymbol,
				"local label %q used outside any labeled block", e.Name)
		}
		return e

	case *ast.UnaryExpr:
		operand := foldImmediate(e.Operand, n)
		lit, ok := operand.(*ast.Literal)
		if !ok {
			e.Operand = operand
			return e
		}
		return &ast.Literal{Kind: ast.LiteralInt, Int: evalUnary(e.Op, lit.Int)}

	case *ast.BinaryExpr:
		left := foldImmediate(e.Left, n)
		right := foldImmediate(e.Right, n)
		leftLit, leftOk := left.(*ast.Literal)
		rightLit, rightOk := right.(*ast.Literal)
		if !leftOk || !rightOk {
			e.Left, e.Right = left, right
			return e
		}
		v, ok := evalBinary(e.Op, leftLit.Int, rightLit.Int)
		if !ok {
			n.sink.AddAt(e, diag.SeverityError, diag.CodeDivByZero, "division or remainder by zero")
			return e
		}
		return &ast.Literal{Kind: ast.LiteralInt, Int: v}

	case *ast.TernaryExpr:
		cond := foldImmediate(e.Cond, n)
		condLit, ok := cond.(*ast.Literal)
		if !ok {
			e.Cond = cond
			return e
		}
		// The untaken branch is evaluated lazily: it is not folded at all,
		// so an error in it is never reported (spec.md §4.5 item 3).
		if condLit.Int != 0 {
			return foldImmediate(e.Then, n)
		}
		return foldImmediate(e.Else, n)

	default:
		return imm
	}
}

// evalUnary applies a unary operator using 64-bit two's-complement
// arithmetic. UnaryNot is logical negation (spec.md §3: op ∈ {+,-,!,~}).
func evalUnary(op ast.UnaryOp, v int64) int64 {
	switch op {
	case ast.UnaryPlus:
		return v
	case ast.UnaryMinus:
		return -v
	case ast.UnaryNot:
		if v == 0 {
			return 1
		}
		return 0
	case ast.UnaryBitNot:
		return ^v
	default:
		return v
	}
}

// evalBinary applies a binary operator using 64-bit signed two's-complement
// arithmetic (spec.md §4.5 item 3): >>> is logical (unsigned) shift, >> is
// arithmetic (signed) shift, comparisons and logical operators produce 0 or
// 1, and division/remainder by zero report ok=false instead of panicking.
func evalBinary(op ast.BinOp, l, r int64) (result int64, ok bool) {
	switch op {
	case ast.BinOr:
		return boolInt(l != 0 || r != 0), true
	case ast.BinXorXor:
		return boolInt((l != 0) != (r != 0)), true
	case ast.BinAnd:
		return boolInt(l != 0 && r != 0), true
	case ast.BinBitOr:
		return l | r, true
	case ast.BinBitXor:
		return l ^ r, true
	case ast.BinBitAnd:
		return l & r, true
	case ast.BinEq:
		return boolInt(l == r), true
	case ast.BinNeq:
		return boolInt(l != r), true
	case ast.BinLt:
		return boolInt(l < r), true
	case ast.BinLe:
		return boolInt(l <= r), true
	case ast.BinGt:
		return boolInt(l > r), true
	case ast.BinGe:
		return boolInt(l >= r), true
	case ast.BinLshift:
		return l << uint64(r), true
	case ast.BinRshift:
		return l >> uint64(r), true
	case ast.BinRshiftLogical:
		return int64(uint64(l) >> uint64(r)), true
	case ast.BinAdd:
		return l + r, true
	case ast.BinSub:
		return l - r, true
	case ast.BinMul:
		return l * r, true
	case ast.BinDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ast.BinMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	default:
		return 0, true
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
