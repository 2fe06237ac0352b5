package ast

//go:generate go run golang.org/x/tools/cmd/stringer@latest -type BinOp,UnaryOp

// BinOp is a binary operator in the immediate expression grammar
// (spec.md §4.2). Declaration order matches the precedence ladder from
// loosest to tightest binding, the same idea as the teacher's ArithOp
// table, extended with the full comparison/logical/ternary-adjacent set.
type BinOp byte

const (
	BinOr BinOp = iota + 1 // ||
	BinXorXor               // ^^
	BinAnd                  // &&
	BinBitOr                // |
	BinBitXor               // ^
	BinBitAnd               // &
	BinEq                   // ==
	BinNeq                  // !=
	BinLt                   // <
	BinLe                   // <=
	BinGt                   // >
	BinGe                   // >=
	BinLshift               // <<
	BinRshift               // >>  (arithmetic/signed)
	BinRshiftLogical        // >>> (logical/unsigned)
	BinAdd                  // +
	BinSub                  // -
	BinMul                  // *
	BinDiv                  // /
	BinMod                  // %
)

// precedence gives each binary operator's binding strength: higher binds
// tighter. All binary operators are left-associative (spec.md §4.2).
var precedence = map[BinOp]int{
	BinOr:            1,
	BinXorXor:        2,
	BinAnd:           3,
	BinBitOr:         4,
	BinBitXor:        5,
	BinBitAnd:        6,
	BinEq:            7,
	BinNeq:           7,
	BinLt:            8,
	BinLe:            8,
	BinGt:            8,
	BinGe:            8,
	BinLshift:        9,
	BinRshift:        9,
	BinRshiftLogical: 9,
	BinAdd:           10,
	BinSub:           10,
	BinMul:           11,
	BinDiv:           11,
	BinMod:           11,
}

// binOpFromText maps an operator token's lexeme to a BinOp. ok is false for
// lexemes that are unary-only ("!", "~") or not operators at all.
func binOpFromText(text string) (BinOp, bool) {
	switch text {
	case "||":
		return BinOr, true
	case "^^":
		return BinXorXor, true
	case "&&":
		return BinAnd, true
	case "|":
		return BinBitOr, true
	case "^":
		return BinBitXor, true
	case "&":
		return BinBitAnd, true
	case "==":
		return BinEq, true
	case "!=":
		return BinNeq, true
	case "<":
		return BinLt, true
	case "<=":
		return BinLe, true
	case ">":
		return BinGt, true
	case ">=":
		return BinGe, true
	case "<<":
		return BinLshift, true
	case ">>":
		return BinRshift, true
	case ">>>":
		return BinRshiftLogical, true
	case "+":
		return BinAdd, true
	case "-":
		return BinSub, true
	case "*":
		return BinMul, true
	case "/":
		return BinDiv, true
	case "%":
		return BinMod, true
	default:
		return 0, false
	}
}

// UnaryOp is a prefix operator in the immediate expression grammar.
type UnaryOp byte

const (
	UnaryPlus UnaryOp = iota + 1
	UnaryMinus
	UnaryNot    // ! logical
	UnaryBitNot // ~ bitwise
)

func unaryOpFromText(text string) (UnaryOp, bool) {
	switch text {
	case "+":
		return UnaryPlus, true
	case "-":
		return UnaryMinus, true
	case "!":
		return UnaryNot, true
	case "~":
		return UnaryBitNot, true
	default:
		return 0, false
	}
}
