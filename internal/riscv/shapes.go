package riscv

//go:generate go run golang.org/x/tools/cmd/stringer@latest -type ShapeClass

// ShapeClass identifies the operand tuple template associated with an
// instruction mnemonic (spec.md §3 "Shape class").
type ShapeClass byte

const (
	ShapeInvalid ShapeClass = iota
	ShapeIType              // rd, rs1, imm12s
	ShapeRType              // rd, rs1, rs2
	ShapeUType              // rd, imm20
	ShapeJType              // rd, imm21s (low bit implicit zero)
	ShapeITypeJump          // jalr: rd, rs1, imm12s
	ShapeBType              // rs1, rs2, imm13s (low bit implicit zero)
	ShapeLoad               // rd, [rs1 +- imm12s]
	ShapeStore              // rs2, [rs1 +- imm12s]
	ShapeFenceMem           // fence pred, succ
	ShapeFenceTSO           // fence.tso (no operands)
	ShapeEnv                // ecall / ebreak (no operands)
	ShapeFenceI             // fence.i (no operands)
	ShapeCSRReg             // rd, csr, rs1
	ShapeCSRImm             // rd, csr, uimm5
)

func (s ShapeClass) String() string {
	switch s {
	case ShapeIType:
		return "ShapeIType"
	case ShapeRType:
		return "ShapeRType"
	case ShapeUType:
		return "ShapeUType"
	case ShapeJType:
		return "ShapeJType"
	case ShapeITypeJump:
		return "ShapeITypeJump"
	case ShapeBType:
		return "ShapeBType"
	case ShapeLoad:
		return "ShapeLoad"
	case ShapeStore:
		return "ShapeStore"
	case ShapeFenceMem:
		return "ShapeFenceMem"
	case ShapeFenceTSO:
		return "ShapeFenceTSO"
	case ShapeEnv:
		return "ShapeEnv"
	case ShapeFenceI:
		return "ShapeFenceI"
	case ShapeCSRReg:
		return "ShapeCSRReg"
	case ShapeCSRImm:
		return "ShapeCSRImm"
	default:
		return "ShapeInvalid"
	}
}

var shapeNames = map[string]ShapeClass{
	"itype":      ShapeIType,
	"rtype":      ShapeRType,
	"utype":      ShapeUType,
	"jtype":      ShapeJType,
	"itype_jump": ShapeITypeJump,
	"btype":      ShapeBType,
	"load":       ShapeLoad,
	"store":      ShapeStore,
	"fence_mem":  ShapeFenceMem,
	"fence_tso":  ShapeFenceTSO,
	"env":        ShapeEnv,
	"fence_i":    ShapeFenceI,
	"csr_reg":    ShapeCSRReg,
	"csr_imm":    ShapeCSRImm,
}

func shapeFromString(s string) (ShapeClass, bool) {
	sc, ok := shapeNames[s]
	return sc, ok
}

// ImmediateWidth describes the host slot that a folded immediate literal
// must fit into for range-checking purposes (spec.md §4.5 item 4).
type ImmediateWidth struct {
	Bits       int  // width in bits, 0 if the shape carries no immediate
	Signed     bool // two's-complement signed range vs. unsigned range
	LowBitZero bool // low bit is implicit zero and not counted (branch/jump offsets)
}

// Immediate returns the immediate-slot description for a shape class.
// Shapes without an immediate operand (R-type, fence/env/fence.i) return
// the zero value.
func (s ShapeClass) Immediate() ImmediateWidth {
	switch s {
	case ShapeIType, ShapeITypeJump, ShapeLoad, ShapeStore:
		return ImmediateWidth{Bits: 12, Signed: true}
	case ShapeUType:
		return ImmediateWidth{Bits: 20, Signed: false}
	case ShapeJType:
		return ImmediateWidth{Bits: 21, Signed: true, LowBitZero: true}
	case ShapeBType:
		return ImmediateWidth{Bits: 13, Signed: true, LowBitZero: true}
	case ShapeCSRImm:
		return ImmediateWidth{Bits: 5, Signed: false}
	default:
		return ImmediateWidth{}
	}
}

// HasImmediate reports whether the shape carries an immediate/offset operand.
func (s ShapeClass) HasImmediate() bool {
	return s.Immediate().Bits > 0
}
