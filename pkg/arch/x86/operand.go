// Package x86 implements the segmented real-mode architecture: decode (C3)
// and abstract state (C2) for a representative subset of the instruction
// set, sufficient to exercise the segmented addressing and control-flow
// shapes SPEC_FULL.md calls out. Per SPEC_FULL.md's OPEN QUESTION DECISIONS, this
// pipeline stops at disassembly (C3/C4/C6 only) — no call graph recovery or
// recompilation is attempted for this architecture.
package x86

import "fmt"

// Reg16 names one of the eleven 16-bit registers: eight general, three segment.
type Reg16 uint8

const (
	AX Reg16 = iota
	BX
	CX
	DX
	SP
	BP
	SI
	DI
	DS
	ES
	SS
)

var reg16Names = [...]string{"ax", "bx", "cx", "dx", "sp", "bp", "si", "di", "ds", "es", "ss"}

func (r Reg16) String() string { return reg16Names[r] }

// Reg8 names one of the eight 8-bit byte registers, each a projection of a
// Reg16's low or high byte (ax -> al/ah, etc).
type Reg8 uint8

const (
	AL Reg8 = iota
	AH
	BL
	BH
	CL
	CH
	DL
	DH
)

var reg8Names = [...]string{"al", "ah", "bl", "bh", "cl", "ch", "dl", "dh"}

func (r Reg8) String() string { return reg8Names[r] }

// parent16 returns the Reg16 a Reg8 is a projection of, and whether it is
// the high byte of that register.
func (r Reg8) parent16() (Reg16, bool) {
	switch r {
	case AL:
		return AX, false
	case AH:
		return AX, true
	case BL:
		return BX, false
	case BH:
		return BX, true
	case CL:
		return CX, false
	case CH:
		return CX, true
	case DL:
		return DX, false
	default: // DH
		return DX, true
	}
}

// RegOperand is a bare register reference operand.
type RegOperand struct {
	R8  Reg8
	R16 Reg16
	Is8 bool
}

func (RegOperand) isOperand() {}
func (o RegOperand) String() string {
	if o.Is8 {
		return o.R8.String()
	}
	return o.R16.String()
}

// Imm is an immediate operand of the given bit width (8 or 16).
type Imm struct {
	Value uint16
	Bits  int
}

func (Imm) isOperand() {}
func (o Imm) String() string {
	if o.Bits == 8 {
		return fmt.Sprintf("%#02x", uint8(o.Value))
	}
	return fmt.Sprintf("%#04x", o.Value)
}

// Rel is a PC-relative branch displacement operand, already resolved to an
// absolute offset by the decoder.
type Rel struct{ Target uint16 }

func (Rel) isOperand()       {}
func (o Rel) String() string { return fmt.Sprintf("%#04x", o.Target) }

// PointerKind discriminates the seven addressing-mode shapes state.rs's
// Pointer enum carries.
type PointerKind uint8

const (
	PtrDisp16 PointerKind = iota
	PtrReg
	PtrRegReg
	PtrRegDisp8
	PtrRegRegDisp8
	PtrRegDisp16
	PtrRegRegDisp16
)

// Mem is a memory operand addressed through one of the pointer-expression
// shapes above, always accessed relative to a segment register (DS, or SS
// when BP is the base register). Segment-override prefixes are not decoded.
type Mem struct {
	Kind  PointerKind
	Seg   Reg16
	Base  Reg16
	Index Reg16
	Disp  uint16
}

func (Mem) isOperand() {}
func (o Mem) String() string {
	switch o.Kind {
	case PtrDisp16:
		return fmt.Sprintf("%s:[%#04x]", o.Seg, o.Disp)
	case PtrReg:
		return fmt.Sprintf("%s:[%s]", o.Seg, o.Base)
	case PtrRegReg:
		return fmt.Sprintf("%s:[%s+%s]", o.Seg, o.Base, o.Index)
	case PtrRegDisp8, PtrRegDisp16:
		return fmt.Sprintf("%s:[%s+%#x]", o.Seg, o.Base, o.Disp)
	default: // PtrRegRegDisp8, PtrRegRegDisp16
		return fmt.Sprintf("%s:[%s+%s+%#x]", o.Seg, o.Base, o.Index, o.Disp)
	}
}

// SegPtr is a far pointer operand: an explicit segment:offset pair, used by
// far call/jump targets.
type SegPtr struct {
	Segment uint16
	Offset  uint16
}

func (SegPtr) isOperand()       {}
func (o SegPtr) String() string { return fmt.Sprintf("%04x:%04x", o.Segment, o.Offset) }
