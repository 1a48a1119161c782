package x86

import (
	"github.com/DealPete/decompiler/pkg/lattice"
	"github.com/DealPete/decompiler/pkg/state"
)

// Registers holds the eleven 16-bit register cells as abstract Words,
// ported from original_source/state.rs's Registers struct (ax, bx, cx, dx,
// sp, bp, si, di, ds, es, ss). Byte registers (al/ah, ...) are projections
// computed on demand via lattice.Word's SplitLow/SplitHigh, matching
// state.rs's get_reg8/set_reg8.
type Registers struct {
	cells [11]lattice.Word
}

// NewRegisters returns a register file with every cell Undefined.
func NewRegisters() Registers {
	var r Registers
	for i := range r.cells {
		r.cells[i] = lattice.WordUndefined
	}
	return r
}

func (r Registers) Get16(reg Reg16) lattice.Word { return r.cells[reg] }

func (r Registers) Set16(reg Reg16, v lattice.Word) Registers {
	next := r
	next.cells[reg] = v
	return next
}

func (r Registers) Get8(reg Reg8) lattice.Byte {
	parent, high := reg.parent16()
	w := r.cells[parent]
	if high {
		return w.SplitHigh()
	}
	return w.SplitLow()
}

func (r Registers) Set8(reg Reg8, v lattice.Byte) Registers {
	parent, high := reg.parent16()
	w := r.cells[parent]
	next := r
	if high {
		next.cells[parent] = lattice.WordFromBytes(w.SplitLow(), v)
	} else {
		next.cells[parent] = lattice.WordFromBytes(v, w.SplitHigh())
	}
	return next
}

func (r Registers) Union(other Registers) Registers {
	var out Registers
	for i := range r.cells {
		out.cells[i] = r.cells[i].Union(other.cells[i])
	}
	return out
}

func (r Registers) IsSubset(other Registers) bool {
	for i := range r.cells {
		if !r.cells[i].IsSubset(other.cells[i]) {
			return false
		}
	}
	return true
}

// Flags holds the eight architectural flag bits, ported from
// original_source/state.rs's Flags struct (carry, parity, adjust, zero,
// sign, int, dir, overflow), each a four-valued lattice.Bit instead of
// Rust's dedicated Flag enum — the two are isomorphic, so pkg/lattice.Bit
// is reused rather than duplicated.
type Flags struct {
	Carry, Parity, Adjust, Zero, Sign, Interrupt, Direction, Overflow lattice.Bit
}

func (f Flags) Union(other Flags) Flags {
	return Flags{
		Carry:     f.Carry.Union(other.Carry),
		Parity:    f.Parity.Union(other.Parity),
		Adjust:    f.Adjust.Union(other.Adjust),
		Zero:      f.Zero.Union(other.Zero),
		Sign:      f.Sign.Union(other.Sign),
		Interrupt: f.Interrupt.Union(other.Interrupt),
		Direction: f.Direction.Union(other.Direction),
		Overflow:  f.Overflow.Union(other.Overflow),
	}
}

func (f Flags) IsSubset(other Flags) bool {
	return f.Carry.IsSubset(other.Carry) &&
		f.Parity.IsSubset(other.Parity) &&
		f.Adjust.IsSubset(other.Adjust) &&
		f.Zero.IsSubset(other.Zero) &&
		f.Sign.IsSubset(other.Sign) &&
		f.Interrupt.IsSubset(other.Interrupt) &&
		f.Direction.IsSubset(other.Direction) &&
		f.Overflow.IsSubset(other.Overflow)
}

// State is the abstract x86 real-mode machine state: registers, flags, and
// a segment:offset-addressed memory overlay. CS is deliberately not a
// register cell — the driver tracks it as part of analyzer.Location, since
// exactly one CS value is ever live at a given visited (cs, ip), matching
// state.rs's State.cs field living outside its Registers struct.
type State struct {
	Regs  Registers
	Flags Flags
	Mem   state.Memory
}

// New returns the initial state for a load module image based at the given
// absolute address (paragraph-aligned segment base 0, for simplicity — real
// DOS .COM-style loaders place code at a fixed offset within segment 0).
func New(image []byte, base uint32) State {
	return State{Regs: NewRegisters(), Mem: state.NewMemory(image, base)}
}

// Absolute resolves a segment:offset pair to a flat address, matching
// state.rs's 20-bit real-mode address computation.
func Absolute(segment, offset uint16) uint32 {
	return uint32(segment)<<4 + uint32(offset)
}

func (s State) Union(other State) State {
	return State{
		Regs:  s.Regs.Union(other.Regs),
		Flags: s.Flags.Union(other.Flags),
		Mem:   s.Mem.Union(other.Mem),
	}
}

func (s State) IsSubset(other State) bool {
	return s.Regs.IsSubset(other.Regs) && s.Flags.IsSubset(other.Flags) && s.Mem.IsSubset(other.Mem)
}
