package chip8

import (
	"github.com/DealPete/decompiler/pkg/lattice"
	"github.com/DealPete/decompiler/pkg/state"
)

// State is the abstract CHIP-8 machine: sixteen general registers, the
// address register, and the 4096-byte address space overlaying the loaded
// ROM. Delay/sound timers and the hardware call stack are intentionally
// absent — timers never influence control flow reachable from static
// analysis, and the call stack is modeled at the driver level (pending
// return-site bookkeeping) rather than inside the abstract state, since
// CHIP-8 CALL/RET always address a statically known entry (DESIGN.md,
// pkg/driver).
type State struct {
	V   [16]lattice.Byte
	I   lattice.Word
	Mem state.Memory
}

// EntryPoint is the conventional CHIP-8 ROM load address.
const EntryPoint = 0x200

// New returns the initial state for a ROM loaded at EntryPoint within the
// full 4096-byte CHIP-8 address space, with every register Undefined until
// first written.
func New(rom []byte) State {
	var s State
	for i := range s.V {
		s.V[i] = lattice.ByteUndefined
	}
	s.I = lattice.WordUndefined

	image := make([]byte, 4096)
	copy(image[EntryPoint:], rom)
	s.Mem = state.NewMemory(image, 0)
	return s
}

// GetV returns the abstract value of Vx.
func (s State) GetV(x uint8) lattice.Byte { return s.V[x] }

// SetV returns a copy of s with Vx set to v.
func (s State) SetV(x uint8, v lattice.Byte) State {
	next := s
	next.V[x] = v
	return next
}

// SetI returns a copy of s with I set to v.
func (s State) SetI(v lattice.Word) State {
	next := s
	next.I = v
	return next
}

// Union joins two states register-wise, I, and memory — satisfying
// state.Abstract[State] for the driver's fixpoint check.
func (s State) Union(other State) State {
	var out State
	for i := range s.V {
		out.V[i] = s.V[i].Union(other.V[i])
	}
	out.I = s.I.Union(other.I)
	out.Mem = s.Mem.Union(other.Mem)
	return out
}

// IsSubset reports whether every component of s is ⊑ the matching
// component of other.
func (s State) IsSubset(other State) bool {
	for i := range s.V {
		if !s.V[i].IsSubset(other.V[i]) {
			return false
		}
	}
	if !s.I.IsSubset(other.I) {
		return false
	}
	return s.Mem.IsSubset(other.Mem)
}
