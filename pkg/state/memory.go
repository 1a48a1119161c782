// Package state implements the architecture-independent half of the
// abstract state (C2): the sparse overlay memory map that every State reads
// and writes through, plus the self-bounded lattice join contract the
// analysis driver relies on for termination.
package state

import "github.com/DealPete/decompiler/pkg/lattice"

// Abstract is the contract the analysis driver (C6) requires of any
// per-architecture abstract state: a commutative, idempotent join and a
// partial order consistent with it. S is the concrete state type itself
// (F-bounded), so Union/IsSubset stay statically typed per architecture.
type Abstract[S any] interface {
	Union(other S) S
	IsSubset(other S) bool
}

// Memory is the sparse overlay over a static backing image. Reads fall
// through to the image when no overlay cell exists at an address; writes
// always go to the overlay. Addresses are absolute (already resolved from
// whatever segment/pointer scheme the architecture uses).
type Memory struct {
	overlay map[uint32]lattice.Byte
	image   []byte
	base    uint32 // absolute address of image[0]
}

// NewMemory creates a Memory backed by image, whose first byte lives at the
// given absolute base address.
func NewMemory(image []byte, base uint32) Memory {
	return Memory{image: image, base: base}
}

// ReadByte returns the abstract byte at addr: the overlay cell if written,
// otherwise the concrete image byte lifted into the lattice, otherwise
// Undefined if addr falls outside both.
func (m Memory) ReadByte(addr uint32) lattice.Byte {
	if b, ok := m.overlay[addr]; ok {
		return b
	}
	if addr >= m.base && int(addr-m.base) < len(m.image) {
		return lattice.NewByte(m.image[addr-m.base])
	}
	return lattice.ByteUndefined
}

// ReadWord reads two adjacent bytes (addr, addr+1) as a low/high pair,
// deferring materialization per spec's Bytes(low, high) shape.
func (m Memory) ReadWord(addr uint32) lattice.Word {
	low := m.ReadByte(addr)
	high := m.ReadByte(addr + 1)
	return lattice.WordFromBytes(low, high)
}

// WriteByte returns a new Memory with addr overwritten in the overlay. The
// receiver is left unmodified — Memory is value-typed and cheaply cloned,
// matching the teacher's cache-line-sized, copy-by-value state convention.
func (m Memory) WriteByte(addr uint32, b lattice.Byte) Memory {
	next := m.clone()
	next.overlay[addr] = b
	return next
}

// WriteWord splits w into low/high bytes and writes them to addr, addr+1.
func (m Memory) WriteWord(addr uint32, w lattice.Word) Memory {
	next := m.clone()
	next.overlay[addr] = w.SplitLow()
	next.overlay[addr+1] = w.SplitHigh()
	return next
}

func (m Memory) clone() Memory {
	next := Memory{image: m.image, base: m.base, overlay: make(map[uint32]lattice.Byte, len(m.overlay)+1)}
	for addr, b := range m.overlay {
		next.overlay[addr] = b
	}
	return next
}

// WrittenAt reports whether addr has an overlay cell, i.e. some path has
// written to it rather than only ever having read the static image.
func (m Memory) WrittenAt(addr uint32) bool {
	_, ok := m.overlay[addr]
	return ok
}

// Union joins two memories key-wise: cells present in only one side carry
// through unchanged (an absent overlay cell means "equal to the image",
// which is ⊑ any joined value — this preserves the γ-monotone invariant).
func (m Memory) Union(other Memory) Memory {
	merged := make(map[uint32]lattice.Byte, len(m.overlay)+len(other.overlay))
	for addr, b := range m.overlay {
		merged[addr] = b
	}
	for addr, b := range other.overlay {
		if existing, ok := merged[addr]; ok {
			merged[addr] = existing.Union(b)
		} else {
			merged[addr] = b
		}
	}
	return Memory{image: m.image, base: m.base, overlay: merged}
}

// IsSubset reports whether every overlay cell of m has a matching subset
// cell in other (reading through to the image where other has no cell).
func (m Memory) IsSubset(other Memory) bool {
	for addr, b := range m.overlay {
		if !b.IsSubset(other.ReadByte(addr)) {
			return false
		}
	}
	return true
}
