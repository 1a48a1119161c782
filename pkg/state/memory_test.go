package state

import (
	"testing"

	"github.com/DealPete/decompiler/pkg/lattice"
)

func TestMemoryReadsThroughToImage(t *testing.T) {
	m := NewMemory([]byte{0xAA, 0xBB, 0xCC}, 0x100)
	if got := m.ReadByte(0x100); !got.IsSubset(lattice.NewByte(0xAA)) || !lattice.NewByte(0xAA).IsSubset(got) {
		t.Errorf("ReadByte(0x100) = %v, want 0xAA", got)
	}
	if got := m.ReadByte(0x102); !got.IsSubset(lattice.NewByte(0xCC)) || !lattice.NewByte(0xCC).IsSubset(got) {
		t.Errorf("ReadByte(0x102) = %v, want 0xCC", got)
	}
}

func TestMemoryReadOutsideImageIsUndefined(t *testing.T) {
	m := NewMemory([]byte{0xAA}, 0x100)
	if got := m.ReadByte(0x200); !got.IsUndefined() {
		t.Errorf("ReadByte outside image = %v, want Undefined", got)
	}
	if got := m.ReadByte(0x50); !got.IsUndefined() {
		t.Errorf("ReadByte below base = %v, want Undefined", got)
	}
}

func TestMemoryWriteByteDoesNotMutateReceiver(t *testing.T) {
	m := NewMemory([]byte{0xAA}, 0x100)
	next := m.WriteByte(0x100, lattice.NewByte(0xFF))

	if got := m.ReadByte(0x100); !got.IsSubset(lattice.NewByte(0xAA)) {
		t.Errorf("original Memory was mutated: ReadByte(0x100) = %v", got)
	}
	if got := next.ReadByte(0x100); !got.IsSubset(lattice.NewByte(0xFF)) || !lattice.NewByte(0xFF).IsSubset(got) {
		t.Errorf("WriteByte(0x100, 0xFF) not reflected: got %v", got)
	}
}

func TestMemoryWriteWordSplitsLowHigh(t *testing.T) {
	m := NewMemory(make([]byte, 4), 0)
	next := m.WriteWord(0, lattice.NewWord(0x1234))
	if !next.WrittenAt(0) || !next.WrittenAt(1) {
		t.Fatal("WriteWord should set both byte cells in the overlay")
	}
	got := next.ReadWord(0)
	vals, ok := got.Values()
	if !ok || len(vals) != 1 {
		t.Fatalf("ReadWord after WriteWord(0x1234) = %v, want singleton {0x1234}", got)
	}
	if _, present := vals[0x1234]; !present {
		t.Errorf("ReadWord after WriteWord(0x1234) = %v, want {0x1234}", vals)
	}
}

func TestMemoryWrittenAt(t *testing.T) {
	m := NewMemory([]byte{0xAA}, 0)
	if m.WrittenAt(0) {
		t.Error("fresh Memory should have no overlay cells")
	}
	next := m.WriteByte(0, lattice.NewByte(1))
	if !next.WrittenAt(0) {
		t.Error("WriteByte should mark the address written")
	}
}

func TestMemoryIsSubsetReflexive(t *testing.T) {
	m := NewMemory([]byte{1, 2, 3}, 0).WriteByte(1, lattice.ByteSet(5, 6))
	if !m.IsSubset(m) {
		t.Error("Memory should be a subset of itself")
	}
}

func TestMemoryUnionAtSharedAddress(t *testing.T) {
	base := NewMemory(make([]byte, 2), 0)
	a := base.WriteByte(0, lattice.NewByte(1))
	b := base.WriteByte(0, lattice.NewByte(2))

	joined := a.Union(b)
	got := joined.ReadByte(0)
	if !lattice.NewByte(1).IsSubset(got) || !lattice.NewByte(2).IsSubset(got) {
		t.Errorf("Union at shared address = %v, want a superset of {1} and {2}", got)
	}
}
