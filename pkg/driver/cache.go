package driver

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/DealPete/decompiler/pkg/arch/chip8"
	"github.com/DealPete/decompiler/pkg/arch/x86"
	"github.com/DealPete/decompiler/pkg/flow"
)

// init registers every concrete arch.Operand implementation so gob can
// encode the interface-typed Operands slice inside a cached flow.Graph.
// Ported from pkg/result/checkpoint.go's init()-time gob.Register calls for
// its Rule/Table types.
func init() {
	gob.Register(chip8.V{})
	gob.Register(chip8.I{})
	gob.Register(chip8.Addr{})
	gob.Register(chip8.Imm8{})
	gob.Register(chip8.Nibble{})
	gob.Register(chip8.DT{})
	gob.Register(chip8.ST{})
	gob.Register(chip8.Key{})
	gob.Register(chip8.Font{})
	gob.Register(chip8.BCD{})
	gob.Register(chip8.MemI{})

	gob.Register(x86.RegOperand{})
	gob.Register(x86.Imm{})
	gob.Register(x86.Rel{})
	gob.Register(x86.Mem{})
	gob.Register(x86.SegPtr{})
}

// SaveCache persists a recovered flow graph to path, grounded directly on
// pkg/result/checkpoint.go's SaveCheckpoint (gob.NewEncoder over an
// os.Create'd file).
func SaveCache(path string, g *flow.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("driver: create cache: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(g.Snapshot()); err != nil {
		return fmt.Errorf("driver: encode cache: %w", err)
	}
	return nil
}

// LoadCache restores a flow graph previously written by SaveCache.
func LoadCache(path string) (*flow.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: open cache: %w", err)
	}
	defer f.Close()
	var snap flow.Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("driver: decode cache: %w", err)
	}
	return flow.FromSnapshot(snap), nil
}
