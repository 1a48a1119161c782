package chip8

import (
	"fmt"

	"github.com/DealPete/decompiler/pkg/arch"
)

// Arch implements arch.Architecture for the fixed-width, big-endian,
// 2-byte-instruction CHIP-8/SuperChip8 encoding.
type Arch struct{}

func (Arch) Name() string { return "chip8" }

// Decode reads the 2-byte instruction at offset. Every CHIP-8 instruction
// is exactly 2 bytes, so unlike x86 there is no variable-length table — the
// decode tree is a direct nibble switch, matching the teacher's
// OpCode-driven Catalog lookup in spirit if not in literal shape (there is
// no corpus chip8 decoder to port — grounded on spec §3/§4.3's mnemonic
// list and the register/addressing shapes in other_examples/*chip8*.go).
func (Arch) Decode(buf []byte, offset int) (arch.Instruction, error) {
	if offset+2 > len(buf) {
		return arch.Instruction{}, fmt.Errorf("chip8: truncated instruction at offset %#x", offset)
	}
	hi, lo := buf[offset], buf[offset+1]
	word := uint16(hi)<<8 | uint16(lo)
	x := hi & 0x0F
	y := (lo & 0xF0) >> 4
	n := lo & 0x0F
	nnn := word & 0x0FFF

	base := arch.Instruction{Offset: offset, Length: 2}
	inst := func(mnemonic string, ops ...arch.Operand) (arch.Instruction, error) {
		base.Mnemonic = mnemonic
		base.Operands = ops
		return base, nil
	}

	switch hi >> 4 {
	case 0x0:
		switch word {
		case 0x00E0:
			return inst("CLS")
		case 0x00EE:
			return inst("RET")
		case 0x00FB:
			return inst("SCR")
		case 0x00FC:
			return inst("SCL")
		case 0x00FD:
			return inst("EXIT")
		case 0x00FE:
			return inst("LOW")
		case 0x00FF:
			return inst("HIGH")
		}
		return arch.Instruction{}, fmt.Errorf("chip8: unsupported SYS instruction %#04x at offset %#x", word, offset)
	case 0x1:
		return inst("JP", Addr{Value: nnn})
	case 0x2:
		return inst("CALL", Addr{Value: nnn})
	case 0x3:
		return inst("SE", V{Index: x}, Imm8{Value: lo})
	case 0x4:
		return inst("SNE", V{Index: x}, Imm8{Value: lo})
	case 0x5:
		if n == 0 {
			return inst("SE", V{Index: x}, V{Index: y})
		}
	case 0x6:
		return inst("LD", V{Index: x}, Imm8{Value: lo})
	case 0x7:
		return inst("ADD", V{Index: x}, Imm8{Value: lo})
	case 0x8:
		switch n {
		case 0x0:
			return inst("LD", V{Index: x}, V{Index: y})
		case 0x1:
			return inst("OR", V{Index: x}, V{Index: y})
		case 0x2:
			return inst("AND", V{Index: x}, V{Index: y})
		case 0x3:
			return inst("XOR", V{Index: x}, V{Index: y})
		case 0x4:
			return inst("ADD", V{Index: x}, V{Index: y})
		case 0x5:
			return inst("SUB", V{Index: x}, V{Index: y})
		case 0x6:
			return inst("SHR", V{Index: x}, V{Index: y})
		case 0x7:
			return inst("SUBN", V{Index: x}, V{Index: y})
		case 0xE:
			return inst("SHL", V{Index: x}, V{Index: y})
		}
	case 0x9:
		if n == 0 {
			return inst("SNE", V{Index: x}, V{Index: y})
		}
	case 0xA:
		return inst("LD", I{}, Addr{Value: nnn})
	case 0xB:
		return inst("JP", V{Index: 0}, Addr{Value: nnn})
	case 0xC:
		return inst("RND", V{Index: x}, Imm8{Value: lo})
	case 0xD:
		return inst("DRW", V{Index: x}, V{Index: y}, Nibble{Value: n})
	case 0xE:
		switch lo {
		case 0x9E:
			return inst("SKP", Key{Index: x})
		case 0xA1:
			return inst("SKNP", Key{Index: x})
		}
	case 0xF:
		switch lo {
		case 0x07:
			return inst("LD", V{Index: x}, DT{})
		case 0x0A:
			return inst("LD", V{Index: x}, Key{Index: x})
		case 0x15:
			return inst("LD", DT{}, V{Index: x})
		case 0x18:
			return inst("LD", ST{}, V{Index: x})
		case 0x1E:
			return inst("ADD", I{}, V{Index: x})
		case 0x29:
			return inst("LD", Font{Index: x}, V{Index: x})
		case 0x30:
			return inst("LD", Font{Index: x, Big: true}, V{Index: x})
		case 0x33:
			return inst("LD", BCD{Index: x}, V{Index: x})
		case 0x55:
			return inst("LD", MemI{}, V{Index: x})
		case 0x65:
			return inst("LD", V{Index: x}, MemI{})
		}
	}
	return arch.Instruction{}, fmt.Errorf("chip8: unrecognized opcode %#04x at offset %#x", word, offset)
}
