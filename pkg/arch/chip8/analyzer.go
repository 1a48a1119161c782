package chip8

import (
	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/lattice"
)

// Analyzer implements analyzer.Analyzer[State] for CHIP-8. Successor
// enumeration is grounded on spec §4.3/§4.4 directly plus the per-mnemonic
// control-flow shapes in original_source/c8compile.rs's load/jump/skip/
// skip_key/call functions — c8compile.rs only emits C text for a flow graph
// already built by analysis, but its case-by-case mnemonic handling is the
// model for which mnemonics affect control flow and how.
type Analyzer struct{}

func fallThrough(target analyzer.Location, s State) []analyzer.Successor[State] {
	return []analyzer.Successor[State]{{Kind: analyzer.FallThrough, State: s, Target: target}}
}

// Step computes every abstract successor of executing inst from st at loc.
// The default fall-through location, next, is computed here from
// inst.Offset + inst.Length.
func (Analyzer) Step(st State, loc analyzer.Location, inst arch.Instruction) ([]analyzer.Successor[State], error) {
	next := analyzer.Location{CS: loc.CS, IP: uint16(inst.Offset + inst.Length)}

	switch inst.Mnemonic {
	case "CLS", "SCR", "SCL", "LOW", "HIGH":
		return fallThrough(next, st), nil

	case "EXIT":
		// Ends the program: no successors, matching c8compile.rs's
		// self-jump -> "return 0;" terminal case.
		return nil, nil

	case "JP":
		if v0, ok := inst.Operands[0].(V); ok {
			addr := inst.Operands[1].(Addr)
			return jpIndirect(loc, st, v0, addr)
		}
		addr := inst.Operands[0].(Addr)
		target := analyzer.Location{CS: loc.CS, IP: addr.Value}
		if target == loc {
			return nil, nil // self-jump: infinite loop, treated as program exit
		}
		return []analyzer.Successor[State]{{Kind: analyzer.Jump, State: st, Target: target}}, nil

	case "CALL":
		addr := inst.Operands[0].(Addr)
		target := analyzer.Location{CS: loc.CS, IP: addr.Value}
		return []analyzer.Successor[State]{{Kind: analyzer.Call, State: st, Target: target}}, nil

	case "RET":
		return []analyzer.Successor[State]{{Kind: analyzer.Return, State: st}}, nil

	case "SE", "SNE":
		return skip(loc, st, inst, next)

	case "SKP", "SKNP":
		// Key-dependent skip: both outcomes are reachable regardless of the
		// abstract value of Vx, since key state is external input.
		return []analyzer.Successor[State]{
			{Kind: analyzer.BranchNotTaken, State: st, Target: next},
			{Kind: analyzer.BranchTaken, State: st, Target: analyzer.Location{CS: loc.CS, IP: next.IP + 2}},
		}, nil

	case "ADD":
		return fallThrough(next, applyAdd(st, inst)), nil

	case "LD":
		return fallThrough(next, applyLoad(st, inst)), nil

	case "OR", "AND", "XOR", "SUB", "SUBN", "SHR", "SHL":
		return fallThrough(next, applyALU(st, inst)), nil

	case "RND":
		x := inst.Operands[0].(V)
		// Every byte value is reachable; a mask narrows it further but
		// AnyValue is already the sound over-approximation of "random".
		return fallThrough(next, st.SetV(x.Index, lattice.ByteAny)), nil

	case "DRW":
		x := inst.Operands[0].(V)
		// VF becomes the collision flag: both outcomes are possible.
		return fallThrough(next, st.SetV(x.Index, st.GetV(x.Index)).SetV(0xF, lattice.ByteSet(0, 1))), nil

	default:
		return fallThrough(next, st), nil
	}
}

// jpIndirect resolves "JP V0, addr" (Bnnn): the concrete target set is
// addr.Value + v for every v in V0's abstract value. An AnyValue V0 cannot
// be soundly enumerated and is a fatal analysis error per spec §4.3/§7.
func jpIndirect(loc analyzer.Location, st State, v0 V, addr Addr) ([]analyzer.Successor[State], error) {
	values, ok := st.GetV(v0.Index).Values()
	if !ok {
		return nil, &analyzer.ErrUnresolvedTarget{At: loc, What: "indirect jump (JP V0, addr)"}
	}
	successors := make([]analyzer.Successor[State], 0, len(values))
	for v := range values {
		target := analyzer.Location{CS: loc.CS, IP: addr.Value + uint16(v)}
		successors = append(successors, analyzer.Successor[State]{Kind: analyzer.Jump, State: st, Target: target})
	}
	return successors, nil
}

// skip implements SE/SNE's "both outcomes reachable" branch: since the
// analyzer never knows the concrete register values with certainty (only a
// sound over-approximation), it always returns both the skip (BranchTaken,
// pc+4) and the fall-through (BranchNotTaken, pc+2), without comparing the
// operands' abstract values.
func skip(loc analyzer.Location, st State, inst arch.Instruction, next analyzer.Location) ([]analyzer.Successor[State], error) {
	skipTo := analyzer.Location{CS: loc.CS, IP: next.IP + 2}
	taken, notTaken := analyzer.BranchTaken, analyzer.BranchNotTaken
	return []analyzer.Successor[State]{
		{Kind: notTaken, State: st, Target: next},
		{Kind: taken, State: st, Target: skipTo},
	}, nil
}

func applyAdd(st State, inst arch.Instruction) State {
	switch dst := inst.Operands[0].(type) {
	case V:
		switch src := inst.Operands[1].(type) {
		case Imm8:
			return st.SetV(dst.Index, st.GetV(dst.Index).ToWord().Add(lattice.NewWord(uint16(src.Value))).SplitLow())
		case V:
			sum := st.GetV(dst.Index).ToWord().Add(st.GetV(src.Index).ToWord())
			return st.SetV(dst.Index, sum.SplitLow()).SetV(0xF, carryOf(sum))
		}
	case I:
		x := inst.Operands[1].(V)
		return st.SetI(st.I.Add(st.GetV(x.Index).ToWord()))
	}
	return st
}

func carryOf(sum lattice.Word) lattice.Byte {
	values, ok := sum.Values()
	if !ok {
		return lattice.ByteAny
	}
	seenCarry, seenNoCarry := false, false
	for v := range values {
		if v > 0xFF {
			seenCarry = true
		} else {
			seenNoCarry = true
		}
	}
	switch {
	case seenCarry && seenNoCarry:
		return lattice.ByteSet(0, 1)
	case seenCarry:
		return lattice.NewByte(1)
	default:
		return lattice.NewByte(0)
	}
}

func applyLoad(st State, inst arch.Instruction) State {
	dst, src := inst.Operands[0], inst.Operands[1]
	switch d := dst.(type) {
	case V:
		switch s := src.(type) {
		case Imm8:
			return st.SetV(d.Index, lattice.NewByte(s.Value))
		case V:
			return st.SetV(d.Index, st.GetV(s.Index))
		case DT, Key:
			return st.SetV(d.Index, lattice.ByteAny)
		case MemI:
			// LD Vx, [I]: reads V0..Vx from memory starting at I. Modeled
			// conservatively as AnyValue, since I's concrete target set is
			// not tracked precisely enough here to enumerate every cell.
			for r := uint8(0); r <= d.Index; r++ {
				st = st.SetV(r, lattice.ByteAny)
			}
			return st
		}
	case I:
		addr := src.(Addr)
		return st.SetI(lattice.NewWord(addr.Value))
	case DT, ST:
		return st
	case MemI:
		return st
	case Font, BCD:
		return st
	}
	return st
}

func applyALU(st State, inst arch.Instruction) State {
	x := inst.Operands[0].(V)
	switch inst.Mnemonic {
	case "OR", "AND", "XOR":
		return st.SetV(x.Index, lattice.ByteAny)
	case "SUB", "SUBN":
		return st.SetV(x.Index, lattice.ByteAny).SetV(0xF, lattice.ByteSet(0, 1))
	case "SHR", "SHL":
		return st.SetV(x.Index, lattice.ByteAny).SetV(0xF, lattice.ByteSet(0, 1))
	}
	return st
}
