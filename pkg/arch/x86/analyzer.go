package x86

import (
	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/lattice"
)

// Analyzer implements analyzer.Analyzer[State] for the x86 decode subset in
// decode.go. Its job ends at flow recovery — SPEC_FULL.md's x86 pipeline
// runs C3/C4/C6 to print a listing annotated with recovered control flow,
// then stops; no call-graph partitioning (C7) or recompilation (C8) is
// attempted for this architecture.
type Analyzer struct{}

func (Analyzer) Step(st State, loc analyzer.Location, inst arch.Instruction) ([]analyzer.Successor[State], error) {
	next := analyzer.Location{CS: loc.CS, IP: uint16(inst.Offset + inst.Length)}

	switch inst.Mnemonic {
	case "HLT":
		return nil, nil

	case "JMP":
		switch target := inst.Operands[0].(type) {
		case Rel:
			return []analyzer.Successor[State]{{Kind: analyzer.Jump, State: st, Target: analyzer.Location{CS: loc.CS, IP: target.Target}}}, nil
		case SegPtr:
			return []analyzer.Successor[State]{{Kind: analyzer.Jump, State: st, Target: analyzer.Location{CS: target.Segment, IP: target.Offset}}}, nil
		}

	case "CALL":
		rel := inst.Operands[0].(Rel)
		return []analyzer.Successor[State]{{Kind: analyzer.Call, State: st, Target: analyzer.Location{CS: loc.CS, IP: rel.Target}}}, nil

	case "RET", "RETF":
		return []analyzer.Successor[State]{{Kind: analyzer.Return, State: st}}, nil

	case "JO", "JNO", "JB", "JAE", "JE", "JNE", "JBE", "JA", "JS", "JNS", "JP", "JNP", "JL", "JGE", "JLE", "JG":
		rel := inst.Operands[0].(Rel)
		return []analyzer.Successor[State]{
			{Kind: analyzer.BranchNotTaken, State: st, Target: next},
			{Kind: analyzer.BranchTaken, State: st, Target: analyzer.Location{CS: loc.CS, IP: rel.Target}},
		}, nil

	case "PUSH":
		return fallThrough(next, adjustSP(st, -2)), nil
	case "POP":
		st2 := adjustSP(st, 2)
		if r, ok := inst.Operands[0].(RegOperand); ok {
			st2 = setDest(st2, r, lattice.WordAny)
		}
		return fallThrough(next, st2), nil

	case "MOV":
		return fallThrough(next, applyMov(st, inst)), nil

	case "ADD", "SUB", "CMP":
		return fallThrough(next, applyALU(st, inst)), nil
	}

	return fallThrough(next, st), nil
}

func fallThrough(target analyzer.Location, s State) []analyzer.Successor[State] {
	return []analyzer.Successor[State]{{Kind: analyzer.FallThrough, State: s, Target: target}}
}

func adjustSP(st State, delta int16) State {
	sp := st.Regs.Get16(SP)
	st.Regs = st.Regs.Set16(SP, sp.Add(lattice.NewWord(uint16(delta))))
	return st
}

// setDest writes v (truncated to the operand's width) into a register
// operand. Memory destinations are intentionally not modeled precisely
// here — the x86 pipeline only needs sound control-flow recovery, not
// byte-exact memory simulation, and none of decode.go's opcodes compute an
// indirect jump/call target through memory.
func setDest(st State, r RegOperand, v lattice.Word) State {
	if r.Is8 {
		st.Regs = st.Regs.Set8(r.R8, v.SplitLow())
	} else {
		st.Regs = st.Regs.Set16(r.R16, v)
	}
	return st
}

func getSrc(st State, op arch.Operand) lattice.Word {
	switch o := op.(type) {
	case RegOperand:
		if o.Is8 {
			return st.Regs.Get8(o.R8).ToWord()
		}
		return st.Regs.Get16(o.R16)
	case Imm:
		return lattice.NewWord(o.Value)
	default: // Mem: not modeled precisely, see setDest's comment
		return lattice.WordAny
	}
}

func applyMov(st State, inst arch.Instruction) State {
	dst, src := inst.Operands[0], inst.Operands[1]
	r, ok := dst.(RegOperand)
	if !ok {
		return st // memory destination: not modeled, see setDest's comment
	}
	return setDest(st, r, getSrc(st, src))
}

func applyALU(st State, inst arch.Instruction) State {
	dst, src := inst.Operands[0], inst.Operands[1]
	r, ok := dst.(RegOperand)
	if !ok {
		return st
	}
	if inst.Mnemonic == "CMP" {
		return st // CMP only sets flags, which this subset does not update (they stay at their initial Undefined)
	}
	a := getSrc(st, r)
	var result lattice.Word
	if inst.Mnemonic == "ADD" {
		result = a.Add(getSrc(st, src))
	} else { // SUB: no lattice.Word.Sub exists, so this is a sound over-approximation
		result = lattice.WordAny
	}
	return setDest(st, r, result)
}
