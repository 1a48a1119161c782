// Package recompile implements source-to-source recompilation (C8): for
// each procedure the call graph (C7) recovered, emit a labeled C function
// whose statements are a direct per-mnemonic lowering of the CHIP-8
// instructions in each of its flow-graph nodes.
//
// Only CHIP-8 is supported — SPEC_FULL.md's x86 pipeline stops at
// disassembly, so there is no x86 lowering table here. Grounded line-for-
// line in spirit on original_source/c8compile.rs's compile_node/load/add/
// skip/skip_key/jump/draw/random/call functions.
package recompile

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/arch/chip8"
	"github.com/DealPete/decompiler/pkg/callgraph"
	"github.com/DealPete/decompiler/pkg/flow"
)

// ErrUnsupportedArchitecture is returned when Recompile is asked to lower
// anything other than CHIP-8 instructions — spec.md's x86 pipeline never
// reaches this package in practice, but Recompile guards against misuse
// rather than silently emitting nonsense.
var ErrUnsupportedArchitecture = errors.New("recompile: only chip8 is supported")

// Source is the emitted source-to-source recompilation output: the C
// program text and its companion build file.
type Source struct {
	Code     string
	Makefile string
}

// Recompile emits one C source file from g and cg: a labeled function per
// procedure, with the last procedure in cg's emission order becoming
// run_game (original_source/c8compile.rs's "last node popped from the call
// graph becomes main" convention), preceded by the shared preamble (memory
// image, font tables, input glue).
func Recompile(g *flow.Graph, cg *callgraph.CallGraph, rom []byte) (Source, error) {
	order := cg.Order()
	if len(order) == 0 {
		return Source{}, errors.New("recompile: call graph has no procedures")
	}

	var forwardDecls strings.Builder
	var functions strings.Builder

	for i, pid := range order {
		proc := cg.Procedures[pid]
		isEntry := i == len(order)-1
		name := functionName(g.Node(proc.Entry).Entry.IP, isEntry)
		if !isEntry {
			forwardDecls.WriteString(fmt.Sprintf("void %s();\n", name))
		}

		sig := fmt.Sprintf("void %s()", name)
		if isEntry {
			sig = fmt.Sprintf("int %s(void* data)", name)
		}
		functions.WriteString(sig + " {\n")
		nodes := append([]flow.NodeID(nil), proc.Nodes...)
		sort.Slice(nodes, func(i, j int) bool { return g.Node(nodes[i]).Entry.IP < g.Node(nodes[j]).Entry.IP })
		for _, nodeID := range nodes {
			node := g.Node(nodeID)
			functions.WriteString(fmt.Sprintf("l%x:\n", node.Entry.IP))
			for _, inst := range node.Instructions {
				stmt, err := lowerInstruction(inst)
				if err != nil {
					return Source{}, err
				}
				functions.WriteString(stmt)
			}
			functions.WriteString(lowerControlFlow(g, node))
		}
		if isEntry && !strings.HasSuffix(functions.String(), "return 0;\n") {
			functions.WriteString("return 0;\n")
		}
		functions.WriteString("}\n\n")
	}

	code := strings.ReplaceAll(programTemplate, "{memory}", memoryInitializer(rom))
	code = strings.ReplaceAll(code, "{functions}", forwardDecls.String()+"\n"+functions.String())
	return Source{Code: code, Makefile: makefileText}, nil
}

func functionName(entryIP uint16, isEntry bool) string {
	if isEntry {
		return "run_game"
	}
	return fmt.Sprintf("f%x", entryIP)
}

// lowerControlFlow emits the goto/return/call statements a node's trailing
// edges require. Fall-through needs nothing: the next node in the
// procedure's address-ordered Nodes list is emitted immediately after, and
// falls straight into its own label. A node ending in a skip instruction
// (SE/SNE/SKP/SKNP) gets a guarded goto for the taken branch followed by an
// unconditional goto for the not-taken branch, so layout never matters —
// ported from original_source/c8compile.rs's skip()/skip_key() functions,
// which emit the same two-outcome shape.
func lowerControlFlow(g *flow.Graph, node *flow.Node) string {
	var taken, notTaken *flow.Edge
	for i := range node.Edges {
		switch node.Edges[i].Kind {
		case analyzer.BranchTaken:
			taken = &node.Edges[i]
		case analyzer.BranchNotTaken:
			notTaken = &node.Edges[i]
		}
	}
	if taken != nil && notTaken != nil && len(node.Instructions) > 0 {
		cond := skipCondition(node.Instructions[len(node.Instructions)-1])
		return fmt.Sprintf("%sgoto l%x;\ngoto l%x;\n", cond, g.Node(taken.To).Entry.IP, g.Node(notTaken.To).Entry.IP)
	}

	if len(node.Edges) == 0 && len(node.Instructions) > 0 {
		last := node.Instructions[len(node.Instructions)-1].Mnemonic
		if last == "JP" {
			// Self-jump: an infinite loop on a flat, timer-driven machine
			// is how a CHIP-8 program ends — original_source/c8compile.rs
			// lowers this exact shape to "return 0;".
			return "return 0;\n"
		}
	}

	var b strings.Builder
	for _, e := range node.Edges {
		switch e.Kind {
		case analyzer.FallThrough:
			// nothing to emit
		case analyzer.Jump:
			b.WriteString(fmt.Sprintf("goto l%x;\n", g.Node(e.To).Entry.IP))
		case analyzer.Call, analyzer.Return:
			// handled inline by lowerInstruction (CALL) or by falling off
			// the end of a void function (RET); nothing further here.
		}
	}
	return b.String()
}

func lowerInstruction(inst arch.Instruction) (string, error) {
	switch inst.Mnemonic {
	case "CLS":
		return "clear_screen();\n", nil
	case "SCR":
		return "scroll_right();\n", nil
	case "SCL":
		return "scroll_left();\n", nil
	case "LOW":
		return "lores();\n", nil
	case "HIGH":
		return "hires();\n", nil
	case "EXIT":
		return "return 0;\n", nil
	case "RET":
		return "return;\n", nil
	case "JP", "CALL", "SE", "SNE", "SKP", "SKNP":
		return lowerBranchOrCall(inst)
	case "LD":
		return lowerLoad(inst)
	case "ADD":
		return lowerAdd(inst)
	case "DRW":
		x := inst.Operands[0].(chip8.V)
		y := inst.Operands[1].(chip8.V)
		n := inst.Operands[2].(chip8.Nibble)
		return fmt.Sprintf("V[0xf] = draw_sprite(memory + I, V[%#x], V[%#x], %d);\n", x.Index, y.Index, n.Value), nil
	case "RND":
		x := inst.Operands[0].(chip8.V)
		mask := inst.Operands[1].(chip8.Imm8)
		return fmt.Sprintf("V[%#x] = random_int8() & 0b%s;\n", x.Index, strconv.FormatUint(uint64(mask.Value), 2)), nil
	case "OR":
		return binALU(inst, "|="), nil
	case "AND":
		return binALU(inst, "&="), nil
	case "XOR":
		return binALU(inst, "^="), nil
	case "SUB":
		x, y := inst.Operands[0].(chip8.V), inst.Operands[1].(chip8.V)
		return fmt.Sprintf("sub_with_borrow(V, %#x, %#x);\n", x.Index, y.Index), nil
	case "SUBN":
		x, y := inst.Operands[0].(chip8.V), inst.Operands[1].(chip8.V)
		return fmt.Sprintf("subn_with_borrow(V, %#x, %#x);\n", x.Index, y.Index), nil
	case "SHR":
		x := inst.Operands[0].(chip8.V)
		return fmt.Sprintf("shift_right(V, %#x);\n", x.Index), nil
	case "SHL":
		x := inst.Operands[0].(chip8.V)
		return fmt.Sprintf("shift_left(V, %#x);\n", x.Index), nil
	}
	return "", fmt.Errorf("recompile: %w: mnemonic %q", ErrUnsupportedArchitecture, inst.Mnemonic)
}

func binALU(inst arch.Instruction, op string) string {
	x, y := inst.Operands[0].(chip8.V), inst.Operands[1].(chip8.V)
	return fmt.Sprintf("V[%#x] %s V[%#x];\n", x.Index, op, y.Index)
}

// lowerBranchOrCall handles mnemonics whose only effect the emitted source
// needs is the control transfer produced separately by lowerControlFlow;
// JP has no other side effect, CALL additionally emits the call statement
// itself, and SE/SNE/SKP/SKNP's condition is folded into the guarded goto
// lowerControlFlow emits.
func lowerBranchOrCall(inst arch.Instruction) (string, error) {
	switch inst.Mnemonic {
	case "JP", "SE", "SNE", "SKP", "SKNP":
		return "", nil
	case "CALL":
		addr := inst.Operands[0].(chip8.Addr)
		return fmt.Sprintf("f%x();\n", addr.Value), nil
	}
	return "", nil
}

// skipCondition renders the "if (...) " guard text lowerControlFlow
// prefixes onto a skip instruction's taken-branch goto.
func skipCondition(inst arch.Instruction) string {
	switch inst.Mnemonic {
	case "SE":
		if v, ok := inst.Operands[1].(chip8.V); ok {
			x := inst.Operands[0].(chip8.V)
			return fmt.Sprintf("if (V[%#x] == V[%#x]) ", x.Index, v.Index)
		}
		x, imm := inst.Operands[0].(chip8.V), inst.Operands[1].(chip8.Imm8)
		return fmt.Sprintf("if (V[%#x] == %#02x) ", x.Index, imm.Value)
	case "SNE":
		if v, ok := inst.Operands[1].(chip8.V); ok {
			x := inst.Operands[0].(chip8.V)
			return fmt.Sprintf("if (V[%#x] != V[%#x]) ", x.Index, v.Index)
		}
		x, imm := inst.Operands[0].(chip8.V), inst.Operands[1].(chip8.Imm8)
		return fmt.Sprintf("if (V[%#x] != %#02x) ", x.Index, imm.Value)
	case "SKP":
		x := inst.Operands[0].(chip8.Key)
		return fmt.Sprintf("if (key_pressed(V[%#x])) ", x.Index)
	case "SKNP":
		x := inst.Operands[0].(chip8.Key)
		return fmt.Sprintf("if (!key_pressed(V[%#x])) ", x.Index)
	}
	return ""
}

func lowerLoad(inst arch.Instruction) (string, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	switch d := dst.(type) {
	case chip8.V:
		switch s := src.(type) {
		case chip8.Imm8:
			return fmt.Sprintf("V[%#x] = %#02x;\n", d.Index, s.Value), nil
		case chip8.V:
			return fmt.Sprintf("V[%#x] = V[%#x];\n", d.Index, s.Index), nil
		case chip8.DT:
			return fmt.Sprintf("V[%#x] = delay_timer;\n", d.Index), nil
		case chip8.Key:
			return fmt.Sprintf("V[%#x] = wait_for_keypress();\n", d.Index), nil
		case chip8.MemI:
			return fmt.Sprintf("read_registers(V, %#x, memory + I);\n", d.Index), nil
		}
	case chip8.I:
		addr := src.(chip8.Addr)
		return fmt.Sprintf("I = %#03x;\n", addr.Value), nil
	case chip8.DT:
		x := src.(chip8.V)
		return fmt.Sprintf("delay_timer = V[%#x];\n", x.Index), nil
	case chip8.ST:
		x := src.(chip8.V)
		return fmt.Sprintf("sound_timer = V[%#x];\n", x.Index), nil
	case chip8.Font:
		x := src.(chip8.V)
		if d.Big {
			return fmt.Sprintf("I = 10*V[%#x]+80;\n", x.Index), nil
		}
		return fmt.Sprintf("I = 5*V[%#x];\n", x.Index), nil
	case chip8.BCD:
		x := src.(chip8.V)
		return fmt.Sprintf("write_bcd(V[%#x], memory + I);\n", x.Index), nil
	case chip8.MemI:
		x := src.(chip8.V)
		return fmt.Sprintf("write_registers(V, %#x, memory + I);\n", x.Index), nil
	}
	return "", fmt.Errorf("recompile: unsupported LD operand shape")
}

func lowerAdd(inst arch.Instruction) (string, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	switch d := dst.(type) {
	case chip8.V:
		switch s := src.(type) {
		case chip8.Imm8:
			return fmt.Sprintf("V[%#x] += %#02x;\n", d.Index, s.Value), nil
		case chip8.V:
			return fmt.Sprintf("add_with_carry(V, %#x, %#x);\n", d.Index, s.Index), nil
		}
	case chip8.I:
		x := src.(chip8.V)
		return fmt.Sprintf("I += V[%#x];\n", x.Index), nil
	}
	return "", fmt.Errorf("recompile: unsupported ADD operand shape")
}
