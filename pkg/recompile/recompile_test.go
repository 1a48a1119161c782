package recompile

import (
	"strings"
	"testing"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/arch/chip8"
	"github.com/DealPete/decompiler/pkg/callgraph"
	"github.com/DealPete/decompiler/pkg/flow"
)

func TestLowerInstructionSimpleMnemonics(t *testing.T) {
	tests := []struct {
		inst arch.Instruction
		want string
	}{
		{arch.Instruction{Mnemonic: "CLS"}, "clear_screen();\n"},
		{arch.Instruction{Mnemonic: "RET"}, "return;\n"},
		{arch.Instruction{Mnemonic: "EXIT"}, "return 0;\n"},
		{arch.Instruction{Mnemonic: "LOW"}, "lores();\n"},
		{arch.Instruction{Mnemonic: "HIGH"}, "hires();\n"},
	}
	for _, tt := range tests {
		got, err := lowerInstruction(tt.inst)
		if err != nil {
			t.Fatalf("lowerInstruction(%s): %v", tt.inst.Mnemonic, err)
		}
		if got != tt.want {
			t.Errorf("lowerInstruction(%s) = %q, want %q", tt.inst.Mnemonic, got, tt.want)
		}
	}
}

func TestLowerInstructionUnsupportedMnemonic(t *testing.T) {
	_, err := lowerInstruction(arch.Instruction{Mnemonic: "NOPE"})
	if err == nil {
		t.Fatal("expected an error for an unrecognized mnemonic")
	}
}

func TestLowerLoadImmediate(t *testing.T) {
	inst := arch.Instruction{Mnemonic: "LD", Operands: []arch.Operand{chip8.V{Index: 3}, chip8.Imm8{Value: 0x42}}}
	got, err := lowerLoad(inst)
	if err != nil {
		t.Fatalf("lowerLoad: %v", err)
	}
	if want := "V[0x3] = 0x42;\n"; got != want {
		t.Errorf("lowerLoad(LD V3, 0x42) = %q, want %q", got, want)
	}
}

func TestLowerLoadAddressRegister(t *testing.T) {
	inst := arch.Instruction{Mnemonic: "LD", Operands: []arch.Operand{chip8.I{}, chip8.Addr{Value: 0x300}}}
	got, err := lowerLoad(inst)
	if err != nil {
		t.Fatalf("lowerLoad: %v", err)
	}
	if want := "I = 0x300;\n"; got != want {
		t.Errorf("lowerLoad(LD I, 0x300) = %q, want %q", got, want)
	}
}

func TestLowerLoadMemIStoreAndFetch(t *testing.T) {
	store := arch.Instruction{Mnemonic: "LD", Operands: []arch.Operand{chip8.MemI{}, chip8.V{Index: 2}}}
	got, err := lowerLoad(store)
	if err != nil {
		t.Fatalf("lowerLoad(store): %v", err)
	}
	if want := "write_registers(V, 0x2, memory + I);\n"; got != want {
		t.Errorf("lowerLoad(LD [I], V2) = %q, want %q", got, want)
	}

	fetch := arch.Instruction{Mnemonic: "LD", Operands: []arch.Operand{chip8.V{Index: 2}, chip8.MemI{}}}
	got, err = lowerLoad(fetch)
	if err != nil {
		t.Fatalf("lowerLoad(fetch): %v", err)
	}
	if want := "read_registers(V, 0x2, memory + I);\n"; got != want {
		t.Errorf("lowerLoad(LD V2, [I]) = %q, want %q", got, want)
	}
}

func TestLowerAddImmediateAndCarrying(t *testing.T) {
	imm := arch.Instruction{Mnemonic: "ADD", Operands: []arch.Operand{chip8.V{Index: 0}, chip8.Imm8{Value: 1}}}
	got, err := lowerAdd(imm)
	if err != nil {
		t.Fatalf("lowerAdd(imm): %v", err)
	}
	if want := "V[0x0] += 0x01;\n"; got != want {
		t.Errorf("lowerAdd(ADD V0, 0x1) = %q, want %q", got, want)
	}

	reg := arch.Instruction{Mnemonic: "ADD", Operands: []arch.Operand{chip8.V{Index: 0}, chip8.V{Index: 1}}}
	got, err = lowerAdd(reg)
	if err != nil {
		t.Fatalf("lowerAdd(reg): %v", err)
	}
	if want := "add_with_carry(V, 0x0, 0x1);\n"; got != want {
		t.Errorf("lowerAdd(ADD V0, V1) = %q, want %q", got, want)
	}
}

func TestLowerInstructionDraw(t *testing.T) {
	inst := arch.Instruction{
		Mnemonic: "DRW",
		Operands: []arch.Operand{chip8.V{Index: 1}, chip8.V{Index: 2}, chip8.Nibble{Value: 5}},
	}
	got, err := lowerInstruction(inst)
	if err != nil {
		t.Fatalf("lowerInstruction(DRW): %v", err)
	}
	if want := "V[0xf] = draw_sprite(memory + I, V[0x1], V[0x2], 5);\n"; got != want {
		t.Errorf("lowerInstruction(DRW V1, V2, 5) = %q, want %q", got, want)
	}
}

func TestSkipConditionSEImmediateAndRegister(t *testing.T) {
	imm := arch.Instruction{Mnemonic: "SE", Operands: []arch.Operand{chip8.V{Index: 1}, chip8.Imm8{Value: 5}}}
	if got, want := skipCondition(imm), "if (V[0x1] == 0x05) "; got != want {
		t.Errorf("skipCondition(SE V1, 0x5) = %q, want %q", got, want)
	}
	reg := arch.Instruction{Mnemonic: "SE", Operands: []arch.Operand{chip8.V{Index: 1}, chip8.V{Index: 2}}}
	if got, want := skipCondition(reg), "if (V[0x1] == V[0x2]) "; got != want {
		t.Errorf("skipCondition(SE V1, V2) = %q, want %q", got, want)
	}
}

func TestSkipConditionKeyMnemonics(t *testing.T) {
	skp := arch.Instruction{Mnemonic: "SKP", Operands: []arch.Operand{chip8.Key{Index: 3}}}
	if got, want := skipCondition(skp), "if (key_pressed(V[0x3])) "; got != want {
		t.Errorf("skipCondition(SKP) = %q, want %q", got, want)
	}
	sknp := arch.Instruction{Mnemonic: "SKNP", Operands: []arch.Operand{chip8.Key{Index: 3}}}
	if got, want := skipCondition(sknp), "if (!key_pressed(V[0x3])) "; got != want {
		t.Errorf("skipCondition(SKNP) = %q, want %q", got, want)
	}
}

// buildCallReturnGraph produces: node A (CALL 0x204), node B (RET, entry
// 0x204) linked by a Call edge and a Return edge back to node C (JP self,
// entry 0x202) — the smallest shape that exercises both forward-declared
// callee and the entry procedure's trailing "return 0;".
func buildCallReturnGraph(t *testing.T) (*flow.Graph, *callgraph.CallGraph) {
	t.Helper()
	g := flow.NewGraph()

	callSite := g.NewNode(analyzer.Location{IP: 0x200})
	g.Append(callSite, arch.Instruction{
		Mnemonic: "CALL", Operands: []arch.Operand{chip8.Addr{Value: 0x204}},
		Offset: 0x200, Length: 2,
	})

	returnSite := g.NewNode(analyzer.Location{IP: 0x202})
	g.Append(returnSite, arch.Instruction{Mnemonic: "JP", Operands: []arch.Operand{chip8.Addr{Value: 0x202}}, Offset: 0x202, Length: 2})

	callee := g.NewNode(analyzer.Location{IP: 0x204})
	g.Append(callee, arch.Instruction{Mnemonic: "RET", Offset: 0x204, Length: 2})

	g.AddEdge(callSite, analyzer.Call, callee)
	g.AddEdge(callee, analyzer.Return, returnSite)

	cg := callgraph.Build(g, []flow.NodeID{callSite, callee})
	return g, cg
}

func TestRecompileEmitsForwardDeclAndCallStatement(t *testing.T) {
	g, cg := buildCallReturnGraph(t)
	src, err := Recompile(g, cg, []byte{0x22, 0x04, 0x12, 0x02, 0x00, 0xEE})
	if err != nil {
		t.Fatalf("Recompile: %v", err)
	}
	if !strings.Contains(src.Code, "void f204();") {
		t.Errorf("expected a forward declaration for the non-entry procedure, got:\n%s", src.Code)
	}
	if !strings.Contains(src.Code, "f204();\n") {
		t.Errorf("expected the call site to invoke f204(), got:\n%s", src.Code)
	}
	if !strings.Contains(src.Code, "int run_game(void* data) {") {
		t.Errorf("expected the entry procedure to be named run_game, got:\n%s", src.Code)
	}
	if !strings.Contains(src.Code, "return;\n") {
		t.Errorf("expected RET to lower to a bare return, got:\n%s", src.Code)
	}
}

func TestRecompileSelfJumpHaltLowersToReturnZero(t *testing.T) {
	g := flow.NewGraph()
	n := g.NewNode(analyzer.Location{IP: 0x200})
	g.Append(n, arch.Instruction{Mnemonic: "CLS", Offset: 0x200, Length: 2})
	g.Append(n, arch.Instruction{Mnemonic: "JP", Operands: []arch.Operand{chip8.Addr{Value: 0x202}}, Offset: 0x202, Length: 2})
	cg := callgraph.Build(g, []flow.NodeID{n})

	src, err := Recompile(g, cg, []byte{0x00, 0xE0, 0x12, 0x02})
	if err != nil {
		t.Fatalf("Recompile: %v", err)
	}
	if strings.Count(src.Code, "return 0;\n") != 1 {
		t.Errorf("expected exactly one self-jump halt lowered to \"return 0;\", got:\n%s", src.Code)
	}
	if !strings.Contains(src.Code, "clear_screen();\n") {
		t.Errorf("expected CLS to lower to clear_screen(), got:\n%s", src.Code)
	}
}

func TestRecompileNoProceduresIsAnError(t *testing.T) {
	cg := &callgraph.CallGraph{}
	_, err := Recompile(flow.NewGraph(), cg, nil)
	if err == nil {
		t.Fatal("expected an error when the call graph has no procedures")
	}
}

func TestMemoryInitializerEmbedsRomAfterFontTables(t *testing.T) {
	rom := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	out := memoryInitializer(rom)
	for _, want := range []string{"0xde, ", "0xad, ", "0xbe, ", "0xef, "} {
		if !strings.Contains(out, want) {
			t.Errorf("memoryInitializer output missing %q", want)
		}
	}
}
