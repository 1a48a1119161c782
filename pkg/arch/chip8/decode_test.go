package chip8

import "testing"

func TestDecodeBasicOpcodes(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want string
	}{
		{"CLS", []byte{0x00, 0xE0}, "CLS"},
		{"RET", []byte{0x00, 0xEE}, "RET"},
		{"JP addr", []byte{0x12, 0x34}, "JP 0x234"},
		{"CALL addr", []byte{0x23, 0x00}, "CALL 0x300"},
		{"SE Vx, byte", []byte{0x31, 0x42}, "SE V1, 0x42"},
		{"LD Vx, byte", []byte{0x61, 0x42}, "LD V1, 0x42"},
		{"ADD Vx, byte", []byte{0x71, 0x42}, "ADD V1, 0x42"},
		{"LD Vx, Vy", []byte{0x81, 0x20}, "LD V1, V2"},
		{"ADD Vx, Vy", []byte{0x81, 0x24}, "ADD V1, V2"},
		{"LD I, addr", []byte{0xA2, 0x34}, "LD I, 0x234"},
		{"JP V0, addr", []byte{0xB2, 0x34}, "JP V0, 0x234"},
		{"DRW", []byte{0xD1, 0x25}, "DRW V1, V2, 5"},
		{"SKP", []byte{0xE1, 0x9E}, "SKP K(V1)"},
		{"LD Vx, DT", []byte{0xF1, 0x07}, "LD V1, DT"},
		{"LD [I], Vx", []byte{0xF1, 0x55}, "LD [I], V1"},
		{"LD Vx, [I]", []byte{0xF1, 0x65}, "LD V1, [I]"},
	}

	a := Arch{}
	for _, tc := range tests {
		inst, err := a.Decode(tc.buf, 0)
		if err != nil {
			t.Errorf("%s: Decode error: %v", tc.name, err)
			continue
		}
		if got := inst.String(); got != tc.want {
			t.Errorf("%s: Decode(%x).String() = %q, want %q", tc.name, tc.buf, got, tc.want)
		}
		if inst.Length != 2 {
			t.Errorf("%s: Length = %d, want 2", tc.name, inst.Length)
		}
	}
}

func TestDecodeTruncatedInstruction(t *testing.T) {
	a := Arch{}
	if _, err := a.Decode([]byte{0x00}, 0); err == nil {
		t.Error("Decode on a 1-byte buffer should error")
	}
}

func TestDecodeUnrecognizedOpcode(t *testing.T) {
	a := Arch{}
	if _, err := a.Decode([]byte{0x00, 0x01}, 0); err == nil {
		t.Error("Decode of an unsupported SYS opcode should error")
	}
}

func TestArchName(t *testing.T) {
	if got := (Arch{}).Name(); got != "chip8" {
		t.Errorf("Name() = %q, want %q", got, "chip8")
	}
}
