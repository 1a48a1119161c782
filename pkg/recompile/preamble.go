package recompile

import (
	"fmt"
	"strings"
)

// smallFont is the 5-byte-per-glyph 0-F digit sprite table CHIP-8 programs
// expect at a fixed low address, ported byte-for-byte from
// original_source/c8compile.rs's PROGRAM memory initializer.
var smallFont = [16][5]byte{
	{0xF0, 0x90, 0x90, 0x90, 0xF0}, {0x20, 0x60, 0x20, 0x20, 0x70},
	{0xF0, 0x10, 0xF0, 0x80, 0xF0}, {0xF0, 0x10, 0xF0, 0x10, 0xF0},
	{0x90, 0x90, 0xF0, 0x10, 0x10}, {0xF0, 0x80, 0xF0, 0x10, 0xF0},
	{0xF0, 0x80, 0xF0, 0x90, 0xF0}, {0xF0, 0x10, 0x20, 0x40, 0x40},
	{0xF0, 0x90, 0xF0, 0x90, 0xF0}, {0xF0, 0x90, 0xF0, 0x10, 0xF0},
	{0xF0, 0x90, 0xF0, 0x90, 0x90}, {0xE0, 0x90, 0xE0, 0x90, 0xE0},
	{0xF0, 0x80, 0x80, 0x80, 0xF0}, {0xE0, 0x90, 0x90, 0x90, 0xE0},
	{0xF0, 0x80, 0xF0, 0x80, 0xF0}, {0xF0, 0x80, 0xF0, 0x80, 0x80},
}

// bigFont is the SuperChip8 10-byte-per-glyph big-digit sprite table,
// addressed by "LD HF, Vx" (I = 10*Vx + 80).
var bigFont = [16][10]byte{
	{0x3C, 0x7E, 0xE7, 0xC3, 0xC3, 0xC3, 0xC3, 0xE7, 0x7E, 0x3C},
	{0x18, 0x38, 0x58, 0x18, 0x18, 0x18, 0x18, 0x18, 0x18, 0x3C},
	{0x3E, 0x7F, 0xC3, 0x06, 0x0C, 0x18, 0x30, 0x60, 0xFF, 0xFF},
	{0x3C, 0x7E, 0xC3, 0x03, 0x0E, 0x0E, 0x03, 0xC3, 0x7E, 0x3C},
	{0x06, 0x0E, 0x1E, 0x36, 0x66, 0xC6, 0xFF, 0xFF, 0x06, 0x06},
	{0xFF, 0xFF, 0xC0, 0xFE, 0xFF, 0x03, 0x03, 0xC3, 0x7E, 0x3C},
	{0x3E, 0x7C, 0xC0, 0xC0, 0xFC, 0xFE, 0xC3, 0xC3, 0x7E, 0x3C},
	{0xFF, 0xFF, 0x03, 0x06, 0x0C, 0x18, 0x30, 0x60, 0x60, 0x60},
	{0x3C, 0x7E, 0xC3, 0xC3, 0x7E, 0x7E, 0xC3, 0xC3, 0x7E, 0x3C},
	{0x3C, 0x7E, 0xC3, 0xC3, 0x7F, 0x3F, 0x03, 0x03, 0x3E, 0x7C},
	{0x18, 0x3C, 0x66, 0xC3, 0xC3, 0xFF, 0xFF, 0xC3, 0xC3, 0xC3},
	{0xFC, 0xFE, 0xC3, 0xC3, 0xFE, 0xFC, 0xC3, 0xC3, 0xFE, 0xFC},
	{0x3C, 0x7E, 0xC3, 0xC0, 0xC0, 0xC0, 0xC0, 0xC3, 0x7E, 0x3C},
	{0xFC, 0xFE, 0xC3, 0xC3, 0xC3, 0xC3, 0xC3, 0xC3, 0xFE, 0xFC},
	{0xFF, 0xFF, 0xC0, 0xC0, 0xFC, 0xFC, 0xC0, 0xC0, 0xFF, 0xFF},
	{0xFF, 0xFF, 0xC0, 0xC0, 0xFC, 0xFC, 0xC0, 0xC0, 0xC0, 0xC0},
}

// memoryInitializer renders the 4096-byte C array literal: font tables at
// 0x000-0x0EF (small font, then big font, matching the 0x200 load address
// CHIP-8 ROMs conventionally start at), zero padding, then the ROM bytes.
func memoryInitializer(rom []byte) string {
	var b strings.Builder
	var flat []byte
	for _, glyph := range smallFont {
		flat = append(flat, glyph[:]...)
	}
	for _, glyph := range bigFont {
		flat = append(flat, glyph[:]...)
	}
	for len(flat) < 0x200 {
		flat = append(flat, 0)
	}
	flat = append(flat, rom...)

	for i, by := range flat {
		if i%16 == 0 {
			if i != 0 {
				b.WriteString("\n")
			}
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "0x%02x, ", by)
	}
	return b.String()
}

// programTemplate is the C source skeleton every recompiled program is
// built from, ported from original_source/c8compile.rs's PROGRAM constant:
// a fixed-size memory image, the sixteen V registers, I, and the
// game-loop glue the runtime (sdl2 front end, not generated here) drives.
const programTemplate = `#include <stdint.h>
#include <stdlib.h>
#include "chip8_runtime.h"

uint8_t memory[4096] = {
{memory}
};

uint8_t V[16];
uint16_t I;
uint8_t delay_timer;
uint8_t sound_timer;

{functions}
`

// makefileText builds the recompiled program against the shared CHIP-8
// runtime support library, ported from original_source/c8compile.rs's
// MAKEFILE constant (sdl2-config-driven build rules, simplified to drop
// the original's libsodium dependency, which this domain has no use for).
const makefileText = `CC = cc
CFLAGS = $(shell sdl2-config --cflags) -O2
LDFLAGS = $(shell sdl2-config --libs)

game: code.c chip8_runtime.c
	$(CC) $(CFLAGS) -o game code.c chip8_runtime.c $(LDFLAGS)

.PHONY: clean
clean:
	rm -f game
`
