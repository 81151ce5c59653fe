// Package bytecode defines the instruction set executed by the embedded
// runtime, an append-only emit buffer with backpatching, and a decoder and
// disassembler for finished streams.
//
// All multi-byte operands are little-endian. Relative jump offsets are
// measured from the end of the jumping instruction.
package bytecode

import "fmt"

// Opcode is a single instruction byte.
type Opcode byte

// Emitted opcodes.
const (
	MoveSprite   Opcode = 0x01
	SetAnimation Opcode = 0x02
	OnEvent      Opcode = 0x06
	Return       Opcode = 0x07
	Jump         Opcode = 0x08
	DrawPixel    Opcode = 0x09
	DrawLine     Opcode = 0x0A
	DrawRect     Opcode = 0x0B
	LoadInt      Opcode = 0x10
	LoadString   Opcode = 0x11
	LoadVar      Opcode = 0x12
	StoreVar     Opcode = 0x13
	Add          Opcode = 0x14
	Sub          Opcode = 0x15
	IfEq         Opcode = 0x16
	End          Opcode = 0xFF
)

// Reserved opcodes. The runtime knows them but the compiler never emits them.
const (
	Nop      Opcode = 0x00
	IfButton Opcode = 0x03
	SetVar   Opcode = 0x04
	AddVar   Opcode = 0x05
)

// EventKind identifies the trigger of an ON_EVENT handler.
type EventKind uint8

// TouchPress fires when a touch lands inside the handler's circle.
const TouchPress EventKind = 0x01

func (k EventKind) String() string {
	if k == TouchPress {
		return "TOUCH_PRESS"
	}
	return fmt.Sprintf("EVENT_0x%02X", uint8(k))
}

// Instruction sizes in bytes, including the opcode.
const (
	// JumpSize is the size of JUMP and IF_EQ.
	JumpSize = 5
	// OnEventSize is the size of ON_EVENT: op, kind, argc, x, y, radius, handler.
	OnEventSize = 13
	// OnEventArgc is the argument count carried by every ON_EVENT.
	OnEventArgc = 4
)

var opcodeNames = map[Opcode]string{
	Nop:          "NOP",
	MoveSprite:   "MOVE_SPRITE",
	SetAnimation: "SET_ANIMATION",
	IfButton:     "IF_BUTTON",
	SetVar:       "SET_VAR",
	AddVar:       "ADD_VAR",
	OnEvent:      "ON_EVENT",
	Return:       "RETURN",
	Jump:         "JUMP",
	DrawPixel:    "DRAW_PIXEL",
	DrawLine:     "DRAW_LINE",
	DrawRect:     "DRAW_RECT",
	LoadInt:      "LOAD_INT",
	LoadString:   "LOAD_STRING",
	LoadVar:      "LOAD_VAR",
	StoreVar:     "STORE_VAR",
	Add:          "ADD",
	Sub:          "SUB",
	IfEq:         "IF_EQ",
	End:          "END",
}

// String returns the mnemonic, e.g. "LOAD_INT".
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_0x%02X", byte(op))
}

// Known reports whether op is part of the instruction set (emitted or reserved).
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Reserved reports whether op is reserved and never emitted.
func (op Opcode) Reserved() bool {
	switch op {
	case Nop, IfButton, SetVar, AddVar:
		return true
	}
	return false
}
