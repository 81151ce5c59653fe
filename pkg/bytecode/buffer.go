package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Buffer is an append-only bytecode stream. Already emitted operands can be
// overwritten in place with PatchInt32, which is how forward jumps are
// resolved once their target is known.
type Buffer struct {
	code []byte
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{code: make([]byte, 0, 256)}
}

// Pos returns the offset the next emitted byte will occupy.
func (b *Buffer) Pos() int {
	return len(b.code)
}

// Bytes returns the emitted stream. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.code
}

// EmitOp appends an opcode byte.
func (b *Buffer) EmitOp(op Opcode) {
	b.code = append(b.code, byte(op))
}

// EmitU8 appends a single byte operand.
func (b *Buffer) EmitU8(v uint8) {
	b.code = append(b.code, v)
}

// EmitU16 appends a little-endian u16 operand.
func (b *Buffer) EmitU16(v uint16) {
	b.code = binary.LittleEndian.AppendUint16(b.code, v)
}

// EmitInt32 appends a little-endian i32 operand.
func (b *Buffer) EmitInt32(v int32) {
	b.code = binary.LittleEndian.AppendUint32(b.code, uint32(v))
}

// EmitString appends s followed by a NUL terminator.
func (b *Buffer) EmitString(s string) {
	b.code = append(b.code, s...)
	b.code = append(b.code, 0)
}

// EmitJump appends op with a zero i32 placeholder and returns the operand
// position to pass to PatchJump.
func (b *Buffer) EmitJump(op Opcode) int {
	b.EmitOp(op)
	pos := b.Pos()
	b.EmitInt32(0)
	return pos
}

// PatchJump points the jump whose operand starts at operandPos to target.
// The stored offset is relative to the end of the jump instruction.
func (b *Buffer) PatchJump(operandPos, target int) {
	b.PatchInt32(operandPos, int32(target-(operandPos+4)))
}

// PatchInt32 overwrites the 4 bytes at pos with v.
func (b *Buffer) PatchInt32(pos int, v int32) {
	if pos < 0 || pos+4 > len(b.code) {
		panic(fmt.Sprintf("bytecode: patch position %d out of range (len %d)", pos, len(b.code)))
	}
	binary.LittleEndian.PutUint32(b.code[pos:], uint32(v))
}

// EmitOnEvent appends a complete ON_EVENT instruction whose handler starts
// right after it. It returns the handler offset.
func (b *Buffer) EmitOnEvent(kind EventKind, x, y, radius uint16) int32 {
	handler := int32(b.Pos() + OnEventSize)
	b.EmitOp(OnEvent)
	b.EmitU8(uint8(kind))
	b.EmitU8(OnEventArgc)
	b.EmitU16(x)
	b.EmitU16(y)
	b.EmitU16(radius)
	b.EmitInt32(handler)
	return handler
}
