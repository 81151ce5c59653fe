package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestBufferEmit(t *testing.T) {
	b := NewBuffer()
	b.EmitOp(LoadInt)
	b.EmitInt32(-2)
	b.EmitOp(LoadString)
	b.EmitString("hi")
	b.EmitOp(StoreVar)
	b.EmitU8(7)
	b.EmitOp(End)

	want := []byte{
		0x10, 0xFE, 0xFF, 0xFF, 0xFF,
		0x11, 'h', 'i', 0x00,
		0x13, 0x07,
		0xFF,
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", b.Bytes(), want)
	}
	if b.Pos() != len(want) {
		t.Errorf("Pos() = %d, want %d", b.Pos(), len(want))
	}
}

func TestPatchJump(t *testing.T) {
	b := NewBuffer()
	operand := b.EmitJump(Jump) // 0..4
	b.EmitOp(Add)               // 5
	b.EmitOp(Sub)               // 6
	target := b.Pos()           // 7
	b.EmitOp(End)
	b.PatchJump(operand, target)

	in, err := Decode(b.Bytes(), 0)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if in.Operand != 2 {
		t.Errorf("jump operand = %d, want 2", in.Operand)
	}
	if got, _ := in.Target(); got != target {
		t.Errorf("Target() = %d, want %d", got, target)
	}
}

func TestPatchInt32OutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("PatchInt32() expected panic for out of range position")
		}
	}()
	b := NewBuffer()
	b.EmitOp(End)
	b.PatchInt32(0, 1)
}

func TestEmitOnEvent(t *testing.T) {
	b := NewBuffer()
	b.EmitOp(End) // shift the instruction to a non-zero offset
	handler := b.EmitOnEvent(TouchPress, 0x1234, 0xFFFF, 0)

	if handler != 1+OnEventSize {
		t.Errorf("handler = %d, want %d", handler, 1+OnEventSize)
	}
	want := []byte{
		0xFF,
		0x06, 0x01, 0x04,
		0x34, 0x12,
		0xFF, 0xFF,
		0x00, 0x00,
		0x0E, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", b.Bytes(), want)
	}

	in, err := Decode(b.Bytes(), 1)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if in.Size != OnEventSize || in.Event == nil {
		t.Fatalf("Decode() = %+v, want ON_EVENT of size %d", in, OnEventSize)
	}
	if in.Event.X != 0x1234 || in.Event.Y != 0xFFFF || in.Event.Handler != handler {
		t.Errorf("Decode() event = %+v", *in.Event)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"truncated LOAD_INT", []byte{0x10, 0x01}},
		{"truncated STORE_VAR", []byte{0x13}},
		{"unterminated string", []byte{0x11, 'a', 'b'}},
		{"truncated ON_EVENT", []byte{0x06, 0x01, 0x04}},
		{"unknown opcode", []byte{0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.code, 0); err == nil {
				t.Errorf("Decode(% x) expected error", tt.code)
			}
		})
	}
}

func TestReservedOpcodes(t *testing.T) {
	for _, op := range []Opcode{Nop, IfButton, SetVar, AddVar} {
		if !op.Reserved() || !op.Known() {
			t.Errorf("%s: Reserved() = %v, Known() = %v", op, op.Reserved(), op.Known())
		}
	}
	if LoadInt.Reserved() {
		t.Error("LOAD_INT must not be reserved")
	}
	if got := Opcode(0x42).String(); got != "OP_0x42" {
		t.Errorf("String() = %q, want OP_0x42", got)
	}
}

func TestValidate(t *testing.T) {
	good := NewBuffer()
	j := good.EmitJump(IfEq)
	good.EmitOp(Add)
	good.PatchJump(j, good.Pos())
	good.EmitOp(End)
	if err := Validate(good.Bytes()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	tests := []struct {
		name string
		code []byte
	}{
		{"empty", nil},
		{"missing END", []byte{0x14}},
		{"jump into operand", []byte{0x08, 0xFC, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"handler out of stream", []byte{0x06, 0x01, 0x04, 0, 0, 0, 0, 0, 0, 0x40, 0, 0, 0, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.code); err == nil {
				t.Errorf("Validate(% x) expected error", tt.code)
			}
		})
	}
}

func TestDisassemble(t *testing.T) {
	b := NewBuffer()
	b.EmitOp(LoadVar)
	b.EmitU8(0)
	b.EmitOp(LoadInt)
	b.EmitInt32(3)
	j := b.EmitJump(IfEq)
	b.EmitOp(LoadString)
	b.EmitString("a")
	b.PatchJump(j, b.Pos())
	b.EmitOp(End)

	var out strings.Builder
	if err := NewDisassembler(&out).WithVarNames([]string{"score"}).Disassemble(b.Bytes()); err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}

	want := strings.Join([]string{
		"0000  LOAD_VAR      0 (score)",
		"0002  LOAD_INT      3",
		"0007  IF_EQ         3 -> 0015",
		"0012  LOAD_STRING   \"a\"",
		"0015  END",
		"",
	}, "\n")
	if out.String() != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", out.String(), want)
	}
}
