package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Event holds the operands of an ON_EVENT instruction.
type Event struct {
	Kind    EventKind
	Argc    uint8
	X       uint16
	Y       uint16
	Radius  uint16
	Handler int32
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset int
	Op     Opcode
	Size   int
	// Operand holds the i32 of LOAD_INT, JUMP and IF_EQ, or the variable
	// index of LOAD_VAR and STORE_VAR.
	Operand int32
	Str     string
	Event   *Event
}

// Target returns the absolute jump target of JUMP and IF_EQ.
func (in Instruction) Target() (int, bool) {
	if in.Op != Jump && in.Op != IfEq {
		return 0, false
	}
	return in.Offset + in.Size + int(in.Operand), true
}

// Decode decodes the instruction at off.
func Decode(code []byte, off int) (Instruction, error) {
	if off < 0 || off >= len(code) {
		return Instruction{}, fmt.Errorf("bytecode: offset %d out of range", off)
	}
	in := Instruction{Offset: off, Op: Opcode(code[off]), Size: 1}
	need := func(n int) error {
		if off+n > len(code) {
			return fmt.Errorf("bytecode: truncated %s at offset %d", in.Op, off)
		}
		return nil
	}

	switch in.Op {
	case LoadInt, Jump, IfEq:
		if err := need(5); err != nil {
			return in, err
		}
		in.Operand = int32(binary.LittleEndian.Uint32(code[off+1:]))
		in.Size = 5
	case LoadVar, StoreVar:
		if err := need(2); err != nil {
			return in, err
		}
		in.Operand = int32(code[off+1])
		in.Size = 2
	case LoadString:
		end := bytes.IndexByte(code[off+1:], 0)
		if end < 0 {
			return in, fmt.Errorf("bytecode: unterminated string at offset %d", off)
		}
		in.Str = string(code[off+1 : off+1+end])
		in.Size = 1 + end + 1
	case OnEvent:
		if err := need(OnEventSize); err != nil {
			return in, err
		}
		in.Event = &Event{
			Kind:    EventKind(code[off+1]),
			Argc:    code[off+2],
			X:       binary.LittleEndian.Uint16(code[off+3:]),
			Y:       binary.LittleEndian.Uint16(code[off+5:]),
			Radius:  binary.LittleEndian.Uint16(code[off+7:]),
			Handler: int32(binary.LittleEndian.Uint32(code[off+9:])),
		}
		in.Size = OnEventSize
	default:
		if !in.Op.Known() {
			return in, fmt.Errorf("bytecode: unknown opcode %#x at offset %d", byte(in.Op), off)
		}
	}
	return in, nil
}

// Instructions decodes the whole stream.
func Instructions(code []byte) ([]Instruction, error) {
	var out []Instruction
	for off := 0; off < len(code); {
		in, err := Decode(code, off)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		off += in.Size
	}
	return out, nil
}

// Validate checks that code decodes cleanly, ends with END, and that every
// jump and handler points at an instruction boundary inside the stream.
func Validate(code []byte) error {
	ins, err := Instructions(code)
	if err != nil {
		return err
	}
	if len(ins) == 0 || ins[len(ins)-1].Op != End {
		return fmt.Errorf("bytecode: stream does not end with END")
	}
	starts := make(map[int]bool, len(ins)+1)
	for _, in := range ins {
		starts[in.Offset] = true
	}
	for _, in := range ins {
		if t, ok := in.Target(); ok && !starts[t] {
			return fmt.Errorf("bytecode: %s at offset %d jumps to %d, not an instruction boundary", in.Op, in.Offset, t)
		}
		if in.Event != nil && !starts[int(in.Event.Handler)] {
			return fmt.Errorf("bytecode: ON_EVENT at offset %d has handler %d, not an instruction boundary", in.Offset, in.Event.Handler)
		}
	}
	return nil
}
