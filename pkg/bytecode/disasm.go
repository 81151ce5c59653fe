package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disassembler formats bytecode as a readable assembly-style dump.
type Disassembler struct {
	w     io.Writer
	names []string
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w}
}

// WithVarNames makes LOAD_VAR and STORE_VAR print the variable name next to
// the index. names is indexed by variable index.
func (d *Disassembler) WithVarNames(names []string) *Disassembler {
	d.names = names
	return d
}

// Disassemble writes one line per instruction:
//
//	0000  LOAD_INT      5
//	0005  IF_EQ         12 -> 0022
//
// Decoding stops at the first malformed instruction, which is reported as the error.
func (d *Disassembler) Disassemble(code []byte) error {
	for off := 0; off < len(code); {
		in, err := Decode(code, off)
		if err != nil {
			return err
		}
		line := strings.TrimRight(fmt.Sprintf("%04d  %-14s%s", in.Offset, in.Op, d.operands(in)), " ")
		if _, err := fmt.Fprintln(d.w, line); err != nil {
			return err
		}
		off += in.Size
	}
	return nil
}

func (d *Disassembler) operands(in Instruction) string {
	switch in.Op {
	case LoadInt:
		return strconv.Itoa(int(in.Operand))
	case Jump, IfEq:
		target, _ := in.Target()
		return fmt.Sprintf("%d -> %04d", in.Operand, target)
	case LoadVar, StoreVar:
		idx := int(in.Operand)
		if idx < len(d.names) {
			return fmt.Sprintf("%d (%s)", idx, d.names[idx])
		}
		return strconv.Itoa(idx)
	case LoadString:
		return strconv.Quote(in.Str)
	case OnEvent:
		e := in.Event
		return fmt.Sprintf("%s argc=%d x=%d y=%d r=%d handler=%04d",
			e.Kind, e.Argc, e.X, e.Y, e.Radius, e.Handler)
	default:
		return ""
	}
}
