// Package symtab holds the variable table built from top-level declarations.
package symtab

import (
	"sort"

	"github.com/zurustar/espg/pkg/compiler/diag"
)

// MaxVariables is the number of distinct variables addressable by the
// one-byte LOAD_VAR/STORE_VAR operand.
const MaxVariables = 256

// Table maps declared variable names to stable indices.
// Indices are assigned in declaration order and never reused.
type Table struct {
	index map[string]int
	names []string
}

// New creates an empty Table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Declare registers name and returns its index. Redeclaring a name returns the
// existing index and reports fresh == false.
func (t *Table) Declare(name string) (idx int, fresh bool, err error) {
	if i, ok := t.index[name]; ok {
		return i, false, nil
	}
	if len(t.names) >= MaxVariables {
		return 0, false, diag.New(diag.TooManyVariables,
			"cannot declare %q: at most %d variables are addressable", name, MaxVariables)
	}
	idx = len(t.names)
	t.index[name] = idx
	t.names = append(t.names, name)
	return idx, true, nil
}

// Lookup returns the index of name.
func (t *Table) Lookup(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of declared variables.
func (t *Table) Len() int {
	return len(t.names)
}

// Name returns the name declared at idx, or "" if idx is out of range.
func (t *Table) Name(idx int) string {
	if idx < 0 || idx >= len(t.names) {
		return ""
	}
	return t.names[idx]
}

// Names returns the declared names in index order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// InitialValues maps a variable index to its literal initializer
// (int64 or string). It is carried for runtime initialization only.
type InitialValues map[int]any

// Indices returns the recorded indices in ascending order.
func (v InitialValues) Indices() []int {
	out := make([]int, 0, len(v))
	for i := range v {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
