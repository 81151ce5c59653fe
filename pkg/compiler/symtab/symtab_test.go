package symtab

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/espg/pkg/compiler/diag"
)

func TestDeclare(t *testing.T) {
	tab := New()

	steps := []struct {
		name      string
		wantIdx   int
		wantFresh bool
	}{
		{"x", 0, true},
		{"y", 1, true},
		{"x", 0, false},
		{"z", 2, true},
	}
	for _, s := range steps {
		idx, fresh, err := tab.Declare(s.name)
		if err != nil {
			t.Fatalf("Declare(%q) error = %v", s.name, err)
		}
		if idx != s.wantIdx || fresh != s.wantFresh {
			t.Errorf("Declare(%q) = (%d, %v), want (%d, %v)", s.name, idx, fresh, s.wantIdx, s.wantFresh)
		}
	}

	if tab.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tab.Len())
	}
	if i, ok := tab.Lookup("y"); !ok || i != 1 {
		t.Errorf("Lookup(y) = (%d, %v), want (1, true)", i, ok)
	}
	if _, ok := tab.Lookup("w"); ok {
		t.Error("Lookup(w) should fail")
	}
	if tab.Name(2) != "z" || tab.Name(3) != "" || tab.Name(-1) != "" {
		t.Errorf("Name() returned unexpected values")
	}
}

func TestDeclareLimit(t *testing.T) {
	tab := New()
	for i := 0; i < MaxVariables; i++ {
		if _, _, err := tab.Declare(fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Declare(v%d) error = %v", i, err)
		}
	}
	// redeclaring an existing name still works when full
	if idx, _, err := tab.Declare("v7"); err != nil || idx != 7 {
		t.Errorf("Declare(v7) = (%d, %v), want (7, nil)", idx, err)
	}
	_, _, err := tab.Declare("overflow")
	if diag.KindOf(err) != diag.TooManyVariables {
		t.Errorf("Declare(overflow) error = %v, want TooManyVariables", err)
	}
}

func TestInitialValuesIndices(t *testing.T) {
	v := InitialValues{5: int64(1), 0: "a", 2: int64(3)}
	got := v.Indices()
	want := []int{0, 2, 5}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}
}

// TestPropertyIndicesFollowDeclarationOrder checks that indices are dense and
// assigned in first-declaration order.
func TestPropertyIndicesFollowDeclarationOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	pool := []string{"a", "b", "c", "d", "score", "x"}

	properties.Property("first declaration fixes the index", prop.ForAll(
		func(picks []int) bool {
			tab := New()
			first := map[string]int{}
			for _, p := range picks {
				n := pool[p]
				idx, fresh, err := tab.Declare(n)
				if err != nil {
					return false
				}
				want, seen := first[n]
				if !seen {
					want = len(first)
					first[n] = want
				}
				if idx != want || fresh == seen {
					return false
				}
			}
			return tab.Len() == len(first)
		},
		gen.SliceOf(gen.IntRange(0, len(pool)-1)),
	))

	properties.TestingRun(t)
}
