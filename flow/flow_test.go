package flow

import (
	"slices"
	"testing"

	"github.com/xraph/paystream/subscription"
)

func TestAllOrdersInputsFirst(t *testing.T) {
	f := &Flows{
		Account: "bob",
		Inputs:  []subscription.Index{3, 5},
		Outputs: []subscription.Index{4},
	}
	want := []subscription.Index{3, 5, 4}
	if got := f.All(); !slices.Equal(got, want) {
		t.Errorf("All = %v, want %v", got, want)
	}

	empty := &Flows{Account: "nobody"}
	if got := empty.All(); len(got) != 0 {
		t.Errorf("All on empty flows = %v, want empty", got)
	}
}

func TestDirectionValid(t *testing.T) {
	for _, d := range []Direction{Outputs, Inputs} {
		if !d.Valid() {
			t.Errorf("%q should be valid", d)
		}
	}
	if Direction("sideways").Valid() {
		t.Error("unknown direction reported valid")
	}
}
