package interact

import (
	"strings"
	"testing"
)

func TestStdShimConfirmParsesMenu(t *testing.T) {
	cases := []struct {
		input string
		want  Decision
	}{
		{"y\n", DecisionYes},
		{"yes\n", DecisionYes},
		{"n\n", DecisionNo},
		{"\n", DecisionNo},
		{"a\n", DecisionAll},
		{"q\n", DecisionNone},
	}
	for _, c := range cases {
		shim := NewStdShim(strings.NewReader(c.input))
		got, err := shim.Confirm("remove orphan table t?", false)
		if err != nil {
			t.Fatalf("input %q: unexpected error %v", c.input, err)
		}
		if got != c.want {
			t.Errorf("input %q: got %s, want %s", c.input, got, c.want)
		}
	}
}

func TestStdShimConfirmListOnlyWhenAllowed(t *testing.T) {
	shim := NewStdShim(strings.NewReader("l\ny\n"))
	got, err := shim.Confirm("remove?", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DecisionList {
		t.Errorf("got %s, want list", got)
	}
}

func TestStdShimConfirmRejectsListWhenDisallowed(t *testing.T) {
	shim := NewStdShim(strings.NewReader("l\ny\n"))
	got, err := shim.Confirm("remove?", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DecisionYes {
		t.Errorf("got %s, want yes (list input should be re-prompted)", got)
	}
}
