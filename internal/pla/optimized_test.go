package pla

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustRegion(t *testing.T, lines ...string) *Region {
	t.Helper()
	region, err := ParseRegion(lines)
	if err != nil {
		t.Fatalf("parse region: %v", err)
	}
	return region
}

func TestParseOptimized(t *testing.T) {
	cover, err := ParseOptimized(strings.NewReader(`# generated
.i 3
.o 1
.ilb a b_1 b_0
.ob y
.p 2
1-1 1
01- 1
.e
trailing garbage is ignored
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := &Cover{
		NumInputs:    3,
		NumOutputs:   1,
		InputLabels:  []string{"a", "b_1", "b_0"},
		OutputLabels: []string{"y"},
		Terms:        []Term{{In: "1-1", Out: "1"}, {In: "01-", Out: "1"}},
	}
	if diff := cmp.Diff(want, cover); diff != "" {
		t.Fatalf("cover mismatch (-want +got):\n%s", diff)
	}
}

func TestParseOptimizedRejectsBadCovers(t *testing.T) {
	cases := map[string]string{
		"missing counts": "1 1\n",
		"label count":    ".i 2\n.o 1\n.ilb a\n.e\n",
		"term width":     ".i 2\n.o 1\n1 1\n.e\n",
		"bad plane":      ".i 2\n.o 1\n1x 1\n.e\n",
		"bad count":      ".i two\n.o 1\n.e\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseOptimized(strings.NewReader(text)); !errors.Is(err, ErrOptimizationFailed) {
				t.Fatalf("err = %v, want ErrOptimizationFailed", err)
			}
		})
	}
}

func TestEmitMapsBackToDeclaredNames(t *testing.T) {
	region := mustRegion(t, "// .i a b[1:0]", "// .o y z", "// 1-1 10", "// 01- 11")
	cover := &Cover{
		NumInputs:    3,
		NumOutputs:   2,
		InputLabels:  []string{"b_0", "a", "b_1"},
		OutputLabels: []string{"y", "z"},
		Terms: []Term{
			{In: "11-", Out: "10"},
			{In: "-01", Out: "11"},
		},
	}
	got, err := region.Emit(cover, "dec", "  ")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	want := []string{
		"  // pla dec: 3 inputs, 2 outputs, 2 terms",
		"  assign y = (a & b[0]) | (~a & b[1]);",
		"  assign z = (~a & b[1]);",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("emit mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitConstantsAndDroppedSignals(t *testing.T) {
	region := mustRegion(t, "// .i a b", "// .o one zero single", "// 1- 1-1", "// 0- 1-1")
	cover := &Cover{
		NumInputs:    1,
		NumOutputs:   2,
		InputLabels:  []string{"a"},
		OutputLabels: []string{"one", "single"},
		Terms: []Term{
			{In: "-", Out: "10"},
			{In: "1", Out: "01"},
		},
	}
	got, err := region.Emit(cover, "", "")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	want := []string{
		"// pla region: 2 inputs, 3 outputs, 2 terms",
		"assign one = 1'b1;",
		"assign zero = 1'b0;",
		"assign single = a;",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("emit mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitWithoutLabelsRequiresMatchingWidth(t *testing.T) {
	region := mustRegion(t, "// .i a b", "// .o y", "// 11 1")
	if _, err := region.Emit(&Cover{NumInputs: 1, NumOutputs: 1}, "", ""); !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("err = %v, want ErrOptimizationFailed", err)
	}
	got, err := region.Emit(&Cover{NumInputs: 2, NumOutputs: 1, Terms: []Term{{In: "11", Out: "1"}}}, "", "")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got[1] != "assign y = (a & b);" {
		t.Fatalf("assignment = %q", got[1])
	}
}

func TestEmitRejectsUnknownLabels(t *testing.T) {
	region := mustRegion(t, "// .i a", "// .o y", "// 1 1")
	cover := &Cover{NumInputs: 1, NumOutputs: 1, InputLabels: []string{"q"}, OutputLabels: []string{"y"}}
	if _, err := region.Emit(cover, "", ""); !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("err = %v, want ErrOptimizationFailed", err)
	}
}
