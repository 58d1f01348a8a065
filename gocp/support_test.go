package gocp

import (
	"errors"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestStandardize(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{720 + 45, 45},
		{-1e-12, 0},
		{359.5, 359.5},
	}
	for _, tt := range tests {
		if got := Standardize(tt.in); got != tt.want {
			t.Errorf("Standardize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !AnglesEqual(-30, 330) || AnglesEqual(30, 330) {
		t.Fatal("AnglesEqual broken")
	}
	if !ContainsAngle([]float64{0, 90}, 450) || ContainsAngle([]float64{0, 90}, 180) {
		t.Fatal("ContainsAngle broken")
	}
}

func TestDefaultWidth(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{".", 0},
		{"", 0},
		{"C", 1},
		{"Cl", 1.4},
		{"3", 0.5},
		{"12", 1},
	}
	for _, tt := range tests {
		if got := DefaultWidth(tt.text, AlignBase); !AnglesEqual(got, tt.want) {
			t.Errorf("DefaultWidth(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestErrors(t *testing.T) {
	err := NewExpectError(ErrEmptyGroup, ExpectAtomGroup, "", 4, "end of input")
	if err.Error() != "Expecting atom group, but got end of input. (at 4)" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	wrapped := pkgerrors.WithMessage(err, "parse")
	if !errors.Is(wrapped, ErrEmptyGroup) || KindOfErr(wrapped) != KindSyntax {
		t.Fatal("wrapped errors should keep their sentinel and kind")
	}
	if !IsExpecting(wrapped, ExpectAtomGroup) || IsExpecting(wrapped, ExpectBond) {
		t.Fatal("IsExpecting broken")
	}

	noPos := NewError(ErrDisconnected, -1, "Structs aren't connected")
	if strings.Contains(noPos.Error(), "(at") || noPos.Kind != KindTopology {
		t.Fatalf("unexpected error %q kind %v", noPos.Error(), noPos.Kind)
	}
	if KindOfErr(errors.New("other")) != 0 {
		t.Fatal("foreign errors have no kind")
	}
}

func TestWriteTree(t *testing.T) {
	c := &Group{Boxes: []Box{{Text: "C", Width: 1}}, Attrs: GroupAttrs{Ref: "a", Bold: true}}
	o := &Group{Boxes: []Box{{Text: "O", Width: 1}}}
	length := 0.5
	tree := &ExpandedTree{
		Group: c,
		Bonds: []ExpandedBond{{
			Order:     2,
			Direction: 90,
			From:      c,
			Attrs:     BondAttrs{Side: SideL, Length: &length},
			To: &ExpandedTree{
				Group: NewPlaceholderGroup(1),
			},
		}, {
			Order:     1,
			Direction: 0,
			From:      c,
			To:        &ExpandedTree{Group: o},
		}},
	}

	b := strings.Builder{}
	if err := WriteTree(&b, tree, DefaultPrintOpts); err != nil {
		t.Fatal(err)
	}
	want := "C {'a,bold}\n" +
		"    --90 {length:0.5,side:L} [nd]\n" +
		"    -0 O\n"
	if b.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", b.String(), want)
	}

	b.Reset()
	WriteTree(&b, tree, PrintOpts{Label: "out", Indent: 2, Widths: true})
	if !strings.HasPrefix(b.String(), "out C w=1\n  --90 [nd]\n") {
		t.Fatalf("unexpected dump:\n%s", b.String())
	}
}
