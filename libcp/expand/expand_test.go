package expand

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/combine"
	"github.com/2x3systems/cuiping/libcp/formula"
)

func expandSrc(t *testing.T, src string, opts Options) *gocp.ExpandedTree {
	t.Helper()
	f, err := formula.Parse(src, formula.Options{})
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	root, err := combine.Combine(f, combine.Options{})
	if err != nil {
		t.Fatalf("Combine(%q) failed: %v", src, err)
	}
	tree, err := Expand(f, root, opts)
	if err != nil {
		t.Fatalf("Expand(%q) failed: %v", src, err)
	}
	return tree
}

func walkBonds(tree *gocp.ExpandedTree, fn func(b *gocp.ExpandedBond)) {
	for i := range tree.Bonds {
		fn(&tree.Bonds[i])
		walkBonds(tree.Bonds[i].To, fn)
	}
}

func TestTripleBond(t *testing.T) {
	tree := expandSrc(t, "N#N", Options{})
	if len(tree.Bonds) != 1 {
		t.Fatalf("expected 1 bond, got %d", len(tree.Bonds))
	}
	b := tree.Bonds[0]
	if b.Order != 3 || b.Direction != 0 || b.From != tree.Group || b.To.Group.Text() != "N" {
		t.Fatalf("bad bond %+v", b)
	}
}

func TestRootTransform(t *testing.T) {
	tests := []struct {
		opts Options
		want float64
	}{
		{Options{}, 0},
		{Options{Rotate: 90}, 90},
		{Options{Rotate: -90}, 270},
		{Options{FlipX: true}, 180},
		{Options{FlipY: true}, 0},
		{Options{Rotate: 30, FlipY: true}, 330},
	}
	for _, tt := range tests {
		tree := expandSrc(t, "C-N", tt.opts)
		if got := tree.Bonds[0].Direction; !gocp.AnglesEqual(got, tt.want) {
			t.Errorf("%+v: got %v, want %v", tt.opts, got, tt.want)
		}
	}
}

func TestFanOut(t *testing.T) {
	tree := expandSrc(t, "C+N={S:R}O", Options{})
	if len(tree.Bonds) != 4 {
		t.Fatalf("expected 4 branches, got %d", len(tree.Bonds))
	}

	want := []float64{0, 90, 180, 270}
	sides := []gocp.Side{gocp.SideR, gocp.SideR, gocp.SideL, gocp.SideR}
	seen := map[float64]bool{}
	for i, b := range tree.Bonds {
		if !gocp.AnglesEqual(b.Direction, want[i]) {
			t.Fatalf("branch %d: got %v, want %v", i, b.Direction, want[i])
		}
		seen[b.Direction] = true

		n := b.To
		if n.Group.Text() != "N" || len(n.Bonds) != 1 {
			t.Fatalf("branch %d should expand the same N subtree", i)
		}
		// Note: the N=O bond follows each branch's rotation or reflection
		inner := n.Bonds[0]
		if !gocp.AnglesEqual(inner.Direction, want[i]) {
			t.Fatalf("branch %d: inner bond got %v, want %v", i, inner.Direction, want[i])
		}
		if inner.Attrs.Side != sides[i] {
			t.Fatalf("branch %d: inner side got %v, want %v", i, inner.Attrs.Side, sides[i])
		}
	}
	if len(seen) != 4 {
		t.Fatal("branch directions should be distinct")
	}
	if tree.Bonds[0].To == tree.Bonds[1].To {
		t.Fatal("each branch should be its own expansion")
	}
}

func TestMirroredPair(t *testing.T) {
	// Note: 330 and 210 mirror across the vertical axis
	tree := expandSrc(t, "C@30|N-O", Options{})
	if len(tree.Bonds) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(tree.Bonds))
	}
	if !gocp.AnglesEqual(tree.Bonds[0].Direction, 330) || !gocp.AnglesEqual(tree.Bonds[1].Direction, 210) {
		t.Fatalf("got %v and %v", tree.Bonds[0].Direction, tree.Bonds[1].Direction)
	}
	if d := tree.Bonds[0].To.Bonds[0].Direction; !gocp.AnglesEqual(d, 0) {
		t.Fatalf("first branch keeps N-O at 0, got %v", d)
	}
	if d := tree.Bonds[1].To.Bonds[0].Direction; !gocp.AnglesEqual(d, 180) {
		t.Fatalf("mirrored branch turns N-O to 180, got %v", d)
	}
}

func TestDirectionsStandardized(t *testing.T) {
	formulas := []string{
		"N#N",
		"C+N-O",
		"C@30!N[-O,|H]",
		"C@45|N@10-O/H",
		"C[-N-O,/C=O,~C~C~O]",
		"C{&:a}-N/O\\S-&a",
		"CH3-CH2-C[=O,|OH]",
	}

	rnd := rand.New(rand.NewSource(2))
	for _, src := range formulas {
		for i := 0; i < 50; i++ {
			opts := Options{
				Rotate: rnd.Float64()*1440 - 720,
				FlipX:  rnd.Intn(2) == 0,
				FlipY:  rnd.Intn(2) == 0,
			}
			if i%5 == 0 {
				opts.Rotate = float64(rnd.Intn(8)*90 - 360)
			}
			tree := expandSrc(t, src, opts)
			walkBonds(tree, func(b *gocp.ExpandedBond) {
				if b.Direction < 0 || b.Direction >= 360 {
					t.Fatalf("%q %+v: direction %v outside [0, 360)", src, opts, b.Direction)
				}
			})
		}
	}
}

func TestDepthLimit(t *testing.T) {
	f, err := formula.Parse("C-C-C-C", formula.Options{})
	if err != nil {
		t.Fatal(err)
	}
	root, err := combine.Combine(f, combine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Expand(f, root, Options{MaxDepth: 4}); err != nil {
		t.Fatal(err)
	}
	_, err = Expand(f, root, Options{MaxDepth: 3})
	if !errors.Is(err, gocp.ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}
