package formula

import (
	"fmt"
	"io"
	"strings"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/emirpasic/gods/sets/hashset"
)

// Describe returns a short human readable name for a struct.
func (f *Formula) Describe(id StructID) string {
	s := f.Structs[id]
	switch s.Kind {
	case Ref:
		return "&" + strings.Join(s.RefNames, ",")
	case Macro:
		return "$" + s.Call.Name
	}
	if s.Group.IsPlaceholder() {
		return "[nd]"
	}
	return s.Group.Text()
}

func formatDirs(dirs []float64) string {
	if len(dirs) == 0 {
		return ":"
	}
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = gocp.FormatAngle(d)
	}
	return strings.Join(parts, ",")
}

// Dump writes every root and the structs reachable from it through child bonds.
//
// Parent bonds are listed but not followed; a struct reached again is marked [loop].
func (f *Formula) Dump(out io.Writer) error {
	var b strings.Builder
	seen := hashset.New()
	for i, root := range f.Roots {
		fmt.Fprintf(&b, "root %d:\n", i)
		f.dumpStruct(&b, root, 1, seen)
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func (f *Formula) dumpStruct(b *strings.Builder, id StructID, depth int, seen *hashset.Set) {
	pad := strings.Repeat("    ", depth)
	b.WriteString(pad)
	b.WriteString(f.Describe(id))
	if seen.Contains(id) {
		b.WriteString(" [loop]\n")
		return
	}
	seen.Add(id)
	b.WriteByte('\n')

	s := f.Structs[id]
	for _, bond := range s.Parents {
		fmt.Fprintf(b, "%s  <- %d@%s %s\n", pad, bond.Order, formatDirs(bond.Dirs), f.Describe(bond.Target))
	}
	for _, bond := range s.Children {
		fmt.Fprintf(b, "%s  -> %d@%s\n", pad, bond.Order, formatDirs(bond.Dirs))
		f.dumpStruct(b, bond.Target, depth+1, seen)
	}
}
