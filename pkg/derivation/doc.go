// Package derivation lays out relational-algebra derivation trees.
//
// The conversion service answers with a flat list of [Step] values, each
// naming its children by id, plus the final algebra expression and the id of
// the top step ([Payload]). [Build] turns that into a positioned top-down
// tree ready for drawing:
//
//  1. A virtual root is added above the declared root. It carries the final
//     expression and gets an id that cannot clash with any step id
//     ("__ar_root__", then "__ar_root___1", ...).
//  2. Every step gets a width and height estimated from its text: the longest
//     line sets the width (clamped to [MinWidth, MaxWidth]) and a simulated
//     word wrap at that width sets the height.
//  3. Steps are assigned levels by breadth-first search from the virtual root.
//     Steps the search never reaches are left out of the layout.
//  4. Each level is a row, ordered by position in the input list and centred
//     on CenterX with HGap between neighbours.
//  5. A step sits VGap below the bottom of the step that discovered it, so
//     tall steps push their subtree down instead of overlapping it.
//
// Layout is a pure function of its input: the same payload and options always
// produce the same coordinates, and malformed references (children that do
// not exist) are dropped rather than reported.
//
//	layout := derivation.Build(payload, derivation.Options{})
//	for _, n := range layout.Nodes {
//	    fmt.Println(n.ID, n.Position.X, n.Position.Y, n.Width, n.Height)
//	}
package derivation
