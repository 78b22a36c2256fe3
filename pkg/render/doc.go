// Package render turns a positioned derivation tree into files.
//
// # Formats
//
// [Render] dispatches on [Format]:
//
//   - json: the layout itself, as consumed by the diagramming runtime
//   - dot: Graphviz source with every node pinned to its computed position
//   - svg: the DOT source rendered in-process by go-graphviz (neato engine)
//   - pdf, png: the SVG converted with rsvg-convert
//
// Positions are never recomputed by Graphviz. [ToDOT] writes each node's
// centre as a pinned pos attribute and the neato engine keeps it, so the
// SVG matches the layout returned by [derivation.Build].
//
//	l := derivation.Build(payload, derivation.Options{})
//	svg, err := render.Render(ctx, l, render.FormatSVG)
//
// PDF and PNG conversion requires librsvg: brew install librsvg (macOS),
// apt install librsvg2-bin (Linux).
//
// [derivation.Build]: github.com/matzehuels/sqltree/pkg/derivation.Build
package render
