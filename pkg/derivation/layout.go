package derivation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Size is an estimated node size in pixels.
type Size struct {
	Width, Height float64
}

// Build positions the steps of p as a top-down tree under a virtual root.
// It never fails: children that name unknown steps are ignored, steps not
// reachable from the root are left out, and an empty step list yields a
// layout holding only the virtual root.
func Build(p Payload, opts Options) Layout {
	opts = opts.WithDefaults()

	rootID := virtualRootID(p.Nodos)
	all := make([]Step, 0, len(p.Nodos)+1)
	all = append(all, Step{
		ID:       rootID,
		Fase:     VirtualRootFase,
		ARHeader: p.AlgebraRelacional,
		Children: []string{p.RootID},
		Step:     -1,
	})
	all = append(all, p.Nodos...)

	// First occurrence wins for duplicated ids.
	byID := make(map[string]Step, len(all))
	index := make(map[string]int, len(all))
	for i, s := range all {
		if _, dup := byID[s.ID]; dup {
			continue
		}
		byID[s.ID] = s
		index[s.ID] = i
	}

	sizes := make(map[string]Size, len(byID))
	for id, s := range byID {
		sizes[id] = EstimateSize(s, opts)
	}

	// Breadth-first levels. parent is the step that discovered each step.
	level := map[string]int{rootID: 0}
	parent := map[string]string{}
	order := []string{rootID}
	for q := 0; q < len(order); q++ {
		cur := order[q]
		for _, ch := range byID[cur].Children {
			if _, known := byID[ch]; !known {
				continue
			}
			if _, seen := level[ch]; seen {
				continue
			}
			level[ch] = level[cur] + 1
			parent[ch] = cur
			order = append(order, ch)
		}
	}

	// y is cumulative from the discovering parent; BFS order guarantees the
	// parent is placed first.
	ys := make(map[string]float64, len(order))
	for _, id := range order {
		if id == rootID {
			ys[id] = 0
			continue
		}
		up := parent[id]
		ys[id] = ys[up] + sizes[up].Height + opts.VGap
	}

	// Rows ordered by input position, centred on CenterX.
	var rows [][]string
	for _, id := range order {
		l := level[id]
		for len(rows) <= l {
			rows = append(rows, nil)
		}
		rows[l] = append(rows[l], id)
	}
	xs := make(map[string]float64, len(order))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return index[row[i]] < index[row[j]] })
		total := opts.HGap * float64(len(row)-1)
		for _, id := range row {
			total += sizes[id].Width
		}
		x := opts.CenterX - total/2
		for _, id := range row {
			xs[id] = x
			x += sizes[id].Width + opts.HGap
		}
	}

	out := Layout{RootID: rootID, Nodes: make([]Node, 0, len(order)), Edges: []Edge{}}
	placed := func(id string) bool {
		_, ok := level[id]
		return ok
	}
	for i, s := range all {
		if index[s.ID] != i || !placed(s.ID) {
			continue
		}
		size := sizes[s.ID]
		out.Nodes = append(out.Nodes, Node{
			ID:       s.ID,
			Type:     NodeTypeStep,
			Position: Position{X: xs[s.ID], Y: ys[s.ID]},
			Width:    size.Width,
			Height:   size.Height,
			Level:    level[s.ID],
			Data: StepData{
				ID:       s.ID,
				Fase:     s.Fase,
				SQL:      s.SQL,
				ARActual: s.ARActual,
				Step:     s.Step,
				ARHeader: s.ARHeader,
				IsRoot:   s.ID == rootID,
			},
		})
	}

	seenEdge := make(map[string]bool)
	for i, s := range all {
		if index[s.ID] != i || !placed(s.ID) {
			continue
		}
		for _, ch := range s.Children {
			if !placed(ch) {
				continue
			}
			id := "e-" + s.ID + "-" + ch
			if seenEdge[id] {
				continue
			}
			seenEdge[id] = true
			out.Edges = append(out.Edges, Edge{ID: id, Source: s.ID, Target: ch, Type: EdgeTypeSmoothStep})
		}
	}
	return out
}

// virtualRootID returns the first of "__ar_root__", "__ar_root___1", ...
// not used by any step.
func virtualRootID(steps []Step) string {
	used := make(map[string]bool, len(steps))
	for _, s := range steps {
		used[s.ID] = true
	}
	id := VirtualRootID
	for i := 1; used[id]; i++ {
		id = fmt.Sprintf("%s_%d", VirtualRootID, i)
	}
	return id
}

// EstimateSize estimates the rendered size of a step from its SQL text,
// algebra header and phase label. Zero fields of opts take their defaults.
//
// The width fits the longest line, clamped to [MinWidth, MaxWidth]. The
// height counts the lines the SQL and algebra blocks wrap to at that width,
// or total characters divided by characters per line if that is larger.
func EstimateSize(s Step, opts Options) Size {
	opts = opts.WithDefaults()
	sqlLines := splitLines(s.SQL)
	headerLines := splitLines(s.ARHeader)

	longest := utf8.RuneCountInString(s.Fase)
	for _, l := range append(append([]string{}, sqlLines...), headerLines...) {
		longest = max(longest, utf8.RuneCountInString(l))
	}
	width := clamp(float64(longest)*opts.CharWidth+opts.PadX, opts.MinWidth, opts.MaxWidth)

	perLine := max(1, int(math.Floor((width-opts.PadX)/opts.CharWidth)))
	wrapped := wrappedLines(sqlLines, perLine) + wrappedLines(headerLines, perLine)
	totalChars := utf8.RuneCountInString(strings.ReplaceAll(s.SQL, "\n", "")) +
		utf8.RuneCountInString(strings.ReplaceAll(s.ARHeader, "\n", ""))
	safety := ceilDiv(totalChars, perLine)

	lines := max(wrapped, safety)
	height := math.Max(opts.MinHeight, float64(lines)*opts.LineHeight+opts.PadY)
	return Size{Width: width, Height: height}
}

// splitLines splits text on newlines. Empty text has no lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// wrappedLines counts display lines after wrapping each line at perLine
// characters. Blank lines still take one line.
func wrappedLines(lines []string, perLine int) int {
	n := 0
	for _, l := range lines {
		n += max(1, ceilDiv(utf8.RuneCountInString(l), perLine))
	}
	return n
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
