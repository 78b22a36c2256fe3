package derivation

import (
	"encoding/json"
	"io"
	"math"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

// VirtualRootID is the preferred id of the synthesized root step.
const VirtualRootID = "__ar_root__"

// VirtualRootFase is the phase label of the synthesized root step.
const VirtualRootFase = "AR"

// Node and edge types of the rendered tree.
const (
	NodeTypeStep       = "step"
	EdgeTypeSmoothStep = "smoothstep"
)

// =============================================================================
// Input - Conversion Service Payload
// =============================================================================

// Step is one node of the derivation tree as returned by the conversion
// service.
type Step struct {
	ID       string   `json:"id" bson:"id"`
	Fase     string   `json:"fase" bson:"fase"`
	SQL      string   `json:"sql,omitempty" bson:"sql,omitempty"`
	ARHeader string   `json:"arHeader,omitempty" bson:"ar_header,omitempty"`
	ARActual string   `json:"arActual" bson:"ar_actual"`
	Children []string `json:"children" bson:"children"`
	Step     int      `json:"step" bson:"step"`
}

// Payload is the conversion service's answer for one query.
type Payload struct {
	AlgebraRelacional string `json:"algebraRelacional" bson:"algebra_relacional"`
	RootID            string `json:"rootId" bson:"root_id"`
	Nodos             []Step `json:"nodos" bson:"nodos"`
}

// ParsePayload decodes a Payload. Malformed JSON is an INVALID_JSON error.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, errors.Wrap(errors.ErrCodeInvalidJSON, err, "invalid derivation payload")
	}
	return p, nil
}

// ReadPayload decodes a Payload from r.
func ReadPayload(r io.Reader) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, err
	}
	return ParsePayload(data)
}

// Hash returns a content hash of the payload, used as a layout cache key.
func (p Payload) Hash() (string, error) {
	return cache.HashJSON(p)
}

// =============================================================================
// Output - Positioned Tree
// =============================================================================

// Position is a node's top-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StepData is what a rendered node displays.
type StepData struct {
	ID       string `json:"id"`
	Fase     string `json:"fase"`
	SQL      string `json:"sql,omitempty"`
	ARActual string `json:"arActual"`
	Step     int    `json:"step"`
	ARHeader string `json:"arHeader"`
	IsRoot   bool   `json:"isRoot,omitempty"`
}

// Node is a positioned step.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Level    int      `json:"level"`
	Data     StepData `json:"data"`
}

// Edge connects a step to one of its children.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Layout is a positioned derivation tree.
type Layout struct {
	RootID string `json:"rootId"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the box width.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the box height.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Bounds returns the smallest box containing every node.
func (l Layout) Bounds() Rect {
	if len(l.Nodes) == 0 {
		return Rect{}
	}
	r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, n := range l.Nodes {
		r.MinX = math.Min(r.MinX, n.Position.X)
		r.MinY = math.Min(r.MinY, n.Position.Y)
		r.MaxX = math.Max(r.MaxX, n.Position.X+n.Width)
		r.MaxY = math.Max(r.MaxY, n.Position.Y+n.Height)
	}
	return r
}

// Node returns the node with the given id.
func (l Layout) Node(id string) (Node, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Walk visits the tree depth-first from the root, children in edge order.
// Each node is visited once.
func (l Layout) Walk(fn func(n Node, depth int)) {
	byID := make(map[string]Node, len(l.Nodes))
	for _, n := range l.Nodes {
		byID[n.ID] = n
	}
	children := make(map[string][]string)
	for _, e := range l.Edges {
		children[e.Source] = append(children[e.Source], e.Target)
	}
	seen := make(map[string]bool)
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n, ok := byID[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		fn(n, depth)
		for _, c := range children[id] {
			visit(c, depth+1)
		}
	}
	visit(l.RootID, 0)
}

// WriteJSON writes the layout as indented JSON.
func (l Layout) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}
