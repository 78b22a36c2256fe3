package schema

import (
	"strings"
)

// =============================================================================
// Limits
// =============================================================================

// Editor limits.
const (
	MaxTables       = 15
	MaxFields       = 10
	MaxTableNameLen = 30
	MaxFieldNameLen = 20
)

// NodeTypeTable is the node type of table nodes. Nodes of any other type are
// carried through the state but ignored by export.
const NodeTypeTable = "table"

// EdgeTypeSmoothStep is the connector style used for foreign-key edges.
const EdgeTypeSmoothStep = "smoothstep"

// Default node geometry for new tables.
const (
	DefaultNodeWidth  = 260
	DefaultNodeHeight = 120
)

// =============================================================================
// Data types
// =============================================================================

// DataType is one of the three column types the editor offers.
type DataType string

// Column data types.
const (
	TypeInt     DataType = "INT"
	TypeDate    DataType = "DATE"
	TypeVarchar DataType = "VARCHAR"
)

// DataTypes lists the supported types in menu order.
var DataTypes = []DataType{TypeInt, TypeDate, TypeVarchar}

// NormalizeDataType trims and upper-cases raw and maps it onto the supported
// types. Anything unrecognized, including the empty string, becomes INT.
func NormalizeDataType(raw string) DataType {
	switch DataType(strings.ToUpper(strings.TrimSpace(raw))) {
	case TypeVarchar:
		return TypeVarchar
	case TypeDate:
		return TypeDate
	default:
		return TypeInt
	}
}

// Lower returns the lower-case spelling used in exported documents.
func (t DataType) Lower() string { return strings.ToLower(string(t)) }

// =============================================================================
// Graph state
// =============================================================================

// Position is a node's top-left corner on the canvas.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Field is one column of a table.
type Field struct {
	ID       string    `json:"id" bson:"id"`
	Label    string    `json:"label" bson:"label"`
	IsPK     bool      `json:"isPk,omitempty" bson:"is_pk,omitempty"`
	HasType  bool      `json:"hasType,omitempty" bson:"has_type,omitempty"`
	DataType *DataType `json:"dataType,omitempty" bson:"data_type,omitempty"`
}

// Type returns the field's effective type: its DataType when set, INT otherwise.
func (f Field) Type() DataType {
	if f.DataType == nil {
		return TypeInt
	}
	return NormalizeDataType(string(*f.DataType))
}

// TableData is the payload of a table node.
type TableData struct {
	Title  string  `json:"title" bson:"title"`
	Fields []Field `json:"fields" bson:"fields"`
}

// Node is a node of the editor graph.
type Node struct {
	ID       string     `json:"id" bson:"id"`
	Type     string     `json:"type" bson:"type"`
	Position Position   `json:"position" bson:"position"`
	Width    float64    `json:"width,omitempty" bson:"width,omitempty"`
	Height   float64    `json:"height,omitempty" bson:"height,omitempty"`
	Data     *TableData `json:"data,omitempty" bson:"data,omitempty"`
}

// IsTable reports whether n is a table node carrying data.
func (n Node) IsTable() bool { return n.Type == NodeTypeTable && n.Data != nil }

// Edge is a foreign-key connection. Source is the referencing table node and
// Target the referenced one.
type Edge struct {
	ID           string `json:"id" bson:"id"`
	Source       string `json:"source" bson:"source"`
	SourceHandle Handle `json:"sourceHandle" bson:"source_handle"`
	Target       string `json:"target" bson:"target"`
	TargetHandle Handle `json:"targetHandle" bson:"target_handle"`
	Type         string `json:"type,omitempty" bson:"type,omitempty"`
}

// State is the full editor graph.
type State struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// NextPosition returns the canvas position of the i-th table: three per row,
// 400px apart horizontally and 220px vertically.
func NextPosition(i int) Position {
	return Position{
		X: float64(100 + (i%3)*400),
		Y: float64(80 + (i/3)*220),
	}
}

// Tables returns the table nodes that carry data, in order.
func (s State) Tables() []Node {
	out := make([]Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.IsTable() {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node with the given id.
func (s State) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Field returns a field of a table node.
func (s State) Field(nodeID, fieldID string) (Field, bool) {
	n, ok := s.Node(nodeID)
	if !ok || n.Data == nil {
		return Field{}, false
	}
	for _, f := range n.Data.Fields {
		if f.ID == fieldID {
			return f, true
		}
	}
	return Field{}, false
}

// Clone returns a deep copy of s. Reducers clone before changing anything so
// the receiver stays untouched.
func (s State) Clone() State {
	out := State{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		if n.Data != nil {
			d := *n.Data
			d.Fields = make([]Field, len(n.Data.Fields))
			for j, f := range n.Data.Fields {
				if f.DataType != nil {
					t := *f.DataType
					f.DataType = &t
				}
				d.Fields[j] = f
			}
			n.Data = &d
		}
		out.Nodes[i] = n
	}
	copy(out.Edges, s.Edges)
	return out
}

func typePtr(t DataType) *DataType { return &t }
