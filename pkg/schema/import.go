package schema

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/sqltree/pkg/errors"
)

// Imported is an editor graph rebuilt from an ExportedSchema, plus the SQL
// text that travelled with it.
type Imported struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Code  string `json:"code"`
}

// State returns the nodes and edges as an editor state.
func (im Imported) State() State {
	return State{Nodes: im.Nodes, Edges: im.Edges}
}

// Import rebuilds an editor graph from an exported schema.
//
// Every table and column gets a fresh id from ids (UUIDs when nil). Foreign
// keys are resolved by table and column name; a reference to a missing table
// or column is dropped and the rest of the schema is still imported. Each
// rebuilt edge gets lanes computed from the edges created so far.
//
// INT columns come back untyped, since INT is what an untyped column exports as.
func Import(es ExportedSchema, ids IDGenerator) Imported {
	ids = orDefault(ids)

	nodes := make([]Node, 0, len(es.Tables))
	nodeByName := make(map[string]string)
	fieldByName := make(map[string]string)
	for i, t := range es.Tables {
		title := t.Name
		if title == "" {
			title = fmt.Sprintf("Tabla %d", i+1)
		}
		node := Node{
			ID:       ids.NodeID(),
			Type:     NodeTypeTable,
			Position: NextPosition(i),
			Width:    DefaultNodeWidth,
			Height:   DefaultNodeHeight,
			Data:     &TableData{Title: title, Fields: make([]Field, 0, len(t.Columns))},
		}
		for _, c := range t.Columns {
			f := Field{ID: ids.FieldID(), Label: c.Name, IsPK: c.PrimaryKey}
			if dt := NormalizeDataType(c.Type); dt != TypeInt {
				f.HasType = true
				f.DataType = typePtr(dt)
			}
			node.Data.Fields = append(node.Data.Fields, f)
			fieldByName[nameKey(title, c.Name)] = f.ID
		}
		nodeByName[title] = node.ID
		nodes = append(nodes, node)
	}

	edges := []Edge{}
	for i, t := range es.Tables {
		child := nodes[i]
		for j, c := range t.Columns {
			if c.ForeignKey == nil {
				continue
			}
			childField := child.Data.Fields[j].ID
			parent, ok := nodeByName[c.ForeignKey.ReferencedTable]
			if !ok {
				continue
			}
			parentField, ok := fieldByName[nameKey(c.ForeignKey.ReferencedTable, c.ForeignKey.ReferencedColumn)]
			if !ok {
				continue
			}

			srcLane := AllocateLane(UsedLanes(edges, child.ID, childField, HandleLaneSource))
			tgtLane := AllocateLane(UsedLanes(edges, parent, parentField, HandleLaneTarget))
			edges = append(edges, Edge{
				ID:           EdgeID(child.ID, childField, parent, parentField, srcLane, tgtLane),
				Source:       child.ID,
				SourceHandle: SourceLane(childField, srcLane),
				Target:       parent,
				TargetHandle: TargetLane(parentField, tgtLane),
				Type:         EdgeTypeSmoothStep,
			})
		}
	}

	return Imported{Nodes: nodes, Edges: edges, Code: es.SQLQuery}
}

// ImportJSON parses data as an ExportedSchema and imports it. Malformed JSON
// is reported as an INVALID_JSON error.
func ImportJSON(data []byte, ids IDGenerator) (Imported, error) {
	es, err := ParseJSON(data)
	if err != nil {
		return Imported{}, err
	}
	return Import(es, ids), nil
}

// ParseJSON decodes an ExportedSchema.
func ParseJSON(data []byte) (ExportedSchema, error) {
	var es ExportedSchema
	if err := json.Unmarshal(data, &es); err != nil {
		return ExportedSchema{}, errors.Wrap(errors.ErrCodeInvalidJSON, err, "invalid schema JSON")
	}
	return es, nil
}

// ReadJSON decodes an ExportedSchema from r.
func ReadJSON(r io.Reader) (ExportedSchema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ExportedSchema{}, fmt.Errorf("read: %w", err)
	}
	return ParseJSON(data)
}

func nameKey(table, column string) string { return table + "\x00" + column }

// ParseState decodes an editor state document ({"nodes": [...], "edges": [...]}).
func ParseState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, errors.Wrap(errors.ErrCodeInvalidJSON, err, "invalid editor state JSON")
	}
	return s, nil
}
