package schema

import (
	"github.com/matzehuels/sqltree/pkg/errors"
)

// Endpoint is one end of a drag in the editor: a table node and the handle
// that was grabbed on it.
type Endpoint struct {
	NodeID string `json:"node"`
	Handle Handle `json:"handle"`
}

// Connection is a proposed edge as reported by the diagramming runtime. The
// user may drag in either direction, so Source is not necessarily the FK side.
type Connection struct {
	Source Endpoint `json:"source"`
	Target Endpoint `json:"target"`
}

// ResolveConnection works out which end of c is the referencing column and
// which the referenced one. Exactly one end must be an FK connector and the
// other a PK connector; any other combination reports ok=false.
func ResolveConnection(c Connection) (fk, pk Endpoint, ok bool) {
	switch {
	case c.Source.Handle.Kind == HandleFK && c.Target.Handle.Kind == HandlePK:
		fk, pk = c.Source, c.Target
	case c.Source.Handle.Kind == HandlePK && c.Target.Handle.Kind == HandleFK:
		fk, pk = c.Target, c.Source
	default:
		return Endpoint{}, Endpoint{}, false
	}
	if fk.NodeID == "" || fk.Handle.FieldID == "" || pk.NodeID == "" || pk.Handle.FieldID == "" {
		return Endpoint{}, Endpoint{}, false
	}
	return fk, pk, true
}

// Connect validates c and adds the foreign-key edge it describes.
//
// A connection between two connectors of the same role is ignored: the state
// comes back unchanged with a nil error. A connection whose PK end is not a
// primary key fails with FK_TARGET_NOT_PRIMARY_KEY and creates nothing.
//
// On success both ends get a fresh lane, computed from the edges that existed
// before the insertion, and the referencing column takes the referenced
// column's data type when it has one.
func (s State) Connect(c Connection) (State, error) {
	fk, pk, ok := ResolveConnection(c)
	if !ok {
		return s, nil
	}

	fkField, ok := s.Field(fk.NodeID, fk.Handle.FieldID)
	if !ok {
		return s, errors.New(errors.ErrCodeNotFound, "column %s not found in table %s", fk.Handle.FieldID, fk.NodeID)
	}
	pkField, ok := s.Field(pk.NodeID, pk.Handle.FieldID)
	if !ok {
		return s, errors.New(errors.ErrCodeNotFound, "column %s not found in table %s", pk.Handle.FieldID, pk.NodeID)
	}
	if !pkField.IsPK {
		return s, errors.New(errors.ErrCodeFKTargetNotPrimaryKey,
			"column %q must be a primary key to be referenced by %q", pkField.Label, fkField.Label)
	}

	srcLane := AllocateLane(UsedLanes(s.Edges, fk.NodeID, fkField.ID, HandleLaneSource))
	tgtLane := AllocateLane(UsedLanes(s.Edges, pk.NodeID, pkField.ID, HandleLaneTarget))

	out := s.Clone()
	out.Edges = append(out.Edges, Edge{
		ID:           EdgeID(fk.NodeID, fkField.ID, pk.NodeID, pkField.ID, srcLane, tgtLane),
		Source:       fk.NodeID,
		SourceHandle: SourceLane(fkField.ID, srcLane),
		Target:       pk.NodeID,
		TargetHandle: TargetLane(pkField.ID, tgtLane),
		Type:         EdgeTypeSmoothStep,
	})

	if pkField.DataType != nil {
		t := *pkField.DataType
		out.updateField(fk.NodeID, fkField.ID, func(f *Field) {
			f.HasType = true
			f.DataType = typePtr(t)
		})
	}
	return out, nil
}

// Disconnect removes the edge with the given id. Unknown ids are a NOT_FOUND
// error.
func (s State) Disconnect(edgeID string) (State, error) {
	for i, e := range s.Edges {
		if e.ID == edgeID {
			out := s.Clone()
			out.Edges = append(out.Edges[:i], out.Edges[i+1:]...)
			return out, nil
		}
	}
	return s, errors.New(errors.ErrCodeNotFound, "edge %s not found", edgeID)
}

// References returns the edges leaving a column, i.e. the foreign keys it holds.
func (s State) References(nodeID, fieldID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Source == nodeID && e.SourceHandle.FieldID == fieldID {
			out = append(out, e)
		}
	}
	return out
}

// ReferencedBy returns the edges arriving at a column, i.e. the foreign keys
// that point at it.
func (s State) ReferencedBy(nodeID, fieldID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Target == nodeID && e.TargetHandle.FieldID == fieldID {
			out = append(out, e)
		}
	}
	return out
}
