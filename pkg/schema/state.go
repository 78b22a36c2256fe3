package schema

import (
	"fmt"

	"github.com/matzehuels/sqltree/pkg/errors"
)

// =============================================================================
// Tables
// =============================================================================

// AddTable appends a new table named "Tabla N" with a single column and
// returns the new state and the table's node id. At MaxTables tables the
// operation is refused with LIMIT_EXCEEDED.
func (s State) AddTable(ids IDGenerator) (State, string, error) {
	if len(s.Tables()) >= MaxTables {
		return s, "", errors.New(errors.ErrCodeLimitExceeded, "a schema holds at most %d tables", MaxTables)
	}
	ids = orDefault(ids)
	n := len(s.Nodes)
	node := Node{
		ID:       ids.NodeID(),
		Type:     NodeTypeTable,
		Position: NextPosition(n),
		Width:    DefaultNodeWidth,
		Height:   DefaultNodeHeight,
		Data: &TableData{
			Title:  fmt.Sprintf("Tabla %d", n+1),
			Fields: []Field{{ID: ids.FieldID(), Label: "Columna 1"}},
		},
	}
	out := s.Clone()
	out.Nodes = append(out.Nodes, node)
	return out, node.ID, nil
}

// RemoveTable deletes a table together with every edge touching it.
func (s State) RemoveTable(nodeID string) (State, error) {
	if _, ok := s.Node(nodeID); !ok {
		return s, errors.New(errors.ErrCodeNotFound, "table %s not found", nodeID)
	}
	out := s.Clone()
	nodes := out.Nodes[:0]
	for _, n := range out.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}
	out.Nodes = nodes
	out.Edges = filterEdges(out.Edges, func(e Edge) bool {
		return e.Source != nodeID && e.Target != nodeID
	})
	return out, nil
}

// RenameTable sets a table's title. Titles longer than MaxTableNameLen are
// refused; an empty title is accepted here and reported by [Validate].
func (s State) RenameTable(nodeID, title string) (State, error) {
	if err := errors.ValidateNameLength("table", title, MaxTableNameLen); err != nil {
		return s, err
	}
	if n, ok := s.Node(nodeID); !ok || n.Data == nil {
		return s, errors.New(errors.ErrCodeNotFound, "table %s not found", nodeID)
	}
	out := s.Clone()
	for i := range out.Nodes {
		if out.Nodes[i].ID == nodeID {
			out.Nodes[i].Data.Title = title
		}
	}
	return out, nil
}

// =============================================================================
// Columns
// =============================================================================

// AddField appends a column "Columna N" to a table and returns its field id.
// Tables hold at most MaxFields columns.
func (s State) AddField(nodeID string, ids IDGenerator) (State, string, error) {
	n, ok := s.Node(nodeID)
	if !ok || n.Data == nil {
		return s, "", errors.New(errors.ErrCodeNotFound, "table %s not found", nodeID)
	}
	if len(n.Data.Fields) >= MaxFields {
		return s, "", errors.New(errors.ErrCodeLimitExceeded, "a table holds at most %d columns", MaxFields)
	}
	field := Field{
		ID:    orDefault(ids).FieldID(),
		Label: fmt.Sprintf("Columna %d", len(n.Data.Fields)+1),
	}
	out := s.Clone()
	for i := range out.Nodes {
		if out.Nodes[i].ID == nodeID {
			out.Nodes[i].Data.Fields = append(out.Nodes[i].Data.Fields, field)
		}
	}
	return out, field.ID, nil
}

// RenameField sets a column's label, subject to MaxFieldNameLen.
func (s State) RenameField(nodeID, fieldID, label string) (State, error) {
	if err := errors.ValidateNameLength("column", label, MaxFieldNameLen); err != nil {
		return s, err
	}
	return s.withField(nodeID, fieldID, func(f *Field) { f.Label = label })
}

// DeleteField removes a column and the foreign keys it holds. The last column
// of a table cannot be deleted, nor can a column other columns reference.
func (s State) DeleteField(nodeID, fieldID string) (State, error) {
	n, ok := s.Node(nodeID)
	if !ok || n.Data == nil {
		return s, errors.New(errors.ErrCodeNotFound, "table %s not found", nodeID)
	}
	if _, ok := s.Field(nodeID, fieldID); !ok {
		return s, errors.New(errors.ErrCodeNotFound, "column %s not found in table %s", fieldID, nodeID)
	}
	if len(n.Data.Fields) <= 1 {
		return s, errors.New(errors.ErrCodeLastColumn, "table %q needs at least one column", n.Data.Title)
	}
	if refs := s.ReferencedBy(nodeID, fieldID); len(refs) > 0 {
		return s, errors.New(errors.ErrCodeFieldLocked, "column is referenced by %d foreign key(s)", len(refs))
	}

	out := s.Clone()
	for i := range out.Nodes {
		if out.Nodes[i].ID != nodeID {
			continue
		}
		d := out.Nodes[i].Data
		fields := d.Fields[:0]
		for _, f := range d.Fields {
			if f.ID != fieldID {
				fields = append(fields, f)
			}
		}
		d.Fields = fields
	}
	out.Edges = filterEdges(out.Edges, func(e Edge) bool {
		return !(e.Source == nodeID && e.SourceHandle.FieldID == fieldID)
	})
	return out, nil
}

// TogglePrimaryKey sets or clears a column's primary key flag. Clearing it
// drops every foreign key that pointed at the column and no other edge.
func (s State) TogglePrimaryKey(nodeID, fieldID string, isPK bool) (State, error) {
	out, err := s.withField(nodeID, fieldID, func(f *Field) { f.IsPK = isPK })
	if err != nil || isPK {
		return out, err
	}
	out.Edges = filterEdges(out.Edges, func(e Edge) bool {
		return !(e.Target == nodeID && e.TargetHandle.FieldID == fieldID)
	})
	return out, nil
}

// ToggleType shows or hides a column's type selector. Columns holding a
// foreign key keep the referenced type and cannot be toggled.
func (s State) ToggleType(nodeID, fieldID string, hasType bool) (State, error) {
	if err := s.checkUnlocked(nodeID, fieldID); err != nil {
		return s, err
	}
	return s.withField(nodeID, fieldID, func(f *Field) { f.HasType = hasType })
}

// SetFieldType changes a column's data type. Columns holding a foreign key
// are locked to the referenced type. Retyping a primary key carries the new
// type over to every column that references it.
func (s State) SetFieldType(nodeID, fieldID string, t DataType) (State, error) {
	if err := s.checkUnlocked(nodeID, fieldID); err != nil {
		return s, err
	}
	t = NormalizeDataType(string(t))
	out, err := s.withField(nodeID, fieldID, func(f *Field) {
		f.HasType = true
		f.DataType = typePtr(t)
	})
	if err != nil {
		return s, err
	}
	for _, e := range out.ReferencedBy(nodeID, fieldID) {
		out.updateField(e.Source, e.SourceHandle.FieldID, func(f *Field) {
			f.HasType = true
			f.DataType = typePtr(t)
		})
	}
	return out, nil
}

func (s State) checkUnlocked(nodeID, fieldID string) error {
	if refs := s.References(nodeID, fieldID); len(refs) > 0 {
		return errors.New(errors.ErrCodeFieldLocked, "column type is taken from the referenced primary key")
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate reports every blocking problem in s: empty or oversized names,
// too many tables or columns, and tables without columns. It returns nil for
// a state that can be exported and submitted.
func Validate(s State) error {
	var errs []error
	tables := s.Tables()
	if len(tables) > MaxTables {
		errs = append(errs, errors.New(errors.ErrCodeLimitExceeded, "%d tables, at most %d allowed", len(tables), MaxTables))
	}
	for i, n := range tables {
		if err := errors.ValidateTableName(n.Data.Title); err != nil {
			errs = append(errs, errors.Wrap(errors.GetCode(err), err, "table %d: %s", i+1, errors.UserMessage(err)))
		}
		switch {
		case len(n.Data.Fields) == 0:
			errs = append(errs, errors.New(errors.ErrCodeLastColumn, "table %q has no columns", n.Data.Title))
		case len(n.Data.Fields) > MaxFields:
			errs = append(errs, errors.New(errors.ErrCodeLimitExceeded,
				"table %q has %d columns, at most %d allowed", n.Data.Title, len(n.Data.Fields), MaxFields))
		}
		for j, f := range n.Data.Fields {
			if err := errors.ValidateColumnName(f.Label); err != nil {
				errs = append(errs, errors.Wrap(errors.GetCode(err), err,
					"table %q column %d: %s", n.Data.Title, j+1, errors.UserMessage(err)))
			}
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Helpers
// =============================================================================

// withField clones s and applies fn to one field of the copy.
func (s State) withField(nodeID, fieldID string, fn func(*Field)) (State, error) {
	if _, ok := s.Field(nodeID, fieldID); !ok {
		return s, errors.New(errors.ErrCodeNotFound, "column %s not found in table %s", fieldID, nodeID)
	}
	out := s.Clone()
	out.updateField(nodeID, fieldID, fn)
	return out, nil
}

// updateField mutates s in place; only call it on a clone.
func (s State) updateField(nodeID, fieldID string, fn func(*Field)) {
	for i := range s.Nodes {
		if s.Nodes[i].ID != nodeID || s.Nodes[i].Data == nil {
			continue
		}
		fields := s.Nodes[i].Data.Fields
		for j := range fields {
			if fields[j].ID == fieldID {
				fn(&fields[j])
			}
		}
	}
}

func filterEdges(edges []Edge, keep func(Edge) bool) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
