package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/errors"
)

// =============================================================================
// ExportedSchema - Portable Schema Document
// =============================================================================

// ExportedSchema is the portable form of a schema: what is stored in history
// and sent to the conversion service.
type ExportedSchema struct {
	Tables   []ExportedTable `json:"tables" yaml:"tables" bson:"tables"`
	SQLQuery string          `json:"sqlQuery" yaml:"sqlQuery" bson:"sql_query"`
}

// ExportedTable is one table of an ExportedSchema.
type ExportedTable struct {
	Name    string           `json:"name" yaml:"name" bson:"name"`
	Columns []ExportedColumn `json:"columns" yaml:"columns" bson:"columns"`
}

// ExportedColumn is one column of an ExportedTable. Type is always the
// lower-case type name.
type ExportedColumn struct {
	Name       string         `json:"name" yaml:"name" bson:"name"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty" bson:"type,omitempty"`
	PrimaryKey bool           `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty" bson:"primary_key,omitempty"`
	ForeignKey *ForeignKeyRef `json:"foreignKey,omitempty" yaml:"foreignKey,omitempty" bson:"foreign_key,omitempty"`
}

// ForeignKeyRef names the referenced table and column.
type ForeignKeyRef struct {
	ReferencedTable  string `json:"referencedTable" yaml:"referencedTable" bson:"referenced_table"`
	ReferencedColumn string `json:"referencedColumn" yaml:"referencedColumn" bson:"referenced_column"`
}

// =============================================================================
// Export
// =============================================================================

// Export converts the editor state into an ExportedSchema with sql as its
// query text.
//
// Export is lenient: nodes that are not tables or carry no data are skipped,
// columns whose label is blank are left out, and a table with a blank title
// is exported as "tabla_<nodeId>". Callers submitting a schema should use
// [ExportValidated] so those cases are rejected instead.
//
// Foreign keys are written by the referenced table's title and column label
// as they are at export time.
func Export(s State, sql string) ExportedSchema {
	tableName := make(map[string]string)
	fieldLabel := make(map[string]string)
	for _, n := range s.Nodes {
		if !n.IsTable() {
			continue
		}
		tableName[n.ID] = exportedTableName(n)
		for _, f := range n.Data.Fields {
			fieldLabel[fieldKey(n.ID, f.ID)] = strings.TrimSpace(f.Label)
		}
	}

	fks := make(map[string]*ForeignKeyRef)
	for _, e := range s.Edges {
		srcField, tgtField := e.SourceHandle.FieldID, e.TargetHandle.FieldID
		if e.Source == "" || e.Target == "" || srcField == "" || tgtField == "" {
			continue
		}
		refTable, ok := tableName[e.Target]
		if !ok {
			continue
		}
		refCol := fieldLabel[fieldKey(e.Target, tgtField)]
		if refCol == "" {
			continue
		}
		fks[fieldKey(e.Source, srcField)] = &ForeignKeyRef{
			ReferencedTable:  refTable,
			ReferencedColumn: refCol,
		}
	}

	out := ExportedSchema{Tables: []ExportedTable{}, SQLQuery: sql}
	for _, n := range s.Nodes {
		if !n.IsTable() {
			continue
		}
		table := ExportedTable{Name: tableName[n.ID], Columns: []ExportedColumn{}}
		for _, f := range n.Data.Fields {
			name := strings.TrimSpace(f.Label)
			if name == "" {
				continue
			}
			table.Columns = append(table.Columns, ExportedColumn{
				Name:       name,
				Type:       f.Type().Lower(),
				PrimaryKey: f.IsPK,
				ForeignKey: fks[fieldKey(n.ID, f.ID)],
			})
		}
		out.Tables = append(out.Tables, table)
	}
	return out
}

// ExportValidated runs [Validate] and exports only a state without blocking
// problems.
func ExportValidated(s State, sql string) (ExportedSchema, error) {
	if err := Validate(s); err != nil {
		return ExportedSchema{}, err
	}
	return Export(s, sql), nil
}

// ValidateExported applies the editor's limits to an already exported
// schema: at most MaxTables tables and MaxFields columns per table, and
// non-empty table and column names within their length limits. Like
// [Validate] it reports every problem at once.
func ValidateExported(es ExportedSchema) error {
	var errs []error
	if len(es.Tables) > MaxTables {
		errs = append(errs, errors.New(errors.ErrCodeLimitExceeded, "%d tables, at most %d allowed", len(es.Tables), MaxTables))
	}
	for i, t := range es.Tables {
		if err := errors.ValidateTableName(t.Name); err != nil {
			errs = append(errs, errors.Wrap(errors.GetCode(err), err, "table %d: %s", i+1, errors.UserMessage(err)))
		}
		if len(t.Columns) > MaxFields {
			errs = append(errs, errors.New(errors.ErrCodeLimitExceeded,
				"table %q has %d columns, at most %d allowed", t.Name, len(t.Columns), MaxFields))
		}
		for j, c := range t.Columns {
			if err := errors.ValidateColumnName(c.Name); err != nil {
				errs = append(errs, errors.Wrap(errors.GetCode(err), err,
					"table %q column %d: %s", t.Name, j+1, errors.UserMessage(err)))
			}
		}
	}
	return errors.Join(errs...)
}

func exportedTableName(n Node) string {
	if name := strings.TrimSpace(n.Data.Title); name != "" {
		return name
	}
	return "tabla_" + n.ID
}

func fieldKey(nodeID, fieldID string) string { return nodeID + ":" + fieldID }

// =============================================================================
// Encoding
// =============================================================================

// WriteJSON writes the schema as indented JSON.
func (e ExportedSchema) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteYAML writes the schema as YAML.
func (e ExportedSchema) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return enc.Close()
}

// CanonicalJSON returns the schema serialized with object keys sorted at every
// level and no insignificant whitespace, so equal schemas always produce equal
// bytes.
func (e ExportedSchema) CanonicalJSON() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize schema: %w", err)
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}

// ID returns the content hash of the schema: the SHA-256 hex digest of its
// canonical JSON.
func (e ExportedSchema) ID() (string, error) {
	data, err := e.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}
