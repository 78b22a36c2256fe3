// Package schema models the relational schema drawn in the graph editor and
// converts it to and from the portable [ExportedSchema] document.
//
// # Overview
//
// A schema is edited as a [State]: table nodes, each owning an ordered list
// of columns ([Field]), and foreign-key edges between columns. Edges always
// run from the referencing column (the FK side) to the referenced column
// (the PK side), and each end of an edge occupies a numbered lane on its
// column so several connectors touching the same column stay apart.
//
// Every mutation is a method on State that returns a new State:
//
//	st, err := schema.State{}.AddTable(ids)
//	st, err = st.RenameTable(nodeID, "Empleado")
//	st, err = st.Connect(schema.Connection{Source: fk, Target: pk}, ids)
//
// The receiver is never modified, so a rejected operation leaves the caller's
// state exactly as it was.
//
// # Handles
//
// Connector identity is carried by [Handle], a structured value
// {FieldID, Kind, Lane}. On the wire it keeps the string grammar the
// diagramming runtime expects:
//
//	<fieldId>-in                   visible FK connector
//	<fieldId>-out                  visible PK connector
//	<fieldId>-in-src-btm-<lane>    lane connector where an edge leaves an FK column
//	<fieldId>-out-tgt-btm-<lane>   lane connector where an edge reaches a PK column
//
// # Serialization
//
// [Export] walks the state and produces an [ExportedSchema]; foreign keys are
// written by table and column name because ids are regenerated on every
// [Import]. Export followed by Import reproduces an isomorphic graph, and
// [ExportedSchema.ID] gives the content hash used to deduplicate history
// entries.
package schema
