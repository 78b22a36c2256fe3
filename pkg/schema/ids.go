package schema

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator mints node and field ids. Ids only need to be unique within a
// state; they are never written to exported documents.
type IDGenerator interface {
	NodeID() string
	FieldID() string
}

// UUIDs generates random ids of the form "t_<uuid>" and "f_<uuid>".
type UUIDs struct{}

// NodeID implements IDGenerator.
func (UUIDs) NodeID() string { return "t_" + uuid.NewString() }

// FieldID implements IDGenerator.
func (UUIDs) FieldID() string { return "f_" + uuid.NewString() }

// Sequence generates predictable ids "t_1", "f_1", "t_2", ... and is handy
// for tests and golden files. Safe for concurrent use.
type Sequence struct {
	nodes  atomic.Int64
	fields atomic.Int64
}

// NodeID implements IDGenerator.
func (s *Sequence) NodeID() string { return fmt.Sprintf("t_%d", s.nodes.Add(1)) }

// FieldID implements IDGenerator.
func (s *Sequence) FieldID() string { return fmt.Sprintf("f_%d", s.fields.Add(1)) }

func orDefault(ids IDGenerator) IDGenerator {
	if ids == nil {
		return UUIDs{}
	}
	return ids
}
