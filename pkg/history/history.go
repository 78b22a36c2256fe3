package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// DefaultKey is the backend key the history document is stored under.
const DefaultKey = "CSQLAR_TT_B123"

// Backend is the key/value store holding the history document.
type Backend interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
}

// Flags are the persisted UI preferences.
type Flags struct {
	OpenSchemaInstructions bool `json:"openSchemaInstructions" bson:"open_schema_instructions"`
	OpenCodeInstructions   bool `json:"openCodeInstructions" bson:"open_code_instructions"`
}

// DefaultFlags shows both instruction panels.
var DefaultFlags = Flags{OpenSchemaInstructions: true, OpenCodeInstructions: true}

// Document is the stored form of the history.
type Document struct {
	// Schemas maps a schema id to the schema's JSON text.
	Schemas map[string]string `json:"schemas"`
	Flags   Flags             `json:"flags"`
}

// Entry is one stored schema.
type Entry struct {
	ID     string                `json:"id"`
	Schema schema.ExportedSchema `json:"schema"`
}

// History is the schema history kept in a Backend. Safe for concurrent use
// within one process.
type History struct {
	backend Backend
	key     string
	mu      sync.Mutex
}

// Open binds a History to backend under key (DefaultKey when empty) and
// writes the default document if none exists yet.
func Open(ctx context.Context, backend Backend, key string) (*History, error) {
	if key == "" {
		key = DefaultKey
	}
	h := &History{backend: backend, key: key}

	_, ok, err := backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if !ok {
		doc := Document{Schemas: map[string]string{}, Flags: DefaultFlags}
		if err := h.store(ctx, doc); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Key returns the backend key of the document.
func (h *History) Key() string { return h.key }

// Add stores s. added is false when the same schema was already present.
// Schemas outside the editor's limits are rejected with their coded error.
func (h *History) Add(ctx context.Context, s schema.ExportedSchema) (id string, added bool, err error) {
	if err := schema.ValidateExported(s); err != nil {
		return "", false, err
	}
	id, err = s.ID()
	if err != nil {
		return "", false, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", false, fmt.Errorf("history: encode schema: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := h.load(ctx)
	if err != nil {
		return "", false, err
	}
	if _, exists := doc.Schemas[id]; exists {
		return id, false, nil
	}
	doc.Schemas[id] = string(data)
	if err := h.store(ctx, doc); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Get returns the schema stored under id, or a NOT_FOUND error.
func (h *History) Get(ctx context.Context, id string) (schema.ExportedSchema, error) {
	h.mu.Lock()
	doc, err := h.load(ctx)
	h.mu.Unlock()
	if err != nil {
		return schema.ExportedSchema{}, err
	}
	raw, ok := doc.Schemas[id]
	if !ok {
		return schema.ExportedSchema{}, errors.New(errors.ErrCodeNotFound, "schema %s is not in the history", id)
	}
	return decodeSchema(raw)
}

// Delete removes id and reports whether it was present.
func (h *History) Delete(ctx context.Context, id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := h.load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := doc.Schemas[id]; !ok {
		return false, nil
	}
	delete(doc.Schemas, id)
	return true, h.store(ctx, doc)
}

// List returns every stored schema ordered by id. Entries that no longer
// decode are skipped.
func (h *History) List(ctx context.Context) ([]Entry, error) {
	h.mu.Lock()
	doc, err := h.load(ctx)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(doc.Schemas))
	for id := range doc.Schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		s, err := decodeSchema(doc.Schemas[id])
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ID: id, Schema: s})
	}
	return entries, nil
}

// Flags returns the stored preference flags.
func (h *History) Flags(ctx context.Context) (Flags, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, err := h.load(ctx)
	if err != nil {
		return Flags{}, err
	}
	return doc.Flags, nil
}

// SetFlags replaces the preference flags.
func (h *History) SetFlags(ctx context.Context, f Flags) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, err := h.load(ctx)
	if err != nil {
		return err
	}
	doc.Flags = f
	return h.store(ctx, doc)
}

// Close closes the backend if it holds resources.
func (h *History) Close() error {
	if c, ok := h.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (h *History) load(ctx context.Context) (Document, error) {
	data, ok, err := h.backend.Get(ctx, h.key)
	if err != nil {
		return Document{}, fmt.Errorf("history: load: %w", err)
	}
	if !ok {
		return Document{}, errors.New(errors.ErrCodeInternal, "history document %q is missing; was the history opened?", h.key)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, errors.Wrap(errors.ErrCodeInvalidJSON, err, "history document %q is corrupt", h.key)
	}
	if doc.Schemas == nil {
		doc.Schemas = map[string]string{}
	}
	return doc, nil
}

func (h *History) store(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	if err := h.backend.Set(ctx, h.key, data); err != nil {
		return fmt.Errorf("history: store: %w", err)
	}
	return nil
}

func decodeSchema(raw string) (schema.ExportedSchema, error) {
	var s schema.ExportedSchema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return schema.ExportedSchema{}, errors.Wrap(errors.ErrCodeInvalidJSON, err, "stored schema is corrupt")
	}
	return s, nil
}
