// Package pipeline runs a schema and query through the whole conversion:
//
//  1. Export: editor state → validated ExportedSchema
//  2. Validate: syntax check by the conversion service
//  3. Record: add the schema to the history (on success only)
//  4. Transform: derivation tree from the conversion service
//  5. Layout: position the tree
//  6. Render: JSON, DOT, SVG, PDF or PNG artifacts
//
// The CLI and the HTTP API both drive a [Runner], so they share caching and
// defaults. Stages can also be run on their own:
//
//	runner := pipeline.NewRunner(c, nil, svc, hist, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{State: &st, SQL: q})
//
//	l, err := runner.Layout(ctx, payload, derivation.Options{})
//	artifacts, err := runner.Render(ctx, l, []string{"svg"})
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/integrations/converter"
	"github.com/matzehuels/sqltree/pkg/render"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// DefaultFormat is rendered when no format is requested.
const DefaultFormat = string(render.FormatJSON)

// Service is the conversion service as the pipeline uses it.
// *converter.Client implements it.
type Service interface {
	Validate(ctx context.Context, s schema.ExportedSchema) (converter.Validation, error)
	Transform(ctx context.Context, s schema.ExportedSchema, refresh bool) (derivation.Payload, error)
}

// =============================================================================
// Options
// =============================================================================

// Options configures one pipeline run. Exactly one of State and Schema is
// required.
type Options struct {
	// State is the editor graph; it is exported with SQL as the query.
	State *schema.State `json:"state,omitempty"`
	// Schema is an already exported schema. A non-empty SQL replaces its query.
	Schema *schema.ExportedSchema `json:"schema,omitempty"`
	SQL    string                 `json:"sql,omitempty"`

	Layout  derivation.Options `json:"layout,omitempty"`
	Formats []string           `json:"formats,omitempty"`

	// SkipValidation skips the service syntax check. Local limits still apply.
	SkipValidation bool `json:"skip_validation,omitempty"`
	// SkipHistory leaves the history untouched.
	SkipHistory bool `json:"skip_history,omitempty"`
	// Refresh bypasses cached conversion results.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	switch {
	case o.State == nil && o.Schema == nil:
		return errors.New(errors.ErrCodeInvalidInput, "a state or a schema is required")
	case o.State != nil && o.Schema != nil:
		return errors.New(errors.ErrCodeInvalidInput, "give either a state or a schema, not both")
	}
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetRenderDefaults fills in the format list and logger.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateFormats checks every format name.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if _, err := render.ParseFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Result
// =============================================================================

// Result holds everything a run produced. When the service rejects the
// query, Execute returns the partial Result (Schema, SchemaID, Validation)
// together with the error.
type Result struct {
	Schema     schema.ExportedSchema `json:"schema"`
	SchemaID   string                `json:"schemaId"`
	Validation converter.Validation  `json:"validation"`
	// HistoryAdded is false when the schema was already in the history or
	// no history is configured.
	HistoryAdded bool               `json:"historyAdded"`
	Payload      derivation.Payload `json:"payload"`
	Layout       derivation.Layout  `json:"layout"`
	Artifacts    map[string][]byte  `json:"-"`
	Stats        Stats              `json:"stats"`
	CacheInfo    CacheInfo          `json:"cacheInfo"`
}

// Stats are sizes and timings of a run.
type Stats struct {
	TableCount    int           `json:"tableCount"`
	StepCount     int           `json:"stepCount"`
	NodeCount     int           `json:"nodeCount"`
	ValidateTime  time.Duration `json:"validateTime"`
	TransformTime time.Duration `json:"transformTime"`
	LayoutTime    time.Duration `json:"layoutTime"`
	RenderTime    time.Duration `json:"renderTime"`
}

// CacheInfo tracks which stages were served from the cache.
type CacheInfo struct {
	LayoutHit bool `json:"layoutHit"`
	RenderHit bool `json:"renderHit"`
}
