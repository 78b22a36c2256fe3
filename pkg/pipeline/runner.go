package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// Runner executes the pipeline with caching. It keeps no per-run state, so
// one Runner can serve concurrent runs.
type Runner struct {
	Cache   cache.Cache
	Keyer   cache.Keyer
	Service Service
	// History records validated schemas; nil disables recording.
	History *history.History
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses the default one and a nil logger uses log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, svc Service, h *history.History, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Service: svc, History: h, Logger: logger}
}

// Execute runs export → validate → record → transform → layout → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if r.Service == nil {
		return nil, errors.New(errors.ErrCodeInternal, "no conversion service configured")
	}

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Export
	s, err := ExportSchema(opts)
	if err != nil {
		return nil, err
	}
	id, err := s.ID()
	if err != nil {
		return nil, fmt.Errorf("schema id: %w", err)
	}
	result.Schema, result.SchemaID = s, id
	result.Stats.TableCount = len(s.Tables)

	// Stage 2: Validate
	if !opts.SkipValidation {
		start := time.Now()
		v, err := r.Service.Validate(ctx, s)
		if err != nil {
			return nil, err
		}
		result.Validation = v
		result.Stats.ValidateTime = time.Since(start)
		if !v.OK {
			r.Logger.Warn("query rejected", "schema", shortID(id), "errors", len(v.Errors))
			return result, errors.New(errors.ErrCodeSchemaRejected, "%s", rejection(v.Message, v.Errors))
		}
		r.Logger.Info("query validated", "schema", shortID(id), "duration", result.Stats.ValidateTime)
	}

	// Stage 3: Record
	if r.History != nil && !opts.SkipHistory {
		_, added, err := r.History.Add(ctx, s)
		if err != nil {
			r.Logger.Warn("history not updated", "err", err)
		}
		result.HistoryAdded = added
	}

	// Stage 4: Transform
	start := time.Now()
	payload, err := r.Service.Transform(ctx, s, opts.Refresh)
	if err != nil {
		return result, fmt.Errorf("transform: %w", err)
	}
	result.Payload = payload
	result.Stats.TransformTime = time.Since(start)
	result.Stats.StepCount = len(payload.Nodos)
	r.Logger.Info("derivation received", "steps", len(payload.Nodos), "duration", result.Stats.TransformTime)

	// Stage 5: Layout
	start = time.Now()
	l, layoutHit, err := r.LayoutWithCacheInfo(ctx, payload, opts.Layout)
	if err != nil {
		return result, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(start)
	result.Stats.NodeCount = len(l.Nodes)
	result.CacheInfo.LayoutHit = layoutHit

	// Stage 6: Render
	start = time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, l, opts.Formats)
	if err != nil {
		return result, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(start)
	result.CacheInfo.RenderHit = renderHit
	r.Logger.Info("rendered outputs", "formats", opts.Formats, "duration", result.Stats.RenderTime)

	return result, nil
}

// ExportSchema resolves the schema a run works on: the validated export of
// opts.State, or opts.Schema with opts.SQL as its query when set. Both are
// held to the same table, column and name limits.
func ExportSchema(opts Options) (schema.ExportedSchema, error) {
	if opts.State != nil {
		return schema.ExportValidated(*opts.State, opts.SQL)
	}
	if opts.Schema == nil {
		return schema.ExportedSchema{}, errors.New(errors.ErrCodeInvalidInput, "a state or a schema is required")
	}
	s := *opts.Schema
	if opts.SQL != "" {
		s.SQLQuery = opts.SQL
	}
	if err := schema.ValidateExported(s); err != nil {
		return schema.ExportedSchema{}, err
	}
	return s, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func rejection(summary string, msgs []string) string {
	if len(msgs) == 0 {
		return summary
	}
	return summary + ": " + strings.Join(msgs, "; ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
