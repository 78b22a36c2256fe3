package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/integrations/converter"
	"github.com/matzehuels/sqltree/pkg/schema"
)

type fakeService struct {
	validation converter.Validation
	payload    derivation.Payload
	validates  int
	transforms int
}

func (f *fakeService) Validate(context.Context, schema.ExportedSchema) (converter.Validation, error) {
	f.validates++
	return f.validation, nil
}

func (f *fakeService) Transform(context.Context, schema.ExportedSchema, bool) (derivation.Payload, error) {
	f.transforms++
	return f.payload, nil
}

func okService() *fakeService {
	return &fakeService{
		validation: converter.Validation{OK: true, Errors: []string{}, Message: converter.MessageValid},
		payload: derivation.Payload{
			AlgebraRelacional: "π nombre (Empleado)",
			RootID:            "n1",
			Nodos: []derivation.Step{
				{ID: "n1", Fase: "Proyección", Children: []string{"n2"}},
				{ID: "n2", Fase: "Relación", SQL: "FROM Empleado"},
			},
		},
	}
}

func testState(t *testing.T) schema.State {
	t.Helper()
	st, _, err := schema.State{}.AddTable(&schema.Sequence{})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func openHistory(t *testing.T) *history.History {
	t.Helper()
	h, err := history.Open(context.Background(), history.NewCacheBackend(cache.NewMemoryCache()), "")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	st := testState(t)
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"state", Options{State: &st}, false},
		{"schema", Options{Schema: &schema.ExportedSchema{}}, false},
		{"neither", Options{}, true},
		{"both", Options{State: &st, Schema: &schema.ExportedSchema{}}, true},
		{"bad format", Options{State: &st, Formats: []string{"gif"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsDefaultsIdempotent(t *testing.T) {
	st := testState(t)
	opts := Options{State: &st}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != DefaultFormat || opts.Logger == nil {
		t.Errorf("defaults = %+v", opts)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if len(opts.Formats) != 1 {
		t.Error("second call changed formats")
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"json", "dot", "svg"}); err != nil {
		t.Errorf("valid formats: %v", err)
	}
	if err := ValidateFormats([]string{"svg", "bmp"}); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("invalid format error = %v", err)
	}
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("empty formats: %v", err)
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	svc := okService()
	hist := openHistory(t)
	r := NewRunner(cache.NewMemoryCache(), nil, svc, hist, nil)

	st := testState(t)
	res, err := r.Execute(ctx, Options{State: &st, SQL: "SELECT 1", Formats: []string{"json", "dot"}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Schema.SQLQuery != "SELECT 1" || res.SchemaID == "" {
		t.Errorf("schema = %+v id=%q", res.Schema, res.SchemaID)
	}
	if !res.Validation.OK || !res.HistoryAdded {
		t.Errorf("validation=%+v historyAdded=%v", res.Validation, res.HistoryAdded)
	}
	if res.Stats.StepCount != 2 || res.Stats.NodeCount != 3 || res.Stats.TableCount != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	var l derivation.Layout
	if err := json.Unmarshal(res.Artifacts["json"], &l); err != nil || len(l.Nodes) != 3 {
		t.Errorf("json artifact: %v %+v", err, l)
	}
	if !strings.Contains(string(res.Artifacts["dot"]), `"n1" -> "n2"`) {
		t.Errorf("dot artifact = %s", res.Artifacts["dot"])
	}

	entries, _ := hist.List(ctx)
	if len(entries) != 1 || entries[0].ID != res.SchemaID {
		t.Errorf("history = %+v", entries)
	}

	again, err := r.Execute(ctx, Options{State: &st, SQL: "SELECT 1", Formats: []string{"json", "dot"}})
	if err != nil {
		t.Fatal(err)
	}
	if again.HistoryAdded {
		t.Error("same schema added twice")
	}
	if !again.CacheInfo.LayoutHit || !again.CacheInfo.RenderHit {
		t.Errorf("cache info = %+v", again.CacheInfo)
	}
}

func TestExecuteRejected(t *testing.T) {
	svc := okService()
	svc.validation = converter.Validation{OK: false, Errors: []string{"Error: falta FROM"}, Message: converter.MessageInvalid}
	hist := openHistory(t)
	r := NewRunner(nil, nil, svc, hist, nil)

	st := testState(t)
	res, err := r.Execute(context.Background(), Options{State: &st, SQL: "SELECT"})
	if !errors.Is(err, errors.ErrCodeSchemaRejected) {
		t.Fatalf("err = %v, want SCHEMA_REJECTED", err)
	}
	if !strings.Contains(err.Error(), "falta FROM") {
		t.Errorf("err = %v", err)
	}
	if res == nil || res.Validation.OK {
		t.Fatalf("partial result = %+v", res)
	}
	if svc.transforms != 0 {
		t.Error("rejected query was transformed")
	}
	if entries, _ := hist.List(context.Background()); len(entries) != 0 {
		t.Error("rejected schema recorded in history")
	}
}

func TestExecuteInvalidNames(t *testing.T) {
	st := testState(t)
	st, err := st.RenameTable(st.Nodes[0].ID, "  ")
	if err != nil {
		t.Fatal(err)
	}
	svc := okService()
	r := NewRunner(nil, nil, svc, nil, nil)
	if _, err := r.Execute(context.Background(), Options{State: &st}); !errors.Is(err, errors.ErrCodeInvalidName) {
		t.Errorf("err = %v, want INVALID_NAME", err)
	}
	if svc.validates != 0 {
		t.Error("invalid schema reached the service")
	}
}

func TestExecuteRejectsOversizedSchema(t *testing.T) {
	es := schema.ExportedSchema{SQLQuery: "SELECT 1"}
	for i := 0; i < 20; i++ {
		es.Tables = append(es.Tables, schema.ExportedTable{
			Name:    strings.Repeat("T", 45),
			Columns: []schema.ExportedColumn{{Name: ""}},
		})
	}
	svc := okService()
	h := openHistory(t)
	r := NewRunner(nil, nil, svc, h, nil)

	res, err := r.Execute(context.Background(), Options{Schema: &es})
	if !errors.Is(err, errors.ErrCodeLimitExceeded) {
		t.Fatalf("err = %v, want LIMIT_EXCEEDED", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if svc.validates != 0 || svc.transforms != 0 {
		t.Errorf("validates=%d transforms=%d, want 0 and 0", svc.validates, svc.transforms)
	}
	if entries, _ := h.List(context.Background()); len(entries) != 0 {
		t.Errorf("history holds %d entries", len(entries))
	}

	// SkipValidation only skips the service check.
	if _, err := r.Execute(context.Background(), Options{Schema: &es, SkipValidation: true}); err == nil {
		t.Error("SkipValidation let an oversized schema through")
	}
}

func TestExecuteSkipValidation(t *testing.T) {
	svc := okService()
	r := NewRunner(nil, nil, svc, nil, nil)
	s := schema.ExportedSchema{Tables: []schema.ExportedTable{}, SQLQuery: "old"}
	res, err := r.Execute(context.Background(), Options{Schema: &s, SQL: "new", SkipValidation: true})
	if err != nil {
		t.Fatal(err)
	}
	if svc.validates != 0 || svc.transforms != 1 {
		t.Errorf("validates=%d transforms=%d", svc.validates, svc.transforms)
	}
	if res.Schema.SQLQuery != "new" {
		t.Errorf("SQL = %q", res.Schema.SQLQuery)
	}
}

func TestExecuteWithoutService(t *testing.T) {
	st := testState(t)
	r := NewRunner(nil, nil, nil, nil, nil)
	if _, err := r.Execute(context.Background(), Options{State: &st}); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("err = %v", err)
	}
}

func TestLayoutCached(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(cache.NewMemoryCache(), nil, nil, nil, nil)
	p := okService().payload

	first, hit, err := r.LayoutWithCacheInfo(ctx, p, derivation.Options{})
	if err != nil || hit {
		t.Fatalf("first layout: hit=%v err=%v", hit, err)
	}
	second, hit, err := r.LayoutWithCacheInfo(ctx, p, derivation.Options{})
	if err != nil || !hit {
		t.Fatalf("second layout: hit=%v err=%v", hit, err)
	}
	if len(first.Nodes) != len(second.Nodes) || first.RootID != second.RootID {
		t.Error("cached layout differs")
	}
	if _, hit, _ := r.LayoutWithCacheInfo(ctx, p, derivation.Options{HGap: 10}); hit {
		t.Error("different options hit the cache")
	}
}

func TestRenderDefaultsToJSON(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil, nil)
	l := derivation.Build(okService().payload, derivation.Options{})
	artifacts, err := r.Render(context.Background(), l, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := artifacts["json"]; !ok || len(artifacts) != 1 {
		t.Errorf("artifacts = %v", artifacts)
	}
}
