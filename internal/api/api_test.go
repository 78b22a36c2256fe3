package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/integrations/converter"
	"github.com/matzehuels/sqltree/pkg/pipeline"
	"github.com/matzehuels/sqltree/pkg/schema"
)

type stubService struct {
	reject bool
}

func (s stubService) Validate(context.Context, schema.ExportedSchema) (converter.Validation, error) {
	if s.reject {
		return converter.Validation{OK: false, Errors: []string{"ERROR: tabla desconocida"}, Message: converter.MessageInvalid}, nil
	}
	return converter.Validation{OK: true, Errors: []string{}, Message: converter.MessageValid}, nil
}

func (stubService) Transform(context.Context, schema.ExportedSchema, bool) (derivation.Payload, error) {
	return samplePayload(), nil
}

func samplePayload() derivation.Payload {
	return derivation.Payload{
		AlgebraRelacional: "π nombre (Empleado)",
		RootID:            "p",
		Nodos: []derivation.Step{
			{ID: "p", Fase: "Proyección", Children: []string{"r"}},
			{ID: "r", Fase: "Relación", SQL: "FROM Empleado"},
		},
	}
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Details []string        `json:"details"`
}

func newServer(t *testing.T, svc pipeline.Service, withHistory bool) *Server {
	t.Helper()
	var h *history.History
	if withHistory {
		var err error
		h, err = history.Open(context.Background(), history.NewCacheBackend(cache.NewMemoryCache()), "")
		if err != nil {
			t.Fatal(err)
		}
	}
	runner := pipeline.NewRunner(cache.NewMemoryCache(), nil, svc, h, nil)
	return New(runner, Options{IDs: &schema.Sequence{}})
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

// twoTables returns Tabla 1 (t_1/f_1) and Tabla 2 (t_2/f_2) with f_2 a
// primary key.
func twoTables(t *testing.T) schema.State {
	t.Helper()
	ids := &schema.Sequence{}
	st, _, err := schema.State{}.AddTable(ids)
	if err != nil {
		t.Fatal(err)
	}
	st, _, err = st.AddTable(ids)
	if err != nil {
		t.Fatal(err)
	}
	st, err = st.TogglePrimaryKey("t_2", "f_2", true)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestHealth(t *testing.T) {
	rec, resp := do(t, newServer(t, stubService{}, false), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || resp.Status != statusSuccess {
		t.Errorf("status = %d %s", rec.Code, resp.Status)
	}
}

func TestExport(t *testing.T) {
	s := newServer(t, stubService{}, false)
	rec, resp := do(t, s, http.MethodPost, "/api/schema/export", exportRequest{State: twoTables(t), SQL: "SELECT 1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var es schema.ExportedSchema
	if err := json.Unmarshal(resp.Data, &es); err != nil {
		t.Fatal(err)
	}
	if len(es.Tables) != 2 || es.Tables[0].Name != "Tabla 1" || es.SQLQuery != "SELECT 1" {
		t.Errorf("exported = %+v", es)
	}
}

func TestExportInvalidName(t *testing.T) {
	st := twoTables(t)
	st, err := st.RenameTable("t_1", "  ")
	if err != nil {
		t.Fatal(err)
	}
	rec, resp := do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/export", exportRequest{State: st})
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != string(errors.ErrCodeInvalidName) {
		t.Errorf("status = %d code = %s", rec.Code, resp.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	rec, resp := do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/import", "{")
	if rec.Code != http.StatusBadRequest || resp.Code != string(errors.ErrCodeInvalidJSON) {
		t.Errorf("status = %d code = %s", rec.Code, resp.Code)
	}
}

func TestImport(t *testing.T) {
	es := schema.ExportedSchema{
		Tables: []schema.ExportedTable{
			{Name: "Departamento", Columns: []schema.ExportedColumn{{Name: "id", PrimaryKey: true}}},
			{Name: "Empleado", Columns: []schema.ExportedColumn{
				{Name: "depto", ForeignKey: &schema.ForeignKeyRef{ReferencedTable: "Departamento", ReferencedColumn: "id"}},
			}},
		},
		SQLQuery: "SELECT * FROM Empleado",
	}
	rec, resp := do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/import", es)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var im schema.Imported
	if err := json.Unmarshal(resp.Data, &im); err != nil {
		t.Fatal(err)
	}
	if len(im.Nodes) != 2 || len(im.Edges) != 1 || im.Code != es.SQLQuery {
		t.Errorf("imported = %+v", im)
	}
}

func TestConnect(t *testing.T) {
	s := newServer(t, stubService{}, false)
	body := `{"state": %s, "connection": {"source": {"node": "t_1", "handle": "f_1-in"}, "target": {"node": "t_2", "handle": "f_2-out"}}}`
	state, _ := json.Marshal(twoTables(t))

	rec, resp := do(t, s, http.MethodPost, "/api/schema/connect", strings.Replace(body, "%s", string(state), 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var st schema.State
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Edges) != 1 || st.Edges[0].Source != "t_1" || st.Edges[0].Target != "t_2" {
		t.Errorf("edges = %+v", st.Edges)
	}
}

func TestConnectToNonKey(t *testing.T) {
	st := twoTables(t)
	st, err := st.TogglePrimaryKey("t_2", "f_2", false)
	if err != nil {
		t.Fatal(err)
	}
	req := connectRequest{State: st, Connection: schema.Connection{
		Source: schema.Endpoint{NodeID: "t_1", Handle: schema.FKHandle("f_1")},
		Target: schema.Endpoint{NodeID: "t_2", Handle: schema.PKHandle("f_2")},
	}}
	rec, resp := do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/connect", req)
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != string(errors.ErrCodeFKTargetNotPrimaryKey) {
		t.Errorf("status = %d code = %s", rec.Code, resp.Code)
	}
}

func TestValidateState(t *testing.T) {
	st := twoTables(t)
	st, _ = st.RenameTable("t_1", "")
	st, _ = st.RenameField("t_2", "f_2", "")

	_, resp := do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/validate", validateRequest{State: st})
	var v validateResponse
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.OK || len(v.Errors) != 2 {
		t.Errorf("validation = %+v", v)
	}

	_, resp = do(t, newServer(t, stubService{}, false), http.MethodPost, "/api/schema/validate", validateRequest{State: twoTables(t)})
	v = validateResponse{}
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		t.Fatal(err)
	}
	if !v.OK || len(v.Errors) != 0 {
		t.Errorf("validation = %+v", v)
	}
}

func TestLayout(t *testing.T) {
	s := newServer(t, stubService{}, false)
	rec, resp := do(t, s, http.MethodPost, "/api/layout", samplePayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var l derivation.Layout
	if err := json.Unmarshal(resp.Data, &l); err != nil {
		t.Fatal(err)
	}
	if len(l.Nodes) != 3 || len(l.Edges) != 2 || l.RootID != derivation.VirtualRootID {
		t.Errorf("layout = %+v", l)
	}

	rec, _ = do(t, s, http.MethodPost, "/api/layout?format=dot", samplePayload())
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/vnd.graphviz" {
		t.Fatalf("dot: status = %d type = %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "digraph") {
		t.Errorf("dot body = %.40q", rec.Body.String())
	}

	rec, resp = do(t, s, http.MethodPost, "/api/layout?format=gif", samplePayload())
	if rec.Code != http.StatusBadRequest || resp.Code != string(errors.ErrCodeInvalidFormat) {
		t.Errorf("gif: status = %d code = %s", rec.Code, resp.Code)
	}
}

func TestConvert(t *testing.T) {
	s := newServer(t, stubService{}, true)
	es := schema.ExportedSchema{
		Tables:   []schema.ExportedTable{{Name: "Empleado", Columns: []schema.ExportedColumn{{Name: "nombre", Type: "varchar"}}}},
		SQLQuery: "SELECT nombre FROM Empleado",
	}
	rec, resp := do(t, s, http.MethodPost, "/api/convert", es)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if resp.Message != converter.MessageValid {
		t.Errorf("message = %q", resp.Message)
	}
	var res pipeline.Result
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		t.Fatal(err)
	}
	if !res.HistoryAdded || res.Stats.StepCount != 2 || len(res.Layout.Nodes) != 3 {
		t.Errorf("result = %+v", res)
	}

	_, resp = do(t, s, http.MethodGet, "/api/history", nil)
	var entries []history.Entry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != res.SchemaID {
		t.Errorf("history = %+v", entries)
	}
}

func TestConvertRejected(t *testing.T) {
	s := newServer(t, stubService{reject: true}, true)
	es := schema.ExportedSchema{SQLQuery: "SELECT * FROM Nada"}
	rec, resp := do(t, s, http.MethodPost, "/api/convert", es)
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != string(errors.ErrCodeSchemaRejected) {
		t.Fatalf("status = %d code = %s", rec.Code, resp.Code)
	}
	var res pipeline.Result
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Validation.OK || len(res.Validation.Errors) != 1 {
		t.Errorf("validation = %+v", res.Validation)
	}

	_, resp = do(t, s, http.MethodGet, "/api/history", nil)
	if string(resp.Data) != "[]" {
		t.Errorf("rejected schema stored: %s", resp.Data)
	}
}

func TestConvertOversizedSchema(t *testing.T) {
	s := newServer(t, stubService{}, true)
	es := schema.ExportedSchema{SQLQuery: "SELECT 1"}
	for i := 0; i < 20; i++ {
		es.Tables = append(es.Tables, schema.ExportedTable{
			Name:    strings.Repeat("T", 45),
			Columns: []schema.ExportedColumn{{Name: ""}},
		})
	}

	rec, resp := do(t, s, http.MethodPost, "/api/convert", es)
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != string(errors.ErrCodeLimitExceeded) {
		t.Fatalf("convert: status = %d code = %s", rec.Code, resp.Code)
	}
	if len(resp.Details) != 41 {
		t.Errorf("details = %d, want 41", len(resp.Details))
	}

	rec, resp = do(t, s, http.MethodPost, "/api/history", es)
	if rec.Code != http.StatusUnprocessableEntity || resp.Code != string(errors.ErrCodeLimitExceeded) {
		t.Errorf("history add: status = %d code = %s", rec.Code, resp.Code)
	}

	_, resp = do(t, s, http.MethodGet, "/api/history", nil)
	if string(resp.Data) != "[]" {
		t.Errorf("oversized schema stored: %s", resp.Data)
	}
}

func TestHistoryRoutes(t *testing.T) {
	s := newServer(t, stubService{}, true)
	es := schema.ExportedSchema{SQLQuery: "SELECT 1"}

	rec, resp := do(t, s, http.MethodPost, "/api/history", es)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d", rec.Code)
	}
	var added addResponse
	if err := json.Unmarshal(resp.Data, &added); err != nil {
		t.Fatal(err)
	}
	if rec, _ = do(t, s, http.MethodPost, "/api/history", es); rec.Code != http.StatusOK {
		t.Errorf("duplicate add: status = %d", rec.Code)
	}

	rec, resp = do(t, s, http.MethodGet, "/api/history/"+added.ID, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(resp.Data), "SELECT 1") {
		t.Errorf("get: %d %s", rec.Code, resp.Data)
	}

	if rec, _ = do(t, s, http.MethodDelete, "/api/history/"+added.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d", rec.Code)
	}
	if rec, _ = do(t, s, http.MethodDelete, "/api/history/"+added.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d", rec.Code)
	}
	if rec, _ = do(t, s, http.MethodGet, "/api/history/"+added.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d", rec.Code)
	}
}

func TestHistoryFlags(t *testing.T) {
	s := newServer(t, stubService{}, true)
	_, resp := do(t, s, http.MethodGet, "/api/history/flags", nil)
	var f history.Flags
	if err := json.Unmarshal(resp.Data, &f); err != nil {
		t.Fatal(err)
	}
	if f != history.DefaultFlags {
		t.Errorf("flags = %+v", f)
	}

	want := history.Flags{OpenSchemaInstructions: false, OpenCodeInstructions: true}
	if rec, _ := do(t, s, http.MethodPut, "/api/history/flags", want); rec.Code != http.StatusOK {
		t.Fatalf("put: status = %d", rec.Code)
	}
	_, resp = do(t, s, http.MethodGet, "/api/history/flags", nil)
	f = history.Flags{}
	if err := json.Unmarshal(resp.Data, &f); err != nil {
		t.Fatal(err)
	}
	if f != want {
		t.Errorf("flags = %+v, want %+v", f, want)
	}
}

func TestHistoryDisabled(t *testing.T) {
	rec, _ := do(t, newServer(t, stubService{}, false), http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidJSON, 400},
		{errors.ErrCodeInvalidName, 422},
		{errors.ErrCodeLastColumn, 422},
		{errors.ErrCodeNotFound, 404},
		{errors.ErrCodeNetwork, 502},
		{errors.ErrCodeTimeout, 504},
		{errors.ErrCodeInternal, 500},
		{"", 500},
	}
	for _, tt := range tests {
		if got := httpStatus(tt.code); got != tt.want {
			t.Errorf("httpStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
