package api

import (
	"net/http"
	"strconv"

	"github.com/matzehuels/sqltree/pkg/buildinfo"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/pipeline"
	"github.com/matzehuels/sqltree/pkg/render"
	"github.com/matzehuels/sqltree/pkg/schema"
)

type exportRequest struct {
	State schema.State `json:"state"`
	SQL   string       `json:"sql"`
}

type connectRequest struct {
	State      schema.State      `json:"state"`
	Connection schema.Connection `json:"connection"`
}

type validateRequest struct {
	State schema.State `json:"state"`
}

type validateResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	success(w, http.StatusOK, map[string]any{"build": buildinfo.Get()}, "ok")
}

// POST /api/schema/export
func (s *Server) exportSchema(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	es, err := schema.ExportValidated(req.State, req.SQL)
	if err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, es, "")
}

// POST /api/schema/import
func (s *Server) importSchema(w http.ResponseWriter, r *http.Request) {
	var es schema.ExportedSchema
	if err := decode(w, r, &es); err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, schema.Import(es, s.ids), "")
}

// POST /api/schema/connect
//
// A connection between connectors of the same role leaves the state as it
// was and still answers 200.
func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	next, err := req.State.Connect(req.Connection)
	if err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, next, "")
}

// POST /api/schema/validate checks names and limits locally.
func (s *Server) validateState(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, err, nil)
		return
	}
	msgs := errors.Messages(schema.Validate(req.State))
	if msgs == nil {
		msgs = []string{}
	}
	success(w, http.StatusOK, validateResponse{OK: len(msgs) == 0, Errors: msgs}, "")
}

// POST /api/layout
func (s *Server) layout(w http.ResponseWriter, r *http.Request) {
	format := render.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := render.ParseFormat(q)
		if err != nil {
			fail(w, err, nil)
			return
		}
		format = f
	}

	var p derivation.Payload
	if err := decode(w, r, &p); err != nil {
		fail(w, err, nil)
		return
	}
	l, err := s.runner.Layout(r.Context(), p, layoutOptions(r))
	if err != nil {
		fail(w, err, nil)
		return
	}
	if format == render.FormatJSON {
		success(w, http.StatusOK, l, "")
		return
	}

	artifacts, err := s.runner.Render(r.Context(), l, []string{string(format)})
	if err != nil {
		fail(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[string(format)])
}

// POST /api/convert
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var es schema.ExportedSchema
	if err := decode(w, r, &es); err != nil {
		fail(w, err, nil)
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	res, err := s.runner.Execute(r.Context(), pipeline.Options{
		Schema:  &es,
		Layout:  layoutOptions(r),
		Formats: []string{string(render.FormatJSON)},
		Refresh: refresh,
		Logger:  s.logger,
	})
	if err != nil {
		if res != nil {
			fail(w, err, res)
			return
		}
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, res, res.Validation.Message)
}

// layoutOptions reads hgap and vgap query parameters. Invalid values are
// ignored and fall back to the defaults.
func layoutOptions(r *http.Request) derivation.Options {
	var o derivation.Options
	q := r.URL.Query()
	if v, err := strconv.ParseFloat(q.Get("hgap"), 64); err == nil {
		o.HGap = v
	}
	if v, err := strconv.ParseFloat(q.Get("vgap"), 64); err == nil {
		o.VGap = v
	}
	return o
}

func contentType(f render.Format) string {
	switch f {
	case render.FormatSVG:
		return "image/svg+xml"
	case render.FormatPDF:
		return "application/pdf"
	case render.FormatPNG:
		return "image/png"
	case render.FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "application/json"
	}
}
