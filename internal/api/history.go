package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/schema"
)

type addResponse struct {
	ID    string `json:"id"`
	Added bool   `json:"added"`
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.List(r.Context())
	if err != nil {
		fail(w, err, nil)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	success(w, http.StatusOK, entries, "")
}

func (s *Server) addHistory(w http.ResponseWriter, r *http.Request) {
	var es schema.ExportedSchema
	if err := decode(w, r, &es); err != nil {
		fail(w, err, nil)
		return
	}
	id, added, err := s.history.Add(r.Context(), es)
	if err != nil {
		fail(w, err, nil)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	success(w, status, addResponse{ID: id, Added: added}, "")
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	es, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, es, "")
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.history.Delete(r.Context(), id)
	if err != nil {
		fail(w, err, nil)
		return
	}
	if !ok {
		fail(w, errors.New(errors.ErrCodeNotFound, "schema %s not in history", id), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getFlags(w http.ResponseWriter, r *http.Request) {
	f, err := s.history.Flags(r.Context())
	if err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, f, "")
}

func (s *Server) putFlags(w http.ResponseWriter, r *http.Request) {
	var f history.Flags
	if err := decode(w, r, &f); err != nil {
		fail(w, err, nil)
		return
	}
	if err := s.history.SetFlags(r.Context(), f); err != nil {
		fail(w, err, nil)
		return
	}
	success(w, http.StatusOK, f, "")
}
