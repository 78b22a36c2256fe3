// Package api serves the schema tools and the conversion pipeline over HTTP.
//
// Routes:
//
//	POST   /api/schema/export     {state, sql} → exported schema
//	POST   /api/schema/import     exported schema → {nodes, edges, code}
//	POST   /api/schema/connect    {state, connection} → state
//	POST   /api/schema/validate   {state} → {ok, errors}
//	POST   /api/layout            derivation payload → layout (?format=dot|svg)
//	POST   /api/convert           exported schema → pipeline result (?refresh=true)
//	GET    /api/history           stored schemas
//	POST   /api/history           store a schema
//	GET    /api/history/{id}      one schema
//	DELETE /api/history/{id}
//	GET    /api/history/flags
//	PUT    /api/history/flags
//	GET    /healthz
//
// Every JSON response uses the same envelope: {status, message, data, code,
// error}.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sqltree/pkg/history"
	"github.com/matzehuels/sqltree/pkg/pipeline"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 2 << 20

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// IDs generates node and field ids for imports. Defaults to UUIDs.
	IDs    schema.IDGenerator
	Logger *log.Logger
}

// Server is the HTTP API. It holds no per-request state.
type Server struct {
	runner  *pipeline.Runner
	history *history.History
	ids     schema.IDGenerator
	logger  *log.Logger
	router  chi.Router
}

// New builds the router around runner. The runner's History backs the
// /api/history routes; without one they answer 503.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.IDs == nil {
		opts.IDs = schema.UUIDs{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{
		runner:  runner,
		history: runner.History,
		ids:     opts.IDs,
		logger:  opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/schema", func(r chi.Router) {
			r.Post("/export", s.exportSchema)
			r.Post("/import", s.importSchema)
			r.Post("/connect", s.connect)
			r.Post("/validate", s.validateState)
		})
		r.Post("/layout", s.layout)
		r.Post("/convert", s.convert)

		r.Route("/history", func(r chi.Router) {
			r.Use(s.requireHistory)
			r.Get("/", s.listHistory)
			r.Post("/", s.addHistory)
			r.Get("/flags", s.getFlags)
			r.Put("/flags", s.putFlags)
			r.Get("/{id}", s.getHistory)
			r.Delete("/{id}", s.deleteHistory)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requireHistory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			writeJSON(w, http.StatusServiceUnavailable, envelope{Status: statusError, Message: "history is disabled"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
