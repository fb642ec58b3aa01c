// Package api exposes the schema, values, and update operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/gitsync"
	"github.com/bnema/chartform/internal/history"
	"github.com/bnema/chartform/internal/store"
)

// Server wires the core engines to the HTTP boundary.
type Server struct {
	store       *store.Store
	descriptors *descriptor.Provider
	mirror      *gitsync.Syncer
	recorder    *history.Recorder // nil disables history
	corsOrigins []string
	log         zerolog.Logger
}

// Options carries the collaborators for NewServer. Mirror and Recorder are
// optional.
type Options struct {
	Store       *store.Store
	Descriptors *descriptor.Provider
	Mirror      *gitsync.Syncer
	Recorder    *history.Recorder
	CORSOrigins []string
}

// NewServer builds a server around its collaborators.
func NewServer(opts Options, log zerolog.Logger) *Server {
	return &Server{
		store:       opts.Store,
		descriptors: opts.Descriptors,
		mirror:      opts.Mirror,
		recorder:    opts.Recorder,
		corsOrigins: opts.CORSOrigins,
		log:         log.With().Str("component", "api").Logger(),
	}
}

// Router returns the HTTP handler with all routes and middleware attached.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	apiRouter.HandleFunc("/values", s.handleValues).Methods(http.MethodGet)
	apiRouter.HandleFunc("/update", s.handleUpdate).Methods(http.MethodPost)
	apiRouter.HandleFunc("/descriptor/reload", s.handleDescriptorReload).Methods(http.MethodPost)
	apiRouter.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	apiRouter.HandleFunc("/git/status", s.handleGitStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/git/pull", s.handleGitPull).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoverMiddleware(handler)
	return handler
}

// ListenAndServe runs the HTTP server until ctx is done, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var eb errorBody
	eb.Error.Code = code
	eb.Error.Message = message
	writeJSON(w, status, eb)
}
