// Package server exposes the comparator over HTTP for remote capture
// clients.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"lcdmatch/comparator"
	"lcdmatch/logging"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// maxUploadBytes bounds multipart bodies.
const maxUploadBytes = 32 << 20

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cmp     *comparator.Comparator
	db      *sql.DB
	timeout time.Duration
}

// New creates a Server. db may be nil, in which case catalogue endpoints
// answer 503. Comparisons that outlast timeout answer 504.
func New(cmp *comparator.Comparator, db *sql.DB, timeout time.Duration) *Server {
	return &Server{cmp: cmp, db: db, timeout: timeout}
}

// NewRouter wires the API routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.HealthHandler).Methods("GET")
	api.HandleFunc("/compare", s.CompareHandler).Methods("POST")
	api.HandleFunc("/compare/{name}", s.CompareReferenceHandler).Methods("POST")
	api.HandleFunc("/classify", s.ClassifyHandler).Methods("POST")
	api.HandleFunc("/references", s.ListReferencesHandler).Methods("GET")
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.LogInfo("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logging.LogInfo("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		logging.Event("server", "request", map[string]interface{}{
			"requestId": id,
			"method":    r.Method,
			"path":      r.URL.Path,
			"elapsedMs": time.Since(start).Milliseconds(),
		})
	})
}

// RequestID returns the identifier assigned to the request.
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
