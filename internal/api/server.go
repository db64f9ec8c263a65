// Package api exposes the task service over HTTP. Every response body
// is JSON, error paths included: failures map to
// {"error": <kind>, "message": <detail>} with the status code derived
// from the domain sentinel.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Greg-CLD/stagegate/internal/config"
	"github.com/Greg-CLD/stagegate/internal/db"
	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/factors"
	"github.com/Greg-CLD/stagegate/internal/service"
	"github.com/Greg-CLD/stagegate/internal/store"
	"github.com/Greg-CLD/stagegate/internal/webhooks"
)

// Options configures the stagegated daemon. Zero values fall back to
// the loaded config.
type Options struct {
	Addr    string
	Token   string
	DBPath  string
	Version string
}

// Serve loads config, opens the store, and runs the daemon until the
// listener fails.
func Serve(opts Options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	_, pending, err := database.MigrationStatus()
	if err != nil {
		database.Close()
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if len(pending) > 0 {
		database.Close()
		return fmt.Errorf("database requires migration: %d pending migration(s). Run 'stagegateadm migrate' to update", len(pending))
	}

	catalog, err := factors.Load()
	if err != nil {
		database.Close()
		return fmt.Errorf("failed to load factor catalog: %w", err)
	}

	svc := service.New(store.New(database), catalog)
	notifier := webhooks.New(cfg.WebhookURLs)
	server := NewServer(svc, catalog, notifier, cfg.Token, opts.Version)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("api: listening on %s", cfg.Addr)
	return httpServer.ListenAndServe()
}

// Server handles HTTP requests against a task service.
type Server struct {
	svc      *service.TaskService
	catalog  *factors.Catalog
	notifier *webhooks.Notifier
	token    string
	version  string
}

// NewServer builds a Server. notifier may be nil to disable webhooks.
func NewServer(svc *service.TaskService, catalog *factors.Catalog, notifier *webhooks.Notifier, token, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		svc:      svc,
		catalog:  catalog,
		notifier: notifier,
		token:    token,
		version:  version,
	}
}

// Handler returns the routed handler. Method-less fallbacks keep 405
// and 404 responses in the JSON error shape instead of the mux default.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.withAuth(s.handleHealth))
	mux.HandleFunc("GET /factors", s.withAuth(s.handleFactorsList))

	mux.HandleFunc("POST /projects", s.withAuth(s.handleProjectCreate))
	mux.HandleFunc("GET /projects", s.withAuth(s.handleProjectList))
	mux.HandleFunc("GET /projects/{projectID}", s.withAuth(s.handleProjectGet))
	mux.HandleFunc("DELETE /projects/{projectID}", s.withAuth(s.handleProjectDelete))

	mux.HandleFunc("GET /projects/{projectID}/tasks", s.withAuth(s.handleTaskList))
	mux.HandleFunc("POST /projects/{projectID}/tasks", s.withAuth(s.handleTaskCreate))
	mux.HandleFunc("POST /projects/{projectID}/tasks/populate", s.withAuth(s.handleTaskPopulate))
	mux.HandleFunc("GET /projects/{projectID}/tasks/{ref}", s.withAuth(s.handleTaskGet))
	mux.HandleFunc("PUT /projects/{projectID}/tasks/{ref}", s.withAuth(s.handleTaskUpdate))
	mux.HandleFunc("DELETE /projects/{projectID}/tasks/{ref}", s.withAuth(s.handleTaskDelete))

	// No method-less fallback for .../tasks/populate: it would conflict
	// with GET .../tasks/{ref}, which already claims those requests.
	for _, pattern := range []string{
		"/health",
		"/factors",
		"/projects",
		"/projects/{projectID}",
		"/projects/{projectID}/tasks",
		"/projects/{projectID}/tasks/{ref}",
	} {
		mux.HandleFunc(pattern, s.handleMethodNotAllowed)
	}
	mux.HandleFunc("/", s.handleNotFound)

	return s.logRequests(mux)
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			token := r.Header.Get("Authorization")
			if strings.HasPrefix(token, "Bearer ") {
				token = strings.TrimPrefix(token, "Bearer ")
			}
			if token == "" {
				token = r.Header.Get("X-Stagegate-Token")
			}
			if token != s.token {
				s.writeErrorKind(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
		}

		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("api: %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain sentinel to its status code and wire kind.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	s.writeErrorKind(w, status, kind, err.Error())
}

func (s *Server) writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   kind,
		"message": message,
	})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameters):
		return http.StatusBadRequest, "invalid_parameters"
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "task_not_found"
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound, "project_not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeErrorKind(w, http.StatusMethodNotAllowed, "method_not_allowed", fmt.Sprintf("method %s not allowed", r.Method))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeErrorKind(w, http.StatusNotFound, "not_found", fmt.Sprintf("no route for %s", r.URL.Path))
}
