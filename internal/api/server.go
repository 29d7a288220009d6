// Package api provides the legacyfix REST API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FocuswithJustin/legacyfix/core/cache"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/journal"
	"github.com/FocuswithJustin/legacyfix/internal/batch"
	"github.com/FocuswithJustin/legacyfix/internal/logging"
)

// Journal is the part of the migration journal the server uses.
type Journal interface {
	batch.Recorder
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// Deps are the collaborators a Server needs. Cache and Journal may be nil.
type Deps struct {
	Engine  *fixer.Engine
	Cache   *cache.DocumentCache
	Journal Journal
}

// Server serves migrations over HTTP.
type Server struct {
	cfg     Config
	engine  *fixer.Engine
	cache   *cache.DocumentCache
	journal Journal
	runner  *batch.Runner
	jobs    *JobStore
	hub     *Hub
	limiter *RateLimiter
	started time.Time
}

// New validates cfg and builds a server. Close releases its background
// goroutines.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("api: engine is required")
	}
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		engine:  deps.Engine,
		cache:   deps.Cache,
		journal: deps.Journal,
		jobs:    NewJobStore(cfg.JobRetention, cfg.MaxFinishedJobs),
		hub:     NewHub(),
		started: time.Now(),
	}
	s.runner = &batch.Runner{Engine: deps.Engine, Logger: logging.GetLogger()}
	if deps.Journal != nil {
		s.runner.Journal = deps.Journal
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	go s.hub.Run()
	return s, nil
}

// Close cancels running jobs and stops the hub and rate limiter.
func (s *Server) Close() {
	s.jobs.CancelAll()
	s.hub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /kinds", s.handleKinds)
	mux.HandleFunc("GET /tables", s.handleTables)
	mux.HandleFunc("GET /tables/{name}", s.handleTable)
	mux.HandleFunc("POST /fix", s.handleFix)
	mux.HandleFunc("POST /fix/value", s.handleFixValue)
	mux.HandleFunc("GET /journal", s.handleJournal)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	})
	return mux
}

// Handler returns the routed handler wrapped in the middleware chain.
// Request logging is outermost, then CORS, rate limiting, auth and
// security headers.
func (s *Server) Handler() http.Handler {
	var h http.Handler = SecurityHeadersMiddleware(s.routes())
	h = AuthMiddleware(s.cfg.Auth, h)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = CORSMiddleware(s.cfg.AllowedOrigins, h)
	return logging.CombinedMiddleware(h)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mode := "permissive"
	if len(s.cfg.AllowedOrigins) > 0 {
		mode = "restricted"
	}
	logging.ServerStartup("rest_api", "http", s.cfg.Port,
		"cors", mode,
		"auth", s.cfg.Auth.Enabled,
		"target_version", s.engine.TargetVersion())

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}
