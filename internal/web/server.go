// Package web provides the HTTP API of the edition catalogue.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogue/internal/config"
	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/JonMunkholm/catalogue/internal/images"
	"github.com/JonMunkholm/catalogue/internal/metrics"
	"github.com/JonMunkholm/catalogue/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Service *core.Service
	Images  images.Store
	Limiter *images.Limiter

	// Metrics enables request metrics and the metrics endpoint when set.
	Metrics *metrics.Recorder

	// AuditLog enables the /api/audit endpoints when set.
	AuditLog AuditReader

	// Verifier resolves GitHub tokens. nil calls the GitHub API at
	// cfg.Auth.GitHubAPIURL.
	Verifier middleware.Verifier
}

// Server is the HTTP server for the catalogue API.
type Server struct {
	cfg      *config.Config
	service  *core.Service
	images   images.Store
	limiter  *images.Limiter
	metrics  *metrics.Recorder
	auditLog AuditReader
	verifier middleware.Verifier

	router      *chi.Mux
	server      *http.Server
	rateLimiter *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		images:   deps.Images,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		auditLog: deps.AuditLog,
		verifier: deps.Verifier,
		router:   chi.NewRouter(),
	}
	if s.limiter == nil {
		s.limiter = images.NewLimiter(cfg.Images.MaxConcurrent, cfg.Images.UploadWait)
	}
	if s.verifier == nil {
		s.verifier = middleware.GitHubVerifier{BaseURL: cfg.Auth.GitHubAPIURL}
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.rateLimiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rateLimiter.middleware)
	}
	s.router.Use(requestMetadata)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	if fsStore, ok := s.images.(*images.FSStore); ok {
		prefix := s.cfg.Images.URLPrefix
		if prefix == "" {
			prefix = "/tps/"
		}
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(fsStore.Dir()))))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.GitHubAuth(s.cfg.Auth, s.verifier))

		// Tables
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{table}", s.handleExportTable)

		// Editions
		r.Get("/edition/{key}", s.handleGetEdition)
		r.Post("/edition", s.handleUpsertEdition)
		r.Delete("/edition", s.handleDeleteEdition)
		r.Delete("/edition/{key}", s.handleDeleteEdition)

		// Notes
		r.Post("/notes", s.handleUpdateNotes)
		r.Post("/notes/{key}", s.handleUpdateNotes)

		// Images
		if s.images != nil {
			r.Post("/upload-image", s.handleUploadImage)
		}

		// Audit log
		if s.auditLog != nil {
			r.Get("/audit", s.handleAuditLog)
			r.Get("/audit/export", s.handleAuditLogExport)
		}
	})
}

// handleHealth reports whether the data directory is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.service.Store().Dir()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then for
// image uploads still holding a slot.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a fixed-window request limit per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
// Call stop to end its cleanup goroutine.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every window.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by client IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(middleware.ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "Too many requests",
				Action:  "Wait a minute and try again",
				Code:    "RATE001",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
