package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/internal/sources"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 30 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 25 * time.Second

	// Rate limiting - requests per minute per client IP. CI systems send a
	// status delivery for every job, so these are higher than a push-only
	// receiver would need.
	GlobalRateLimit  = 600
	WebhookRateLimit = 300
)

// Connector resolves a project to the collaborators its gates consult
type Connector interface {
	Connect(proj *project.Project) (*sources.Binding, error)
}

// Server represents the HTTP server
type Server struct {
	Registry  *project.Registry
	History   *history.History
	Connector Connector
	Logger    *slog.Logger
	TestMode  bool

	httpServer *http.Server
}

// NewServer creates a new server instance. hist may be nil, in which case
// reports and decisions are not stored.
func NewServer(registry *project.Registry, hist *history.History, connector Connector, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Registry:  registry,
		History:   hist,
		Connector: connector,
		Logger:    logger,
		TestMode:  testMode,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"request_id", middleware.GetReqID(r.Context()),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		r.Use(NewRateLimitMiddleware("global", GlobalRateLimit, s.Logger))
	}

	// Routes
	r.Get("/health", s.HandleHealth)
	r.Get("/status/{projectName}", s.HandleStatus)
	r.Get("/verdict/{projectName}/{commit}", s.HandleVerdict)

	// Webhook route with stricter rate limit
	if !s.TestMode {
		r.With(NewRateLimitMiddleware("webhook", WebhookRateLimit, s.Logger)).Post("/in/{projectName}", s.HandleWebhook)
	} else {
		r.Post("/in/{projectName}", s.HandleWebhook)
	}

	return r
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr, "projects", s.Registry.Count())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the history database
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}

	if s.History != nil {
		return s.History.Close()
	}
	return nil
}
