// Package web serves the dashboard: an HTML aircraft table, its JSON feed,
// a form to change the tracked callsign, and operational endpoints.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/adsb-xgps/internal/db"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// History is the broadcast history store. nil disables the /api/broadcasts routes.
type History interface {
	Recent(ctx context.Context, limit int) ([]db.BroadcastRecord, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Options configures the dashboard.
type Options struct {
	Registry *adsb.Registry
	Tracked  *adsb.TrackedCallsign

	// FeedState reports the ingestion state for /healthz
	FeedState func() string

	// Metrics serves /metrics when set
	Metrics http.Handler

	// History serves /api/broadcasts when set
	History History

	// Database backs History. /healthz pings it when set.
	Database *db.DB

	// AllowedOrigins for CORS and websocket origin checks (default: any)
	AllowedOrigins []string

	// LogRequests enables the chi request logger
	LogRequests bool
}

// Server holds the HTTP router and its dependencies.
type Server struct {
	router   *chi.Mux
	registry *adsb.Registry
	tracked  *adsb.TrackedCallsign
	opts     Options

	now          func() time.Time
	pushInterval time.Duration
}

// NewServer creates the dashboard and its routes.
func NewServer(opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.FeedState == nil {
		opts.FeedState = func() string { return "unknown" }
	}

	s := &Server{
		router:       chi.NewRouter(),
		registry:     opts.Registry,
		tracked:      opts.Tracked,
		opts:         opts,
		now:          time.Now,
		pushInterval: time.Second,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.opts.LogRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// The websocket needs the raw connection and promhttp compresses on
	// its own, so both stay outside the compression group.
	r.Get("/ws", s.handleWebSocket)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/", s.handleIndex)
		r.Post("/track", s.handleTrack)

		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.opts.AllowedOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))

			r.Get("/data", s.handleData)
			r.Get("/healthz", s.handleHealth)

			if s.opts.History != nil {
				r.Get("/api/broadcasts", s.handleBroadcasts)
				r.Get("/api/broadcasts/stats", s.handleBroadcastStats)
			}
		})
	})
}

// Serve runs the dashboard on ln until ctx is cancelled, then shuts down
// gracefully. The listener is bound by the caller so bind errors surface
// before any task starts.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("📡 Dashboard listening on http://%s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return ctx.Err()
}
