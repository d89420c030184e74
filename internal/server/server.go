package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uidai-insights/internal/dashboard"
	"uidai-insights/internal/logging"
)

// Options configures the HTTP server
type Options struct {
	Addr             string
	CORSOrigins      []string
	RateLimit        int
	RateLimitWindow  time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ShutdownDeadline time.Duration

	// trend query defaults
	Threshold float64
	Window    int
	Steps     int
}

// Server represents the HTTP server
type Server struct {
	svc      *dashboard.Service
	opts     Options
	router   chi.Router
	validate *validator.Validate
}

// NewServer creates a new HTTP server
func NewServer(svc *dashboard.Service, opts Options) *Server {
	if opts.Threshold <= 0 {
		opts.Threshold = 2.5
	}
	if opts.Window < 1 {
		opts.Window = 7
	}
	if opts.Steps < 1 {
		opts.Steps = 7
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		router:   chi.NewRouter(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.Limit(s.opts.RateLimit, s.opts.RateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		r.Get("/datasets", s.handleDatasets)
		r.Route("/datasets/{kind}", func(r chi.Router) {
			r.Get("/kpis", s.handleKPIs)
			r.Get("/trend", s.handleTrend)
			r.Get("/states", s.handleStates)
			r.Get("/map", s.handleMap)
			r.Get("/insights", s.handleInsights)
			r.Get("/export", s.handleExport)
		})
	})
}

// ServeHTTP lets the server be mounted or tested directly
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.opts.Addr).Msg("🚀 HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	deadline := s.opts.ShutdownDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	logging.Info().Msg("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
