// Package server exposes reasoning sessions over HTTP as server-sent events.
package server

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/reasongraph/internal/index"
	"github.com/aixgo-dev/reasongraph/internal/reasoning"
	"github.com/aixgo-dev/reasongraph/pkg/observability"
	"github.com/aixgo-dev/reasongraph/pkg/security"
)

// Querier runs questions. reasoning.QueryService satisfies it.
type Querier interface {
	Query(ctx context.Context, question string) iter.Seq2[reasoning.Event, error]
	Similar(ctx context.Context, text string, k int, rebuild bool) ([]index.Result, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr        string
	CORSOrigins []string
	// Per-client limit on /query and /similar. Zero RPS disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// Limit shared by all clients. Zero RPS disables the shared bucket.
	GlobalRateLimitRPS   float64
	GlobalRateLimitBurst int
	StreamTimeout        time.Duration
}

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Minute
	clientIdleTTL   = 10 * time.Minute
)

// Server is the API server
type Server struct {
	cfg      Config
	querier  Querier
	health   *observability.HealthChecker
	limiter  *security.RateLimiter
	validate *validator.Validate
	logger   *zap.Logger
	http     *http.Server
}

// New creates a Server. health may be nil.
func New(cfg Config, querier Querier, health *observability.HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if health == nil {
		health = observability.NewHealthChecker()
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 10 * time.Minute
	}

	s := &Server{
		cfg:      cfg,
		querier:  querier,
		health:   health,
		validate: validator.New(),
		logger:   logger,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = security.NewRateLimiter(
			security.Limit{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
			security.Limit{RPS: cfg.GlobalRateLimitRPS, Burst: cfg.GlobalRateLimitBurst},
		)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(accessLog(s.logger))

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", s.health.HealthHandler())
	router.Get("/health/live", observability.LivenessHandler())
	router.Get("/health/ready", s.health.ReadinessHandler())
	router.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	router.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(rateLimit(s.limiter, s.logger))
		}
		r.Get("/query", s.handleQuery)
		r.Post("/query", s.handleQuery)
		r.Get("/similar", s.handleSimilar)
	})

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		return s.http.Shutdown(shutdownCtx)
	})

	if s.limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := s.limiter.Prune(clientIdleTTL); n > 0 {
						s.logger.Debug("pruned idle rate limit buckets", zap.Int("count", n))
					}
				}
			}
		})
	}

	return g.Wait()
}
