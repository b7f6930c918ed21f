package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/metrics"
	"github.com/stecom/seopulse/internal/seo"
	"github.com/stecom/seopulse/internal/store"
)

type Options struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Token guards the dashboard. Empty generates a random one.
	Token string
	// TokenFile, when set, receives the token so the CLI can print it later.
	TokenFile string
	// Report subject for the dashboard when the query names none.
	DefaultURL      string
	DefaultKeywords []string

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

type Server struct {
	ctrl      *seo.Controller
	store     store.Store
	opts      Options
	token     string
	metrics   *metrics.Collector
	logger    *zap.Logger
	router    *chi.Mux
	startTime time.Time
}

// New builds the router. An empty Options.Token generates a random one.
func New(ctrl *seo.Controller, st store.Store, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	token := opts.Token
	if token == "" {
		token = generateToken()
	}
	srv := &Server{
		ctrl:      ctrl,
		store:     st,
		opts:      opts,
		token:     token,
		metrics:   opts.Metrics,
		logger:    logger,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ab.js", s.handleABScript)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/seo", func(r chi.Router) {
		r.Post("/performance", s.handlePerformancePost)
		r.Get("/performance", s.handlePerformanceGet)
		r.Get("/performance/history", s.handlePerformanceHistory)
		r.Get("/performance/average", s.handlePerformanceAverage)

		r.Get("/rankings/top", s.handleTopPerformers)
		r.Get("/rankings/movers", s.handleBiggestMovers)
		r.Get("/rankings/history", s.handleRankHistory)

		r.Route("/abtests", func(r chi.Router) {
			r.Post("/", s.handleCreateTest)
			r.Get("/", s.handleListTests)
			r.Get("/{id}", s.handleGetTest)
			r.Post("/{id}/stop", s.handleStopTest)

			// Called from visitors' browsers.
			r.Group(func(r chi.Router) {
				r.Use(cors)
				r.Get("/{id}/assign", s.handleAssign)
				r.Post("/{id}/events", s.handleEvent)
				r.Options("/{id}/assign", preflight)
				r.Options("/{id}/events", preflight)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/tests/{id}", s.handleDashboardTest)
	})
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	if s.opts.TokenFile != "" {
		if err := os.WriteFile(s.opts.TokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", zap.String("path", s.opts.TokenFile), zap.Error(err))
		}
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.opts.Port),
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			zap.Int("port", s.opts.Port),
			zap.String("store", s.store.Name()),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("generate token: %v", err))
	}
	return hex.EncodeToString(bytes)
}
