// Package web provides the HTTP API for decoding flat files.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/config"
	"github.com/JonMunkholm/flatfile/internal/flatfile"
	"github.com/JonMunkholm/flatfile/internal/logging"
	"github.com/JonMunkholm/flatfile/internal/metrics"
	"github.com/JonMunkholm/flatfile/internal/store"
	"github.com/JonMunkholm/flatfile/internal/web/middleware"
)

// Importer persists a decode. *store.Importer satisfies it.
type Importer interface {
	Import(ctx context.Context, def catalog.Definition, src flatfile.Source, tee catalog.RowHandler, opts ...flatfile.Option) (store.ImportResult, error)
}

// RunLister reads the run log. *store.Runs satisfies it.
type RunLister interface {
	Get(ctx context.Context, id uuid.UUID) (store.Run, error)
	Recent(ctx context.Context, formatKey string, limit int) ([]store.Run, error)
}

// ObjectOpener resolves object uris to sources. *s3source.Client
// satisfies it.
type ObjectOpener interface {
	ParseURI(uri string) (bucket, key string, err error)
	Object(bucket, key string) flatfile.Source
}

// Options wires the server's collaborators. Config is required; a nil
// Importer disables persist=true, a nil Objects disables the source
// parameter.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Limiter  *DecodeLimiter
	Importer Importer
	Runs     RunLister
	Objects  ObjectOpener
	Health   func(context.Context) error
}

// Server is the HTTP server for the decoding service.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	limiter  *DecodeLimiter
	importer Importer
	runs     RunLister
	objects  ObjectOpener
	health   func(context.Context) error

	router *chi.Mux
	server *http.Server
}

// NewServer builds the router. ctx bounds the background work of the rate
// limiters.
func NewServer(ctx context.Context, opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		limiter:  opts.Limiter,
		importer: opts.Importer,
		runs:     opts.Runs,
		objects:  opts.Objects,
		health:   opts.Health,
		router:   chi.NewRouter(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.limiter == nil {
		s.limiter = NewDecodeLimiter(s.cfg.Decode.MaxConcurrent, s.cfg.Decode.MaxWaitTime)
	}
	s.log = s.log.With(logging.Component("web"))

	s.setupMiddleware(ctx)
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger(s.metrics))
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		rl := middleware.NewRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(rl.Handler(s.rateLimited))
	}
}

func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/formats", s.handleListFormats)
			r.Get("/formats/{formatKey}", s.handleGetFormat)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{runID}", s.handleGetRun)
			r.Get("/status", s.handleStatus)
		})

		// Decodes run under their own timeout, Decode.Timeout.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled && s.cfg.Rate.DecodeLimit > 0 {
				rl := middleware.NewRateLimiter(ctx, s.cfg.Rate.DecodeLimit, time.Minute)
				r.Use(rl.Handler(s.rateLimited))
			}
			r.Post("/decode/{formatKey}", s.handleDecode)
		})
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, r, ErrRateLimited)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.log.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running decodes to
// release their slots or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if status := s.limiter.Status(); status.Active > 0 {
		s.log.Info("waiting for decodes to complete", "active", status.Active)
		if werr := s.limiter.WaitForDrain(ctx); werr != nil {
			s.log.Warn("decodes did not complete in time", logging.Error(werr))
		} else {
			s.log.Info("all decodes completed")
		}
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
