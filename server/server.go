package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/centavo/config"
	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

// RoutesFn is a callback that receives a router for registering routes
type RoutesFn func(router chi.Router)

// Runner runs the pipeline on demand
type Runner interface {
	Run(ctx context.Context, limit int, outputRoot string) (*types.Run, error)
}

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type Server struct {
	logger *slog.Logger
	config *config.ServerConfig

	storage  storage.Storage
	runner   Runner
	gatherer prometheus.Gatherer

	outputRoot string

	mux *chi.Mux
}

// New creates a new dashboard server instance
func New(storage storage.Storage, opts ...Option) (*Server, error) {
	s := &Server{
		logger:     noopLogger,
		storage:    storage,
		config:     &config.DefaultConfig().Server,
		outputRoot: config.DefaultOutputRoot,
		mux:        chi.NewMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := config.ValidateServerConfig(s.config); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	if s.config.CORSConfig != nil {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   s.config.CORSConfig.AllowedOrigins,
			AllowedMethods:   s.config.CORSConfig.AllowedMethods,
			AllowedHeaders:   s.config.CORSConfig.AllowedHeaders,
			AllowCredentials: s.config.CORSConfig.AllowCredentials,
			MaxAge:           s.config.CORSConfig.MaxAge,
		})

		s.mux.Use(corsMiddleware.Handler)
	}

	s.mux.Use(httplog.RequestLogger(s.logger, &httplog.Options{
		Level:         slog.LevelInfo,
		Schema:        httplog.SchemaOTEL,
		RecoverPanics: true,
		Skip: func(r *http.Request, respStatus int) bool {
			return respStatus == http.StatusNotFound ||
				respStatus == http.StatusMethodNotAllowed ||
				r.URL.Path == "/health" ||
				r.URL.Path == "/metrics"
		},
	}))

	s.mux.Get("/health", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.Get("/openapi.yaml", s.OpenAPI)
	s.mux.Get("/docs", s.Redoc)
	s.mux.Get("/", s.Dashboard)

	s.mux.Route("/v1/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Post("/", s.CreateRun)
		r.Get("/latest", s.LatestRun)
		r.Get("/{id}", s.GetRun)
		r.Get("/{id}/rows.csv", s.RunRowsCSV)
	})

	return s, nil
}

// Routes calls fn with the server mux so callers can add endpoints
func (s *Server) Routes(fn RoutesFn) {
	if fn == nil {
		return
	}

	fn(s.mux)
}

// ServeHTTP serves the request through the server mux
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve serves the dashboard service
func (s *Server) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.mux,
		ReadHeaderTimeout: 60 * time.Second,
	}

	group, gCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer s.logger.Info("server shut down")

		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return err
		}

		s.logger.Info(
			fmt.Sprintf(
				"server started at %s",
				ln.Addr().String(),
			),
		)

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-gCtx.Done()

		s.logger.Info("server to be shutdown")

		wsCtx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		return server.Shutdown(wsCtx)
	})

	return group.Wait()
}
