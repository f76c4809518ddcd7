package server

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sig-0/centavo/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.ServerConfig) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithRunner enables on-demand runs, writing artifacts under outputRoot
func WithRunner(r Runner, outputRoot string) Option {
	return func(s *Server) {
		s.runner = r
		s.outputRoot = outputRoot
	}
}

// WithGatherer exposes the given metrics on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}
