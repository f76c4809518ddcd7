// Package app wires the configuration into the fetch client, the providers
// and the pipeline, for the commands to share
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sig-0/centavo/config"
	"github.com/sig-0/centavo/fetch"
	"github.com/sig-0/centavo/metrics"
	"github.com/sig-0/centavo/pipeline"
	"github.com/sig-0/centavo/provider/fixer"
	"github.com/sig-0/centavo/provider/worldbank"
	"github.com/sig-0/centavo/storage/artifact"
	"github.com/sig-0/centavo/storage/types"
)

// NewLogger creates the command logger
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// SignalContext returns a copy of ctx that is canceled on an interrupt or
// termination signal, so commands stop their in-flight work and unwind
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
}

// LoadConfig reads the configuration at path, or the defaults when path is empty,
// and validates it
func LoadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path != "" {
		read, err := config.Read(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}

		cfg = read
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration, %w", err)
	}

	return cfg, nil
}

// NewFetchClient creates the retrying HTTP client both sources share
func NewFetchClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *fetch.Client {
	opts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithTimeout(cfg.HTTP.Timeout()),
		fetch.WithInitialBackoff(cfg.HTTP.InitialBackoff()),
		fetch.WithMaxAttempts(uint(cfg.HTTP.MaxAttempts)), //nolint:gosec // validated positive
	}

	if m != nil {
		opts = append(opts, fetch.WithMetrics(m))
	}

	return fetch.New(opts...)
}

// NewPopulationSource creates the World Bank provider
func NewPopulationSource(cfg *config.Config, client *fetch.Client, logger *slog.Logger) *worldbank.Provider {
	return worldbank.NewProvider(
		client,
		worldbank.WithLogger(logger),
		worldbank.WithBaseURL(cfg.Population.BaseURL),
		worldbank.WithIndicator(cfg.Population.Indicator),
		worldbank.WithPerPage(cfg.Population.PerPage),
		worldbank.WithCountriesPerPage(cfg.Population.CountriesPerPage),
		worldbank.WithAggregateRegion(cfg.Population.AggregateRegion),
	)
}

// NewPipeline creates the full pipeline. The Fixer access key is required
func NewPipeline(
	cfg *config.Config,
	accessKey string,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*pipeline.Pipeline, error) {
	client := NewFetchClient(cfg, logger, m)

	rates, err := fixer.NewProvider(
		cfg.FX.URL,
		accessKey,
		client,
		fixer.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create fx provider, %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTarget(types.Currency(cfg.FX.TargetCurrency)),
		pipeline.WithWriter(artifact.NewWriter(artifact.WithLogger(logger))),
	}

	if m != nil {
		opts = append(opts, pipeline.WithMetrics(m))
	}

	return pipeline.New(NewPopulationSource(cfg, client, logger), rates, opts...), nil
}
