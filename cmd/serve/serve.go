package serve

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/centavo/cmd/app"
	"github.com/sig-0/centavo/cmd/env"
	"github.com/sig-0/centavo/config"
	"github.com/sig-0/centavo/ingest"
	"github.com/sig-0/centavo/metrics"
	"github.com/sig-0/centavo/pipeline"
	"github.com/sig-0/centavo/server"
	"github.com/sig-0/centavo/storage"
)

var errScheduleWithoutKey = errors.New("scheduled runs require a Fixer access key")

// serveCfg wraps the serve configuration
type serveCfg struct {
	configPath    string
	listenAddress string

	schedule time.Duration
	top      int
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the centavo dashboard",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeSQLiteCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.listenAddress,
		"listen",
		"",
		fmt.Sprintf("the IP:PORT URL for the server (defaults to %s)", config.DefaultListenAddress),
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the TOML configuration, if any",
	)

	fs.DurationVar(
		&c.schedule,
		"schedule",
		0,
		"the interval at which runs are executed and saved, 0 to disable",
	)

	fs.IntVar(
		&c.top,
		"top",
		config.DefaultTop,
		"the number of countries in a scheduled run",
	)
}

// serve starts the dashboard over the given store, and the run scheduler if enabled.
// It blocks until the context is canceled or a signal is received
func (c *serveCfg) serve(ctx context.Context, store storage.Storage, logger *slog.Logger) error {
	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	if c.listenAddress != "" {
		cfg.Server.ListenAddress = c.listenAddress
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(registry)

	var p *pipeline.Pipeline

	if key := env.FixerKey(); key != "" {
		if p, err = app.NewPipeline(cfg, key, logger, m); err != nil {
			return err
		}
	} else {
		logger.Warn(
			"no Fixer access key set, on-demand runs are disabled",
			"env", env.Prefix+env.FixerKeySuffix,
		)
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithConfig(&cfg.Server),
		server.WithGatherer(registry),
	}

	if p != nil {
		opts = append(opts, server.WithRunner(p, cfg.Output.Root))
	}

	s, err := server.New(store, opts...)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	var orchestrator *ingest.Orchestrator

	if c.schedule > 0 {
		if p == nil {
			return errScheduleWithoutKey
		}

		orchestrator = ingest.New(store, ingest.WithLogger(logger))

		job := ingest.NewPipelineJob(p, c.top, cfg.Output.Root, c.schedule)
		if err = orchestrator.Register(job); err != nil {
			return fmt.Errorf("unable to register job: %w", err)
		}
	}

	runCtx, cancelFn := app.SignalContext(ctx)
	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the run scheduler
	if orchestrator != nil {
		group.Go(func() error {
			return orchestrator.Start(gCtx)
		})
	}

	return group.Wait()
}
