package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/centavo/cmd/app"
	"github.com/sig-0/centavo/cmd/env"
	"github.com/sig-0/centavo/config"
)

type runCfg struct {
	configPath string
	outputRoot string
	top        int
}

// newRunCmd creates the run command
func newRunCmd() *ffcli.Command {
	cfg := &runCfg{}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "run",
		ShortUsage: "run [flags]",
		LongHelp:   "Runs the population and FX pipeline once, and writes its artifacts",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *runCfg) registerFlags(fs *flag.FlagSet) {
	fs.IntVar(
		&c.top,
		"top",
		config.DefaultTop,
		"the number of countries in the run, 0 for all",
	)

	fs.StringVar(
		&c.outputRoot,
		"output",
		"",
		"the directory the run artifacts are written under (defaults to the configured root)",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the TOML configuration, if any",
	)
}

func (c *runCfg) exec(ctx context.Context, _ []string) error {
	ctx, cancelFn := app.SignalContext(ctx)
	defer cancelFn()

	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger()

	// Load .env
	if err = godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	p, err := app.NewPipeline(cfg, env.FixerKey(), logger, nil)
	if err != nil {
		return err
	}

	outputRoot := c.outputRoot
	if outputRoot == "" {
		outputRoot = cfg.Output.Root
	}

	run, err := p.Run(ctx, c.top, outputRoot)
	if err != nil {
		return err
	}

	if err = app.PrintRun(os.Stdout, run); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Artifacts: %s\n", run.Directory)

	return nil
}
