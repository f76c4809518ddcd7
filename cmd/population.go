package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/centavo/cmd/app"
	"github.com/sig-0/centavo/cmd/env"
	"github.com/sig-0/centavo/config"
)

type populationCfg struct {
	configPath string
	top        int
}

// newPopulationCmd creates the population command
func newPopulationCmd() *ffcli.Command {
	cfg := &populationCfg{}

	fs := flag.NewFlagSet("population", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "population",
		ShortUsage: "population [flags]",
		LongHelp:   "Prints the latest population of the most populous countries",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *populationCfg) registerFlags(fs *flag.FlagSet) {
	fs.IntVar(
		&c.top,
		"top",
		config.DefaultTop,
		"the number of countries to print, 0 for all",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the TOML configuration, if any",
	)
}

func (c *populationCfg) exec(ctx context.Context, _ []string) error {
	if c.top < 0 {
		return fmt.Errorf("invalid top %d", c.top)
	}

	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger()

	ctx, cancelFn := app.SignalContext(ctx)
	defer cancelFn()

	var (
		client = app.NewFetchClient(cfg, logger, nil)
		source = app.NewPopulationSource(cfg, client, logger)
	)

	countries, err := source.Countries(ctx)
	if err != nil {
		return err
	}

	records, err := source.LatestPopulation(ctx, countries, c.top)
	if err != nil {
		return err
	}

	return app.PrintPopulation(os.Stdout, records)
}
