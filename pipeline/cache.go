package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sig-0/centavo/storage/types"
)

// runCache memoizes the country set and the rate table for a single run.
// It is created per run and never shared, so data never outlives the run
type runCache struct {
	population PopulationSource
	rates      RateSource
	logger     *slog.Logger

	countries types.CountrySet
	table     *types.RateTable
	tableErr  error

	target       types.Currency
	targetWarned bool
}

func newRunCache(
	population PopulationSource,
	rates RateSource,
	target types.Currency,
	logger *slog.Logger,
) *runCache {
	return &runCache{
		population: population,
		rates:      rates,
		target:     target,
		logger:     logger,
	}
}

// Countries returns the country set, fetching it on first use
func (c *runCache) Countries(ctx context.Context) (types.CountrySet, error) {
	if c.countries != nil {
		return c.countries, nil
	}

	countries, err := c.population.Countries(ctx)
	if err != nil {
		return nil, err
	}

	c.countries = countries

	return countries, nil
}

// ToTarget converts through the rate table, fetching it on first use.
// A failed fetch is remembered, and is never retried within the run
func (c *runCache) ToTarget(ctx context.Context, currency types.Currency) (float64, error) {
	table, err := c.rateTable(ctx)
	if err != nil {
		return 0, err
	}

	if !table.Has(c.target) && !c.targetWarned {
		c.targetWarned = true

		c.logger.Warn(
			"target currency is missing from the rate table, every row will have a gap",
			"target", c.target,
			"base", table.Base,
		)
	}

	return table.Convert(currency, c.target)
}

// Anchor returns the base currency of the loaded rate table, if any
func (c *runCache) Anchor() types.Currency {
	if c.table == nil {
		return ""
	}

	return c.table.Base
}

func (c *runCache) rateTable(ctx context.Context) (*types.RateTable, error) {
	if c.table != nil {
		return c.table, nil
	}

	if c.tableErr != nil {
		return nil, c.tableErr
	}

	table, err := c.rates.Rates(ctx)
	if err != nil {
		c.tableErr = fmt.Errorf("unable to load rate table: %w", err)

		return nil, c.tableErr
	}

	if table == nil {
		c.tableErr = errors.New("rate source returned no table")

		return nil, c.tableErr
	}

	c.table = table

	return table, nil
}
