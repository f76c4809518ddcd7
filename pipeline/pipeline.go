// Package pipeline joins population figures with FX rates.
//
// A run has three stages: fetch the population of every country, enrich
// each record with its currency and rate to the target currency, and
// aggregate the derived values into a grand total. Nothing is retried at
// this level; retries live in the fetch client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/centavo/metrics"
	"github.com/sig-0/centavo/provider/currencies"
	"github.com/sig-0/centavo/storage/artifact"
	"github.com/sig-0/centavo/storage/types"
)

// DefaultTarget is the currency the derived values are expressed in
const DefaultTarget = types.CurrencyMXN

// ErrInvalidLimit is returned for negative row limits
var ErrInvalidLimit = errors.New("invalid limit")

// PopulationSource provides the country set and the latest population figures
type PopulationSource interface {
	Countries(ctx context.Context) (types.CountrySet, error)
	LatestPopulation(ctx context.Context, countries types.CountrySet, limit int) ([]*types.PopulationRecord, error)
}

// RateSource provides the full FX rate table
type RateSource interface {
	Rates(ctx context.Context) (*types.RateTable, error)
}

// ArtifactWriter persists a finished run, returning its location
type ArtifactWriter interface {
	Write(root string, run *types.Run) (string, error)
}

// Pipeline runs the population and FX stages
type Pipeline struct {
	population PopulationSource
	rates      RateSource
	resolver   currencies.Resolver
	writer     ArtifactWriter

	logger  *slog.Logger
	metrics *metrics.Metrics

	now   func() time.Time
	newID func() string

	target types.Currency
}

// New creates a new pipeline over the given sources
func New(population PopulationSource, rates RateSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		population: population,
		rates:      rates,
		resolver:   currencies.CLDR{},
		writer:     artifact.NewWriter(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		newID: func() string {
			return xid.New().String()
		},
		target: DefaultTarget,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Target returns the currency derived values are expressed in
func (p *Pipeline) Target() types.Currency {
	return p.target
}

// Execute runs the population and enrich stages, without writing anything.
// A zero limit keeps every country
func (p *Pipeline) Execute(ctx context.Context, limit int) (*types.Run, error) {
	start := time.Now()

	run, err := p.execute(ctx, limit)

	p.observe(start, run, err)

	return run, err
}

// Run executes the pipeline and writes the run artifacts into a fresh
// directory under outputRoot. Nothing is written when a stage fails.
// The returned run carries the artifact directory
func (p *Pipeline) Run(ctx context.Context, limit int, outputRoot string) (*types.Run, error) {
	start := time.Now()

	run, err := p.execute(ctx, limit)
	if err == nil {
		run.Directory, err = p.writer.Write(outputRoot, run)
		if err != nil {
			err = fmt.Errorf("unable to write run artifacts: %w", err)
		}
	}

	p.observe(start, run, err)

	if err != nil {
		return nil, err
	}

	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, limit int) (*types.Run, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	var (
		id    = p.newID()
		cache = newRunCache(p.population, p.rates, p.target, p.logger.With("run", id))
	)

	p.logger.Info(
		"starting run",
		"id", id,
		"limit", limit,
		"target", p.target,
		"population", sourceName(p.population),
		"rates", sourceName(p.rates),
	)

	// Stage (a): population
	countries, err := cache.Countries(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch countries: %w", err)
	}

	records, err := p.population.LatestPopulation(ctx, countries, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch population: %w", err)
	}

	// Stage (b): enrich and aggregate
	rows, grandTotal, err := Enrich(ctx, records, p.resolver, cache)
	if err != nil {
		return nil, fmt.Errorf("unable to enrich population: %w", err)
	}

	p.reportGaps(id, rows)

	return &types.Run{
		ID:          id,
		GeneratedAt: p.now().UTC(),
		Target:      p.target,
		Anchor:      cache.Anchor(),
		Limit:       limit,
		Rows:        rows,
		GrandTotal:  grandTotal,
	}, nil
}

// reportGaps logs and counts the rows left without a derived value
func (p *Pipeline) reportGaps(id string, rows []*types.Row) {
	for _, row := range rows {
		if row.DerivedValue != nil {
			continue
		}

		reason := metrics.GapRate
		if row.Currency == nil {
			reason = metrics.GapCurrency
		}

		p.metrics.ObserveRowGap(reason)

		p.logger.Debug(
			"row has no derived value",
			"run", id,
			"country", row.CountryCode,
			"reason", reason,
		)
	}
}

func (p *Pipeline) observe(start time.Time, run *types.Run, err error) {
	took := time.Since(start)

	p.metrics.ObserveRun(took, err)

	if err != nil {
		p.logger.Error(
			"run failed",
			"took", took.String(),
			"err", err,
		)

		return
	}

	p.metrics.SetGrandTotal(run.Target.String(), run.GrandTotal)

	p.logger.Info(
		"run completed",
		"id", run.ID,
		"rows", len(run.Rows),
		"grand_total", run.GrandTotal,
		"took", took.String(),
	)
}

// sourceName returns the display name of the source, if it has one
func sourceName(source any) string {
	named, ok := source.(interface{ Name() string })
	if !ok {
		return "unnamed"
	}

	return named.Name()
}
