package pipeline

import (
	"context"

	"github.com/sig-0/centavo/storage/types"
)

type (
	countriesDelegate  func(context.Context) (types.CountrySet, error)
	populationDelegate func(context.Context, types.CountrySet, int) ([]*types.PopulationRecord, error)
	ratesDelegate      func(context.Context) (*types.RateTable, error)
	resolveDelegate    func(string) (types.Currency, bool)
	toTargetDelegate   func(context.Context, types.Currency) (float64, error)
	writeDelegate      func(string, *types.Run) (string, error)
)

type mockPopulation struct {
	countriesFn  countriesDelegate
	populationFn populationDelegate
}

func (m *mockPopulation) Countries(ctx context.Context) (types.CountrySet, error) {
	if m.countriesFn != nil {
		return m.countriesFn(ctx)
	}

	return types.CountrySet{}, nil
}

func (m *mockPopulation) LatestPopulation(
	ctx context.Context,
	countries types.CountrySet,
	limit int,
) ([]*types.PopulationRecord, error) {
	if m.populationFn != nil {
		return m.populationFn(ctx, countries, limit)
	}

	return nil, nil
}

type namedPopulation struct {
	mockPopulation

	name string
}

func (m *namedPopulation) Name() string {
	return m.name
}

type mockRates struct {
	ratesFn ratesDelegate
}

func (m *mockRates) Rates(ctx context.Context) (*types.RateTable, error) {
	if m.ratesFn != nil {
		return m.ratesFn(ctx)
	}

	return &types.RateTable{}, nil
}

type mockResolver struct {
	resolveFn resolveDelegate
}

func (m *mockResolver) Resolve(code string) (types.Currency, bool) {
	if m.resolveFn != nil {
		return m.resolveFn(code)
	}

	return "", false
}

type mockConverter struct {
	toTargetFn toTargetDelegate
}

func (m *mockConverter) ToTarget(ctx context.Context, c types.Currency) (float64, error) {
	if m.toTargetFn != nil {
		return m.toTargetFn(ctx, c)
	}

	return 0, nil
}

type mockWriter struct {
	writeFn writeDelegate
}

func (m *mockWriter) Write(root string, run *types.Run) (string, error) {
	if m.writeFn != nil {
		return m.writeFn(root, run)
	}

	return root, nil
}
