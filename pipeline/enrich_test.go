package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/centavo/provider/currencies"
	"github.com/sig-0/centavo/storage/types"
)

// tableConverter converts through a fixed rate table
func tableConverter(table *types.RateTable, target types.Currency) *mockConverter {
	return &mockConverter{
		toTargetFn: func(_ context.Context, c types.Currency) (float64, error) {
			return table.Convert(c, target)
		},
	}
}

func staticResolver(mapping map[string]types.Currency) *mockResolver {
	return &mockResolver{
		resolveFn: func(code string) (types.Currency, bool) {
			c, ok := mapping[code]

			return c, ok
		},
	}
}

var testTable = &types.RateTable{
	Base: types.CurrencyEUR,
	Rates: map[types.Currency]float64{
		types.CurrencyEUR: 1,
		types.CurrencyUSD: 1.08,
		types.CurrencyMXN: 19.98,
	},
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	t.Run("derived value", func(t *testing.T) {
		t.Parallel()

		var (
			records = []*types.PopulationRecord{
				{CountryCode: "USA", CountryName: "United States", Year: 2024, Population: 1_000_000},
			}

			resolver  = staticResolver(map[string]types.Currency{"USA": types.CurrencyUSD})
			converter = &mockConverter{
				toTargetFn: func(_ context.Context, c types.Currency) (float64, error) {
					require.Equal(t, types.CurrencyUSD, c)

					return 18.5, nil
				},
			}
		)

		rows, total, err := Enrich(context.Background(), records, resolver, converter)
		require.NoError(t, err)

		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].DerivedValue)

		assert.InDelta(t, 185_000.0, *rows[0].DerivedValue, 1e-6)
		assert.InDelta(t, 18.5, *rows[0].FxToTarget, 1e-9)
		assert.Equal(t, types.CurrencyUSD, *rows[0].Currency)
		assert.InDelta(t, 185_000.0, total, 1e-6)
	})

	t.Run("unresolved currency", func(t *testing.T) {
		t.Parallel()

		var (
			converterCalled bool

			records = []*types.PopulationRecord{
				{CountryCode: "XKX", CountryName: "Kosovo", Year: 2024, Population: 1_700_000},
			}

			converter = &mockConverter{
				toTargetFn: func(context.Context, types.Currency) (float64, error) {
					converterCalled = true

					return 1, nil
				},
			}
		)

		rows, total, err := Enrich(context.Background(), records, &mockResolver{}, converter)
		require.NoError(t, err)

		require.Len(t, rows, 1)

		assert.Nil(t, rows[0].Currency)
		assert.Nil(t, rows[0].FxToTarget)
		assert.Nil(t, rows[0].DerivedValue)
		assert.Equal(t, int64(1_700_000), rows[0].Population)
		assert.Equal(t, "Kosovo", rows[0].CountryName)
		assert.Zero(t, total)
		assert.False(t, converterCalled)
	})

	t.Run("currency missing from the rate table", func(t *testing.T) {
		t.Parallel()

		var (
			records = []*types.PopulationRecord{
				{CountryCode: "VEN", CountryName: "Venezuela", Year: 2024, Population: 28_000_000},
				{CountryCode: "USA", CountryName: "United States", Year: 2024, Population: 1_000_000},
			}

			resolver = staticResolver(map[string]types.Currency{
				"VEN": "VES",
				"USA": types.CurrencyUSD,
			})
		)

		rows, total, err := Enrich(
			context.Background(),
			records,
			resolver,
			tableConverter(testTable, types.CurrencyMXN),
		)
		require.NoError(t, err)

		require.Len(t, rows, 2)

		require.NotNil(t, rows[0].Currency)
		assert.Equal(t, types.Currency("VES"), *rows[0].Currency)
		assert.Nil(t, rows[0].FxToTarget)
		assert.Nil(t, rows[0].DerivedValue)

		require.NotNil(t, rows[1].DerivedValue)
		assert.InDelta(t, *rows[1].DerivedValue, total, 1e-9)
	})

	t.Run("grand total skips gaps", func(t *testing.T) {
		t.Parallel()

		var (
			records = []*types.PopulationRecord{
				{CountryCode: "MEX", Population: 100},
				{CountryCode: "XKX", Population: 1_000},
				{CountryCode: "DEU", Population: 200},
				{CountryCode: "VEN", Population: 10_000},
			}

			resolver = staticResolver(map[string]types.Currency{
				"MEX": types.CurrencyMXN,
				"DEU": types.CurrencyEUR,
				"VEN": "VES",
			})
		)

		rows, total, err := Enrich(
			context.Background(),
			records,
			resolver,
			tableConverter(testTable, types.CurrencyMXN),
		)
		require.NoError(t, err)

		var sum float64

		for _, row := range rows {
			if row.DerivedValue != nil {
				sum += *row.DerivedValue
			}
		}

		// 100 x 0.01 x 1 + 200 x 0.01 x 19.98
		assert.InDelta(t, 1+39.96, total, 1e-9)
		assert.InDelta(t, sum, total, 1e-9)
	})

	t.Run("order is preserved", func(t *testing.T) {
		t.Parallel()

		records := []*types.PopulationRecord{
			{CountryCode: "IND", Population: 3},
			{CountryCode: "XKX", Population: 2},
			{CountryCode: "MEX", Population: 1},
		}

		rows, _, err := Enrich(
			context.Background(),
			records,
			currencies.CLDR{},
			tableConverter(testTable, types.CurrencyMXN),
		)
		require.NoError(t, err)

		require.Len(t, rows, len(records))

		for i, record := range records {
			assert.Equal(t, record.CountryCode, rows[i].CountryCode)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		records := []*types.PopulationRecord{
			{CountryCode: "USA", CountryName: "United States", Year: 2024, Population: 340_110_988},
			{CountryCode: "MEX", CountryName: "Mexico", Year: 2024, Population: 130_861_007},
			{CountryCode: "DEU", CountryName: "Germany", Year: 2024, Population: 83_510_950},
			{CountryCode: "XKX", CountryName: "Kosovo", Year: 2024, Population: 1_700_000},
		}

		enrich := func() ([]*types.Row, float64) {
			rows, total, err := Enrich(
				context.Background(),
				records,
				currencies.CLDR{},
				tableConverter(testTable, types.CurrencyMXN),
			)
			require.NoError(t, err)

			return rows, total
		}

		firstRows, firstTotal := enrich()
		secondRows, secondTotal := enrich()

		assert.Equal(t, firstRows, secondRows)
		assert.Equal(t, firstTotal, secondTotal) //nolint:testifylint // exact equality is the property
	})

	t.Run("fatal converter error", func(t *testing.T) {
		t.Parallel()

		var (
			fetchErr = errors.New("rate table unavailable")

			records = []*types.PopulationRecord{
				{CountryCode: "USA", Population: 1},
			}

			resolver  = staticResolver(map[string]types.Currency{"USA": types.CurrencyUSD})
			converter = &mockConverter{
				toTargetFn: func(context.Context, types.Currency) (float64, error) {
					return 0, fetchErr
				},
			}
		)

		rows, total, err := Enrich(context.Background(), records, resolver, converter)

		assert.ErrorIs(t, err, fetchErr)
		assert.Nil(t, rows)
		assert.Zero(t, total)
	})

	t.Run("wrapped not found is a gap", func(t *testing.T) {
		t.Parallel()

		var (
			records = []*types.PopulationRecord{
				{CountryCode: "USA", Population: 1},
			}

			resolver  = staticResolver(map[string]types.Currency{"USA": types.CurrencyUSD})
			converter = &mockConverter{
				toTargetFn: func(context.Context, types.Currency) (float64, error) {
					return 0, fmt.Errorf("lookup: %w", types.ErrCurrencyNotFound)
				},
			}
		)

		rows, _, err := Enrich(context.Background(), records, resolver, converter)
		require.NoError(t, err)

		assert.Nil(t, rows[0].DerivedValue)
	})

	t.Run("no records", func(t *testing.T) {
		t.Parallel()

		rows, total, err := Enrich(context.Background(), nil, &mockResolver{}, &mockConverter{})
		require.NoError(t, err)

		assert.Empty(t, rows)
		assert.Zero(t, total)
	})
}
