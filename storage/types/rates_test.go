package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTable_Convert(t *testing.T) {
	t.Parallel()

	table := &RateTable{
		Base: CurrencyEUR,
		Rates: map[Currency]float64{
			CurrencyEUR: 1,
			CurrencyUSD: 1.08,
			CurrencyMXN: 19.98,
		},
	}

	t.Run("ratio of anchor rates", func(t *testing.T) {
		t.Parallel()

		rate, err := table.Convert(CurrencyUSD, CurrencyMXN)

		require.NoError(t, err)
		assert.InDelta(t, 18.5, rate, 1e-9)
	})

	t.Run("anchor to target", func(t *testing.T) {
		t.Parallel()

		rate, err := table.Convert(CurrencyEUR, CurrencyMXN)

		require.NoError(t, err)
		assert.InDelta(t, 19.98, rate, 1e-9)
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		_, err := table.Convert("XXX", CurrencyMXN)

		assert.ErrorIs(t, err, ErrCurrencyNotFound)
	})

	t.Run("missing target", func(t *testing.T) {
		t.Parallel()

		_, err := table.Convert(CurrencyUSD, "XXX")

		assert.ErrorIs(t, err, ErrCurrencyNotFound)
	})

	t.Run("zero source rate", func(t *testing.T) {
		t.Parallel()

		zero := &RateTable{
			Rates: map[Currency]float64{
				"ZZZ":       0,
				CurrencyMXN: 20,
			},
		}

		_, err := zero.Convert("ZZZ", CurrencyMXN)

		assert.ErrorIs(t, err, ErrCurrencyNotFound)
	})
}

func TestRun_Summary(t *testing.T) {
	t.Parallel()

	run := &Run{
		ID:         "run-1",
		Target:     CurrencyMXN,
		Directory:  "data/2026-01-01T00-00-00",
		Rows:       []*Row{{CountryCode: "MEX"}, {CountryCode: "USA"}},
		GrandTotal: 42,
	}

	summary := run.Summary()

	assert.Equal(t, "run-1", summary.ID)
	assert.Equal(t, CurrencyMXN, summary.Target)
	assert.Equal(t, 2, summary.RowCount)
	assert.Equal(t, 42.0, summary.GrandTotal)
	assert.Equal(t, run.Directory, summary.Directory)
}
