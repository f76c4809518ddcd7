// Package storagetest holds the behavior every storage.Storage adapter shares
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

// Factory creates a fresh, empty storage
type Factory func(t *testing.T) storage.Storage

func ptr[T any](v T) *T {
	return &v
}

// NewRun creates a run with one resolved and one gap row
func NewRun(id string, generatedAt time.Time) *types.Run {
	return &types.Run{
		ID:          id,
		GeneratedAt: generatedAt.UTC(),
		Target:      types.CurrencyMXN,
		Anchor:      types.CurrencyEUR,
		Directory:   "out/" + id,
		Limit:       2,
		GrandTotal:  185000,
		Rows: []*types.Row{
			{
				CountryCode:  "USA",
				CountryName:  "United States",
				Year:         2024,
				Population:   1000000,
				Currency:     ptr(types.CurrencyUSD),
				FxToTarget:   ptr(18.5),
				DerivedValue: ptr(185000.0),
			},
			{
				CountryCode: "XKX",
				CountryName: "Kosovo",
				Year:        2024,
				Population:  1700000,
			},
		},
	}
}

// Run runs the shared storage behavior tests
func Run(t *testing.T, factory Factory) {
	t.Helper()

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("save and fetch", func(t *testing.T) {
		t.Parallel()

		var (
			s   = factory(t)
			ctx = context.Background()
			run = NewRun("run-1", base)
		)

		require.NoError(t, s.SaveRun(ctx, run))

		saved, err := s.Run(ctx, "run-1")
		require.NoError(t, err)

		assert.Equal(t, run.ID, saved.ID)
		assert.True(t, run.GeneratedAt.Equal(saved.GeneratedAt))
		assert.Equal(t, run.Target, saved.Target)
		assert.Equal(t, run.Anchor, saved.Anchor)
		assert.Equal(t, run.Directory, saved.Directory)
		assert.Equal(t, run.Limit, saved.Limit)
		assert.InDelta(t, run.GrandTotal, saved.GrandTotal, 1e-4)

		require.Len(t, saved.Rows, 2)

		assert.Equal(t, "USA", saved.Rows[0].CountryCode)
		assert.Equal(t, "United States", saved.Rows[0].CountryName)
		assert.Equal(t, 2024, saved.Rows[0].Year)
		assert.Equal(t, int64(1000000), saved.Rows[0].Population)

		require.NotNil(t, saved.Rows[0].Currency)
		require.NotNil(t, saved.Rows[0].FxToTarget)
		require.NotNil(t, saved.Rows[0].DerivedValue)

		assert.Equal(t, types.CurrencyUSD, *saved.Rows[0].Currency)
		assert.InDelta(t, 18.5, *saved.Rows[0].FxToTarget, 1e-6)
		assert.InDelta(t, 185000.0, *saved.Rows[0].DerivedValue, 1e-4)

		// Gaps survive the round trip
		assert.Equal(t, "XKX", saved.Rows[1].CountryCode)
		assert.Nil(t, saved.Rows[1].Currency)
		assert.Nil(t, saved.Rows[1].FxToTarget)
		assert.Nil(t, saved.Rows[1].DerivedValue)
	})

	t.Run("missing run", func(t *testing.T) {
		t.Parallel()

		s := factory(t)

		_, err := s.Run(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrRunNotFound)

		_, err = s.LatestRun(context.Background())
		assert.ErrorIs(t, err, storage.ErrRunNotFound)
	})

	t.Run("duplicate run", func(t *testing.T) {
		t.Parallel()

		var (
			s   = factory(t)
			ctx = context.Background()
		)

		require.NoError(t, s.SaveRun(ctx, NewRun("run-1", base)))

		assert.ErrorIs(t, s.SaveRun(ctx, NewRun("run-1", base)), storage.ErrDuplicateRun)
	})

	t.Run("latest run", func(t *testing.T) {
		t.Parallel()

		var (
			s   = factory(t)
			ctx = context.Background()
		)

		// Saved out of order
		for _, offset := range []int{1, 3, 2} {
			id := fmt.Sprintf("run-%d", offset)

			require.NoError(t, s.SaveRun(ctx, NewRun(id, base.Add(time.Duration(offset)*time.Hour))))
		}

		latest, err := s.LatestRun(ctx)
		require.NoError(t, err)

		assert.Equal(t, "run-3", latest.ID)
		assert.Len(t, latest.Rows, 2)
	})

	t.Run("list runs", func(t *testing.T) {
		t.Parallel()

		var (
			s   = factory(t)
			ctx = context.Background()
		)

		for i := range 5 {
			id := fmt.Sprintf("run-%d", i)

			require.NoError(t, s.SaveRun(ctx, NewRun(id, base.Add(time.Duration(i)*time.Minute))))
		}

		page, err := s.ListRuns(ctx, &types.RunQuery{Limit: 2})
		require.NoError(t, err)

		assert.Equal(t, int64(5), page.Total)
		require.Len(t, page.Results, 2)

		assert.Equal(t, "run-4", page.Results[0].ID)
		assert.Equal(t, "run-3", page.Results[1].ID)
		assert.Equal(t, 2, page.Results[0].RowCount)
		assert.InDelta(t, 185000.0, page.Results[0].GrandTotal, 1e-4)

		page, err = s.ListRuns(ctx, &types.RunQuery{Offset: 4, Limit: 2})
		require.NoError(t, err)

		require.Len(t, page.Results, 1)
		assert.Equal(t, "run-0", page.Results[0].ID)

		page, err = s.ListRuns(ctx, &types.RunQuery{Offset: 10})
		require.NoError(t, err)

		assert.Empty(t, page.Results)
		assert.Equal(t, int64(5), page.Total)
	})

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()

		page, err := factory(t).ListRuns(context.Background(), nil)
		require.NoError(t, err)

		assert.Empty(t, page.Results)
		assert.Zero(t, page.Total)
	})
}
