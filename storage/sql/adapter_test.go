package sql

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeric(t *testing.T) {
	t.Parallel()

	t.Run("rounds to scale", func(t *testing.T) {
		t.Parallel()

		n := floatToNumeric(185000.123456, amountScale)

		assert.True(t, n.Valid)
		assert.Equal(t, int32(-amountScale), n.Exp)
		assert.Equal(t, int64(1850001235), n.Int.Int64())
		assert.InDelta(t, 185000.1235, numericToFloat(n), 1e-9)
	})

	t.Run("large amounts", func(t *testing.T) {
		t.Parallel()

		value := 2.5e15 // beyond int64 once scaled by 1e4

		assert.InDelta(t, value, numericToFloat(floatToNumeric(value, amountScale)), 1)
	})

	t.Run("positive exponent", func(t *testing.T) {
		t.Parallel()

		n := pgtype.Numeric{
			Int:   big.NewInt(185),
			Exp:   3,
			Valid: true,
		}

		assert.InDelta(t, 185000.0, numericToFloat(n), 1e-9)
	})

	t.Run("nullable", func(t *testing.T) {
		t.Parallel()

		assert.False(t, nullableNumeric(nil, amountScale).Valid)
		assert.Nil(t, numericToNullableFloat(pgtype.Numeric{}))
		assert.Zero(t, numericToFloat(pgtype.Numeric{}))

		value := 185000.0

		n := nullableNumeric(&value, amountScale)
		require.True(t, n.Valid)

		f := numericToNullableFloat(n)
		require.NotNil(t, f)

		assert.InDelta(t, value, *f, 1e-9)
	})
}

func TestFloat8(t *testing.T) {
	t.Parallel()

	t.Run("weak currency rates keep their precision", func(t *testing.T) {
		t.Parallel()

		var (
			rate       = 0.00041234567891234 // IRR to MXN order of magnitude
			population = int64(89_172_767)
		)

		f := float8ToNullable(nullableFloat8(&rate))
		require.NotNil(t, f)

		assert.Equal(t, rate, *f)
		assert.Equal(t, float64(population)*0.01*rate, float64(population)*0.01**f)
	})

	t.Run("nullable", func(t *testing.T) {
		t.Parallel()

		assert.False(t, nullableFloat8(nil).Valid)
		assert.Nil(t, float8ToNullable(pgtype.Float8{}))
	})
}

func TestTimestampz(t *testing.T) {
	t.Parallel()

	local := time.Date(2025, 3, 14, 9, 26, 53, 0, time.FixedZone("CST", -6*3600))

	ts := timeToTimestampz(local)

	assert.True(t, ts.Valid)
	assert.Equal(t, time.UTC, ts.Time.Location())
	assert.True(t, local.Equal(timestampzToTime(ts)))

	assert.True(t, timestampzToTime(pgtype.Timestamptz{}).IsZero())
}
