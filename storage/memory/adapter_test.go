package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/storagetest"
)

func TestStorage(t *testing.T) {
	t.Parallel()

	storagetest.Run(t, func(_ *testing.T) storage.Storage {
		return NewStorage()
	})
}

func TestStorage_Isolation(t *testing.T) {
	t.Parallel()

	var (
		s   = NewStorage()
		ctx = context.Background()
		run = storagetest.NewRun("run-1", time.Now())
	)

	require.NoError(t, s.SaveRun(ctx, run))

	// Mutating the caller's run does not change the saved one
	run.Rows = run.Rows[:1]
	run.GrandTotal = 0

	saved, err := s.Run(ctx, "run-1")
	require.NoError(t, err)

	assert.Len(t, saved.Rows, 2)
	assert.InDelta(t, 185000.0, saved.GrandTotal, 1e-9)
}
