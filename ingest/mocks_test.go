package ingest

import (
	"context"
	"time"

	"github.com/sig-0/centavo/storage/types"
)

type (
	nameDelegate     func() string
	intervalDelegate func() time.Duration
	runDelegate      func(context.Context) (*types.Run, error)
	runnerDelegate   func(context.Context, int, string) (*types.Run, error)
)

type mockJob struct {
	nameFn     nameDelegate
	intervalFn intervalDelegate
	runFn      runDelegate
}

func (m *mockJob) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockJob) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return 0
}

func (m *mockJob) Run(ctx context.Context) (*types.Run, error) {
	if m.runFn != nil {
		return m.runFn(ctx)
	}

	return nil, nil
}

type mockRunner struct {
	runFn runnerDelegate
}

func (m *mockRunner) Run(ctx context.Context, limit int, outputRoot string) (*types.Run, error) {
	if m.runFn != nil {
		return m.runFn(ctx, limit, outputRoot)
	}

	return nil, nil
}
