package mock

import (
	"context"

	"github.com/sig-0/centavo/storage/types"
)

type (
	SaveRunDelegate   func(context.Context, *types.Run) error
	RunDelegate       func(context.Context, string) (*types.Run, error)
	LatestRunDelegate func(context.Context) (*types.Run, error)
	ListRunsDelegate  func(context.Context, *types.RunQuery) (*types.Page[*types.RunSummary], error)
)

type Storage struct {
	SaveRunFn   SaveRunDelegate
	RunFn       RunDelegate
	LatestRunFn LatestRunDelegate
	ListRunsFn  ListRunsDelegate
}

func (m *Storage) SaveRun(ctx context.Context, run *types.Run) error {
	if m.SaveRunFn != nil {
		return m.SaveRunFn(ctx, run)
	}

	return nil
}

func (m *Storage) Run(ctx context.Context, id string) (*types.Run, error) {
	if m.RunFn != nil {
		return m.RunFn(ctx, id)
	}

	return nil, nil
}

func (m *Storage) LatestRun(ctx context.Context) (*types.Run, error) {
	if m.LatestRunFn != nil {
		return m.LatestRunFn(ctx)
	}

	return nil, nil
}

func (m *Storage) ListRuns(
	ctx context.Context,
	query *types.RunQuery,
) (*types.Page[*types.RunSummary], error) {
	if m.ListRunsFn != nil {
		return m.ListRunsFn(ctx, query)
	}

	return nil, nil
}
