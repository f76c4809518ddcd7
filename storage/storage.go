package storage

import (
	"context"
	"errors"

	"github.com/sig-0/centavo/storage/types"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

var (
	// ErrRunNotFound is returned when no run matches the lookup
	ErrRunNotFound = errors.New("run not found")

	// ErrDuplicateRun is returned when a run with the same ID is already saved
	ErrDuplicateRun = errors.New("run already exists")
)

// Storage is an abstraction over the pipeline run history
type Storage interface {
	// SaveRun saves the given run, rows included
	SaveRun(context.Context, *types.Run) error

	// Run fetches the run with the given ID
	Run(context.Context, string) (*types.Run, error)

	// LatestRun fetches the most recently generated run
	LatestRun(context.Context) (*types.Run, error)

	// ListRuns lists run summaries, newest first
	ListRuns(context.Context, *types.RunQuery) (*types.Page[*types.RunSummary], error)
}

// PageBounds returns the offset and the clamped limit of the query
func PageBounds(query *types.RunQuery) (int64, int32) {
	if query == nil {
		return 0, DefaultPageLimit
	}

	var (
		offset = query.Offset
		limit  = query.Limit
	)

	if offset < 0 {
		offset = 0
	}

	if limit <= 0 {
		limit = DefaultPageLimit
	}

	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	return offset, limit
}
