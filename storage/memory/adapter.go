package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

type Storage struct {
	runs  map[string]*types.Run
	order []*types.Run // newest first

	mu sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		runs: make(map[string]*types.Run),
	}
}

func (s *Storage) SaveRun(_ context.Context, run *types.Run) error {
	elem := *run
	elem.GeneratedAt = elem.GeneratedAt.UTC()
	elem.Rows = append([]*types.Row(nil), run.Rows...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[elem.ID]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateRun, elem.ID)
	}

	s.runs[elem.ID] = &elem
	s.order = append(s.order, &elem)

	sort.SliceStable(s.order, func(i, j int) bool {
		if !s.order[i].GeneratedAt.Equal(s.order[j].GeneratedAt) {
			return s.order[i].GeneratedAt.After(s.order[j].GeneratedAt)
		}

		return s.order[i].ID > s.order[j].ID
	})

	return nil
}

func (s *Storage) Run(_ context.Context, id string) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}

	cp := *run

	return &cp, nil
}

func (s *Storage) LatestRun(_ context.Context) (*types.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, storage.ErrRunNotFound
	}

	cp := *s.order[0]

	return &cp, nil
}

func (s *Storage) ListRuns(
	_ context.Context,
	query *types.RunQuery,
) (*types.Page[*types.RunSummary], error) {
	offset, limit := storage.PageBounds(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(len(s.order))
	if offset >= total {
		return &types.Page[*types.RunSummary]{
			Results: nil,
			Total:   total,
		}, nil
	}

	start := int(offset)
	end := start + int(limit)

	if end > len(s.order) {
		end = len(s.order)
	}

	out := make([]*types.RunSummary, 0, end-start)
	for _, run := range s.order[start:end] {
		out = append(out, run.Summary())
	}

	return &types.Page[*types.RunSummary]{
		Results: out,
		Total:   total,
	}, nil
}
