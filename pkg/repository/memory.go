package repository

import (
	"context"
	"sync"
	"time"

	"github.com/efemerides-ve/efemerides/pkg/model"
)

// Memory is an in-process Repository. Used for tests and dry runs.
type Memory struct {
	mu      sync.RWMutex
	records []*model.Ephemeris
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithMemoryClock overrides the clock used for created_at/updated_at
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) ListByDate(ctx context.Context, date model.Date) ([]*model.Ephemeris, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Ephemeris
	for _, r := range m.records {
		if r.DisplayDate == date {
			copied := *r
			result = append(result, &copied)
		}
	}
	model.SortEphemerides(result)
	return result, nil
}

func (m *Memory) Latest(ctx context.Context) (*model.Ephemeris, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest model.Date
	for _, r := range m.records {
		if r.DisplayDate > latest {
			latest = r.DisplayDate
		}
	}
	if latest == "" {
		return nil, nil
	}

	var candidates []*model.Ephemeris
	for _, r := range m.records {
		if r.DisplayDate == latest {
			copied := *r
			candidates = append(candidates, &copied)
		}
	}
	model.SortEphemerides(candidates)
	return candidates[0], nil
}

func (m *Memory) Insert(ctx context.Context, ephemeris *model.Ephemeris) (*model.Ephemeris, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *ephemeris
	if stored.ID == "" {
		stored.ID = model.NewEphemerisID()
	}
	now := m.now().UTC()
	if stored.CreatedAt == nil {
		stored.CreatedAt = &now
	}
	stored.UpdatedAt = &now

	m.records = append(m.records, &stored)

	copied := stored
	return &copied, nil
}

func (m *Memory) DeleteByDate(ctx context.Context, date model.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	removed := 0
	for _, r := range m.records {
		if r.DisplayDate == date {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}
