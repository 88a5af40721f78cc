package repository

import (
	"context"
	"sort"
	"sync"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
)

// MemoryStateRepository keeps state in process memory. Used for local runs and tests.
type MemoryStateRepository struct {
	mu      sync.Mutex
	states  map[string]models.TickerState
	metrics *models.SystemMetrics
	writes  int
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{states: make(map[string]models.TickerState)}
}

var _ repository.StateRepository = (*MemoryStateRepository)(nil)

func (r *MemoryStateRepository) Init(context.Context) error { return nil }

func (r *MemoryStateRepository) UpsertTickerState(_ context.Context, s models.TickerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s.Ticker] = s.Clone()
	r.writes++
	return nil
}

func (r *MemoryStateRepository) LoadTickerStates(context.Context) ([]models.TickerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TickerState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (r *MemoryStateRepository) UpsertMetrics(_ context.Context, m models.SystemMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = &m
	return nil
}

func (r *MemoryStateRepository) LoadMetrics(context.Context) (*models.SystemMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metrics == nil {
		return nil, nil
	}
	m := *r.metrics
	return &m, nil
}

// Rows is the number of stored ticker rows.
func (r *MemoryStateRepository) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Writes counts ticker upserts.
func (r *MemoryStateRepository) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *MemoryStateRepository) Close() error { return nil }
