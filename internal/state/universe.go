package state

import (
	"context"
	"fmt"
	"sync"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	applogger "TickerPulse/pkg/logger"
)

// Universe is the ordered, de-duplicated set of tracked instruments.
// It only grows.
type Universe struct {
	repo repository.UniverseRepository
	log  *applogger.Logger

	mu      sync.RWMutex
	symbols []string
	index   map[string]struct{}

	saveMu sync.Mutex
}

func NewUniverse(repo repository.UniverseRepository, log *applogger.Logger) *Universe {
	if log == nil {
		log = applogger.NewNop()
	}
	return &Universe{
		repo:  repo,
		log:   log,
		index: make(map[string]struct{}),
	}
}

// Load reads the persisted universe. When nothing is persisted the seed list
// is used and saved.
func (u *Universe) Load(ctx context.Context, seed []string) error {
	symbols, err := u.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if len(symbols) == 0 && len(seed) > 0 {
		if _, err := u.Add(ctx, seed...); err != nil {
			return err
		}
		return nil
	}

	u.mu.Lock()
	for _, s := range models.NormalizeSymbols(symbols) {
		u.appendLocked(s)
	}
	n := len(u.symbols)
	u.mu.Unlock()

	u.log.Info("universe loaded", applogger.Int("tickers", n))
	return nil
}

// Add appends the unseen symbols and persists the universe when it grew.
// The returned slice holds only the newly added symbols.
func (u *Universe) Add(ctx context.Context, symbols ...string) ([]string, error) {
	normalized := models.NormalizeSymbols(symbols)

	u.mu.Lock()
	added := make([]string, 0, len(normalized))
	for _, s := range normalized {
		if u.appendLocked(s) {
			added = append(added, s)
		}
	}
	u.mu.Unlock()

	if len(added) == 0 {
		return nil, nil
	}
	if err := u.save(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// Missing returns the symbols not yet tracked, normalized and in input order.
func (u *Universe) Missing(symbols []string) []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var out []string
	for _, s := range models.NormalizeSymbols(symbols) {
		if _, ok := u.index[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func (u *Universe) Contains(symbol string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.index[models.NormalizeSymbol(symbol)]
	return ok
}

// Snapshot returns a copy of the tracked symbols in insertion order.
func (u *Universe) Snapshot() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

func (u *Universe) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.symbols)
}

// Regions lists the distinct regions present in the universe.
func (u *Universe) Regions() []models.Region {
	u.mu.RLock()
	defer u.mu.RUnlock()

	seen := make(map[models.Region]struct{})
	var out []models.Region
	for _, s := range u.symbols {
		r := models.RegionOf(s)
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (u *Universe) appendLocked(s string) bool {
	if _, ok := u.index[s]; ok {
		return false
	}
	u.index[s] = struct{}{}
	u.symbols = append(u.symbols, s)
	return true
}

func (u *Universe) save(ctx context.Context) error {
	u.saveMu.Lock()
	defer u.saveMu.Unlock()

	if err := u.repo.Save(ctx, u.Snapshot()); err != nil {
		return fmt.Errorf("save universe: %w: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}
