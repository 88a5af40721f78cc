package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	"TickerPulse/pkg/cache"
)

// RedisStateRepository keeps each TickerState as one field of a hash, so HSET is the upsert.
type RedisStateRepository struct {
	client     *redis.Client
	statesKey  string
	metricsKey string
}

func NewRedisStateRepository(rc *cache.RedisCache) *RedisStateRepository {
	return &RedisStateRepository{
		client:     rc.Client(),
		statesKey:  rc.Prefix() + ":ticker_states",
		metricsKey: rc.Prefix() + ":system_metrics",
	}
}

var _ repository.StateRepository = (*RedisStateRepository)(nil)

func (r *RedisStateRepository) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *RedisStateRepository) UpsertTickerState(ctx context.Context, s models.TickerState) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", models.ErrPersistenceFailure, s.Ticker, err)
	}
	if err := r.client.HSet(ctx, r.statesKey, s.Ticker, b).Err(); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", models.ErrPersistenceFailure, s.Ticker, err)
	}
	return nil
}

func (r *RedisStateRepository) LoadTickerStates(ctx context.Context) ([]models.TickerState, error) {
	all, err := r.client.HGetAll(ctx, r.statesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load states: %w", models.ErrPersistenceFailure, err)
	}
	out := make([]models.TickerState, 0, len(all))
	for _, raw := range all {
		var s models.TickerState
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (r *RedisStateRepository) UpsertMetrics(ctx context.Context, m models.SystemMetrics) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encode metrics: %w", models.ErrPersistenceFailure, err)
	}
	if err := r.client.Set(ctx, r.metricsKey, b, 0).Err(); err != nil {
		return fmt.Errorf("%w: upsert metrics: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *RedisStateRepository) LoadMetrics(ctx context.Context) (*models.SystemMetrics, error) {
	b, err := r.client.Get(ctx, r.metricsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load metrics: %w", models.ErrPersistenceFailure, err)
	}
	var m models.SystemMetrics
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: decode metrics: %w", models.ErrPersistenceFailure, err)
	}
	return &m, nil
}

// Close is a no-op; the client belongs to the cache.
func (r *RedisStateRepository) Close() error { return nil }
