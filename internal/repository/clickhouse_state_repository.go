package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	pkgch "TickerPulse/pkg/clickhouse"
	applogger "TickerPulse/pkg/logger"
)

// ClickHouseStateRepository stores state in ReplacingMergeTree tables.
// Every write is an insert with a higher version; reads use FINAL, which
// gives upsert semantics.
type ClickHouseStateRepository struct {
	client  *pkgch.Client
	db      *sql.DB
	log     *applogger.Logger
	states  string
	metrics string
	clock   versionClock
}

func NewClickHouseStateRepository(client *pkgch.Client, log *applogger.Logger) *ClickHouseStateRepository {
	return &ClickHouseStateRepository{
		client:  client,
		db:      client.DB(),
		log:     log,
		states:  client.Database() + ".ticker_states",
		metrics: client.Database() + ".system_metrics",
	}
}

var _ repository.StateRepository = (*ClickHouseStateRepository)(nil)

func (r *ClickHouseStateRepository) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", r.client.Database()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ticker        String,
			last_price    Nullable(Float64),
			last_update   Nullable(DateTime64(3, 'UTC')),
			best_strategy Nullable(String),
			last_signal   String,
			expected_move String,
			version       UInt64
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY ticker`, r.states),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                UInt8,
			total_tickers     UInt32,
			processed_tickers UInt32,
			data_processed_mb Float64,
			errors_count      UInt32,
			last_error        String,
			updated_at        DateTime64(3, 'UTC'),
			version           UInt64
		) ENGINE = ReplacingMergeTree(version)
		ORDER BY id`, r.metrics),
	}
	if err := r.client.InitSchema(ctx, stmts); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}
	r.log.Info("clickhouse state schema ready", applogger.String("table", r.states))
	return nil
}

func (r *ClickHouseStateRepository) UpsertTickerState(ctx context.Context, s models.TickerState) error {
	row, err := rowFromState(s)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (ticker, last_price, last_update, best_strategy, last_signal, expected_move, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.states)
	_, err = r.db.ExecContext(ctx, q,
		row.Ticker,
		nullable(row.LastPrice.Valid, row.LastPrice.Float64),
		nullable(row.LastUpdate.Valid, row.LastUpdate.Time),
		nullable(row.BestStrategy.Valid, row.BestStrategy.String),
		row.LastSignal,
		row.ExpectedMove,
		r.clock.next(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", models.ErrPersistenceFailure, s.Ticker, err)
	}
	return nil
}

func (r *ClickHouseStateRepository) LoadTickerStates(ctx context.Context) ([]models.TickerState, error) {
	q := fmt.Sprintf(`SELECT ticker, last_price, last_update, best_strategy, last_signal, expected_move
		FROM %s FINAL ORDER BY ticker`, r.states)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: load states: %w", models.ErrPersistenceFailure, err)
	}
	defer rows.Close()

	var out []models.TickerState
	for rows.Next() {
		var row stateRow
		if err := rows.Scan(&row.Ticker, &row.LastPrice, &row.LastUpdate, &row.BestStrategy, &row.LastSignal, &row.ExpectedMove); err != nil {
			return nil, fmt.Errorf("%w: scan state: %w", models.ErrPersistenceFailure, err)
		}
		s, err := row.toState()
		if err != nil {
			r.log.Warn("skipping undecodable state row", applogger.String("ticker", row.Ticker), applogger.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ClickHouseStateRepository) UpsertMetrics(ctx context.Context, m models.SystemMetrics) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, total_tickers, processed_tickers, data_processed_mb, errors_count, last_error, updated_at, version)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`, r.metrics)
	_, err := r.db.ExecContext(ctx, q,
		uint32(m.TotalTracked),
		uint32(m.ProcessedCount),
		m.DataMB,
		uint32(m.ErrorCount),
		m.LastError,
		m.UpdatedAt.UTC(),
		r.clock.next(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert metrics: %w", models.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *ClickHouseStateRepository) LoadMetrics(ctx context.Context) (*models.SystemMetrics, error) {
	q := fmt.Sprintf(`SELECT total_tickers, processed_tickers, data_processed_mb, errors_count, last_error, updated_at
		FROM %s FINAL WHERE id = 1`, r.metrics)

	var (
		total, processed, errs uint32
		m                      models.SystemMetrics
		updated                time.Time
	)
	err := r.db.QueryRowContext(ctx, q).Scan(&total, &processed, &m.DataMB, &errs, &m.LastError, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load metrics: %w", models.ErrPersistenceFailure, err)
	}
	m.TotalTracked = int(total)
	m.ProcessedCount = int(processed)
	m.ErrorCount = int(errs)
	m.UpdatedAt = updated
	return &m, nil
}

func (r *ClickHouseStateRepository) Close() error {
	return r.client.Close()
}

func nullable[T any](valid bool, v T) *T {
	if !valid {
		return nil
	}
	return &v
}
