package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"TickerPulse/internal/domain/models"
)

// stateRow is the persisted layout of a TickerState. Signal and forecast are JSON text.
type stateRow struct {
	Ticker       string
	LastPrice    sql.NullFloat64
	LastUpdate   sql.NullTime
	BestStrategy sql.NullString
	LastSignal   string
	ExpectedMove string
}

func rowFromState(s models.TickerState) (stateRow, error) {
	row := stateRow{Ticker: s.Ticker}
	if s.LastPrice != nil {
		row.LastPrice = sql.NullFloat64{Float64: *s.LastPrice, Valid: true}
	}
	if s.LastUpdate != nil {
		row.LastUpdate = sql.NullTime{Time: s.LastUpdate.UTC(), Valid: true}
	}
	if s.BestStrategy != nil {
		row.BestStrategy = sql.NullString{String: *s.BestStrategy, Valid: true}
	}
	if s.LastSignal != nil {
		b, err := json.Marshal(s.LastSignal)
		if err != nil {
			return row, fmt.Errorf("encode signal: %w", err)
		}
		row.LastSignal = string(b)
	}
	if s.ExpectedMove != nil {
		b, err := json.Marshal(s.ExpectedMove)
		if err != nil {
			return row, fmt.Errorf("encode forecast: %w", err)
		}
		row.ExpectedMove = string(b)
	}
	return row, nil
}

func (row stateRow) toState() (models.TickerState, error) {
	s := models.TickerState{Ticker: row.Ticker}
	if row.LastPrice.Valid {
		v := row.LastPrice.Float64
		s.LastPrice = &v
	}
	if row.LastUpdate.Valid {
		v := row.LastUpdate.Time.UTC()
		s.LastUpdate = &v
	}
	if row.BestStrategy.Valid && row.BestStrategy.String != "" {
		v := row.BestStrategy.String
		s.BestStrategy = &v
	}
	if row.LastSignal != "" {
		var sig models.Signal
		if err := json.Unmarshal([]byte(row.LastSignal), &sig); err != nil {
			return s, fmt.Errorf("decode signal of %s: %w", row.Ticker, err)
		}
		s.LastSignal = &sig
	}
	if row.ExpectedMove != "" {
		var f models.Forecast
		if err := json.Unmarshal([]byte(row.ExpectedMove), &f); err != nil {
			return s, fmt.Errorf("decode forecast of %s: %w", row.Ticker, err)
		}
		s.ExpectedMove = &f
	}
	return s, nil
}

// versionClock hands out strictly increasing row versions.
type versionClock struct {
	last atomic.Int64
}

func (c *versionClock) next() uint64 {
	for {
		prev := c.last.Load()
		now := time.Now().UnixNano()
		if now <= prev {
			now = prev + 1
		}
		if c.last.CompareAndSwap(prev, now) {
			return uint64(now)
		}
	}
}
