package usecase

import (
	"context"
	"errors"
	"fmt"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	"TickerPulse/internal/indicator"
	"TickerPulse/internal/state"
	"TickerPulse/internal/strategy"
	applogger "TickerPulse/pkg/logger"
)

// Selector backtests every eligible strategy per instrument and records the best one.
type Selector struct {
	data      SeriesSource
	catalog   *strategy.Catalog
	state     *state.Cache
	log       *applogger.Logger
	metrics   drepo.Metrics
	timeframe models.Timeframe
	logEvery  int
}

func NewSelector(data SeriesSource, catalog *strategy.Catalog, st *state.Cache, log *applogger.Logger, metrics drepo.Metrics, tf models.Timeframe, logEvery int) *Selector {
	if log == nil {
		log = applogger.NewNop()
	}
	if tf == "" {
		tf = models.TF1h
	}
	return &Selector{
		data:      data,
		catalog:   catalog,
		state:     st,
		log:       log,
		metrics:   metrics,
		timeframe: tf,
		logEvery:  logEvery,
	}
}

// SelectBest ranks strategies for each symbol. Instruments without an eligible,
// evaluable strategy are skipped and keep their previous selection.
func (s *Selector) SelectBest(ctx context.Context, symbols []string) BatchReport {
	var report BatchReport
	total := len(symbols)
	for i, sym := range symbols {
		if ctx.Err() != nil {
			return report
		}
		if s.logEvery > 0 && (i+1)%s.logEvery == 0 {
			s.log.Info("ranking progress", applogger.Int("evaluated", i+1), applogger.Int("total", total))
		}

		perf, err := s.SelectOne(ctx, sym)
		s.state.IncrementProcessed()
		switch {
		case err == nil:
			s.log.Debug("best strategy",
				applogger.String("ticker", sym),
				applogger.String("strategy", perf.Strategy),
				applogger.Float64("score", perf.Score),
			)
			report.OK(sym)
		case errors.Is(err, models.ErrEligibilityMismatch), errors.Is(err, models.ErrInsufficientData):
			report.Skip(sym, err)
		case errors.Is(err, models.ErrDataUnavailable):
			// already recorded by the data cache
			report.Fail(sym, err)
		default:
			s.state.AddError(ctx, fmt.Sprintf("select %s: %v", sym, err))
			if s.metrics != nil {
				s.metrics.RecordError("selector")
			}
			report.Fail(sym, err)
		}
	}
	return report
}

// SelectOne picks the strictly highest-scoring eligible strategy and stores it.
func (s *Selector) SelectOne(ctx context.Context, symbol string) (models.Performance, error) {
	series, err := s.data.Get(ctx, symbol, s.timeframe)
	if err != nil {
		return models.Performance{}, err
	}
	price, ok := series.LastClose()
	if !ok {
		return models.Performance{}, fmt.Errorf("select %s: no valid close: %w", symbol, models.ErrDataUnavailable)
	}

	best, err := s.rank(series, price)
	if err != nil {
		return models.Performance{}, fmt.Errorf("select %s at %.4f: %w", symbol, price, err)
	}
	if err := s.state.UpdateStrategy(ctx, symbol, best.Strategy); err != nil {
		return models.Performance{}, err
	}
	return best, nil
}

func (s *Selector) rank(series *models.Series, price float64) (models.Performance, error) {
	var (
		best     models.Performance
		found    bool
		eligible int
		lastErr  error
	)
	for _, st := range s.catalog.All() {
		if !strategy.Eligible(st.Tier(), price) {
			continue
		}
		eligible++
		perf, err := Evaluate(st, series)
		if err != nil {
			lastErr = err
			continue
		}
		if !indicator.Valid(perf.Score) {
			continue
		}
		if !found || perf.Score > best.Score {
			best, found = perf, true
		}
	}

	switch {
	case found:
		return best, nil
	case eligible == 0:
		return models.Performance{}, models.ErrEligibilityMismatch
	case lastErr != nil:
		return models.Performance{}, lastErr
	default:
		return models.Performance{}, models.ErrNoStrategy
	}
}
