package models

import "time"

// PriceRange is an expected [min, max] price band.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Forecast is the expected move derived from the current signal and ATR.
type Forecast struct {
	Price         float64     `json:"price"`
	Bias          SignalLabel `json:"bias"`
	Confidence    float64     `json:"confidence"`
	ExpectedRange PriceRange  `json:"expected_range"`
	// Invalidation is zero for a neutral bias.
	Invalidation  float64   `json:"invalidation_point"`
	VolatilityATR float64   `json:"volatility_atr"`
	Timestamp     time.Time `json:"timestamp"`
}

// TickerState is the latest known view of one instrument.
type TickerState struct {
	Ticker       string     `json:"ticker"`
	LastPrice    *float64   `json:"last_price"`
	LastUpdate   *time.Time `json:"last_update"`
	BestStrategy *string    `json:"best_strategy"`
	LastSignal   *Signal    `json:"last_signal"`
	ExpectedMove *Forecast  `json:"expected_move"`
}

// Clone returns a deep copy.
func (s TickerState) Clone() TickerState {
	out := TickerState{Ticker: s.Ticker}
	if s.LastPrice != nil {
		v := *s.LastPrice
		out.LastPrice = &v
	}
	if s.LastUpdate != nil {
		v := *s.LastUpdate
		out.LastUpdate = &v
	}
	if s.BestStrategy != nil {
		v := *s.BestStrategy
		out.BestStrategy = &v
	}
	if s.LastSignal != nil {
		v := *s.LastSignal
		v.Indicators = v.Indicators.Sanitized()
		out.LastSignal = &v
	}
	if s.ExpectedMove != nil {
		v := *s.ExpectedMove
		out.ExpectedMove = &v
	}
	return out
}

// SystemMetrics aggregates engine progress and health.
type SystemMetrics struct {
	TotalTracked   int       `json:"total_tickers"`
	ProcessedCount int       `json:"processed_tickers"`
	IsSyncing      bool      `json:"is_syncing"`
	BytesProcessed int64     `json:"bytes_processed"`
	DataMB         float64   `json:"data_processed_mb"`
	ErrorCount     int       `json:"errors_count"`
	LastError      string    `json:"last_error"`
	StartTime      time.Time `json:"start_time"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StateField names the part of a TickerState a change touched.
type StateField string

const (
	FieldPrice    StateField = "price"
	FieldStrategy StateField = "strategy"
	FieldSignal   StateField = "signal"
	FieldForecast StateField = "forecast"
)

// StateChange is emitted after a TickerState mutation.
type StateChange struct {
	Field StateField  `json:"field"`
	State TickerState `json:"state"`
	At    time.Time   `json:"at"`
}
