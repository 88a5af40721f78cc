package models

// Performance is the backtest result of one strategy on one series.
type Performance struct {
	Strategy         string  `json:"strategy"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TotalTrades      int     `json:"total_trades"`
	CumulativeReturn float64 `json:"cumulative_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Confidence       float64 `json:"confidence"`
	Score            float64 `json:"score"`
}
