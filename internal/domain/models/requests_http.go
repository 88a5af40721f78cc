package models

// Requests for the read and write API. Defaults and validation run after binding.

type TickerRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required,max=32"`
}

type SignalFilterRequest struct {
	Signal string `param:"signal" json:"signal" validate:"oneof=bullish bearish neutral"`
}

type HistoricalRequest struct {
	Ticker    string `param:"ticker" json:"ticker" validate:"required,max=32"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 1d"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type AddTickersRequest struct {
	Tickers []string `json:"tickers" validate:"required,min=1,max=500,dive,required,max=32"`
}

type FocusRequest struct {
	Region string `json:"region" validate:"required,oneof=US IN CRYPTO us in crypto"`
}

type ModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=conservative balanced aggressive"`
}
