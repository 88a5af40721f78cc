package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/indicator"
	"TickerPulse/internal/usecase"
	"TickerPulse/pkg/cache"
	xhttp "TickerPulse/pkg/http"
	applogger "TickerPulse/pkg/logger"
)

// StateReader is the read side of the state cache.
type StateReader interface {
	GetState(ticker string) (models.TickerState, bool)
	GetAllStates() []models.TickerState
	GetMetrics() models.SystemMetrics
	AddError(ctx context.Context, msg string)
}

// TickerLister lists the tracked universe.
type TickerLister interface {
	Snapshot() []string
}

// Engine is the orchestrator surface the API drives.
type Engine interface {
	usecase.EngineController
	Status() usecase.EngineStatus
}

type Option func(*Handler)

// WithResponseCache caches historical responses in c for ttl.
func WithResponseCache(c cache.Service, ttl time.Duration) Option {
	return func(h *Handler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// Handler serves the read API and the engine control routes.
type Handler struct {
	log      *applogger.Logger
	states   StateReader
	universe TickerLister
	series   usecase.SeriesSource
	engine   Engine
	cache    cache.Service
	cacheTTL time.Duration
	now      func() time.Time
}

var _ xhttp.Handler = (*Handler)(nil)

func NewHandler(log *applogger.Logger, states StateReader, universe TickerLister, series usecase.SeriesSource, engine Engine, opts ...Option) *Handler {
	if log == nil {
		log = applogger.NewNop()
	}
	h := &Handler{
		log:      log.Named("api"),
		states:   states,
		universe: universe,
		series:   series,
		engine:   engine,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/tickers", h.Tickers)
	e.POST("/tickers", h.AddTickers)
	e.POST("/tickers/enhance", h.Enhance)
	e.GET("/states", h.States)
	e.GET("/states/filter/:signal", h.FilterStates)
	e.GET("/system-metrics", h.SystemMetrics)
	e.GET("/live-price/:ticker", h.LivePrice)
	e.GET("/best-strategy/:ticker", h.BestStrategy)
	e.GET("/current-signal/:ticker", h.CurrentSignal)
	e.GET("/expected-move/:ticker", h.ExpectedMove)
	e.GET("/historical/:ticker", h.Historical)
	e.GET("/engine", h.EngineStatus)
	e.PUT("/engine/focus", h.SetFocus)
	e.PUT("/engine/mode", h.SetMode)
}

func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) Tickers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.universe.Snapshot())
}

func (h *Handler) States(c echo.Context) error {
	return xhttp.SuccessResponse(c, byTicker(h.states.GetAllStates(), nil))
}

func (h *Handler) FilterStates(c echo.Context) error {
	req := &models.SignalFilterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	label := models.SignalLabel(req.Signal)
	return xhttp.SuccessResponse(c, byTicker(h.states.GetAllStates(), func(s models.TickerState) bool {
		return s.LastSignal != nil && s.LastSignal.Label == label
	}))
}

func (h *Handler) SystemMetrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.states.GetMetrics())
}

func (h *Handler) LivePrice(c echo.Context) error {
	st, err := h.tickerState(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if st.LastPrice == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("ticker not found or no price data yet"))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker":    st.Ticker,
		"price":     *st.LastPrice,
		"timestamp": st.LastUpdate,
	})
}

func (h *Handler) BestStrategy(c echo.Context) error {
	st, err := h.tickerState(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if st.BestStrategy == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("best strategy not yet determined for ticker"))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker":        st.Ticker,
		"best_strategy": *st.BestStrategy,
	})
}

func (h *Handler) CurrentSignal(c echo.Context) error {
	st, err := h.tickerState(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if st.LastSignal == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no signal available for ticker"))
	}
	return xhttp.SuccessResponse(c, st.LastSignal)
}

func (h *Handler) ExpectedMove(c echo.Context) error {
	st, err := h.tickerState(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if st.ExpectedMove == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no forecast available for ticker"))
	}
	return xhttp.SuccessResponse(c, st.ExpectedMove)
}

// Historical returns the newest limit bars of the cached series.
func (h *Handler) Historical(c echo.Context) error {
	req := &models.HistoricalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := models.NormalizeSymbol(req.Ticker)
	tf := models.Timeframe(req.Timeframe)
	ctx := c.Request().Context()

	key := cache.Key("historical", ticker, string(tf), strconv.Itoa(req.Limit))
	if h.cache != nil {
		if bars, err := cache.GetJSON[[]models.Bar](ctx, h.cache, key); err == nil {
			return xhttp.SuccessResponse(c, bars)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			h.log.Debug("historical cache read failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	series, err := h.series.Get(ctx, ticker, tf)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Debug("historical request abandoned", applogger.String("ticker", ticker), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("historical lookup cancelled").WithError(err))
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("historical data not found").WithError(err))
	case err != nil:
		h.states.AddError(ctx, fmt.Sprintf("historical api error: %v", err))
		h.log.Error("historical lookup failed", applogger.String("ticker", ticker), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("historical lookup failed").WithError(err))
	}

	bars := tail(finiteBars(series.Bars), req.Limit)
	if h.cache != nil {
		if err := cache.SetJSON(ctx, h.cache, key, bars, h.cacheTTL); err != nil {
			h.log.Debug("historical cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, bars)
}

func (h *Handler) EngineStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Status())
}

func (h *Handler) AddTickers(c echo.Context) error {
	req := &models.AddTickersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	added, err := h.engine.AddInstruments(c.Request().Context(), req.Tickers)
	switch {
	case errors.Is(err, models.ErrInvalidInstruments):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("no valid tickers provided").WithError(err))
	case err != nil:
		// the universe grew in memory even if it could not be persisted
		h.log.Warn("add tickers persisted partially", applogger.Error(err))
	}
	if added == nil {
		added = []string{}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"added": added})
}

func (h *Handler) Enhance(c echo.Context) error {
	added, err := h.engine.EnhanceUniverse(c.Request().Context())
	if err != nil {
		h.log.Warn("enhance failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("enhance failed").WithError(err))
	}
	if added == nil {
		added = []string{}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"added": added})
}

func (h *Handler) SetFocus(c echo.Context) error {
	req := &models.FocusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	region, err := models.ParseRegion(req.Region)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.engine.SetFocus(region)
	return xhttp.SuccessResponse(c, h.engine.Status())
}

func (h *Handler) SetMode(c echo.Context) error {
	req := &models.ModeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	mode, err := usecase.ParseMode(req.Mode)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.engine.SetMode(mode)
	return xhttp.SuccessResponse(c, h.engine.Status())
}

// tickerState looks up the path ticker and maps a miss to a 404.
func (h *Handler) tickerState(c echo.Context) (models.TickerState, error) {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return models.TickerState{}, xhttp.BadRequestError("invalid ticker").WithParam("errors", verr)
	}
	st, ok := h.states.GetState(models.NormalizeSymbol(req.Ticker))
	if !ok {
		return models.TickerState{}, xhttp.NotFoundErrorf("ticker %s not found", req.Ticker).WithError(models.ErrUnknownInstrument)
	}
	return st, nil
}

func byTicker(states []models.TickerState, keep func(models.TickerState) bool) map[string]models.TickerState {
	out := make(map[string]models.TickerState, len(states))
	for _, s := range states {
		if keep == nil || keep(s) {
			out[s.Ticker] = s
		}
	}
	return out
}

func finiteBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if indicator.Valid(b.Open) && indicator.Valid(b.High) && indicator.Valid(b.Low) &&
			indicator.Valid(b.Close) && indicator.Valid(b.Volume) {
			out = append(out, b)
		}
	}
	return out
}

func tail(bars []models.Bar, n int) []models.Bar {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
