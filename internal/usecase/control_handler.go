package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"TickerPulse/internal/domain/models"
	drepo "TickerPulse/internal/domain/repository"
	pkgkafka "TickerPulse/pkg/kafka"
	applogger "TickerPulse/pkg/logger"
)

// EngineController is the write surface shared by the HTTP API and the control topic.
type EngineController interface {
	AddInstruments(ctx context.Context, symbols []string) ([]string, error)
	EnhanceUniverse(ctx context.Context) ([]string, error)
	SetFocus(region models.Region)
	SetMode(mode Mode)
}

var _ EngineController = (*Orchestrator)(nil)

const (
	ActionAddTickers = "add_tickers"
	ActionEnhance    = "enhance"
	ActionSetFocus   = "set_focus"
	ActionSetMode    = "set_mode"
)

// ControlCommand is one message on the control topic.
type ControlCommand struct {
	Action  string   `json:"action"`
	Tickers []string `json:"tickers,omitempty"`
	Region  string   `json:"region,omitempty"`
	Mode    string   `json:"mode,omitempty"`
}

// ControlHandler applies control commands consumed from Kafka.
type ControlHandler struct {
	topic   string
	engine  EngineController
	log     *applogger.Logger
	metrics drepo.Metrics
}

func NewControlHandler(topic string, engine EngineController, log *applogger.Logger, metrics drepo.Metrics) *ControlHandler {
	if log == nil {
		log = applogger.NewNop()
	}
	return &ControlHandler{topic: topic, engine: engine, log: log, metrics: metrics}
}

func (h *ControlHandler) Topic() string { return h.topic }

// Handle returns an error only for malformed payloads; unknown actions are logged and dropped.
func (h *ControlHandler) Handle(ctx context.Context, b []byte) error {
	var cmd ControlCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.recordError()
		return fmt.Errorf("decode control command: %w", err)
	}

	switch cmd.Action {
	case ActionAddTickers:
		added, err := h.engine.AddInstruments(ctx, cmd.Tickers)
		if err != nil {
			h.recordError()
			return fmt.Errorf("add tickers: %w", err)
		}
		h.log.Info("control: tickers added", applogger.Strings("tickers", added))
	case ActionEnhance:
		added, err := h.engine.EnhanceUniverse(ctx)
		if err != nil {
			h.recordError()
			return fmt.Errorf("enhance universe: %w", err)
		}
		h.log.Info("control: universe enhanced", applogger.Int("added", len(added)))
	case ActionSetFocus:
		region, err := models.ParseRegion(cmd.Region)
		if err != nil {
			h.recordError()
			return err
		}
		h.engine.SetFocus(region)
	case ActionSetMode:
		mode, err := ParseMode(cmd.Mode)
		if err != nil {
			h.recordError()
			return err
		}
		h.engine.SetMode(mode)
	default:
		h.log.Warn("control: unknown action", applogger.String("action", cmd.Action))
	}
	return nil
}

func (h *ControlHandler) recordError() {
	if h.metrics != nil {
		h.metrics.RecordError("control_command")
	}
}

var _ pkgkafka.MessageHandler = (*ControlHandler)(nil)
