package repository

import (
	"context"
	"sync"
	"time"

	"TickerPulse/internal/domain/models"
	"TickerPulse/internal/domain/repository"
	applogger "TickerPulse/pkg/logger"
	pkgkafka "TickerPulse/pkg/kafka"
)

// StateEvent is the payload published for signal and forecast changes.
type StateEvent struct {
	Type     models.StateField `json:"type"`
	Ticker   string            `json:"ticker"`
	At       time.Time         `json:"at"`
	Strategy *string           `json:"strategy,omitempty"`
	Signal   *models.Signal    `json:"signal,omitempty"`
	Forecast *models.Forecast  `json:"forecast,omitempty"`
}

type eventSink interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaEventPublisher forwards signal and forecast changes to a topic keyed by ticker.
// OnStateChange never blocks; events beyond the buffer are dropped and logged.
type KafkaEventPublisher struct {
	sink  eventSink
	topic string
	log   *applogger.Logger
	queue chan StateEvent
	wg    sync.WaitGroup
	once  sync.Once
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string, log *applogger.Logger) *KafkaEventPublisher {
	return newEventPublisher(producer, topic, log, 1024)
}

func newEventPublisher(sink eventSink, topic string, log *applogger.Logger, buffer int) *KafkaEventPublisher {
	p := &KafkaEventPublisher{
		sink:  sink,
		topic: topic,
		log:   log,
		queue: make(chan StateEvent, buffer),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

var _ repository.StateListener = (*KafkaEventPublisher)(nil)

func (p *KafkaEventPublisher) OnStateChange(change models.StateChange) {
	ev := StateEvent{Type: change.Field, Ticker: change.State.Ticker, At: change.At, Strategy: change.State.BestStrategy}
	switch change.Field {
	case models.FieldSignal:
		ev.Signal = change.State.LastSignal
	case models.FieldForecast:
		ev.Forecast = change.State.ExpectedMove
	default:
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.log.Warn("event queue full, dropping", applogger.String("ticker", ev.Ticker), applogger.String("type", string(ev.Type)))
	}
}

// Close drains queued events and stops the publisher.
func (p *KafkaEventPublisher) Close() error {
	p.once.Do(func() { close(p.queue) })
	p.wg.Wait()
	return nil
}

func (p *KafkaEventPublisher) run() {
	defer p.wg.Done()
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.sink.Publish(ctx, p.topic, []byte(ev.Ticker), ev); err != nil {
			p.log.Warn("publish state event", applogger.String("ticker", ev.Ticker), applogger.Error(err))
		}
		cancel()
	}
}
