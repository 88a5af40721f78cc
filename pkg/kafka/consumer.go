package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "TickerPulse/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics in a consumer group. Each reader handles
// its messages in order and commits after the handler succeeds or retries
// are exhausted.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	readers  []*kafka.Reader

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		Logger:      applogger.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	initConsumerMetrics()
	return &Consumer{
		cfg:      cfg,
		log:      cfg.Logger,
		handlers: make(map[string]MessageHandler),
	}, nil
}

// RegisterHandler registers a handler; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start launches the readers. It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for topic, handler := range c.handlers {
		for i := 0; i < c.cfg.WorkerCount; i++ {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers: c.cfg.Brokers,
				Topic:   topic,
				GroupID: c.cfg.GroupID,
			})
			c.readers = append(c.readers, reader)

			c.wg.Add(1)
			go c.consume(ctx, reader, handler)
		}
		c.log.Info("kafka consumer started", applogger.String("topic", topic), applogger.Int("workers", c.cfg.WorkerCount))
	}
	return nil
}

// Stop cancels the readers and waits for in-flight handlers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for _, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("close kafka reader", applogger.String("topic", r.Config().Topic), applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	defer c.wg.Done()
	topic := handler.Topic()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}

		start := time.Now()
		err = c.handleWithRetry(ctx, handler, msg.Value)
		result := "ok"
		if err != nil {
			result = "error"
			c.log.Error("kafka handler failed, skipping message",
				applogger.String("topic", topic),
				applogger.Int64("offset", msg.Offset),
				applogger.Error(err))
		}
		consumerHandled.WithLabelValues(topic, result).Inc()
		consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())

		if err := reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			c.log.Warn("kafka commit failed", applogger.String("topic", topic), applogger.Error(err))
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, data []byte) (err error) {
	for attempt := 1; ; attempt++ {
		err = safeHandle(ctx, handler, data)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return err
		}
	}
}

func safeHandle(ctx context.Context, handler MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, data)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}

var (
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "tickerpulse_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "tickerpulse_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
