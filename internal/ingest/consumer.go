package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/config"
	"github.com/spec-kit/chat-escalation/internal/domain"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

const (
	handlerTimeout = 10 * time.Second
	prefetchCount  = 10
	maxDialDelay   = 60 * time.Second
)

// MessageSink receives chat messages extracted from broker events.
type MessageSink interface {
	OnInboundMessage(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error
	OnOutboundMessage(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error
}

// ConnectionSink receives tenant connection-status transitions.
type ConnectionSink interface {
	Transition(ctx context.Context, tenantID string, newState domain.ConnectionStatus, message *string, occurredAt time.Time) (domain.ConnectionStatus, error)
}

type handlerFunc func(ctx context.Context, body []byte) error

// Consumer binds a queue to the chat-gateway exchange and dispatches
// deliveries to the escalation engine and session manager through a small
// worker pool.
type Consumer struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	cfg      config.AMQPConfig
	logger   *zap.Logger
	handlers map[string]handlerFunc
	msgChan  chan amqp091.Delivery
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// ConsumerDependencies bundles collaborators for the consumer.
type ConsumerDependencies struct {
	Config   config.AMQPConfig
	Messages MessageSink
	Sessions ConnectionSink
	Logger   *zap.Logger
}

// NewConsumer dials the broker with retries and declares the exchange.
// Start must be called before deliveries flow.
func NewConsumer(ctx context.Context, deps ConsumerDependencies) (*Consumer, error) {
	conn, err := dialWithRetry(ctx, deps.Config, deps.Logger)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(deps.Config.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	c := &Consumer{
		conn:    conn,
		ch:      ch,
		cfg:     deps.Config,
		logger:  deps.Logger,
		msgChan: make(chan amqp091.Delivery, deps.Config.Workers*4),
		done:    make(chan struct{}),
	}
	c.handlers = map[string]handlerFunc{
		RoutingKeyInbound: func(ctx context.Context, body []byte) error {
			return handleMessage(ctx, body, deps.Messages.OnInboundMessage)
		},
		RoutingKeyOutbound: func(ctx context.Context, body []byte) error {
			return handleMessage(ctx, body, deps.Messages.OnOutboundMessage)
		},
		RoutingKeyConnection: func(ctx context.Context, body []byte) error {
			return handleConnection(ctx, body, deps.Sessions)
		},
	}
	return c, nil
}

// Start declares the queue, binds the routing keys and launches the worker
// pool. Subsequent calls are no-ops.
func (c *Consumer) Start() error {
	var startErr error
	c.once.Do(func() {
		if err := c.setupQueue(); err != nil {
			startErr = err
			return
		}
		for i := 0; i < c.cfg.Workers; i++ {
			c.wg.Add(1)
			go c.workerLoop()
		}
		c.logger.Info("event consumer started",
			zap.String("queue", c.cfg.Queue),
			zap.Int("workers", c.cfg.Workers))
	})
	return startErr
}

func (c *Consumer) setupQueue() error {
	if err := c.ch.Qos(prefetchCount, 0, false); err != nil {
		return err
	}
	q, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	for key := range c.handlers {
		if err := c.ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return err
		}
	}
	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go c.pump(msgs)
	return nil
}

// pump moves deliveries into the worker channel. msgChan is closed on every
// exit path so the workers always unwind and Close never hangs on them.
func (c *Consumer) pump(msgs <-chan amqp091.Delivery) {
	defer close(c.msgChan)
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				// The broker dropped the connection out from under us.
				// TODO: redial and resubscribe instead of draining the pool.
				c.logger.Error("broker delivery channel closed, stopping ingestion")
				return
			}
			c.msgChan <- msg
		}
	}
}

func (c *Consumer) workerLoop() {
	defer c.wg.Done()
	for msg := range c.msgChan {
		handler, ok := c.handlers[msg.RoutingKey]
		if !ok {
			c.logger.Warn("no handler for routing key", zap.String("key", msg.RoutingKey))
			_ = msg.Nack(false, false)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err := handler(ctx, msg.Body)
		cancel()
		switch {
		case err == nil:
			_ = msg.Ack(false)
		case isPoison(err):
			// Redelivery cannot fix a malformed or outdated event.
			c.logger.Warn("dropping event",
				zap.String("key", msg.RoutingKey),
				zap.Error(err))
			_ = msg.Ack(false)
		default:
			c.logger.Error("event handling failed",
				zap.String("key", msg.RoutingKey),
				zap.Error(err))
			_ = msg.Nack(false, true)
		}
	}
}

// Close stops the delivery pump, waits for in-flight handlers and tears down
// the connection.
func (c *Consumer) Close() error {
	close(c.done)
	c.wg.Wait()
	_ = c.ch.Close()
	return c.conn.Close()
}

// isPoison reports whether the error is permanent for this delivery.
func isPoison(err error) bool {
	return apperrors.IsCode(err, "VALIDATION_FAILED") ||
		apperrors.IsCode(err, "STALE_TRANSITION") ||
		apperrors.IsCode(err, "NOT_FOUND")
}

func handleMessage(ctx context.Context, body []byte, sink func(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error) error {
	var event MessageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.NewValidationError("malformed message event", map[string]any{"error": err.Error()})
	}
	if err := event.Validate(); err != nil {
		return err
	}
	return sink(ctx, event.TenantID, event.CounterpartID, event.Text, event.OccurredAt)
}

func handleConnection(ctx context.Context, body []byte, sessions ConnectionSink) error {
	var event ConnectionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.NewValidationError("malformed connection event", map[string]any{"error": err.Error()})
	}
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := sessions.Transition(ctx, event.TenantID, domain.ConnectionStatus(event.Status), event.Message, event.OccurredAt)
	return err
}

// dialWithRetry connects with exponential backoff, honoring ctx cancellation.
func dialWithRetry(ctx context.Context, cfg config.AMQPConfig, logger *zap.Logger) (*amqp091.Connection, error) {
	delay := time.Duration(cfg.DialDelaySec) * time.Second
	var lastErr error

	for attempt := 1; attempt <= cfg.DialAttempts; attempt++ {
		conn, err := amqp091.Dial(cfg.URL)
		if err == nil {
			if attempt > 1 {
				logger.Info("broker connected", zap.Int("attempt", attempt))
			}
			return conn, nil
		}
		lastErr = err

		sleep := delay * time.Duration(math.Pow(2, float64(attempt-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		logger.Warn("broker dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", sleep),
			zap.Error(err))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("broker dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", cfg.DialAttempts, lastErr)
}
