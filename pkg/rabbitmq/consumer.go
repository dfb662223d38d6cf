package rabbitmq

import (
	"captains-log/config"
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxTries    = 5
	DefaultMaxInterval = 10 * time.Second
)

type Handler[T any] func(ctx context.Context, msg amqp.Delivery, dependencies T) error

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    Handler[T]
	numWorkers int
	retry      func() backoff.BackOff
	maxTries   uint
}

type Option[T any] func(*consumer[T])

// WithRetry overrides the backoff policy applied to a failing delivery.
func WithRetry[T any](newBackOff func() backoff.BackOff, maxTries uint) Option[T] {
	return func(c *consumer[T]) {
		c.retry = newBackOff
		c.maxTries = maxTries
	}
}

func DeadLetterExchange(cfg *config.RabbitMQ) string {
	return cfg.ExchangeName + "_dlx"
}

func DeadLetterQueue(cfg *config.RabbitMQ) string {
	return cfg.QueueName + "_dlq"
}

func deadLetterRoutingKey(cfg *config.RabbitMQ) string {
	return "dlq." + cfg.RoutingKey
}

// declare sets up the work queue and its dead letter queue.
func declare(ch *amqp.Channel, cfg *config.RabbitMQ) error {
	if err := ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange(cfg), cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}
	dlq, err := ch.QueueDeclare(DeadLetterQueue(cfg), true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(dlq.Name, deadLetterRoutingKey(cfg), DeadLetterExchange(cfg), false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange(cfg),
		"x-dead-letter-routing-key": deadLetterRoutingKey(cfg),
	})
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, cfg.RoutingKey, cfg.ExchangeName, false, nil)
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declare(ch, c.cfg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", c.cfg.QueueName).Msg("failed to declare topology")
		return err
	}

	if err := ch.Qos(c.numWorkers, 0, false); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", c.cfg.QueueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", c.cfg.QueueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", c.cfg.QueueName).
		Str("exchange", c.cfg.ExchangeName).
		Str("routing_key", c.cfg.RoutingKey).
		Int("workers", c.numWorkers).
		Msg("consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				c.process(ctx, workerId, msg, dependencies)
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// process retries the handler and acks on success. Exhausted or permanent
// failures are nacked without requeue so the broker dead-letters them.
func (c consumer[T]) process(ctx context.Context, workerId int, msg amqp.Delivery, dependencies T) {
	operation := func() (struct{}, error) {
		return struct{}{}, c.handler(ctx, msg, dependencies)
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(c.retry()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message after all retries")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to send to DLQ")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler Handler[T],
	opts ...Option[T],
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	c := &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
		retry: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = DefaultMaxInterval
			return bo
		},
		maxTries: DefaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
