// Package queue moves email jobs from the API to the worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPermanent marks a job that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

type Publisher interface {
	Publish(ctx context.Context, job models.EmailJob) error
}

type Handler func(ctx context.Context, job models.EmailJob) error

// BindingKey matches every email routing key.
const BindingKey = "email.*"

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPPublisher publishes email jobs, reopening its connection after the
// broker closes it.
type AMQPPublisher struct {
	mu       sync.Mutex
	exchange string
	open     func() (channel, io.Closer, error)
	ch       channel
	conn     io.Closer
}

// NewAMQPPublisher connects and declares the job queue, so jobs published
// before any worker has started are kept.
func NewAMQPPublisher(cfg config.RabbitMQConfig) (*AMQPPublisher, error) {
	return newPublisher(cfg.Exchange, func() (channel, io.Closer, error) { return openChannel(cfg) })
}

func newPublisher(exchange string, open func() (channel, io.Closer, error)) (*AMQPPublisher, error) {
	p := &AMQPPublisher{exchange: exchange, open: open}
	if err := p.ensure(); err != nil {
		return nil, err
	}
	return p, nil
}

func openChannel(cfg config.RabbitMQConfig) (channel, io.Closer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// ensure must be called with p.mu held.
func (p *AMQPPublisher) ensure() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	ch, conn, err := p.open()
	if err != nil {
		return err
	}
	p.ch, p.conn = ch, conn
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, job models.EmailJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         b,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensure(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, job.RoutingKey(), false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// closed between the check and the publish
		p.reset()
		if err := p.ensure(); err != nil {
			return err
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, job.RoutingKey(), false, false, msg)
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// declareTopology declares the job exchange and queue with its dead-letter
// exchange and queue. Publisher and consumer both run it.
func declareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.ExchangeDeclare(cfg.DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx failed: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq failed: %w", err)
	}
	if err := ch.QueueBind(cfg.DeadLetterQueue, "#", cfg.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dlq failed: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s failed: %w", cfg.Exchange, err)
	}
	args := amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}
	if err := ch.QueueBind(q.Name, BindingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue key=%s failed: %w", BindingKey, err)
	}
	return nil
}

// AMQPConsumer reads email jobs with manual acks. Jobs that fail twice, or
// fail permanently, are dead-lettered.
type AMQPConsumer struct {
	cfg  config.RabbitMQConfig
	log  *zap.Logger
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPConsumer(cfg config.RabbitMQConfig, log *zap.Logger) (*AMQPConsumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel failed: %w", err)
	}
	c := &AMQPConsumer{cfg: cfg, log: log, conn: conn, ch: ch}
	if err := c.declare(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *AMQPConsumer) declare() error {
	if err := declareTopology(c.ch, c.cfg); err != nil {
		return err
	}
	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 8
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos failed: %w", err)
	}
	return nil
}

// Run blocks until ctx is cancelled or the delivery channel closes.
func (c *AMQPConsumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "kol-worker", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d, h)
		}
	}
}

func (c *AMQPConsumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	var job models.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.log.Error("undecodable email job, dead-lettering", zap.String("key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	err := h(ctx, job)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPermanent) || d.Redelivered:
		c.log.Error("email job failed, dead-lettering",
			zap.String("job", job.ID), zap.String("kind", string(job.Kind)), zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.log.Warn("email job failed, requeueing", zap.String("job", job.ID), zap.Error(err))
		_ = d.Nack(false, true)
	}
}

func (c *AMQPConsumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Inline runs jobs inside the publishing process. It is used when RabbitMQ is
// not configured.
type Inline struct {
	handler Handler
	log     *zap.Logger
	async   bool
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInline delivers jobs through h. With async set, Publish returns before the job runs.
func NewInline(h Handler, log *zap.Logger, async bool) *Inline {
	return &Inline{handler: h, log: log, async: async, timeout: time.Minute}
}

func (q *Inline) Publish(ctx context.Context, job models.EmailJob) error {
	if !q.async {
		return q.handler(ctx, job)
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
		defer cancel()
		if err := q.handler(jobCtx, job); err != nil {
			q.log.Error("in-process email job failed", zap.String("job", job.ID), zap.String("kind", string(job.Kind)), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every job published so far has run.
func (q *Inline) Wait() { q.wg.Wait() }
