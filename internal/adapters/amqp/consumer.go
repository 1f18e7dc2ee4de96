package amqpad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// ErrPermanent marks a notice that will never be delivered; it is dropped instead of requeued.
var ErrPermanent = errors.New("permanent delivery failure")

type Consumer struct {
	url      string
	queue    string
	workers  int
	timeout  time.Duration
	notifier domain.Notifier
	log      zerolog.Logger
}

func NewConsumer(url, queue string, workers int, timeout time.Duration, n domain.Notifier, log zerolog.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Consumer{url: url, queue: queue, workers: workers, timeout: timeout, notifier: n, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with backoff when the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("amqp dial failed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.workers*2, 0, false); err != nil {
		c.log.Warn().Err(err).Msg("set QoS failed")
	}
	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	sem := semaphore.NewWeighted(int64(c.workers))
	defer func() {
		// drain in-flight workers before the channel closes
		_ = sem.Acquire(context.Background(), int64(c.workers))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				_ = d.Nack(false, true)
				return err
			}
			go func() {
				defer sem.Release(1)
				c.Handle(d)
			}()
		}
	}
}

// Handle delivers one message and settles it: ack on success, drop on permanent failure,
// requeue a transient failure once.
func (c *Consumer) Handle(d amqp.Delivery) {
	var n domain.BookingNotice
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.log.Error().Err(err).Str("message_id", d.MessageId).Msg("undecodable notice dropped")
		observability.ObserveNotification("dropped")
		_ = d.Nack(false, false)
		return
	}
	if n.MessageID == "" {
		n.MessageID = d.MessageId
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	err := c.notifier.NotifyBooking(ctx, n)
	switch {
	case err == nil:
		observability.ObserveNotification("sent")
		_ = d.Ack(false)
	case errors.Is(err, ErrPermanent) || d.Redelivered:
		observability.ObserveNotification("failed")
		c.log.Error().Err(err).Str("message_id", n.MessageID).Int64("booking_id", n.BookingID).Msg("notice dropped")
		_ = d.Nack(false, false)
	default:
		observability.ObserveNotification("retried")
		c.log.Warn().Err(err).Str("message_id", n.MessageID).Int64("booking_id", n.BookingID).Msg("notice requeued")
		_ = d.Nack(false, true)
	}
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
