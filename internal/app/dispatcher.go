package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// Dispatcher hands booking notices to the notifier off the request path.
// At most maxInFlight deliveries run at once; extra notices are dropped, never queued.
type Dispatcher struct {
	n       domain.Notifier
	sem     *semaphore.Weighted
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(n domain.Notifier, maxInFlight int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{n: n, sem: semaphore.NewWeighted(int64(maxInFlight)), timeout: timeout, log: log}
}

// Dispatch never blocks and never reports failure to the caller.
func (d *Dispatcher) Dispatch(n domain.BookingNotice) {
	if d == nil || d.n == nil {
		return
	}
	if n.MessageID == "" {
		n.MessageID = uuid.NewString()
	}
	if !d.sem.TryAcquire(1) {
		observability.ObserveNotification("dropped")
		d.log.Warn().Int64("booking_id", n.BookingID).Msg("notification dropped: dispatcher saturated")
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)

		// detached from the request: the booking is already committed
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.n.NotifyBooking(ctx, n); err != nil {
			observability.ObserveNotification("failed")
			d.log.Warn().Err(err).
				Int64("booking_id", n.BookingID).
				Str("message_id", n.MessageID).
				Msg("booking notification failed")
			return
		}
		observability.ObserveNotification("sent")
		d.log.Debug().Int64("booking_id", n.BookingID).Str("message_id", n.MessageID).Msg("booking notification sent")
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
