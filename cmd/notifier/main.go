package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	amqpad "hotel_booking/internal/adapters/amqp"
	"hotel_booking/internal/adapters/mailer"
	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
)

// mailNotifier marks mail API refusals as permanent so the consumer drops them.
type mailNotifier struct{ c *mailer.Client }

func (m mailNotifier) NotifyBooking(ctx context.Context, n domain.BookingNotice) error {
	err := m.c.NotifyBooking(ctx, n)
	if errors.Is(err, mailer.ErrRejected) || errors.Is(err, mailer.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", amqpad.ErrPermanent, err)
	}
	return err
}

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "notifier")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	client, err := mailer.New(cfg.MailBase, cfg.MailKey, cfg.MailRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mail client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("queue", cfg.NotifyQueue).
		Int("workers", cfg.NotifyWorkers).
		Msg("notifier starting")

	c := amqpad.NewConsumer(cfg.AMQPURL, cfg.NotifyQueue, cfg.NotifyWorkers, cfg.NotifyTimeout, mailNotifier{client}, log.Logger)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consumer stopped")
	}
	log.Info().Msg("notifier stopped")
}
