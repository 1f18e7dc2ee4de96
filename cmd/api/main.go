package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	amqpad "hotel_booking/internal/adapters/amqp"
	server "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/adapters/mailer"
	"hotel_booking/internal/adapters/observability"
	redisad "hotel_booking/internal/adapters/redis"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	"hotel_booking/internal/storage/memory"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "api")
	logger := log.Logger

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// storage
	var store domain.Store
	switch cfg.StorageDriver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		store = memory.New()
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		store = mysqlrepo.New(db)
	default:
		log.Fatal().Str("driver", cfg.StorageDriver).Msg("unknown STORAGE_DRIVER")
	}

	// report cache is optional
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; occupancy reports are not cached")
		} else {
			cache = rc
		}
		cancel()
	}

	// notifications
	var notifier domain.Notifier
	switch cfg.NotifyDriver {
	case "amqp":
		pub := amqpad.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue, logger)
		defer pub.Close()
		notifier = pub
	case "http":
		mc, err := mailer.New(cfg.MailBase, cfg.MailKey, cfg.MailRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize mail client")
		}
		notifier = mc
	case "none", "":
		log.Info().Msg("booking notifications disabled")
	default:
		log.Fatal().Str("driver", cfg.NotifyDriver).Msg("unknown NOTIFY_DRIVER")
	}
	disp := app.NewDispatcher(notifier, cfg.NotifyWorkers, cfg.NotifyTimeout, logger)

	// services
	reports := app.NewOccupancyService(store, cache, cfg.ReportCacheTTL, logger, nil)
	h := &server.Handlers{
		Bookings: app.NewBookingService(store, disp, reports, logger, app.BookingConfig{BcryptCost: cfg.BcryptCost}),
		Avail:    app.NewAvailabilityService(store),
		Reports:  reports,
		Rooms:    app.NewRoomService(store, reports, logger),
		Log:      logger,
	}

	// http
	srv := server.New(logger, server.NewAuthenticator(cfg.JWTSecret), cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.StorageDriver).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	// let committed bookings finish notifying
	disp.Wait()
	log.Info().Msg("bye")
}
