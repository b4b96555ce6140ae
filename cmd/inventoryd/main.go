package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cimillas/ticket-inventory/internal/app"
	"github.com/cimillas/ticket-inventory/internal/clock"
	"github.com/cimillas/ticket-inventory/internal/config"
	"github.com/cimillas/ticket-inventory/internal/storage/postgres"
	redisstore "github.com/cimillas/ticket-inventory/internal/storage/redis"
	"github.com/cimillas/ticket-inventory/internal/sweeper"
	"github.com/cimillas/ticket-inventory/internal/transport/amqp"
	transporthttp "github.com/cimillas/ticket-inventory/internal/transport/http"
	"github.com/cimillas/ticket-inventory/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const sweeperLockKey = "inventory:sweeper:lock"

func main() {
	configFile := pflag.String("config", "", "path to a YAML config file")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	bootLog := logrus.New()
	cfg, err := config.Load(*configFile, bootLog)
	if err != nil {
		bootLog.WithError(err).Fatal("load config")
	}
	log, err := cfg.NewLogger()
	if err != nil {
		bootLog.WithError(err).Fatal("build logger")
	}

	if err := run(cfg, *migrateOnly, log); err != nil {
		log.WithError(err).Fatal("inventoryd exited")
	}
}

func run(cfg config.Config, migrateOnly bool, log *logrus.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := newPool(startupCtx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.Apply(startupCtx, pool, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if migrateOnly {
		version, err := migrations.Version(startupCtx, pool)
		if err != nil {
			return err
		}
		log.WithField("version", version).Info("migrations applied")
		return nil
	}

	clk := clock.NewSystem()
	store := postgres.NewStore(pool)
	opts := []app.Option{
		app.WithLogger(log),
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithMaxHoldTTL(cfg.MaxHoldTTL),
		app.WithReserveAttempts(cfg.ReserveMaxAttempts),
		app.WithSweepBatchSize(cfg.SweeperBatchSize),
		app.WithFreeGrantLimit(cfg.FreeGrantLimit),
	}

	var sweeperOpts []sweeper.Option
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = client.Close() }()
		if err := client.Ping(startupCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, app.WithAvailabilityCache(redisstore.NewAvailabilityCache(client, cfg.AvailabilityCacheTTL)))
		sweeperOpts = append(sweeperOpts, sweeper.WithLocker(redisstore.NewLock(client, sweeperLockKey, cfg.SweeperLockTTL)))
		log.WithField("addr", cfg.RedisAddr).Info("redis enabled")
	}

	allocation := app.NewAllocationService(store, store, clk, opts...)
	expiry := app.NewExpiryService(store, store, allocation, clk, opts...)
	reservations := app.NewReservationService(store, store, expiry, clk, opts...)
	confirmations := app.NewConfirmationService(store, store, clk, opts...)
	admin := app.NewAdminService(store, allocation, clk, opts...)
	payments := app.NewPaymentEventService(confirmations, reservations, opts...)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Reservations: reservations,
		Sales:        confirmations,
		Payments:     payments,
		Inventory:    app.NewInventoryService(store, opts...),
		Events:       admin,
		Units:        admin,
		Credits:      allocation,
		DB:           pool,
	}, cfg.CORSOrigins, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})

	sw := sweeper.New(expiry, cfg.SweeperInterval, log, sweeperOpts...)
	g.Go(func() error {
		sw.Start(gctx)
		return nil
	})

	if cfg.AMQPEnabled {
		consumer, err := amqp.Dial(amqp.Config{
			URL:      cfg.AMQPURL,
			Queue:    cfg.AMQPQueue,
			Prefetch: cfg.AMQPPrefetch,
		}, payments, log)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				log.WithError(err).Warn("close rabbitmq")
			}
		}()
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	return g.Wait()
}

// newPool opens the pgx pool with a lock_timeout so lock waits surface as
// retryable contention instead of hanging.
func newPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database_url: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = strconv.FormatInt(cfg.DBLockTimeout.Milliseconds(), 10)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
