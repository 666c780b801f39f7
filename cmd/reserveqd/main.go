package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/reserveq/internal/api"
	"github.com/you/reserveq/internal/catalog"
	"github.com/you/reserveq/internal/config"
	"github.com/you/reserveq/internal/kvstore"
	"github.com/you/reserveq/internal/ledger"
	"github.com/you/reserveq/internal/notification"
	"github.com/you/reserveq/internal/notify"
	"github.com/you/reserveq/internal/queue"
	"github.com/you/reserveq/internal/reservation"
	"github.com/you/reserveq/internal/storage"
	"github.com/you/reserveq/internal/worker"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.AppEnv == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	store := kvstore.NewRedis(rdb)

	notifier := notify.New(logger)
	notifier.AddSink(notify.LogSink(logger))
	bridge := notify.NewRedisBridge(rdb, cfg.EventChannel, logger)
	notifier.AddSink(bridge.Sink())

	q := queue.New(store, notifier, logger)
	led := ledger.New(store, logger)
	cat := catalog.Default()

	if err := led.Initialize(ctx, reservation.SeatKey, cfg.SeatCount); err != nil {
		logger.Fatal("seat ledger init failed", zap.Error(err))
	}
	for _, p := range cat.List() {
		if err := led.Initialize(ctx, p.Key(), p.InitialAvailableQuantity); err != nil {
			logger.Fatal("stock ledger init failed", zap.String("resource", p.Key()), zap.Error(err))
		}
	}

	var db *pgxpool.Pool
	var archive worker.Archiver
	if cfg.PostgresDSN != "" {
		db, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		archive = storage.New(db)
	}

	q.RegisterHandler(reservation.SeatTopic, cfg.ReserveConcurrency, reservation.NewHandler(led, logger))
	q.RegisterHandler(reservation.StockTopic, cfg.ReserveConcurrency, reservation.NewHandler(led, logger))
	q.RegisterHandler(notification.TopicName, cfg.NotifyConcurrency,
		notification.NewHandler(notification.DefaultBlacklist(), logger))

	pool := worker.New(q, logger, cfg.PollInterval, archive)
	srv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.New(q, led, cat, logger).Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	err = multierr.Append(err, rdb.Close())
	if db != nil {
		db.Close()
	}
	if err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
		return
	}
	logger.Info("stopped")
}
