package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"donation-ledger/internal/audit/outbox"
	jwttoken "donation-ledger/internal/jwt_token"
	"donation-ledger/internal/ledger/handler"
	ledgermetrics "donation-ledger/internal/ledger/metrics"
	"donation-ledger/internal/ledger/service"
	"donation-ledger/internal/ledger/store"
	"donation-ledger/internal/ledger/store/memory"
	pgstore "donation-ledger/internal/ledger/store/postgres"
	"donation-ledger/internal/platform/config"
	"donation-ledger/internal/platform/httpserver"
	"donation-ledger/internal/platform/kafka"
	"donation-ledger/internal/platform/lock"
	"donation-ledger/internal/platform/logger"
	"donation-ledger/internal/platform/metrics"
	"donation-ledger/internal/platform/postgres"
	"donation-ledger/internal/platform/redis"
	"donation-ledger/internal/platform/tracing"

	"golang.org/x/sync/errgroup"
)

// main wires dependencies, runs the HTTP server and the optional audit relay,
// and shuts both down on SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("donation ledger stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("flush traces", "error", err)
		}
	}()
	if cfg.TracingEnabled() {
		log.Info("exporting traces", "endpoint", cfg.Tracing.Endpoint, "sample_ratio", cfg.Tracing.SampleRatio)
	}

	checks := map[string]httpserver.HealthCheck{}

	st, closeStore, err := openStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(ledgermetrics.New(reg)),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		lockOpts := lock.DefaultRedisOptions()
		lockOpts.Expiry = cfg.Redis.LockExpiry
		opts = append(opts, service.WithLocker(lock.NewRedis(redisClient.Client, lockOpts, log)))
		checks["redis"] = redisClient.Health
		log.Info("using redis campaign locks")
	}
	svc := service.New(st, opts...)

	var relay *outbox.Relay
	if cfg.RelayEnabled() {
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		checks["kafka"] = publisher.Ping

		relay = outbox.New(st, publisher,
			outbox.WithLogger(log),
			outbox.WithMetrics(outbox.NewMetrics(reg)),
			outbox.WithInterval(cfg.Kafka.PollInterval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
		)
	} else {
		log.Info("audit relay disabled: no kafka brokers configured")
	}

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:    log,
		Metrics:   reg,
		Validator: jwttoken.NewActorAdapter(jwtService),
		Mount:     handler.New(svc, log).Register,
		Checks:    checks,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting donation ledger", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}

	return g.Wait()
}

// openStore picks postgres when a database URL is configured and the
// in-memory store otherwise.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger, checks map[string]httpserver.HealthCheck) (store.Store, func(), error) {
	if !cfg.UsesPostgres() {
		log.Warn("no database configured; using in-memory store")
		st := memory.New(memory.WithTxTimeout(cfg.Ledger.TxTimeout))
		return st, func() { _ = st.Close() }, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Migrate {
		if err := pgstore.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	st := pgstore.New(db, pgstore.WithTxTimeout(cfg.Ledger.TxTimeout), pgstore.WithLogger(log))
	checks["store"] = st.Ping
	return st, func() {
		if err := st.Close(); err != nil {
			log.Error("close store", "error", err)
		}
	}, nil
}
