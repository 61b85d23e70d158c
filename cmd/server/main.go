package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"truckgate/internal/checkpoint"
	"truckgate/internal/checkpoint/feed"
	"truckgate/internal/checkpoint/handler"
	checkpointMetrics "truckgate/internal/checkpoint/metrics"
	"truckgate/internal/checkpoint/service"
	"truckgate/internal/platform/config"
	"truckgate/internal/platform/httpserver"
	"truckgate/internal/platform/kafka"
	"truckgate/internal/platform/logger"
	"truckgate/internal/platform/metrics"
	"truckgate/internal/platform/redis"
	httptransport "truckgate/internal/transport/http"
	"truckgate/pkg/platform/circuit"
)

const feedQueueSize = 1024

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	stores, err := checkpoint.OpenStores(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn("failed to release data directory", "error", err)
		}
	}()

	reg := metrics.NewRegistry()
	m := checkpointMetrics.New(reg)

	publishers, health, closeFeeds, err := buildFeeds(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFeeds()
	dispatch := feed.NewAsync(publishers, feedQueueSize, func(err error) {
		m.IncrementFeedFailures()
		log.Warn("failed to publish entry", "error", err)
	})

	svc := checkpoint.NewService(stores,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithFeed(dispatch),
		service.WithRecentLimit(cfg.RecentLogLimit),
	)
	h := checkpoint.NewHandler(svc, log, handler.WithAdminToken(cfg.Server.AdminToken))

	router := httptransport.NewRouter(httptransport.Options{
		Logger:         log,
		RequestTimeout: cfg.Server.RequestTimeout,
		StaticDir:      cfg.Storage.StaticDir,
		Metrics:        metrics.Handler(reg),
		Latency:        m,
		Health:         health,
	}, h)
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout+cfg.Server.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatch.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting truckgate", "addr", cfg.Server.Addr, "data_dir", cfg.Storage.DataDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// buildFeeds connects the optional entry feeds. A configured feed that cannot
// be reached at startup is fatal; later publish failures are not.
func buildFeeds(ctx context.Context, cfg config.Config, log *slog.Logger) (feed.Publisher, map[string]httptransport.HealthCheck, func(), error) {
	var (
		pubs    feed.Multi
		closers []func() error
	)
	health := map[string]httptransport.HealthCheck{}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("failed to close entry feed", "error", err)
			}
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	if rc != nil {
		closers = append(closers, rc.Close)
		stream := feed.NewRedisStream(rc.Client, cfg.Redis.Stream, cfg.Redis.MaxLen)
		pubs = append(pubs, feed.NewGuarded(stream, circuit.New("redis-feed"), log))
		health["redis"] = rc.Health
		log.Info("redis entry feed enabled", "stream", cfg.Redis.Stream)
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	if kc != nil {
		kf := feed.NewKafka(kc, cfg.Kafka.Topic)
		closers = append(closers, kf.Close)
		pubs = append(pubs, feed.NewGuarded(kf, circuit.New("kafka-feed"), log))
		health["kafka"] = kafka.Health(kc)
		log.Info("kafka entry feed enabled", "topic", cfg.Kafka.Topic)
	}

	if len(pubs) == 0 {
		return feed.Noop{}, health, closeAll, nil
	}
	return pubs, health, closeAll, nil
}
