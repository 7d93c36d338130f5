package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/cache"
	"example.com/enrichment/internal/config"
	"example.com/enrichment/internal/consumer"
	"example.com/enrichment/internal/domain"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/persistence/memory"
	"example.com/enrichment/internal/persistence/postgres"
	httptransport "example.com/enrichment/internal/transport/http"
)

const (
	inProgressAttempts = 3
	inProgressBackoff  = 2 * time.Second
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(cfg.ConsumerTopics) == 0 {
		log.Fatal("no consumer topics configured")
	}

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer exited", "error", err)
	}
	log.Info("consumer shut down cleanly")
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	heuristics, err := config.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		return err
	}
	pipeline := heuristics.Build(nil, nil)

	var repo domain.Repository
	if cfg.PostgresURL == "" {
		log.Warn("POSTGRES_URL not set, discoveries are kept in memory only")
		repo = memory.NewRepository()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		pg := postgres.NewRepository(pool)
		if err := pg.SeedLibrary(ctx, activity.Library()); err != nil {
			return fmt.Errorf("seed library: %w", err)
		}
		repo = pg
	}

	var corpusCache cache.CorpusCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCorpusCache(ctx, log.With("component", "cache"), cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      cfg.CorpusCacheTTL,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rc.Close()
		corpusCache = rc
	}

	svc := domain.NewService(repo, pipeline.Parser, pipeline.Detector, pipeline.Selector, domain.Options{
		Cache:  corpusCache,
		Logger: log.With("component", "domain"),
	})
	handler := consumer.NewDiscoveryHandler(svc, log.With("component", "discovery_handler"), inProgressAttempts, inProgressBackoff)

	g, gctx := errgroup.WithContext(ctx)

	for _, topic := range cfg.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			GroupID:        cfg.ConsumerGroupID,
			Topic:          topic,
			MinBytes:       1e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		})
		processor := consumer.NewProcessor(reader, handler, consumer.WithLogger(log.With("topic", topic)))

		g.Go(func() error {
			defer func() {
				if err := reader.Close(); err != nil {
					log.Warn("kafka reader close failed", "topic", topic, "error", err)
				}
			}()
			log.Info("consumer started", "topic", topic, "group_id", cfg.ConsumerGroupID)
			if err := processor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume %s: %w", topic, err)
			}
			return nil
		})
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsServer := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), metricsMux)

	g.Go(func() error {
		log.Info("metrics server listening", "address", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
