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
	"golang.org/x/sync/errgroup"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/api"
	"example.com/enrichment/internal/auth"
	"example.com/enrichment/internal/cache"
	"example.com/enrichment/internal/config"
	"example.com/enrichment/internal/domain"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/outbox"
	"example.com/enrichment/internal/persistence/memory"
	"example.com/enrichment/internal/persistence/postgres"
	httptransport "example.com/enrichment/internal/transport/http"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", "error", err)
	}
	log.Info("api shut down cleanly")
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	heuristics, err := config.LoadHeuristics(cfg.HeuristicsFile)
	if err != nil {
		return err
	}
	pipeline := heuristics.Build(nil, nil)

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

	g, gctx := errgroup.WithContext(ctx)

	var repo domain.Repository
	if cfg.PostgresURL == "" {
		log.Warn("POSTGRES_URL not set, using in-memory repository")
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

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("kafka producer close failed", "error", err)
			}
		}()
		dispatcher := outbox.NewDispatcher(
			outbox.NewPostgresStore(pool),
			producer,
			outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL),
			log.With("component", "outbox"),
			cfg.OutboxPollInterval,
			cfg.OutboxBatchSize,
		)
		replayer := outbox.NewDLQReplayer(pool, log.With("component", "dlq"), cfg.DLQMaxRetries, cfg.DLQBaseDelay)

		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})
		g.Go(func() error {
			replayer.Run(gctx, cfg.DLQPollInterval, cfg.OutboxBatchSize)
			return nil
		})
	}

	svc := domain.NewService(repo, pipeline.Parser, pipeline.Detector, pipeline.Selector, domain.Options{
		Cache:  corpusCache,
		Logger: log.With("component", "domain"),
	})

	mux := http.NewServeMux()
	api.NewHandler(svc, log).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	handler := httptransport.Chain(mux,
		httptransport.RequestLogger(log),
		httptransport.Recover(log),
		authMiddleware.Wrap,
	)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler)

	g.Go(func() error {
		log.Info("enrichment api listening", "address", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
