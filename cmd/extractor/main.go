package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/voicemetrics/vaac-pipeline/internal/checkpoint"
	"github.com/voicemetrics/vaac-pipeline/internal/enrich"
	"github.com/voicemetrics/vaac-pipeline/internal/pipeline"
	"github.com/voicemetrics/vaac-pipeline/internal/vaac"
	"github.com/voicemetrics/vaac-pipeline/pkg/config"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/health"
	"github.com/voicemetrics/vaac-pipeline/pkg/kafka"
	"github.com/voicemetrics/vaac-pipeline/pkg/logger"
	"github.com/voicemetrics/vaac-pipeline/pkg/metrics"
	"github.com/voicemetrics/vaac-pipeline/pkg/postgres"
	"github.com/voicemetrics/vaac-pipeline/pkg/redis"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	once := flag.Bool("once", false, "run one extraction cycle per input and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting extractor service", "inputs", len(cfg.Inputs))
	if len(cfg.Inputs) == 0 {
		slog.Error("no inputs configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()
	store := checkpoint.NewPostgresStore(pgClient)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure checkpoint schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	locker := pipeline.NewRedisLocker(redisClient, cfg.Extractor.RunLockTTL)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.EnrichedRecords)
	defer producer.Close()
	sink := pipeline.NewKafkaSink(producer)

	tokens := vaac.NewOAuthTokenProvider(cfg.Auth)
	client := vaac.NewClient(cfg.VaacAPI)

	m := metrics.New()
	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := kafka.Ping(ctx, cfg.Kafka); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	var shutdownOps func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownOps = metrics.StartServer(cfg.Metrics.Port, checker.LiveHandler(), checker.ReadyHandler())
	}

	pipelines := make([]*pipeline.Pipeline, 0, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		engine := enrich.NewEngine(enrich.Options{
			Timezone:     in.Timezone,
			LanguageCode: in.LanguageCode,
			Parallelism:  cfg.Extractor.Parallelism,
		})
		p, err := pipeline.New(pipeline.Options{
			Input:        in,
			Store:        store,
			Locker:       locker,
			Tokens:       tokens,
			Querier:      client,
			Engine:       engine,
			Sink:         sink,
			Metrics:      m,
			SinkTimeout:  cfg.Extractor.SinkTimeout,
			QueryRetries: cfg.VaacAPI.MaxRetries,
		})
		if err != nil {
			slog.Error("failed to build pipeline", "input_id", in.ID, "error", err)
			os.Exit(1)
		}
		pipelines = append(pipelines, p)
	}

	slog.Info("extractor service ready",
		"interval", cfg.Extractor.Interval,
		"pipelines", len(pipelines),
		"once", *once,
	)

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p *pipeline.Pipeline) {
			defer wg.Done()
			runLoop(ctx, p, cfg.Extractor.Interval, *once)
			m.CircuitBreakerState.WithLabelValues("vaac-api").Set(float64(client.BreakerState()))
		}(p)
	}
	wg.Wait()

	if shutdownOps != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Extractor.ShutdownTimeout)
		defer cancel()
		if err := shutdownOps(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
	slog.Info("extractor service stopped")
}

// runLoop runs one cycle immediately, then on every tick until ctx is
// cancelled. With once set it exits after the first cycle.
func runLoop(ctx context.Context, p *pipeline.Pipeline, interval time.Duration, once bool) {
	runOnce(ctx, p)
	if once {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, p)
		}
	}
}

func runOnce(ctx context.Context, p *pipeline.Pipeline) {
	if ctx.Err() != nil {
		return
	}
	runCtx := logger.WithRunID(ctx, uuid.NewString())
	log := logger.FromContext(runCtx)
	res, err := p.Run(runCtx)
	switch {
	case errors.Is(err, perrors.ErrRunLocked):
		log.Warn("run skipped, another run holds the lock")
	case err != nil:
		log.Error("extraction run failed", "state", res.State, "error", err)
	}
}
