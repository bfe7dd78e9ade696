package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/crypto"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/notify"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/report"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/indexer.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "decrypt and index without writing")
	watch := flag.Bool("watch", false, "rebuild on every request received from kafka")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting positional indexer",
		"workers", cfg.Indexer.Workers,
		"failure_policy", cfg.Indexer.FailurePolicy,
		"dry_run", *dryRun,
		"watch", *watch,
	)

	if err := run(cfg, *dryRun, *watch); err != nil {
		slog.Error("positional indexer failed", "error", err, "class", apperrors.Class(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, dryRun, watch bool) error {
	if watch && !cfg.Kafka.Enabled {
		return apperrors.New(apperrors.ErrConfiguration, "watch mode requires kafka.enabled")
	}

	pad, err := crypto.PaddingFromConfig(cfg.Indexer.KeyPadding)
	if err != nil {
		return err
	}
	key, err := crypto.LegacyKey(cfg.EncryptionKey, pad)
	if err != nil {
		return err
	}
	policy, err := pipeline.ParsePolicy(cfg.Indexer.FailurePolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return apperrors.Newf(apperrors.ErrConfiguration, "connecting to postgres: %v", err)
	}
	defer db.Close()

	checker := health.NewChecker()
	checker.Register("postgres", true, health.PingCheck(db.Ping))

	opts := pipeline.Options{
		Workers:    cfg.Indexer.Workers,
		Policy:     policy,
		SampleSize: cfg.Indexer.SampleSize,
		DryRun:     dryRun,
		Table:      cfg.Indexer.IndexTable,
		Tracing:    cfg.Tracing.Enabled,
	}

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return apperrors.Newf(apperrors.ErrConfiguration, "connecting to redis: %v", err)
		}
		defer rc.Close()
		checker.Register("redis", false, health.PingCheck(rc.Ping))
		opts.Locker = pipeline.NewRedisLocker(rc, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		opts.Notifiers = append(opts.Notifiers, notify.NewCacheInvalidator(rc, cfg.Redis.CachePattern))
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts.Notifiers = append(opts.Notifiers, notify.NewKafkaNotifier(producer))
	}

	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port, opts.Metrics, map[string]http.Handler{
			"/healthz": checker.LiveHandler(),
			"/readyz":  checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	if err := preflight(ctx, checker); err != nil {
		return err
	}

	src := source.NewPostgres(db.DB, cfg.Indexer.SourceTable)
	sink := store.NewWriter(db, cfg.Indexer.IndexTable, cfg.Indexer.BatchSize)
	p := pipeline.New(src, sink, key, opts)

	if watch {
		return watchRequests(ctx, cfg, p)
	}

	rep, runErr := p.Run(ctx)
	if rep != nil {
		if err := report.Write(os.Stdout, rep); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	}
	return runErr
}

// preflight fails the run when a critical dependency is unreachable.
func preflight(ctx context.Context, checker *health.Checker) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rep := checker.Run(checkCtx)
	if rep.Status == health.StatusDown {
		return apperrors.Newf(apperrors.ErrConfiguration, "preflight failed: %v", rep.Failed())
	}
	return nil
}

func watchRequests(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) error {
	handler := consumer.HandleRebuild(p, func(r *pipeline.Report) {
		if err := report.Write(os.Stdout, r); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	})
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexRebuild, handler)
	rebuildConsumer := consumer.New(kafkaConsumer)

	slog.Info("positional indexer watching for rebuild requests",
		"topic", cfg.Kafka.Topics.IndexRebuild,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := rebuildConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consuming rebuild requests: %w", err)
	}
	slog.Info("positional indexer stopped")
	return nil
}
