// Package consumer listens for rebuild requests on Kafka and runs the
// pipeline once per request.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/kafka"
)

// Runner is satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// RebuildConsumer wraps a Kafka consumer to drive index rebuilds.
type RebuildConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a RebuildConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *RebuildConsumer {
	return &RebuildConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "rebuild-consumer"),
	}
}

// Start begins consuming rebuild requests. It blocks until ctx is cancelled.
func (rc *RebuildConsumer) Start(ctx context.Context) error {
	rc.logger.Info("rebuild consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleRebuild returns a Kafka MessageHandler that runs a full rebuild for
// each request. Every rebuild covers the whole collection, so a failed run
// is logged and the request still committed; the next request retries it.
// onReport, when non-nil, receives the report of every run.
func HandleRebuild(runner Runner, onReport func(*pipeline.Report)) kafka.MessageHandler {
	logger := slog.Default().With("component", "rebuild-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[indexer.RebuildRequest](value)
		if err != nil {
			logger.Error("failed to decode rebuild request",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		logger.Info("rebuild requested",
			"requested_by", req.RequestedBy,
			"reason", req.Reason,
		)

		report, err := runner.Run(ctx)
		if report != nil && onReport != nil {
			onReport(report)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("requested rebuild failed",
				"requested_by", req.RequestedBy,
				"error", err,
			)
			return nil
		}
		logger.Info("requested rebuild finished",
			"run_id", report.RunID,
			"state", report.State.String(),
		)
		return nil
	}
}
