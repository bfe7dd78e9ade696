// Package pipeline drives a full positional index rebuild: load every
// encrypted document, decrypt, tokenize and index each one in parallel, then
// replace the index table in a single write.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/tracing"
)

// Source yields the full document collection.
type Source interface {
	Load(ctx context.Context) ([]source.Document, error)
}

// Sink persists a rebuilt index and answers statistics queries about it.
type Sink interface {
	Rebuild(ctx context.Context, rows []index.Row) (store.Result, error)
	Stats(ctx context.Context) (store.Stats, error)
	Sample(ctx context.Context, limit int) ([]index.Row, error)
}

// Locker serialises runs across processes. Lock returns the release func.
type Locker interface {
	Lock(ctx context.Context) (release func(context.Context) error, err error)
}

// Notifier is told about every committed rebuild. Notifications are best
// effort and never fail a run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event indexer.IndexRebuiltEvent) error
}

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Workers    int
	Policy     Policy
	SampleSize int
	DryRun     bool
	Table      string

	Locker    Locker
	Notifiers []Notifier
	Metrics   *metrics.Metrics
	Tracing   bool
	Retry     resilience.RetryConfig
}

// Pipeline rebuilds the positional index from a Source into a Sink.
type Pipeline struct {
	src    Source
	sink   Sink
	key    []byte
	opts   Options
	logger *slog.Logger
}

// New creates a Pipeline. key must be the normalized 32-byte key.
func New(src Source, sink Sink, key []byte, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SampleSize < 0 {
		opts.SampleSize = 0
	}
	return &Pipeline{
		src:    src,
		sink:   sink,
		key:    key,
		opts:   opts,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// Run performs one full rebuild. A run that finds nothing to index returns
// a report without touching the sink. Fatal failures return a non-nil error
// together with the partial report.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID, err := newRunID()
	if err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, runID)
	log := p.logger.With("run_id", runID)

	ctx, root := tracing.StartSpan(ctx, "index-rebuild", runID)
	defer func() {
		root.End()
		if p.opts.Tracing {
			root.Log(log)
		}
	}()

	report := &Report{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Policy:    p.opts.Policy,
		DryRun:    p.opts.DryRun,
	}
	err = p.run(ctx, log, report)
	report.Duration = time.Since(report.StartedAt)
	p.recordRun(report, err)
	if err != nil {
		log.Error("index rebuild failed", "error", err, "class", apperrors.Class(err))
		return report, err
	}
	log.Info("index rebuild finished",
		"state", report.State,
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, report *Report) error {
	if p.opts.Locker != nil && !p.opts.DryRun {
		release, err := p.opts.Locker.Lock(ctx)
		if err != nil {
			return fmt.Errorf("acquiring run lock: %w", err)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				log.Warn("releasing run lock failed", "error", err)
			}
		}()
	}

	docs, err := p.load(ctx)
	if err != nil {
		return err
	}
	report.Loaded = len(docs)
	log.Info("documents loaded", "count", len(docs))
	if len(docs) == 0 {
		report.State = StateNoDocuments
		log.Warn("no documents found, nothing to index")
		return nil
	}

	rc := &RunContext{RunID: report.RunID, Key: p.key, Policy: p.opts.Policy}
	collector, outcomes, err := p.mapDocuments(ctx, rc, docs)
	report.addOutcomes(outcomes)
	if err != nil {
		return err
	}
	log.Info("documents processed",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	if report.Indexed == 0 {
		report.State = StateNothingToIndex
		log.Warn("no decryptable documents found, nothing to index")
		return nil
	}

	rows := collector.Rows()
	report.Rows = len(rows)
	if p.opts.DryRun {
		report.State = StateDryRun
		report.Stats = statsOf(rows)
		report.Sample = sampleOf(rows, p.opts.SampleSize)
		return nil
	}

	if err := p.write(ctx, rows, report); err != nil {
		return err
	}
	report.State = StateCompleted
	p.inspect(ctx, log, report)
	p.notify(ctx, log, report)
	return nil
}

func (p *Pipeline) load(ctx context.Context) ([]source.Document, error) {
	ctx, span := tracing.StartChildSpan(ctx, "load")
	defer span.End()
	start := time.Now()
	docs, err := p.src.Load(ctx)
	p.observePhase("load", start)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	span.SetAttr("documents", len(docs))
	if p.opts.Metrics != nil {
		p.opts.Metrics.DocumentsLoaded.Add(float64(len(docs)))
	}
	return docs, nil
}

// mapDocuments processes docs on a bounded worker pool. Outcomes are stored
// by input position, so no two workers share a slot. Under FailFast the
// first document failure cancels the remaining work.
func (p *Pipeline) mapDocuments(ctx context.Context, rc *RunContext, docs []source.Document) (*index.Collector, []Outcome, error) {
	ctx, span := tracing.StartChildSpan(ctx, "map")
	defer span.End()
	start := time.Now()
	defer p.observePhase("map", start)

	log := logger.FromContext(ctx).With("component", "pipeline")
	collector := index.NewCollector()
	outcomes := make([]Outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := ProcessDocument(rc, doc)
			outcomes[i] = out
			switch out.Status {
			case StatusIndexed:
				collector.Add(out.DocID, out.index)
				log.Debug("document indexed", "doc_id", out.DocID, "tokens", out.Tokens, "terms", out.Terms)
			case StatusSkipped:
				log.Debug("document skipped", "doc_id", out.DocID, "reason", out.Reason)
			case StatusFailed:
				if rc.Policy == FailFast || !apperrors.IsDocumentFailure(out.Err) {
					return out.Err
				}
				log.Warn("document failed, skipping", "doc_id", out.DocID, "class", out.Reason, "error", out.Err)
			}
			return nil
		})
	}
	err := g.Wait()

	span.SetAttr("workers", p.opts.Workers)
	span.SetAttr("rows", collector.Len())
	span.SetAttr("bytes", collector.Size())
	if p.opts.Metrics != nil {
		p.opts.Metrics.CollectedBytes.Set(float64(collector.Size()))
	}
	if err != nil {
		return nil, outcomes, fmt.Errorf("processing documents: %w", err)
	}
	return collector, outcomes, nil
}

func (p *Pipeline) write(ctx context.Context, rows []index.Row, report *Report) error {
	ctx, span := tracing.StartChildSpan(ctx, "write")
	defer span.End()
	start := time.Now()
	res, err := p.sink.Rebuild(ctx, rows)
	p.observePhase("write", start)
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	span.SetAttr("rows", res.Inserted)
	span.SetAttr("batches", res.Batches)
	report.Written = res
	if p.opts.Metrics != nil {
		p.opts.Metrics.RowsWritten.Add(float64(res.Inserted))
	}
	return nil
}

// inspect fills statistics and the sample from the committed index. The
// index is already committed, so query errors are only logged.
func (p *Pipeline) inspect(ctx context.Context, log *slog.Logger, report *Report) {
	stats, err := p.sink.Stats(ctx)
	if err != nil {
		log.Warn("reading index statistics failed", "error", err)
	} else {
		report.Stats = stats
		if p.opts.Metrics != nil {
			p.opts.Metrics.IndexTerms.Set(float64(stats.Terms))
			p.opts.Metrics.IndexDocuments.Set(float64(stats.Documents))
			p.opts.Metrics.IndexRows.Set(float64(stats.Rows))
		}
	}
	if p.opts.SampleSize == 0 {
		return
	}
	sample, err := p.sink.Sample(ctx, p.opts.SampleSize)
	if err != nil {
		log.Warn("reading index sample failed", "error", err)
		return
	}
	report.Sample = sample
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, report *Report) {
	if len(p.opts.Notifiers) == 0 {
		return
	}
	event := indexer.IndexRebuiltEvent{
		RunID:      report.RunID,
		Table:      p.opts.Table,
		Terms:      report.Stats.Terms,
		Documents:  report.Stats.Documents,
		Rows:       report.Stats.Rows,
		FailedDocs: report.FailedDocIDs(),
		StartedAt:  report.StartedAt,
		FinishedAt: time.Now().UTC(),
	}
	for _, n := range p.opts.Notifiers {
		err := resilience.Retry(ctx, n.Name(), p.opts.Retry, func(ctx context.Context) error {
			return n.Notify(ctx, event)
		})
		if err != nil {
			log.Warn("post-commit notification failed", "notifier", n.Name(), "error", err)
			continue
		}
		report.Notified = append(report.Notified, n.Name())
	}
}

func (p *Pipeline) observePhase(phase string, start time.Time) {
	if p.opts.Metrics != nil {
		p.opts.Metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) recordRun(report *Report, err error) {
	m := p.opts.Metrics
	if m == nil {
		return
	}
	m.DocumentsProcessed.WithLabelValues(StatusIndexed.String()).Add(float64(report.Indexed))
	m.DocumentsProcessed.WithLabelValues(StatusSkipped.String()).Add(float64(report.Skipped))
	m.DocumentsProcessed.WithLabelValues(StatusFailed.String()).Add(float64(len(report.Failures)))
	for _, f := range report.Failures {
		m.DocumentFailures.WithLabelValues(apperrors.Class(f.Err)).Inc()
	}
	switch {
	case err != nil:
		m.RunsTotal.WithLabelValues("failed").Inc()
	case report.State == StateCompleted:
		m.RunsTotal.WithLabelValues("success").Inc()
		m.LastSuccess.SetToCurrentTime()
	default:
		m.RunsTotal.WithLabelValues(report.State.String()).Inc()
	}
}

func newRunID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating run id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
