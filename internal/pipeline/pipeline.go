// Package pipeline orchestrates one extraction run per configured input: plan
// the incremental window, authenticate, query, decode, enrich, write to the
// sink, and only then commit the checkpoint. Failures leave the checkpoint
// untouched so the next run replays the same window; downstream consumers
// discard the resulting duplicates via the record dedup key.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/checkpoint"
	"github.com/voicemetrics/vaac-pipeline/internal/enrich"
	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	"github.com/voicemetrics/vaac-pipeline/internal/transform"
	"github.com/voicemetrics/vaac-pipeline/internal/vaac"
	"github.com/voicemetrics/vaac-pipeline/internal/window"
	"github.com/voicemetrics/vaac-pipeline/pkg/config"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/metrics"
	"github.com/voicemetrics/vaac-pipeline/pkg/resilience"
)

// State is the pipeline run state. Runs advance strictly forward through
// these states; any unrecoverable error moves the run to StateFailed.
type State string

const (
	StateIdle                State = "idle"
	StateWindowPlanned       State = "window_planned"
	StateAuthenticated       State = "authenticated"
	StateQueried             State = "queried"
	StateDecoded             State = "decoded"
	StateEnriched            State = "enriched"
	StateWritten             State = "written"
	StateCheckpointCommitted State = "checkpoint_committed"
	StateFailed              State = "failed"
)

// Querier issues one analytics query for a window. Satisfied by *vaac.Client.
type Querier interface {
	Query(ctx context.Context, token string, w window.Window, s schema.Schema) ([][]any, error)
}

// Options wires one Pipeline. Store, Tokens, Querier, Engine, and Sink are
// required; Locker defaults to NoopLocker and Metrics may be nil.
type Options struct {
	Input       config.InputConfig
	Store       checkpoint.Store
	Locker      Locker
	Tokens      vaac.TokenProvider
	Querier     Querier
	Engine      *enrich.Engine
	Sink        EventSink
	Metrics     *metrics.Metrics
	SinkTimeout time.Duration
	// QueryRetries bounds attempts for the analytics query. Zero uses the
	// retry package default.
	QueryRetries int
}

// Pipeline runs incremental extraction for one configured input. A Pipeline
// is reusable across runs but runs for the same input never overlap; the
// Locker enforces that across processes.
type Pipeline struct {
	input       config.InputConfig
	schema      schema.Schema
	store       checkpoint.Store
	locker      Locker
	tokens      vaac.TokenProvider
	querier     Querier
	engine      *enrich.Engine
	sink        EventSink
	metrics     *metrics.Metrics
	sinkTimeout time.Duration
	retryCfg    resilience.RetryConfig
	logger      *slog.Logger
}

// New validates the options and builds a Pipeline for the input's report type.
func New(opts Options) (*Pipeline, error) {
	s, err := schema.ForReportType(schema.ReportType(opts.Input.ReportType), opts.Input.OptionalMeasurements)
	if err != nil {
		return nil, err
	}
	if opts.Store == nil || opts.Tokens == nil || opts.Querier == nil || opts.Engine == nil || opts.Sink == nil {
		return nil, fmt.Errorf("pipeline %s: store, tokens, querier, engine, and sink are required", opts.Input.ID)
	}
	if opts.Locker == nil {
		opts.Locker = NoopLocker{}
	}
	return &Pipeline{
		input:       opts.Input,
		schema:      s,
		store:       opts.Store,
		locker:      opts.Locker,
		tokens:      opts.Tokens,
		querier:     opts.Querier,
		engine:      opts.Engine,
		sink:        opts.Sink,
		metrics:     opts.Metrics,
		sinkTimeout: opts.SinkTimeout,
		retryCfg: resilience.RetryConfig{
			MaxAttempts: opts.QueryRetries,
			Retryable:   perrors.Retryable,
		},
		logger: slog.Default().With(
			"component", "pipeline",
			"input_id", opts.Input.ID,
			"report_type", opts.Input.ReportType,
		),
	}, nil
}

// RunResult summarizes one completed or failed run.
type RunResult struct {
	State          State
	RowsExtracted  int
	RowsSkipped    int
	RecordsWritten int
	Watermark      time.Time
}

// Run executes one extraction cycle. On success the returned result is in
// StateCheckpointCommitted with the committed watermark; on failure the
// checkpoint is untouched and the error wraps the taxonomy sentinel of the
// failing step. A concurrent run for the same input returns ErrRunLocked
// without entering the state machine.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{State: StateIdle}
	started := time.Now()

	release, err := p.locker.Acquire(ctx, p.input.ID, p.schema.Report)
	if err != nil {
		if errors.Is(err, perrors.ErrRunLocked) {
			p.observeRun("locked", started)
			return res, err
		}
		return p.fail(res, started, err, "acquiring run lock")
	}
	// Release with a detached context so a cancelled run still frees the lock.
	defer release(context.WithoutCancel(ctx))

	cp, err := p.store.Get(ctx, p.input.ID, p.schema.Report)
	if err != nil {
		return p.fail(res, started, err, "loading checkpoint")
	}
	w := window.Plan(cp, p.input.Lookback, time.Now())
	res.State = StateWindowPlanned
	p.logger.Info("window planned",
		"window_start", w.StartUTC,
		"start_date", w.StartDate,
		"end_date", w.EndDate,
		"first_run", cp == nil,
	)

	var token string
	err = resilience.Retry(ctx, "token-acquire", p.retryCfg, func() error {
		var tokenErr error
		token, tokenErr = p.tokens.Token(ctx)
		return tokenErr
	})
	if err != nil {
		return p.fail(res, started, err, "acquiring token")
	}
	res.State = StateAuthenticated

	var rows [][]any
	queryStart := time.Now()
	err = resilience.Retry(ctx, "analytics-query", p.retryCfg, func() error {
		var queryErr error
		rows, queryErr = p.querier.Query(ctx, token, w, p.schema)
		return queryErr
	})
	if err != nil {
		return p.fail(res, started, err, "querying analytics API")
	}
	res.State = StateQueried
	res.RowsExtracted = len(rows)
	p.observeQuery(len(rows), time.Since(queryStart))

	if err := ctx.Err(); err != nil {
		return p.fail(res, started, err, "cancelled after query")
	}

	decoded := make([]transform.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := transform.Decode(i, row, p.schema)
		if err != nil {
			res.RowsSkipped++
			p.observeSkip("schema_mismatch")
			p.logger.Warn("row skipped", "error", err)
			continue
		}
		decoded = append(decoded, rec)
	}
	res.State = StateDecoded

	enrichStart := time.Now()
	records, rowErrs := p.engine.EnrichBatch(ctx, p.schema, decoded)
	for _, rowErr := range rowErrs {
		res.RowsSkipped++
		p.observeSkip("enrichment")
		p.logger.Warn("row skipped", "error", rowErr)
	}
	res.State = StateEnriched
	p.observeEnrichment(time.Since(enrichStart))

	if err := ctx.Err(); err != nil {
		return p.fail(res, started, err, "cancelled before sink write")
	}

	err = resilience.WithTimeout(ctx, p.sinkTimeout, "sink-write", func(ctx context.Context) error {
		return p.sink.Write(ctx, records)
	})
	if err != nil {
		if !errors.Is(err, perrors.ErrSinkWrite) {
			err = fmt.Errorf("%w: %v", perrors.ErrSinkWrite, err)
		}
		return p.fail(res, started, err, "writing to sink")
	}
	res.State = StateWritten
	res.RecordsWritten = len(records)
	p.observeSink(len(records))

	if err := ctx.Err(); err != nil {
		return p.fail(res, started, err, "cancelled before checkpoint commit")
	}

	watermark := p.nextWatermark(cp, w, records)
	if err := p.store.Commit(ctx, p.input.ID, p.schema.Report, watermark, len(records)); err != nil {
		if !errors.Is(err, perrors.ErrCheckpointCommit) {
			err = fmt.Errorf("%w: %v", perrors.ErrCheckpointCommit, err)
		}
		return p.fail(res, started, err, "committing checkpoint")
	}
	res.State = StateCheckpointCommitted
	res.Watermark = watermark
	p.observeCommit(watermark, started)

	p.logger.Info("run complete",
		"rows_extracted", res.RowsExtracted,
		"rows_skipped", res.RowsSkipped,
		"records_written", res.RecordsWritten,
		"watermark", watermark,
		"duration", time.Since(started),
	)
	return res, nil
}

// nextWatermark is the maximum record start time in the written batch. An
// empty batch re-commits the prior watermark (or the window start on a first
// run) so the checkpoint row still records the attempt without regressing.
func (p *Pipeline) nextWatermark(cp *checkpoint.Checkpoint, w window.Window, records []enrich.Record) time.Time {
	watermark := w.StartUTC
	if cp != nil && cp.LastDatetime.After(watermark) {
		watermark = cp.LastDatetime
	}
	for _, rec := range records {
		if rec.StartUTC().After(watermark) {
			watermark = rec.StartUTC()
		}
	}
	return watermark.UTC()
}

func (p *Pipeline) fail(res RunResult, started time.Time, err error, msg string) (RunResult, error) {
	reached := res.State
	res.State = StateFailed
	p.observeRun("failed", started)
	p.logger.Error("run failed", "error", err, "stage", msg, "state_reached", reached)
	return res, perrors.NewRunError(err, string(reached), "%s", msg)
}

func (p *Pipeline) observeRun(status string, started time.Time) {
	if p.metrics == nil {
		return
	}
	report := string(p.schema.Report)
	p.metrics.RunsTotal.WithLabelValues(report, status).Inc()
	p.metrics.RunDuration.WithLabelValues(report).Observe(time.Since(started).Seconds())
}

func (p *Pipeline) observeQuery(rows int, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	report := string(p.schema.Report)
	p.metrics.RowsExtractedTotal.WithLabelValues(report).Add(float64(rows))
	p.metrics.QueryLatency.WithLabelValues(report).Observe(elapsed.Seconds())
}

func (p *Pipeline) observeSkip(reason string) {
	if p.metrics == nil {
		return
	}
	p.metrics.RowsSkippedTotal.WithLabelValues(string(p.schema.Report), reason).Inc()
}

func (p *Pipeline) observeEnrichment(elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.EnrichmentLatency.WithLabelValues(string(p.schema.Report)).Observe(elapsed.Seconds())
}

func (p *Pipeline) observeSink(records int) {
	if p.metrics == nil {
		return
	}
	report := string(p.schema.Report)
	p.metrics.RecordsWrittenTotal.WithLabelValues(report).Add(float64(records))
	p.metrics.SinkBatchSize.WithLabelValues(report).Observe(float64(records))
}

func (p *Pipeline) observeCommit(watermark time.Time, started time.Time) {
	if p.metrics == nil {
		return
	}
	report := string(p.schema.Report)
	p.metrics.RunsTotal.WithLabelValues(report, "success").Inc()
	p.metrics.RunDuration.WithLabelValues(report).Observe(time.Since(started).Seconds())
	p.metrics.CheckpointLag.WithLabelValues(p.input.ID, report).Set(time.Since(watermark).Seconds())
}
