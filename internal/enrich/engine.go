// Package enrich turns decoded analytics records into fully derived,
// query-ready events: parsed and localized timestamps, legend codes, and the
// composite deduplication key. Enrichment is a pure per-record transform and
// fans out across a bounded worker pool.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voicemetrics/vaac-pipeline/internal/legend"
	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	"github.com/voicemetrics/vaac-pipeline/internal/transform"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

// Options configures an Engine for one input.
type Options struct {
	// Timezone is an IANA name ("Australia/Sydney") or a legacy fixed
	// offset ("UTC+10:00"). Empty means UTC.
	Timezone     string
	LanguageCode string
	// FriendlyName resolves a resource account identity to a display name.
	// Optional; records carry an empty display name without it.
	FriendlyName func(identity string) string
	// Parallelism bounds the enrichment worker pool. Zero or negative
	// falls back to 4 workers.
	Parallelism int
}

// Engine enriches decoded records for one configured input. Safe for
// concurrent use; it holds no per-record state.
type Engine struct {
	opts   Options
	loc    *time.Location
	logger *slog.Logger
}

const defaultParallelism = 4

// NewEngine resolves the configured timezone once and returns an Engine.
// An unresolvable timezone degrades to UTC rather than failing the input.
func NewEngine(opts Options) *Engine {
	logger := slog.Default().With("component", "enrichment-engine")
	loc, err := ResolveLocation(opts.Timezone)
	if err != nil {
		logger.Warn("falling back to UTC", "timezone", opts.Timezone, "error", err)
		loc = time.UTC
	}
	if opts.LanguageCode == "" {
		opts.LanguageCode = "en-AU"
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &Engine{
		opts:   opts,
		loc:    loc,
		logger: logger,
	}
}

// EnrichBatch fans records out across the worker pool and returns the
// enriched results plus the per-row errors. The pool is fully drained before
// return; completion order is irrelevant and nil slots left by failed rows
// are compacted out.
func (e *Engine) EnrichBatch(ctx context.Context, s schema.Schema, records []transform.Record) ([]Record, []*perrors.RowError) {
	results := make([]Record, len(records))
	rowErrs := make([]*perrors.RowError, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for i, rec := range records {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			enriched, err := e.Enrich(s.Report, i, rec)
			if err != nil {
				var rowErr *perrors.RowError
				if !errors.As(err, &rowErr) {
					rowErr = perrors.NewRowError(perrors.ErrEnrichment, i, "", "%v", err)
				}
				rowErrs[i] = rowErr
				return nil
			}
			results[i] = enriched
			return nil
		})
	}
	// Workers only return ctx errors; per-row failures are recorded in place.
	_ = g.Wait()

	enriched := make([]Record, 0, len(records))
	for _, r := range results {
		if r != nil {
			enriched = append(enriched, r)
		}
	}
	failures := make([]*perrors.RowError, 0)
	for _, re := range rowErrs {
		if re != nil {
			failures = append(failures, re)
		}
	}
	return enriched, failures
}

// Enrich derives one Record for the given report type.
func (e *Engine) Enrich(report schema.ReportType, rowIndex int, rec transform.Record) (Record, error) {
	switch report {
	case schema.ReportCallQueue:
		return e.enrichCallQueue(rowIndex, rec)
	case schema.ReportAutoAttendant:
		return e.enrichAutoAttendant(rowIndex, rec)
	default:
		return nil, perrors.NewRowError(perrors.ErrEnrichment, rowIndex, "", "unknown report type %q", report)
	}
}

func (e *Engine) enrichCallQueue(rowIndex int, rec transform.Record) (*CallQueueRecord, error) {
	rawStart := rec.String(schema.FieldUserStartTimeUTC)
	startUTC, ok := ParseTimestamp(rawStart)
	if !ok {
		return nil, perrors.NewRowError(perrors.ErrEnrichment, rowIndex, schema.FieldUserStartTimeUTC,
			"unparseable start timestamp %q", rawStart)
	}

	callResult := rec.String(schema.FieldCallQueueCallResult)
	targetType := legend.CorrectedTargetType(callResult, rec.String(schema.FieldCallQueueTargetType))
	identity := rec.String(schema.FieldCallQueueIdentity)
	raName := resourceAccountName(identity)

	out := &CallQueueRecord{
		RawUserStartTimeUTC:         rawStart,
		RawEndTime:                  rec.String(schema.FieldEndTime),
		RawCallQueueID:              rec.String(schema.FieldCallQueueID),
		RawCallQueueIdentity:        identity,
		RawCallQueueCallResult:      callResult,
		RawCallQueueTargetType:      rec.String(schema.FieldCallQueueTargetType),
		RawCallQueueDurationSeconds: rec.Float(schema.FieldCallQueueDuration, 0),
		RawCallQueueAgentCount:      rec.Int(schema.FieldCallQueueAgentCount, 0),
		RawCallQueueAgentOptInCount: rec.Int(schema.FieldCallQueueAgentOptIn, 0),
		RawPSTNConnectivityType:     rec.String(schema.FieldPSTNConnectivityType),
		RawPSTNTotalMinutes:         rec.Float(schema.FieldPSTNTotalMinutes, 0),
		RawTotalCallCount:           rec.Int(schema.FieldTotalCallCount, 1),

		DocumentID:   rec.String(schema.FieldDocumentID),
		ConferenceID: rec.String(schema.FieldConferenceID),
		DialogID:     rec.String(schema.FieldDialogID),

		CQTargetType: targetType,
		startUTC:     startUTC,
	}

	out.CallStartTimeUTC = startUTC.Format(time.RFC3339)
	startLocal := startUTC.In(e.loc)
	out.CallStartTimeLocal = startLocal.Format(time.RFC3339)
	out.CallStartDateLocal = dayBucket(startLocal).Format(time.RFC3339)
	out.Date = hourBucket(startLocal).Format(time.RFC3339)
	out.CQHour = startLocal.Hour()

	if endUTC, ok := ParseTimestamp(rec.String(schema.FieldEndTime)); ok {
		out.CallEndTimeUTC = endUTC.Format(time.RFC3339)
		out.CallEndTimeLocal = endUTC.In(e.loc).Format(time.RFC3339)
	}

	out.CQConnectivityTypeRaw = out.RawPSTNConnectivityType
	out.CQConnectivityTypeCode, out.CQConnectivityTypeString = legend.ResolveConnectivity(out.RawPSTNConnectivityType)

	out.CQCallResultLegendCode, out.CQCallResultLegendString = legend.ResolveCallResult(callResult, targetType)
	out.CQTargetTypeLegendCode, out.CQTargetTypeLegendString = legend.ResolveTargetType(callResult, targetType)
	if legend.Abandoned(callResult, targetType) {
		out.CQCallCountAbandoned = 1
	}

	out.CQRAName = raName
	out.CQSlicer = raName
	if e.opts.FriendlyName != nil {
		out.CQName = e.opts.FriendlyName(identity)
		if out.CQName != "" {
			out.CQSlicer = out.CQName
		}
	}
	out.DateTimeCQName = formatCompositeTime(startLocal) + raName

	out.CQGUID = out.RawCallQueueID
	out.CQAgentCount = out.RawCallQueueAgentCount
	out.CQAgentOptInCount = out.RawCallQueueAgentOptInCount
	out.CQCallDurationSeconds = out.RawCallQueueDurationSeconds
	out.CQCallCount = out.RawTotalCallCount
	out.CQCallResultRaw = callResult
	out.PSTNTotalMinutes = out.RawPSTNTotalMinutes
	out.LanguageCode = e.opts.LanguageCode
	out.RecordKey = compositeKey(schema.ReportCallQueue, rawStart, identity, out.DocumentID)

	return out, nil
}

func (e *Engine) enrichAutoAttendant(rowIndex int, rec transform.Record) (*AutoAttendantRecord, error) {
	rawStart := rec.String(schema.FieldUserStartTimeUTC)
	startUTC, ok := ParseTimestamp(rawStart)
	if !ok {
		return nil, perrors.NewRowError(perrors.ErrEnrichment, rowIndex, schema.FieldUserStartTimeUTC,
			"unparseable start timestamp %q", rawStart)
	}

	identity := rec.String(schema.FieldAutoAttendantIdentity)
	raName := resourceAccountName(identity)

	out := &AutoAttendantRecord{
		RawAutoAttendantIdentity:              identity,
		RawAutoAttendantCallFlow:              rec.String("AutoAttendantCallFlow"),
		RawAutoAttendantCallResult:            rec.String(schema.FieldAutoAttendantCallResult),
		RawAutoAttendantCallerActionCounts:    rec.Int("AutoAttendantCallerActionCounts", 0),
		RawAutoAttendantChainDurationInSecs:   rec.Float("AutoAttendantChainDurationInSecs", 0),
		RawAutoAttendantChainIndex:            rec.Int("AutoAttendantChainIndex", 0),
		RawAutoAttendantChainStartTime:        rec.String(schema.FieldAutoAttendantChainStart),
		RawAutoAttendantCount:                 rec.Int("AutoAttendantCount", 0),
		RawAutoAttendantDirectorySearchMethod: rec.String("AutoAttendantDirectorySearchMethod"),
		RawAutoAttendantID:                    rec.String(schema.FieldAutoAttendantID),
		RawAutoAttendantTransferAction:        rec.String("AutoAttendantTransferAction"),
		RawHasAA:                              rec.String("HasAA"),
		RawTotalCallCount:                     rec.Int(schema.FieldTotalCallCount, 1),
		RawPSTNTotalMinutes:                   rec.Float(schema.FieldPSTNTotalMinutes, 0),

		DocumentID:   rec.String(schema.FieldDocumentID),
		ConferenceID: rec.String(schema.FieldConferenceID),
		DialogID:     rec.String(schema.FieldDialogID),

		startUTC: startUTC,
	}

	out.AARAName = raName
	out.AASlicer = raName
	if e.opts.FriendlyName != nil {
		out.AAName = e.opts.FriendlyName(identity)
		if out.AAName != "" {
			out.AASlicer = out.AAName
		}
	}

	out.AAGUID = out.RawAutoAttendantID
	out.AACallCount = out.RawTotalCallCount
	out.AAChainDurationSeconds = out.RawAutoAttendantChainDurationInSecs
	out.AACallFlow = out.RawAutoAttendantCallFlow
	out.AACallResult = out.RawAutoAttendantCallResult
	out.AATransferAction = out.RawAutoAttendantTransferAction
	out.PSTNTotalMinutes = out.RawPSTNTotalMinutes
	out.LanguageCode = e.opts.LanguageCode

	if chainUTC, ok := ParseTimestamp(out.RawAutoAttendantChainStartTime); ok {
		out.AAChainStartTimeUTC = chainUTC.Format(time.RFC3339)
	} else {
		out.AAChainStartTimeUTC = out.RawAutoAttendantChainStartTime
	}

	out.CallStartTimeUTC = startUTC.Format(time.RFC3339)
	startLocal := startUTC.In(e.loc)
	out.CallStartTimeLocal = startLocal.Format(time.RFC3339)
	out.Date = hourBucket(startLocal).Format(time.RFC3339)
	out.AAHour = startLocal.Hour()
	out.RecordKey = compositeKey(schema.ReportAutoAttendant, rawStart, identity, out.DocumentID)

	return out, nil
}
