package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	"github.com/voicemetrics/vaac-pipeline/internal/transform"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

func callQueueRow(start string) transform.Record {
	return transform.Record{
		schema.FieldDocumentID:           "doc-1",
		schema.FieldConferenceID:         "conf-1",
		schema.FieldDialogID:             "dlg-1",
		schema.FieldUserStartTimeUTC:     start,
		schema.FieldEndTime:              "2025-07-15T03:35:00Z",
		schema.FieldDate:                 "2025-07-15",
		schema.FieldCallQueueIdentity:    "CQBrookvale@contoso.com",
		schema.FieldCallQueueAgentCount:  5.0,
		schema.FieldCallQueueAgentOptIn:  3.0,
		schema.FieldCallQueueCallResult:  "agent_joined_conference",
		schema.FieldCallQueueDuration:    42.5,
		schema.FieldCallQueueID:          "cq-guid-1",
		schema.FieldCallQueueTargetType:  "User",
		schema.FieldPSTNConnectivityType: "DirectRouting",
		schema.FieldPSTNTotalMinutes:     2.5,
		schema.FieldTotalCallCount:       1.0,
	}
}

func TestEnrichCallQueue(t *testing.T) {
	engine := NewEngine(Options{
		Timezone:     "Australia/Sydney",
		LanguageCode: "en-AU",
		FriendlyName: func(identity string) string {
			if identity == "CQBrookvale@contoso.com" {
				return "Brookvale Eyecare"
			}
			return ""
		},
	})

	got, err := engine.Enrich(schema.ReportCallQueue, 0, callQueueRow("2025-07-15T03:30:00Z"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := got.(*CallQueueRecord)
	if !ok {
		t.Fatalf("record type = %T, want *CallQueueRecord", got)
	}

	// July is winter in Sydney, so local time is UTC+10.
	if rec.CallStartTimeUTC != "2025-07-15T03:30:00Z" {
		t.Errorf("CallStartTimeUTC = %q", rec.CallStartTimeUTC)
	}
	if rec.CallStartTimeLocal != "2025-07-15T13:30:00+10:00" {
		t.Errorf("CallStartTimeLocal = %q", rec.CallStartTimeLocal)
	}
	if rec.Date != "2025-07-15T13:00:00+10:00" {
		t.Errorf("Date = %q", rec.Date)
	}
	if rec.CallStartDateLocal != "2025-07-15T00:00:00+10:00" {
		t.Errorf("CallStartDateLocal = %q", rec.CallStartDateLocal)
	}
	if rec.CQHour != 13 {
		t.Errorf("CQHour = %d, want 13", rec.CQHour)
	}
	if rec.DateTimeCQName != "15/7/2025 1:30:00 PMCQBrookvale" {
		t.Errorf("DateTimeCQName = %q", rec.DateTimeCQName)
	}

	if rec.CQCallResultLegendCode != 4001 || rec.CQCallResultLegendString != "Agent Answered" {
		t.Errorf("call result legend = (%d, %q)", rec.CQCallResultLegendCode, rec.CQCallResultLegendString)
	}
	if rec.CQTargetTypeLegendCode != 4010 || rec.CQTargetTypeLegendString != "Agent Answered (Call)" {
		t.Errorf("target type legend = (%d, %q)", rec.CQTargetTypeLegendCode, rec.CQTargetTypeLegendString)
	}
	if rec.CQConnectivityTypeCode != 8601 || rec.CQConnectivityTypeString != "Direct Routing" {
		t.Errorf("connectivity = (%d, %q)", rec.CQConnectivityTypeCode, rec.CQConnectivityTypeString)
	}
	if rec.CQCallCountAbandoned != 0 {
		t.Errorf("CQCallCountAbandoned = %d, want 0", rec.CQCallCountAbandoned)
	}

	if rec.CQRAName != "CQBrookvale" {
		t.Errorf("CQRAName = %q", rec.CQRAName)
	}
	if rec.CQName != "Brookvale Eyecare" || rec.CQSlicer != "Brookvale Eyecare" {
		t.Errorf("name/slicer = (%q, %q)", rec.CQName, rec.CQSlicer)
	}
	if rec.CQGUID != "cq-guid-1" || rec.CQAgentCount != 5 || rec.CQAgentOptInCount != 3 {
		t.Errorf("passthrough fields = (%q, %d, %d)", rec.CQGUID, rec.CQAgentCount, rec.CQAgentOptInCount)
	}
	if rec.CQCallDurationSeconds != 42.5 || rec.CQCallCount != 1 || rec.PSTNTotalMinutes != 2.5 {
		t.Errorf("measurements = (%v, %d, %v)", rec.CQCallDurationSeconds, rec.CQCallCount, rec.PSTNTotalMinutes)
	}
	if rec.LanguageCode != "en-AU" {
		t.Errorf("LanguageCode = %q", rec.LanguageCode)
	}

	wantKey := "call_queue|2025-07-15T03:30:00Z|CQBrookvale@contoso.com|doc-1"
	if rec.Key() != wantKey {
		t.Errorf("Key() = %q, want %q", rec.Key(), wantKey)
	}
	if rec.StartUTC().Format("2006-01-02T15:04:05Z") != "2025-07-15T03:30:00Z" {
		t.Errorf("StartUTC() = %v", rec.StartUTC())
	}
}

func TestEnrichLocalTimeRoundTrip(t *testing.T) {
	engine := NewEngine(Options{Timezone: "Australia/Sydney"})
	// Straddles the DST transition on 2025-10-05 02:00 AEST.
	starts := []string{"2025-10-04T15:59:00Z", "2025-10-05T16:01:00Z"}
	offsets := make([]string, 0, len(starts))
	for _, start := range starts {
		got, err := engine.Enrich(schema.ReportCallQueue, 0, callQueueRow(start))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec := got.(*CallQueueRecord)
		local, err := time.Parse(time.RFC3339, rec.CallStartTimeLocal)
		if err != nil {
			t.Fatalf("parsing local time %q: %v", rec.CallStartTimeLocal, err)
		}
		if !local.UTC().Equal(rec.StartUTC()) {
			t.Errorf("local time %q does not round-trip to %v", rec.CallStartTimeLocal, rec.StartUTC())
		}
		offsets = append(offsets, local.Format("-07:00"))
	}
	if offsets[0] != "+10:00" || offsets[1] != "+11:00" {
		t.Errorf("offsets across DST transition = %v, want [+10:00 +11:00]", offsets)
	}
}

func TestEnrichCallQueueAbandoned(t *testing.T) {
	engine := NewEngine(Options{})
	row := callQueueRow("2025-07-15T03:30:00Z")
	row[schema.FieldCallQueueCallResult] = "disconnected"
	row[schema.FieldCallQueueTargetType] = "Disconnect"

	got, err := engine.Enrich(schema.ReportCallQueue, 0, row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := got.(*CallQueueRecord)
	if rec.CQCallCountAbandoned != 1 {
		t.Errorf("CQCallCountAbandoned = %d, want 1", rec.CQCallCountAbandoned)
	}
	if rec.CQCallResultLegendCode != 4012 {
		t.Errorf("CQCallResultLegendCode = %d, want 4012", rec.CQCallResultLegendCode)
	}
	if rec.CQTargetTypeLegendString != "Abandoned" {
		t.Errorf("CQTargetTypeLegendString = %q", rec.CQTargetTypeLegendString)
	}
}

func TestEnrichCallQueueCallbackCorrection(t *testing.T) {
	engine := NewEngine(Options{})
	row := callQueueRow("2025-07-15T03:30:00Z")
	row[schema.FieldCallQueueCallResult] = "transferred_to_callback_caller"
	row[schema.FieldCallQueueTargetType] = "ApplicationEndpoint"

	got, err := engine.Enrich(schema.ReportCallQueue, 0, row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := got.(*CallQueueRecord)
	if rec.CQTargetType != "User" {
		t.Errorf("CQTargetType = %q, want corrected User", rec.CQTargetType)
	}
	if rec.CQTargetTypeLegendCode != 4011 {
		t.Errorf("CQTargetTypeLegendCode = %d, want 4011", rec.CQTargetTypeLegendCode)
	}
}

func TestEnrichAutoAttendant(t *testing.T) {
	engine := NewEngine(Options{Timezone: "UTC+10:00"})
	row := transform.Record{
		schema.FieldDocumentID:            "doc-2",
		schema.FieldUserStartTimeUTC:      "2025-07-15T03:30:00Z",
		schema.FieldAutoAttendantIdentity: "AAReception@contoso.com",
		"AutoAttendantCallFlow":           "DefaultCallFlow",
		schema.FieldAutoAttendantID:       "aa-guid-1",
		schema.FieldAutoAttendantChainStart: "2025-07-15T03:29:58Z",
		"AutoAttendantTransferAction":     "transfer_to_call_queue",
		schema.FieldTotalCallCount:        1.0,
		schema.FieldPSTNTotalMinutes:      0.8,
	}

	got, err := engine.Enrich(schema.ReportAutoAttendant, 0, row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := got.(*AutoAttendantRecord)
	if !ok {
		t.Fatalf("record type = %T, want *AutoAttendantRecord", got)
	}
	if rec.AARAName != "AAReception" || rec.AASlicer != "AAReception" {
		t.Errorf("name fields = (%q, %q)", rec.AARAName, rec.AASlicer)
	}
	if rec.AAGUID != "aa-guid-1" || rec.AACallFlow != "DefaultCallFlow" {
		t.Errorf("passthrough fields = (%q, %q)", rec.AAGUID, rec.AACallFlow)
	}
	if rec.AAHour != 13 {
		t.Errorf("AAHour = %d, want 13", rec.AAHour)
	}
	if rec.AAChainStartTimeUTC != "2025-07-15T03:29:58Z" {
		t.Errorf("AAChainStartTimeUTC = %q", rec.AAChainStartTimeUTC)
	}
	wantKey := "auto_attendant|2025-07-15T03:30:00Z|AAReception@contoso.com|doc-2"
	if rec.Key() != wantKey {
		t.Errorf("Key() = %q, want %q", rec.Key(), wantKey)
	}
}

func TestEnrichUnparseableStart(t *testing.T) {
	engine := NewEngine(Options{})
	row := callQueueRow("yesterday-ish")
	_, err := engine.Enrich(schema.ReportCallQueue, 3, row)
	if !errors.Is(err, perrors.ErrEnrichment) {
		t.Fatalf("error = %v, want ErrEnrichment", err)
	}
	var rowErr *perrors.RowError
	if !errors.As(err, &rowErr) || rowErr.RowIndex != 3 {
		t.Fatalf("row context missing from error: %v", err)
	}
}

func TestEnrichUnknownReportType(t *testing.T) {
	engine := NewEngine(Options{})
	if _, err := engine.Enrich("billing", 0, callQueueRow("2025-07-15T03:30:00Z")); err == nil {
		t.Fatal("expected error for unknown report type")
	}
}

func TestEnrichBatchSkipsBadRows(t *testing.T) {
	engine := NewEngine(Options{Parallelism: 2})
	s, err := schema.ForReportType(schema.ReportCallQueue, false)
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}
	records := []transform.Record{
		callQueueRow("2025-07-15T03:30:00Z"),
		callQueueRow(""),
		callQueueRow("2025-07-15T04:00:00Z"),
	}

	enriched, rowErrs := engine.EnrichBatch(context.Background(), s, records)
	if len(enriched) != 2 {
		t.Fatalf("enriched count = %d, want 2", len(enriched))
	}
	if len(rowErrs) != 1 {
		t.Fatalf("row error count = %d, want 1", len(rowErrs))
	}
	if rowErrs[0].RowIndex != 1 {
		t.Errorf("failed row index = %d, want 1", rowErrs[0].RowIndex)
	}
	if !errors.Is(rowErrs[0], perrors.ErrEnrichment) {
		t.Errorf("row error = %v, want ErrEnrichment", rowErrs[0])
	}
}

func TestEnrichBatchEmpty(t *testing.T) {
	engine := NewEngine(Options{})
	s, _ := schema.ForReportType(schema.ReportCallQueue, false)
	enriched, rowErrs := engine.EnrichBatch(context.Background(), s, nil)
	if len(enriched) != 0 || len(rowErrs) != 0 {
		t.Errorf("EnrichBatch(nil) = (%d, %d), want (0, 0)", len(enriched), len(rowErrs))
	}
}
