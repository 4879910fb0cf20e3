// Package schema defines the positional field contract for analytics query
// results. The remote API returns each call event as an ordered array with no
// field names; the Schema for a report type is the single source of truth for
// what each position means.
package schema

import (
	"fmt"

	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

// ReportType selects which dimension set a query requests.
type ReportType string

const (
	ReportCallQueue     ReportType = "call_queue"
	ReportAutoAttendant ReportType = "auto_attendant"
)

// Field names shared by every report type. The decoder and enricher address
// decoded records through these constants rather than raw strings.
const (
	FieldDocumentID       = "DocumentId"
	FieldConferenceID     = "ConferenceId"
	FieldDialogID         = "DialogId"
	FieldUserStartTimeUTC = "UserStartTimeUTC"
	FieldEndTime          = "EndTime"
	FieldDate             = "Date"

	FieldCallQueueIdentity        = "CallQueueIdentity"
	FieldCallQueueCallResult      = "CallQueueCallResult"
	FieldCallQueueTargetType      = "CallQueueTargetType"
	FieldCallQueueID              = "CallQueueId"
	FieldCallQueueDuration        = "CallQueueDurationSeconds"
	FieldCallQueueAgentCount      = "CallQueueAgentCount"
	FieldCallQueueAgentOptIn      = "CallQueueAgentOptInCount"
	FieldPSTNConnectivityType     = "PSTNConnectivityType"
	FieldAutoAttendantIdentity    = "AutoAttendantIdentity"
	FieldAutoAttendantID          = "AutoAttendantId"
	FieldAutoAttendantCallResult  = "AutoAttendantCallResult"
	FieldAutoAttendantChainStart  = "AutoAttendantChainStartTime"
	FieldPSTNTotalMinutes         = "PSTNTotalMinutes"
	FieldTotalCallCount           = "TotalCallCount"
)

// commonDimensions is the prefix every report type shares. Its order must
// exactly match the positional order the remote API emits; reordering it
// without a matching upstream change silently corrupts decoded records.
var commonDimensions = []string{
	FieldDocumentID,
	FieldConferenceID,
	FieldDialogID,
	FieldUserStartTimeUTC,
	FieldEndTime,
	FieldDate,
}

var callQueueDimensions = []string{
	FieldCallQueueIdentity,
	FieldCallQueueAgentCount,
	FieldCallQueueAgentOptIn,
	FieldCallQueueCallResult,
	FieldCallQueueDuration,
	"CallQueueFinalStateAction",
	FieldCallQueueID,
	FieldCallQueueTargetType,
	"HasCQ",
	"TransferredFromCQId",
	"TransferredFromCallQueueIdentity",
}

var autoAttendantDimensions = []string{
	FieldAutoAttendantIdentity,
	"AutoAttendantCallFlow",
	FieldAutoAttendantCallResult,
	"AutoAttendantCallerActionCounts",
	"AutoAttendantChainDurationInSecs",
	"AutoAttendantChainIndex",
	FieldAutoAttendantChainStart,
	"AutoAttendantCount",
	"AutoAttendantDirectorySearchMethod",
	FieldAutoAttendantID,
	"AutoAttendantTransferAction",
	"HasAA",
}

var defaultMeasurements = []string{
	FieldPSTNTotalMinutes,
	FieldTotalCallCount,
}

var optionalCallQueueMeasurements = []string{
	"AvgCallDuration",
	"AvgCallQueueDurationSeconds",
}

var optionalAutoAttendantMeasurements = []string{
	"AvgAutoAttendantChainDurationSeconds",
}

var optionalGeneralMeasurements = []string{
	"TotalAudioStreamDuration",
}

// Schema is the ordered field list for one report type. Dimensions come
// first, then measurements, mirroring the order of values in each raw row.
type Schema struct {
	Report       ReportType
	Dimensions   []string
	Measurements []string
}

// ForReportType returns the Schema for the given report type. When
// includeOptional is set, the optional per-report and general measurements
// are appended after the defaults.
func ForReportType(report ReportType, includeOptional bool) (Schema, error) {
	var dims, optional []string
	switch report {
	case ReportCallQueue:
		dims = callQueueDimensions
		optional = optionalCallQueueMeasurements
	case ReportAutoAttendant:
		dims = autoAttendantDimensions
		optional = optionalAutoAttendantMeasurements
	default:
		return Schema{}, fmt.Errorf("%w: %q", perrors.ErrUnknownReportType, report)
	}

	dimensions := make([]string, 0, len(commonDimensions)+len(dims))
	dimensions = append(dimensions, commonDimensions...)
	dimensions = append(dimensions, dims...)

	measurements := make([]string, 0, len(defaultMeasurements)+len(optional)+len(optionalGeneralMeasurements))
	measurements = append(measurements, defaultMeasurements...)
	if includeOptional {
		measurements = append(measurements, optional...)
		measurements = append(measurements, optionalGeneralMeasurements...)
	}

	return Schema{
		Report:       report,
		Dimensions:   dimensions,
		Measurements: measurements,
	}, nil
}

// Fields returns the full ordered field list: dimensions then measurements.
// Position i of a raw row corresponds to Fields()[i].
func (s Schema) Fields() []string {
	fields := make([]string, 0, len(s.Dimensions)+len(s.Measurements))
	fields = append(fields, s.Dimensions...)
	fields = append(fields, s.Measurements...)
	return fields
}

// Len returns the expected value count of a raw row for this schema.
func (s Schema) Len() int {
	return len(s.Dimensions) + len(s.Measurements)
}
