package enrich

import (
	"strings"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
)

// Record is one fully enriched call event, ready for the event sink. Records
// are immutable after creation and independently derivable from their decoded
// row, so a batch of them can be produced in any order.
type Record interface {
	// Key is the composite deduplication key downstream consumers use to
	// discard duplicates across overlapping extraction windows.
	Key() string
	// StartUTC is the parsed precise call start time; the pipeline commits
	// its checkpoint to the maximum StartUTC among written records.
	StartUTC() time.Time
	Report() schema.ReportType
}

// CallQueueRecord is the enriched form of one call queue event.
type CallQueueRecord struct {
	// Raw fields preserved from the API response.
	RawUserStartTimeUTC         string  `json:"rawUserStartTimeUTC"`
	RawEndTime                  string  `json:"rawEndTime"`
	RawCallQueueID              string  `json:"rawCallQueueId"`
	RawCallQueueIdentity        string  `json:"rawCallQueueIdentity"`
	RawCallQueueCallResult      string  `json:"rawCallQueueCallResult"`
	RawCallQueueTargetType      string  `json:"rawCallQueueTargetType"`
	RawCallQueueDurationSeconds float64 `json:"rawCallQueueDurationSeconds"`
	RawCallQueueAgentCount      int     `json:"rawCallQueueAgentCount"`
	RawCallQueueAgentOptInCount int     `json:"rawCallQueueAgentOptInCount"`
	RawPSTNConnectivityType     string  `json:"rawPSTNConnectivityType"`
	RawPSTNTotalMinutes         float64 `json:"rawPSTNTotalMinutes"`
	RawTotalCallCount           int     `json:"rawTotalCallCount"`

	DocumentID   string `json:"DocumentID"`
	ConferenceID string `json:"ConferenceID"`
	DialogID     string `json:"DialogID"`

	// Derived fields.
	CQTargetType             string  `json:"CQTargetType"`
	CallStartTimeUTC         string  `json:"CallStartTimeUTC"`
	CallEndTimeUTC           string  `json:"CallEndTimeUTC"`
	CallStartTimeLocal       string  `json:"CallStartTimeLocal"`
	CallEndTimeLocal         string  `json:"CallEndTimeLocal"`
	CallStartDateLocal       string  `json:"CallStartDateLocal"`
	Date                     string  `json:"Date"`
	DateTimeCQName           string  `json:"DateTimeCQName"`
	CQConnectivityTypeCode   int     `json:"CQConnectivityTypeCode"`
	CQConnectivityTypeString string  `json:"CQConnectivityTypeString"`
	CQConnectivityTypeRaw    string  `json:"CQConnectivityTypeRaw"`
	CQCallResultLegendCode   int     `json:"CQCallResultLegendCode"`
	CQCallResultLegendString string  `json:"CQCallResultLegendString"`
	CQTargetTypeLegendCode   int     `json:"CQTargetTypeLegendCode"`
	CQTargetTypeLegendString string  `json:"CQTargetTypeLegendString"`
	CQCallCountAbandoned     int     `json:"CQCallCountAbandoned"`
	CQHour                   int     `json:"CQHour"`
	CQRAName                 string  `json:"CQRAName"`
	CQSlicer                 string  `json:"CQSlicer"`
	CQGUID                   string  `json:"CQGUID"`
	CQName                   string  `json:"CQName"`
	CQAgentCount             int     `json:"CQAgentCount"`
	CQAgentOptInCount        int     `json:"CQAgentOptInCount"`
	CQCallDurationSeconds    float64 `json:"CQCallDurationSeconds"`
	CQCallCount              int     `json:"CQCallCount"`
	CQCallResultRaw          string  `json:"CQCallResultRaw"`
	PSTNTotalMinutes         float64 `json:"PSTNTotalMinutes"`
	LanguageCode             string  `json:"LanguageCode"`
	RecordKey                string  `json:"RecordKey"`

	startUTC time.Time
}

func (r *CallQueueRecord) Key() string               { return r.RecordKey }
func (r *CallQueueRecord) StartUTC() time.Time       { return r.startUTC }
func (r *CallQueueRecord) Report() schema.ReportType { return schema.ReportCallQueue }

// AutoAttendantRecord is the enriched form of one auto attendant event.
type AutoAttendantRecord struct {
	RawAutoAttendantIdentity              string  `json:"rawAutoAttendantIdentity"`
	RawAutoAttendantCallFlow              string  `json:"rawAutoAttendantCallFlow"`
	RawAutoAttendantCallResult            string  `json:"rawAutoAttendantCallResult"`
	RawAutoAttendantCallerActionCounts    int     `json:"rawAutoAttendantCallerActionCounts"`
	RawAutoAttendantChainDurationInSecs   float64 `json:"rawAutoAttendantChainDurationInSecs"`
	RawAutoAttendantChainIndex            int     `json:"rawAutoAttendantChainIndex"`
	RawAutoAttendantChainStartTime        string  `json:"rawAutoAttendantChainStartTime"`
	RawAutoAttendantCount                 int     `json:"rawAutoAttendantCount"`
	RawAutoAttendantDirectorySearchMethod string  `json:"rawAutoAttendantDirectorySearchMethod"`
	RawAutoAttendantID                    string  `json:"rawAutoAttendantId"`
	RawAutoAttendantTransferAction        string  `json:"rawAutoAttendantTransferAction"`
	RawHasAA                              string  `json:"rawHasAA"`
	RawTotalCallCount                     int     `json:"rawTotalCallCount"`
	RawPSTNTotalMinutes                   float64 `json:"rawPSTNTotalMinutes"`

	DocumentID   string `json:"DocumentID"`
	ConferenceID string `json:"ConferenceID"`
	DialogID     string `json:"DialogID"`

	AARAName               string  `json:"AARAName"`
	AASlicer               string  `json:"AASlicer"`
	AAName                 string  `json:"AAName"`
	AAGUID                 string  `json:"AAGUID"`
	AACallCount            int     `json:"AACallCount"`
	AAChainDurationSeconds float64 `json:"AAChainDurationSeconds"`
	AACallFlow             string  `json:"AACallFlow"`
	AACallResult           string  `json:"AACallResult"`
	AATransferAction       string  `json:"AATransferAction"`
	AAChainStartTimeUTC    string  `json:"AAChainStartTimeUTC"`
	AAHour                 int     `json:"AAHour"`
	CallStartTimeUTC       string  `json:"CallStartTimeUTC"`
	CallStartTimeLocal     string  `json:"CallStartTimeLocal"`
	Date                   string  `json:"Date"`
	PSTNTotalMinutes       float64 `json:"PSTNTotalMinutes"`
	LanguageCode           string  `json:"LanguageCode"`
	RecordKey              string  `json:"RecordKey"`

	startUTC time.Time
}

func (r *AutoAttendantRecord) Key() string               { return r.RecordKey }
func (r *AutoAttendantRecord) StartUTC() time.Time       { return r.startUTC }
func (r *AutoAttendantRecord) Report() schema.ReportType { return schema.ReportAutoAttendant }

// resourceAccountName extracts the account name from a resource URI, e.g.
// "CQBrookvaleEyecare@example.com" yields "CQBrookvaleEyecare".
func resourceAccountName(identity string) string {
	if identity == "" {
		return ""
	}
	if at := strings.IndexByte(identity, '@'); at >= 0 {
		return identity[:at]
	}
	return identity
}

// compositeKey builds the deduplication key: report type, raw precise UTC
// start, the queue or resource identity, and the document ID when present.
// The document ID guards against two simultaneous events funnelled through
// the same resource identity colliding on timestamp alone.
func compositeKey(report schema.ReportType, rawStart, identity, documentID string) string {
	parts := []string{string(report), rawStart, identity}
	if documentID != "" {
		parts = append(parts, documentID)
	}
	return strings.Join(parts, "|")
}
