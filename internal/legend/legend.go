// Package legend maps raw call outcome values to the numeric legend codes and
// human-readable labels used by downstream reports. All lookups are total:
// unrecognized input resolves to a defined fallback bucket, never an error.
// The tables are process-wide constants and are never mutated at runtime.
package legend

// High-level call result legend codes.
const (
	CodeAgentAnswered = 4001
	CodeOverflowed    = 4002
	CodeTimedOut      = 4003
	CodeNoAgents      = 4004
	CodeOther         = 4005
	CodeAbandoned     = 4012
	CodeNotAuthorized = 4999
)

// Connectivity type codes.
const (
	ConnectivityCallingPlan     = 8600
	ConnectivityDirectRouting   = 8601
	ConnectivityOperatorConnect = 8602
	ConnectivityACSCall         = 8610
	ConnectivityUnknown         = 8620
)

// NotAuthorizedResult is the sentinel the API emits for call queues the
// querying account is not permitted to see. It maps to its own legend bucket,
// distinct from "Other".
const NotAuthorizedResult = "NOTAUTHCQ"

var connectivityCodes = map[string]int{
	"CallingPlan":     ConnectivityCallingPlan,
	"DirectRouting":   ConnectivityDirectRouting,
	"OperatorConnect": ConnectivityOperatorConnect,
	"ACS Call":        ConnectivityACSCall,
}

var connectivityLabels = map[int]string{
	ConnectivityCallingPlan:     "Calling Plan",
	ConnectivityDirectRouting:   "Direct Routing",
	ConnectivityOperatorConnect: "Operator Connect",
	ConnectivityACSCall:         "ACS Call",
	ConnectivityUnknown:         "Unknown",
}

var callResultLabels = map[int]string{
	CodeAgentAnswered: "Agent Answered",
	CodeOverflowed:    "Overflowed",
	CodeTimedOut:      "Timed Out",
	CodeNoAgents:      "No Agents",
	CodeOther:         "Other",
	CodeNotAuthorized: "Not Authorized",
}

var targetTypeLabels = map[int]string{
	0:    "Not Authorized",
	4005: "Other",
	4010: "Agent Answered (Call)",
	4011: "Agent Answered (Callback)",
	4012: "Abandoned",
	4013: "Overflowed (Application)",
	4014: "Overflowed (Voicemail)",
	4015: "Overflowed (Disconnect)",
	4016: "Overflowed (External)",
	4017: "Overflowed (User)",
	4020: "Timed Out (Application)",
	4021: "Timed Out (Voicemail)",
	4022: "Timed Out (Disconnect)",
	4023: "Timed Out (External)",
	4024: "Timed Out (User)",
	4025: "Timed Out (Callback)",
	4030: "No Agents (Application)",
	4031: "No Agents (Voicemail)",
	4032: "No Agents (Disconnect)",
	4033: "No Agents (External)",
	4034: "No Agents (User)",
}

// CorrectedTargetType fixes the raw target type for the callback and timeout
// special cases before any legend lookup.
func CorrectedTargetType(callResult, targetType string) string {
	switch callResult {
	case "callback_call_timed_out":
		return "Disconnect"
	case "transferred_to_callback_caller":
		return "User"
	default:
		return targetType
	}
}

// ResolveCallResult maps a raw call result (with its corrected target type)
// to the high-level legend code and label.
func ResolveCallResult(callResult, targetType string) (int, string) {
	code := callResultCode(callResult, targetType)
	label, ok := callResultLabels[code]
	if !ok {
		label = "Unknown"
	}
	return code, label
}

func callResultCode(callResult, targetType string) int {
	switch {
	case callResult == NotAuthorizedResult:
		return CodeNotAuthorized
	case callResult == "disconnected" && targetType == "Disconnect":
		// Abandoned calls land in the detailed 4012 bucket even at the
		// high level, matching the upstream report semantics.
		return CodeAbandoned
	case callResult == "agent_joined_conference",
		callResult == "transferred_to_agent",
		callResult == "transferred_to_callback_caller":
		return CodeAgentAnswered
	case callResult == "overflown":
		return CodeOverflowed
	case callResult == "timed_out", callResult == "callback_call_timed_out":
		return CodeTimedOut
	case callResult == "no_agent":
		return CodeNoAgents
	default:
		return CodeOther
	}
}

// ResolveTargetType maps the {call result, corrected target type} pair to the
// detailed disposition code and label.
func ResolveTargetType(callResult, targetType string) (int, string) {
	code := targetTypeCode(callResult, targetType)
	label, ok := targetTypeLabels[code]
	if !ok {
		label = "Unknown"
	}
	return code, label
}

func targetTypeCode(callResult, targetType string) int {
	if callResult == NotAuthorizedResult {
		return 0
	}
	switch callResult {
	case "agent_joined_conference", "transferred_to_agent":
		if targetType == "User" {
			return 4010
		}
	case "transferred_to_callback_caller":
		if targetType == "User" {
			return 4011
		}
	case "disconnected":
		if targetType == "Disconnect" {
			return 4012
		}
	case "overflown":
		if code, ok := dispositionVariant(targetType, 4013); ok {
			return code
		}
	case "timed_out":
		if code, ok := dispositionVariant(targetType, 4020); ok {
			return code
		}
	case "callback_call_timed_out":
		if targetType == "Disconnect" {
			return 4025
		}
	case "no_agent":
		if code, ok := dispositionVariant(targetType, 4030); ok {
			return code
		}
	}
	return CodeOther
}

// dispositionVariant maps a target type to an offset within a disposition
// block (base+0 application, +1 voicemail, +2 disconnect, +3 external,
// +4 user).
func dispositionVariant(targetType string, base int) (int, bool) {
	switch targetType {
	case "ApplicationEndpoint", "ConfigurationEndpoint":
		return base, true
	case "MailBox":
		return base + 1, true
	case "Disconnect":
		return base + 2, true
	case "Phone":
		return base + 3, true
	case "User":
		return base + 4, true
	}
	return 0, false
}

// ResolveConnectivity maps a raw PSTN connectivity value to its numeric code
// and label. Blank and unrecognized values resolve to the unknown bucket.
func ResolveConnectivity(raw string) (int, string) {
	code, ok := connectivityCodes[raw]
	if !ok {
		code = ConnectivityUnknown
	}
	return code, connectivityLabels[code]
}

// Abandoned reports whether the {call result, corrected target type} pair
// represents an abandoned call.
func Abandoned(callResult, targetType string) bool {
	return callResult == "disconnected" && targetType == "Disconnect"
}
