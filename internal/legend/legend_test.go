package legend

import "testing"

func TestCorrectedTargetType(t *testing.T) {
	tests := []struct {
		callResult string
		targetType string
		want       string
	}{
		{"callback_call_timed_out", "User", "Disconnect"},
		{"transferred_to_callback_caller", "ApplicationEndpoint", "User"},
		{"agent_joined_conference", "User", "User"},
		{"disconnected", "Disconnect", "Disconnect"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := CorrectedTargetType(tt.callResult, tt.targetType); got != tt.want {
			t.Errorf("CorrectedTargetType(%q, %q) = %q, want %q", tt.callResult, tt.targetType, got, tt.want)
		}
	}
}

func TestResolveCallResult(t *testing.T) {
	tests := []struct {
		callResult string
		targetType string
		wantCode   int
		wantLabel  string
	}{
		{"agent_joined_conference", "User", CodeAgentAnswered, "Agent Answered"},
		{"transferred_to_agent", "User", CodeAgentAnswered, "Agent Answered"},
		{"transferred_to_callback_caller", "User", CodeAgentAnswered, "Agent Answered"},
		{"overflown", "MailBox", CodeOverflowed, "Overflowed"},
		{"timed_out", "Disconnect", CodeTimedOut, "Timed Out"},
		{"callback_call_timed_out", "Disconnect", CodeTimedOut, "Timed Out"},
		{"no_agent", "User", CodeNoAgents, "No Agents"},
		{NotAuthorizedResult, "", CodeNotAuthorized, "Not Authorized"},
		// Abandoned resolves to the detailed 4012 code at the high level too,
		// which has no high-level label of its own.
		{"disconnected", "Disconnect", CodeAbandoned, "Unknown"},
		{"disconnected", "User", CodeOther, "Other"},
		{"something_new", "User", CodeOther, "Other"},
		{"", "", CodeOther, "Other"},
	}
	for _, tt := range tests {
		code, label := ResolveCallResult(tt.callResult, tt.targetType)
		if code != tt.wantCode || label != tt.wantLabel {
			t.Errorf("ResolveCallResult(%q, %q) = (%d, %q), want (%d, %q)",
				tt.callResult, tt.targetType, code, label, tt.wantCode, tt.wantLabel)
		}
	}
}

func TestResolveTargetType(t *testing.T) {
	tests := []struct {
		callResult string
		targetType string
		wantCode   int
		wantLabel  string
	}{
		{"agent_joined_conference", "User", 4010, "Agent Answered (Call)"},
		{"transferred_to_agent", "User", 4010, "Agent Answered (Call)"},
		{"transferred_to_callback_caller", "User", 4011, "Agent Answered (Callback)"},
		{"disconnected", "Disconnect", 4012, "Abandoned"},
		{"overflown", "ApplicationEndpoint", 4013, "Overflowed (Application)"},
		{"overflown", "ConfigurationEndpoint", 4013, "Overflowed (Application)"},
		{"overflown", "MailBox", 4014, "Overflowed (Voicemail)"},
		{"overflown", "Disconnect", 4015, "Overflowed (Disconnect)"},
		{"overflown", "Phone", 4016, "Overflowed (External)"},
		{"overflown", "User", 4017, "Overflowed (User)"},
		{"timed_out", "ApplicationEndpoint", 4020, "Timed Out (Application)"},
		{"timed_out", "MailBox", 4021, "Timed Out (Voicemail)"},
		{"timed_out", "Disconnect", 4022, "Timed Out (Disconnect)"},
		{"timed_out", "Phone", 4023, "Timed Out (External)"},
		{"timed_out", "User", 4024, "Timed Out (User)"},
		{"callback_call_timed_out", "Disconnect", 4025, "Timed Out (Callback)"},
		{"no_agent", "ApplicationEndpoint", 4030, "No Agents (Application)"},
		{"no_agent", "MailBox", 4031, "No Agents (Voicemail)"},
		{"no_agent", "Disconnect", 4032, "No Agents (Disconnect)"},
		{"no_agent", "Phone", 4033, "No Agents (External)"},
		{"no_agent", "User", 4034, "No Agents (User)"},
		{NotAuthorizedResult, "User", 0, "Not Authorized"},
		{"agent_joined_conference", "Phone", 4005, "Other"},
		{"overflown", "SomethingElse", 4005, "Other"},
		{"unmapped_result", "User", 4005, "Other"},
		{"", "", 4005, "Other"},
	}
	for _, tt := range tests {
		code, label := ResolveTargetType(tt.callResult, tt.targetType)
		if code != tt.wantCode || label != tt.wantLabel {
			t.Errorf("ResolveTargetType(%q, %q) = (%d, %q), want (%d, %q)",
				tt.callResult, tt.targetType, code, label, tt.wantCode, tt.wantLabel)
		}
	}
}

func TestResolveConnectivity(t *testing.T) {
	tests := []struct {
		raw       string
		wantCode  int
		wantLabel string
	}{
		{"CallingPlan", ConnectivityCallingPlan, "Calling Plan"},
		{"DirectRouting", ConnectivityDirectRouting, "Direct Routing"},
		{"OperatorConnect", ConnectivityOperatorConnect, "Operator Connect"},
		{"ACS Call", ConnectivityACSCall, "ACS Call"},
		{"", ConnectivityUnknown, "Unknown"},
		{"Satellite", ConnectivityUnknown, "Unknown"},
	}
	for _, tt := range tests {
		code, label := ResolveConnectivity(tt.raw)
		if code != tt.wantCode || label != tt.wantLabel {
			t.Errorf("ResolveConnectivity(%q) = (%d, %q), want (%d, %q)",
				tt.raw, code, label, tt.wantCode, tt.wantLabel)
		}
	}
}

func TestAbandoned(t *testing.T) {
	if !Abandoned("disconnected", "Disconnect") {
		t.Error("disconnected/Disconnect should be abandoned")
	}
	if Abandoned("disconnected", "User") {
		t.Error("disconnected/User should not be abandoned")
	}
	if Abandoned("timed_out", "Disconnect") {
		t.Error("timed_out/Disconnect should not be abandoned")
	}
}
