package vaac

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	"github.com/voicemetrics/vaac-pipeline/internal/window"
	"github.com/voicemetrics/vaac-pipeline/pkg/config"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
)

func testWindow() window.Window {
	return window.Window{
		StartUTC:  time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
		StartDate: "2025-07-14",
		EndDate:   "2025-07-15",
	}
}

func testClient(baseURL string) *Client {
	return NewClient(config.VaacAPIConfig{
		BaseURL:        baseURL,
		UserAgent:      "test-agent",
		RowLimit:       90000,
		RequestTimeout: 5 * time.Second,
	})
}

// decodeQueryParam reverses the wire encoding: base64 decode, gunzip, JSON.
func decodeQueryParam(t *testing.T, encoded string) QueryRequest {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()
	var req QueryRequest
	if err := json.NewDecoder(gz).Decode(&req); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	return req
}

func TestQueryEncodesPayload(t *testing.T) {
	s, err := schema.ForReportType(schema.ReportCallQueue, false)
	if err != nil {
		t.Fatalf("building schema: %v", err)
	}

	var got QueryRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		got = decodeQueryParam(t, r.URL.Query().Get("query"))
		json.NewEncoder(w).Encode(QueryResponse{DataResult: [][]any{{"a"}, {"b"}}})
	}))
	defer server.Close()

	rows, err := testClient(server.URL).Query(context.Background(), "tok-123", testWindow(), s)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
	if authHeader != "Bearer tok-123" {
		t.Errorf("Authorization = %q", authHeader)
	}

	if len(got.Filters) != 3 {
		t.Fatalf("filters = %d, want 3", len(got.Filters))
	}
	start := got.Filters[0]
	if start.DataModelName != schema.FieldUserStartTimeUTC ||
		start.Value != "2025-07-14T10:00:00Z" ||
		start.Operand != OperandGreaterOrEqual {
		t.Errorf("start filter = %+v", start)
	}
	if got.Filters[1].Value != "2025-07-14" || got.Filters[1].Operand != OperandGreaterOrEqual {
		t.Errorf("start date filter = %+v", got.Filters[1])
	}
	if got.Filters[2].Value != "2025-07-15" || got.Filters[2].Operand != OperandLessOrEqual {
		t.Errorf("end date filter = %+v", got.Filters[2])
	}

	if len(got.Dimensions) != len(s.Dimensions) || len(got.Measurements) != len(s.Measurements) {
		t.Errorf("field counts = (%d, %d), want (%d, %d)",
			len(got.Dimensions), len(got.Measurements), len(s.Dimensions), len(s.Measurements))
	}
	if got.Dimensions[0].DataModelName != schema.FieldDocumentID {
		t.Errorf("first dimension = %q", got.Dimensions[0].DataModelName)
	}
	if got.LimitResultRowsCount != 90000 {
		t.Errorf("row limit = %d", got.LimitResultRowsCount)
	}
	if got.Parameters["UserAgent"] != "test-agent" {
		t.Errorf("user agent = %q", got.Parameters["UserAgent"])
	}
}

func TestQueryStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, perrors.ErrAuth},
		{http.StatusForbidden, perrors.ErrAuth},
		{http.StatusTooManyRequests, perrors.ErrTransientQuery},
		{http.StatusInternalServerError, perrors.ErrTransientQuery},
		{http.StatusBadGateway, perrors.ErrTransientQuery},
	}
	s, _ := schema.ForReportType(schema.ReportCallQueue, false)
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := testClient(server.URL).Query(context.Background(), "tok", testWindow(), s)
		server.Close()
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestQueryBadRequestNotRetryable(t *testing.T) {
	s, _ := schema.ForReportType(schema.ReportCallQueue, false)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed query", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Query(context.Background(), "tok", testWindow(), s)
	if err == nil {
		t.Fatal("expected error")
	}
	if perrors.Retryable(err) {
		t.Errorf("4xx rejection should not be retryable: %v", err)
	}
	if errors.Is(err, perrors.ErrAuth) {
		t.Errorf("400 should not map to ErrAuth: %v", err)
	}
}

func TestQueryEmptyResult(t *testing.T) {
	s, _ := schema.ForReportType(schema.ReportCallQueue, false)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QueryResponse{})
	}))
	defer server.Close()

	rows, err := testClient(server.URL).Query(context.Background(), "tok", testWindow(), s)
	if err != nil {
		t.Fatalf("empty result should not be an error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestStaticTokenProvider(t *testing.T) {
	tok, err := StaticTokenProvider("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("Token() = (%q, %v)", tok, err)
	}
}
