// Package vaac is the client for the remote voice-analytics query API. The
// API expects its whole query as a compact-JSON payload that is gzipped,
// base64'd, and URL-escaped into a single query parameter, and answers with
// ordered value arrays.
package vaac

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	"github.com/voicemetrics/vaac-pipeline/internal/window"
	"github.com/voicemetrics/vaac-pipeline/pkg/config"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/resilience"
)

const startTimeLayout = "2006-01-02T15:04:05Z"

// Client issues analytics queries. It treats the API as a true external
// dependency: bounded request timeout, circuit breaker, and a clean split
// between auth failures (fatal for the run) and transient ones (retryable).
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	rowLimit   int
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// NewClient builds a Client from the API configuration.
func NewClient(cfg config.VaacAPIConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		rowLimit:   cfg.RowLimit,
		breaker: resilience.NewCircuitBreaker("vaac-api", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		}),
		logger: slog.Default().With("component", "vaac-client"),
	}
}

// BreakerState exposes the circuit breaker state for metrics.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.GetState()
}

// Query fetches all raw rows for the given window and schema. A response
// with zero rows is a normal result, not an error.
func (c *Client) Query(ctx context.Context, token string, w window.Window, s schema.Schema) ([][]any, error) {
	req := c.buildRequest(w, s)
	encoded, err := encodeQueryParam(req)
	if err != nil {
		return nil, fmt.Errorf("encoding query payload: %w", err)
	}

	var rows [][]any
	err = c.breaker.Execute(func() error {
		var execErr error
		rows, execErr = c.doQuery(ctx, token, encoded)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("query complete",
		"report_type", s.Report,
		"rows", len(rows),
		"window_start", w.StartUTC,
	)
	return rows, nil
}

// buildRequest assembles the wire payload: the precise UTC lower bound plus
// coarse calendar-day bounds, the schema's dimensions and measurements in
// positional order, and the row limit.
func (c *Client) buildRequest(w window.Window, s schema.Schema) QueryRequest {
	dims := make([]FieldRef, 0, len(s.Dimensions))
	for _, d := range s.Dimensions {
		dims = append(dims, FieldRef{DataModelName: d})
	}
	measures := make([]FieldRef, 0, len(s.Measurements))
	for _, m := range s.Measurements {
		measures = append(measures, FieldRef{DataModelName: m})
	}
	return QueryRequest{
		Filters: []Filter{
			{DataModelName: schema.FieldUserStartTimeUTC, Value: w.StartUTC.Format(startTimeLayout), Operand: OperandGreaterOrEqual},
			{DataModelName: schema.FieldDate, Value: w.StartDate, Operand: OperandGreaterOrEqual},
			{DataModelName: schema.FieldDate, Value: w.EndDate, Operand: OperandLessOrEqual},
		},
		Dimensions:           dims,
		Measurements:         measures,
		Parameters:           map[string]string{"UserAgent": c.userAgent},
		LimitResultRowsCount: c.rowLimit,
	}
}

func (c *Client) doQuery(ctx context.Context, token string, encodedQuery string) ([][]any, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?query="+encodedQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", perrors.ErrTransientQuery, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", perrors.ErrAuth, resp.StatusCode, body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", perrors.ErrTransientQuery, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("query rejected: status %d: %s", resp.StatusCode, body)
	}

	var decoded QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", perrors.ErrTransientQuery, err)
	}
	return decoded.DataResult, nil
}

// encodeQueryParam renders the payload as compact JSON, gzips it, base64
// encodes the bytes, and URL-escapes the result for use as the query
// parameter value.
func encodeQueryParam(req QueryRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return url.QueryEscape(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
