package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/platformbuilds/countgate/internal/gate"
	"github.com/platformbuilds/countgate/internal/logging"
	"github.com/platformbuilds/countgate/internal/models"
	"github.com/platformbuilds/countgate/internal/monitoring"
	"github.com/platformbuilds/countgate/internal/tracing"
	"github.com/platformbuilds/countgate/pkg/logger"
)

const (
	// maxResponseBytes bounds how much of a count response is read. A count
	// answer is a few hundred bytes; anything larger is an error page.
	maxResponseBytes = 1 << 20
	// maxErrorBodyBytes bounds the body quoted in a TransportError.
	maxErrorBodyBytes = 2048
)

// CountResponse is a decoded _count answer.
type CountResponse struct {
	Count      int64
	Content    string
	StatusCode int
	Status     string
	Duration   time.Duration
}

// CountFetcher performs one count request. It never retries.
type CountFetcher struct {
	client *http.Client
	logger logger.Logger
	tracer *tracing.GateTracer
}

// NewHTTPClient returns the pooled client shared by all evaluations.
// Deadlines are set per request through the context. tlsConfig may be nil.
func NewHTTPClient(tlsConfig *tls.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
			DialContext: (&net.Dialer{
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func NewCountFetcher(client *http.Client, log logger.Logger, tracer *tracing.GateTracer) *CountFetcher {
	if client == nil {
		client = NewHTTPClient(nil)
	}
	if tracer == nil {
		tracer = tracing.NewGateTracer("countgate")
	}
	return &CountFetcher{client: client, logger: log, tracer: tracer}
}

// FetchCount issues GET req.URL bounded by timeout and returns the rounded
// count. The response body is drained and closed on every path, and the
// request is aborted when the deadline passes.
func (f *CountFetcher) FetchCount(ctx context.Context, req gate.CountRequest, timeout time.Duration, blog logging.BuildLog) (*CountResponse, error) {
	ctx, span := f.tracer.StartCountRequestSpan(ctx, req.Indexes)
	defer span.End()

	start := time.Now()
	resp, err := f.fetch(ctx, req, timeout, blog)
	duration := time.Since(start)
	monitoring.RecordCountQuery(duration, err == nil)

	if err != nil {
		f.tracer.RecordError(span, err)
		f.logger.Warn("count request failed", "url", req.Redacted, "duration", duration, "error", err)
		return nil, err
	}
	resp.Duration = duration
	f.logger.Debug("count request completed", "url", req.Redacted, "count", resp.Count, "duration", duration)
	return resp, nil
}

func (f *CountFetcher) fetch(ctx context.Context, req gate.CountRequest, timeout time.Duration, blog logging.BuildLog) (*CountResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &models.ConfigurationError{Field: "connection.host", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &models.TransportError{URL: req.Redacted, Err: timeoutCause(ctx, err, timeout)}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}()

	blog.Printf("response: %s", resp.Status)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &models.TransportError{URL: req.Redacted, Err: timeoutCause(ctx, fmt.Errorf("read response: %w", err), timeout)}
	}
	content := string(body)
	blog.Printf("content: %s", content)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.TransportError{
			URL:        req.Redacted,
			StatusCode: resp.StatusCode,
			Body:       truncate(content, maxErrorBodyBytes),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	if len(body) > maxResponseBytes {
		return nil, &models.DecodeError{Content: truncate(content, maxErrorBodyBytes), Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}

	count, err := decodeCount(body)
	if err != nil {
		return nil, &models.DecodeError{Content: content, Err: err}
	}
	blog.Printf("count: %d", count)

	return &CountResponse{
		Count:      count,
		Content:    content,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}, nil
}

// decodeCount extracts the numeric "count" field and rounds it to the
// nearest integer. The engine types count as a float.
func decodeCount(body []byte) (int64, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("response is not a JSON object: %w", err)
	}
	raw, ok := payload["count"]
	if !ok {
		return 0, errors.New(`response has no "count" field`)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf(`"count" is not numeric: %v`, raw)
	}
	rounded := math.Round(f)
	if rounded < 0 || rounded >= math.MaxInt64 {
		return 0, fmt.Errorf(`"count" out of range: %v`, f)
	}
	return int64(rounded), nil
}

func timeoutCause(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out after %s: %w", timeout, err)
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
