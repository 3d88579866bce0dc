package services

import (
	"context"
	"errors"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/gate"
	"github.com/platformbuilds/countgate/internal/logging"
	"github.com/platformbuilds/countgate/internal/models"
	"github.com/platformbuilds/countgate/internal/monitoring"
	"github.com/platformbuilds/countgate/internal/tracing"
	"github.com/platformbuilds/countgate/internal/utils/lucene"
	"github.com/platformbuilds/countgate/pkg/logger"
)

// GateOptions tune a GateService. Zero values are usable.
type GateOptions struct {
	Clock        clock.Clock
	Retry        RetryPolicy
	StrictSyntax bool
	Tracer       *tracing.GateTracer
}

// GateService runs the count gate pipeline: window, URL, fetch, verdict.
// It keeps no per-evaluation state and is safe for concurrent use.
type GateService struct {
	conns        config.ConnectionProvider
	fetcher      *CountFetcher
	logger       logger.Logger
	clock        clock.Clock
	retry        RetryPolicy
	strictSyntax bool
	tracer       *tracing.GateTracer
}

func NewGateService(conns config.ConnectionProvider, fetcher *CountFetcher, log logger.Logger, opts GateOptions) *GateService {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = NoRetry
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.NewGateTracer("countgate")
	}
	return &GateService{
		conns:        conns,
		fetcher:      fetcher,
		logger:       log,
		clock:        opts.Clock,
		retry:        opts.Retry,
		strictSyntax: opts.StrictSyntax,
		tracer:       opts.Tracer,
	}
}

// Evaluate runs one evaluation. A tripped gate is reported through
// EvaluationResult.ThresholdExceeded with a nil error; errors are fatal
// and mean no count was obtained.
func (s *GateService) Evaluate(ctx context.Context, name string, spec models.QuerySpec, blog logging.BuildLog) (*models.EvaluationResult, error) {
	if blog == nil {
		blog = logging.Discard
	}
	id := uuid.NewString()
	log := s.logger.With("evaluation_id", id, "gate", name)

	ctx, span := s.tracer.StartEvaluationSpan(ctx, id, name, spec.Query)
	defer span.End()

	result, err := s.evaluate(ctx, id, name, spec, blog, log)
	if err != nil {
		monitoring.RecordEvaluation(name, outcomeFor(err), 0, spec.Threshold)
		s.tracer.RecordError(span, err)
		log.Error("gate evaluation failed", "error", err)
		return nil, err
	}

	outcome := monitoring.OutcomePassed
	if result.ThresholdExceeded {
		outcome = monitoring.OutcomeExceeded
	}
	monitoring.RecordEvaluation(name, outcome, result.Count, result.Threshold)
	s.tracer.RecordVerdict(span, result.Count, result.Threshold, string(result.Comparison), result.ThresholdExceeded)
	log.Info("gate evaluated",
		"count", result.Count,
		"threshold", result.Threshold,
		"comparison", string(result.Comparison),
		"exceeded", result.ThresholdExceeded,
		"duration", result.Duration,
	)
	return result, nil
}

// EvaluationBudget is the worst-case duration of one evaluation under the
// current connection timeout and retry policy.
func (s *GateService) EvaluationBudget() time.Duration {
	return s.retry.Budget(s.conns.Connection().RequestTimeout())
}

// Enforce is Evaluate for build steps: a tripped gate becomes a
// *models.ThresholdExceededError carrying the result.
func (s *GateService) Enforce(ctx context.Context, name string, spec models.QuerySpec, blog logging.BuildLog) (*models.EvaluationResult, error) {
	result, err := s.Evaluate(ctx, name, spec, blog)
	if err != nil {
		return nil, err
	}
	return result, result.Err()
}

func (s *GateService) evaluate(ctx context.Context, id, name string, spec models.QuerySpec, blog logging.BuildLog, log logger.Logger) (*models.EvaluationResult, error) {
	start := s.clock.Now()

	blog.Printf("Query: %s", spec.Query)
	blog.Printf("Fail when: %s", spec.Comparison)
	blog.Printf("Threshold: %d", spec.Threshold)
	blog.Printf("Since: %d", spec.Lookback.Magnitude)
	blog.Printf("Time units: %s", spec.Lookback.Unit)

	conn := s.conns.Connection()
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	blog.Printf("host: %s", conn.Host)

	if err := s.checkSyntax(spec.Query, blog, log); err != nil {
		return nil, err
	}

	loc, err := conn.Location()
	if err != nil {
		return nil, &models.ConfigurationError{Field: "connection.index_timezone", Err: err}
	}
	window := gate.NewIndexWindow(s.clock, conn.Prefix(), loc).Compute(spec.Lookback.Duration(), conn.Indexes)
	blog.Printf("queryIndexes: %s", window.IndexList())

	req, err := gate.BuildCountURL(conn, spec.Query, window.Since, window.IndexList())
	if err != nil {
		return nil, err
	}
	blog.Printf("query url: %s", req.Redacted)

	var resp *CountResponse
	err = s.retry.Do(ctx, func(attempt int) error {
		var ferr error
		resp, ferr = s.fetcher.FetchCount(ctx, req, conn.RequestTimeout(), blog)
		return ferr
	}, func(err error, wait time.Duration) {
		blog.Printf("count request failed, retrying in %s: %v", wait.Round(time.Millisecond), err)
		log.Warn("retrying count request", "wait", wait, "error", err)
	})
	if err != nil {
		return nil, asTyped(req, err)
	}

	blog.Printf("search url: %s", req.SearchURL)

	verdict := gate.Evaluate(resp.Count, spec.Threshold, spec.Comparison, req.Redacted, resp.Content)
	return &models.EvaluationResult{
		ID:                id,
		Gate:              name,
		Count:             resp.Count,
		Threshold:         spec.Threshold,
		Comparison:        spec.Comparison,
		ThresholdExceeded: verdict.Exceeded,
		Message:           verdict.Message,
		URL:               req.Redacted,
		SearchURL:         req.SearchURL,
		Indexes:           window.IndexList(),
		Since:             window.Since,
		Content:           resp.Content,
		Duration:          s.clock.Since(start),
	}, nil
}

func (s *GateService) checkSyntax(query string, blog logging.BuildLog, log logger.Logger) error {
	analysis, err := lucene.Analyze(query)
	if err == nil {
		log.Debug("query parsed", "fields", analysis.Fields)
		return nil
	}
	if s.strictSyntax {
		return &models.ConfigurationError{Field: "query", Err: err}
	}
	blog.Printf("warning: %v", err)
	log.Warn("query did not parse as Lucene; sending it anyway", "error", err)
	return nil
}

// asTyped keeps the error taxonomy intact when the retry loop hands back a
// bare context error.
func asTyped(req gate.CountRequest, err error) error {
	var (
		te *models.TransportError
		de *models.DecodeError
		ce *models.ConfigurationError
	)
	if errors.As(err, &te) || errors.As(err, &de) || errors.As(err, &ce) {
		return err
	}
	return &models.TransportError{URL: req.Redacted, Err: err}
}

func outcomeFor(err error) string {
	var (
		ce *models.ConfigurationError
		ee *models.EncodingError
		de *models.DecodeError
	)
	switch {
	case errors.As(err, &ce):
		return monitoring.OutcomeConfigError
	case errors.As(err, &ee):
		return monitoring.OutcomeEncodingError
	case errors.As(err, &de):
		return monitoring.OutcomeDecodeError
	default:
		return monitoring.OutcomeTransportError
	}
}
