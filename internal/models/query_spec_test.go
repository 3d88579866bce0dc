package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() QueryParams {
	return QueryParams{
		Query:      "  status:500 ",
		Comparison: "gte",
		Threshold:  i64(10),
		Since:      i64(1),
		Units:      "HOURS",
	}
}

func TestNewQuerySpec_Valid(t *testing.T) {
	spec, err := NewQuerySpec(validParams())
	require.NoError(t, err)

	assert.Equal(t, "status:500", spec.Query)
	assert.Equal(t, ComparisonGTE, spec.Comparison)
	assert.Equal(t, int64(10), spec.Threshold)
	assert.Equal(t, Lookback{Magnitude: 1, Unit: Hours}, spec.Lookback)
	assert.Equal(t, time.Hour, spec.Lookback.Duration())
}

func TestNewQuerySpec_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(p *QueryParams)
		field string
		err   error
	}{
		{"blank query", func(p *QueryParams) { p.Query = " " }, "query", ErrQueryRequired},
		{"bad comparison", func(p *QueryParams) { p.Comparison = "eq" }, "comparison", ErrInvalidComparison},
		{"nil threshold", func(p *QueryParams) { p.Threshold = nil }, "threshold", ErrInvalidThreshold},
		{"negative threshold", func(p *QueryParams) { p.Threshold = i64(-1) }, "threshold", ErrInvalidThreshold},
		{"nil since", func(p *QueryParams) { p.Since = nil }, "since", ErrInvalidSince},
		{"zero since", func(p *QueryParams) { p.Since = i64(0) }, "since", ErrInvalidSince},
		{"bad units", func(p *QueryParams) { p.Units = "WEEKS" }, "units", ErrInvalidUnits},
		{"overflow", func(p *QueryParams) { p.Since = i64(math.MaxInt64 / 2); p.Units = "DAYS" }, "since", ErrLookbackTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mod(&p)
			_, err := NewQuerySpec(p)
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, ce.Field)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestZeroThresholdIsValid(t *testing.T) {
	p := validParams()
	p.Threshold = i64(0)
	spec, err := NewQuerySpec(p)
	require.NoError(t, err)
	assert.Equal(t, int64(0), spec.Threshold)
}

func TestComparisonSymbol(t *testing.T) {
	assert.Equal(t, ">=", ComparisonGTE.Symbol())
	assert.Equal(t, "<=", ComparisonLTE.Symbol())
}

func TestTimeUnitDuration(t *testing.T) {
	assert.Equal(t, time.Minute, Minutes.Duration())
	assert.Equal(t, time.Hour, Hours.Duration())
	assert.Equal(t, 24*time.Hour, Days.Duration())
	assert.Equal(t, 3*24*time.Hour, Lookback{Magnitude: 3, Unit: Days}.Duration())
}

func TestEvaluationResultErr(t *testing.T) {
	var nilResult *EvaluationResult
	assert.NoError(t, nilResult.Err())
	assert.NoError(t, (&EvaluationResult{}).Err())

	r := &EvaluationResult{ThresholdExceeded: true, Message: "Count: 15 is >= 10"}
	var te *ThresholdExceededError
	require.True(t, errors.As(r.Err(), &te))
	assert.Equal(t, "Count: 15 is >= 10", te.Error())
}
