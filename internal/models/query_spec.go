package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Comparison is the direction of a threshold gate.
type Comparison string

const (
	// ComparisonGTE fails the gate when count >= threshold.
	ComparisonGTE Comparison = "gte"
	// ComparisonLTE fails the gate when count <= threshold.
	ComparisonLTE Comparison = "lte"
)

func (c Comparison) Symbol() string {
	if c == ComparisonLTE {
		return "<="
	}
	return ">="
}

func ParseComparison(s string) (Comparison, error) {
	switch Comparison(strings.ToLower(strings.TrimSpace(s))) {
	case ComparisonGTE:
		return ComparisonGTE, nil
	case ComparisonLTE:
		return ComparisonLTE, nil
	}
	return "", ErrInvalidComparison
}

// TimeUnit is the unit of a lookback window.
type TimeUnit string

const (
	Minutes TimeUnit = "MINUTES"
	Hours   TimeUnit = "HOURS"
	Days    TimeUnit = "DAYS"
)

func (u TimeUnit) Duration() time.Duration {
	switch u {
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	case Days:
		return 24 * time.Hour
	}
	return 0
}

func ParseTimeUnit(s string) (TimeUnit, error) {
	switch TimeUnit(strings.ToUpper(strings.TrimSpace(s))) {
	case Minutes:
		return Minutes, nil
	case Hours:
		return Hours, nil
	case Days:
		return Days, nil
	}
	return "", ErrInvalidUnits
}

// Lookback is a relative window ending at "now".
type Lookback struct {
	Magnitude int64    `json:"magnitude" yaml:"magnitude"`
	Unit      TimeUnit `json:"unit" yaml:"unit"`
}

func (l Lookback) Duration() time.Duration {
	return time.Duration(l.Magnitude) * l.Unit.Duration()
}

func (l Lookback) String() string {
	return fmt.Sprintf("%d %s", l.Magnitude, l.Unit)
}

// QuerySpec is a validated per-invocation gate definition. Values are passed
// by copy and never modified after NewQuerySpec returns.
type QuerySpec struct {
	Query      string     `json:"query"`
	Comparison Comparison `json:"comparison"`
	Threshold  int64      `json:"threshold"`
	Lookback   Lookback   `json:"lookback"`
}

// QueryParams are the raw per-invocation parameters as a user supplies them
// on the command line, in a gate file or over HTTP.
type QueryParams struct {
	Query      string `json:"query" yaml:"query"`
	Comparison string `json:"comparison" yaml:"comparison"`
	Threshold  *int64 `json:"threshold" yaml:"threshold"`
	Since      *int64 `json:"since" yaml:"since"`
	Units      string `json:"units" yaml:"units"`
}

// NewQuerySpec validates p and returns the immutable spec. Every failure is a
// *ConfigurationError naming the offending field.
func NewQuerySpec(p QueryParams) (QuerySpec, error) {
	query := strings.TrimSpace(p.Query)
	if err := CheckQuery(query); err != nil {
		return QuerySpec{}, &ConfigurationError{Field: "query", Err: err}
	}

	comparison, err := ParseComparison(p.Comparison)
	if err != nil {
		return QuerySpec{}, &ConfigurationError{Field: "comparison", Err: err}
	}

	if p.Threshold == nil || *p.Threshold < 0 {
		return QuerySpec{}, &ConfigurationError{Field: "threshold", Err: ErrInvalidThreshold}
	}

	if err := CheckSince(p.Since); err != nil {
		return QuerySpec{}, &ConfigurationError{Field: "since", Err: err}
	}

	unit, err := ParseTimeUnit(p.Units)
	if err != nil {
		return QuerySpec{}, &ConfigurationError{Field: "units", Err: err}
	}

	if *p.Since > int64(math.MaxInt64/unit.Duration()) {
		return QuerySpec{}, &ConfigurationError{Field: "since", Err: ErrLookbackTooLarge}
	}

	return QuerySpec{
		Query:      query,
		Comparison: comparison,
		Threshold:  *p.Threshold,
		Lookback:   Lookback{Magnitude: *p.Since, Unit: unit},
	}, nil
}
