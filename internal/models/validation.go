package models

import (
	"strconv"
	"strings"
	"unicode"
)

// Per-field checks backing the configuration form and the pre-flight
// validation. A nil return means the value is acceptable.

func CheckQuery(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrQueryRequired
	}
	return nil
}

// CheckIndexes validates an explicit index override. Blank means "derive
// indexes from the lookback window" and is accepted.
func CheckIndexes(value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return ErrIndexesWhitespace
	}
	if strings.HasSuffix(value, ",") {
		return ErrIndexesTrailingComma
	}
	return nil
}

// CheckThreshold accepts the raw form value; blank, non-numeric and
// negative values are rejected.
func CheckThreshold(value string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

func CheckSince(value *int64) error {
	if value == nil || *value < 1 {
		return ErrInvalidSince
	}
	return nil
}

func CheckQueryRequestTimeout(value *int) error {
	if value == nil || *value < 1 {
		return ErrInvalidTimeout
	}
	return nil
}

func CheckComparison(value string) error {
	_, err := ParseComparison(value)
	return err
}

func CheckUnits(value string) error {
	_, err := ParseTimeUnit(value)
	return err
}

// ComparisonOptions lists the selectable comparison values.
func ComparisonOptions() []string {
	return []string{string(ComparisonGTE), string(ComparisonLTE)}
}

// UnitOptions lists the selectable lookback units.
func UnitOptions() []string {
	return []string{string(Minutes), string(Hours), string(Days)}
}
