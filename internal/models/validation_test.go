package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func i64(v int64) *int64 { return &v }

func TestCheckQuery(t *testing.T) {
	assert.ErrorIs(t, CheckQuery(""), ErrQueryRequired)
	assert.ErrorIs(t, CheckQuery("   "), ErrQueryRequired)
	assert.NoError(t, CheckQuery("q"))
}

func TestCheckIndexes(t *testing.T) {
	assert.ErrorIs(t, CheckIndexes(", ,"), ErrIndexesWhitespace)
	assert.ErrorIs(t, CheckIndexes(","), ErrIndexesTrailingComma)
	assert.ErrorIs(t, CheckIndexes("logstash-a,\tlogstash-b"), ErrIndexesWhitespace)
	assert.NoError(t, CheckIndexes("q"))
	assert.NoError(t, CheckIndexes(""))
	assert.NoError(t, CheckIndexes("logstash-2024.01.01,logstash-2024.01.02"))
}

func TestCheckThreshold(t *testing.T) {
	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		assert.ErrorIs(t, CheckThreshold(bad), ErrInvalidThreshold, "value %q", bad)
	}
	for _, ok := range []string{"0", " 10 ", "9999"} {
		assert.NoError(t, CheckThreshold(ok), "value %q", ok)
	}
}

func TestCheckSince(t *testing.T) {
	assert.ErrorIs(t, CheckSince(nil), ErrInvalidSince)
	assert.ErrorIs(t, CheckSince(i64(0)), ErrInvalidSince)
	assert.ErrorIs(t, CheckSince(i64(-3)), ErrInvalidSince)
	assert.NoError(t, CheckSince(i64(1)))
	assert.NoError(t, CheckSince(i64(48)))
}

func TestCheckQueryRequestTimeout(t *testing.T) {
	zero, one := 0, 1
	assert.ErrorIs(t, CheckQueryRequestTimeout(nil), ErrInvalidTimeout)
	assert.ErrorIs(t, CheckQueryRequestTimeout(&zero), ErrInvalidTimeout)
	assert.NoError(t, CheckQueryRequestTimeout(&one))
}

func TestCheckComparisonAndUnits(t *testing.T) {
	assert.NoError(t, CheckComparison("gte"))
	assert.NoError(t, CheckComparison(" LTE "))
	assert.ErrorIs(t, CheckComparison("gt"), ErrInvalidComparison)

	assert.NoError(t, CheckUnits("HOURS"))
	assert.NoError(t, CheckUnits("days"))
	assert.ErrorIs(t, CheckUnits("SECONDS"), ErrInvalidUnits)
}

func TestOptions(t *testing.T) {
	assert.Equal(t, []string{"gte", "lte"}, ComparisonOptions())
	assert.Equal(t, []string{"MINUTES", "HOURS", "DAYS"}, UnitOptions())
}
