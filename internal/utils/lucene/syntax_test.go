package lucene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_Fields(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		fields []string
	}{
		{"field term", "status:500", []string{"status"}},
		{"boolean", "status:500 AND service:checkout", []string{"service", "status"}},
		{"grouped", `level:error AND (message:"timeout" OR message:"failed")`, []string{"level", "message"}},
		{"range", "duration:[100 TO 500]", []string{"duration"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Analyze(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.fields, a.Fields)
		})
	}
}

func TestAnalyze_Errors(t *testing.T) {
	for _, q := range []string{"", "   ", "status:(500"} {
		_, err := Analyze(q)
		var se *SyntaxError
		require.True(t, errors.As(err, &se), "query %q: %v", q, err)
		assert.Equal(t, q, se.Query)
	}
}
