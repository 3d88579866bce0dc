package lucene

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grindlemire/go-lucene"
	"github.com/grindlemire/go-lucene/pkg/lucene/expr"
)

// SyntaxError reports a query the Lucene parser rejected. The search engine
// may still accept it, so callers decide whether this is fatal.
type SyntaxError struct {
	Query string
	Err   error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query %q is not valid Lucene syntax: %v", e.Query, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Analysis is what the gate logs about a user query before sending it.
type Analysis struct {
	Fields []string // referenced field names, sorted, deduplicated
}

// Analyze parses q and collects the fields it references.
func Analyze(q string) (Analysis, error) {
	qs := strings.TrimSpace(q)
	if qs == "" {
		return Analysis{}, &SyntaxError{Query: q, Err: fmt.Errorf("empty query")}
	}
	parsed, err := lucene.Parse(qs)
	if err != nil {
		return Analysis{}, &SyntaxError{Query: q, Err: err}
	}

	seen := map[string]struct{}{}
	collectFields(parsed, seen)

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return Analysis{Fields: fields}, nil
}

func collectFields(e *expr.Expression, seen map[string]struct{}) {
	if e == nil {
		return
	}
	for _, side := range []any{e.Left, e.Right} {
		switch v := side.(type) {
		case expr.Column:
			seen[string(v)] = struct{}{}
		case *expr.Expression:
			collectFields(v, seen)
		}
	}
}
