package gate

import (
	"fmt"

	"github.com/platformbuilds/countgate/internal/models"
)

// Verdict is the outcome of comparing a count to its threshold.
type Verdict struct {
	Exceeded bool
	Message  string // empty unless Exceeded
}

// Exceeded reports whether count trips the gate.
func Exceeded(count, threshold int64, c models.Comparison) bool {
	if c == models.ComparisonLTE {
		return count <= threshold
	}
	return count >= threshold
}

// Evaluate applies the comparison and, when the gate trips, builds the
// message the build fails with. url should already be redacted.
func Evaluate(count, threshold int64, c models.Comparison, url, content string) Verdict {
	if !Exceeded(count, threshold, c) {
		return Verdict{}
	}
	return Verdict{
		Exceeded: true,
		Message: fmt.Sprintf("Count: %d is %s %d. Failing build!\nURL: %s\nresponse content: %s",
			count, c.Symbol(), threshold, url, content),
	}
}
