// Package gate holds the pure parts of the count gate: the lookback window
// and its daily indexes, the count request URL, and the threshold verdict.
package gate

import (
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
)

// IndexDateLayout is the Logstash daily index date format (yyyy.MM.dd).
const IndexDateLayout = "2006.01.02"

// Window is the time range and index list of one evaluation.
type Window struct {
	Now     time.Time
	Since   time.Time
	Indexes []string
	// Override is true when Indexes came from configuration verbatim.
	Override bool
}

// IndexList is the comma-joined path segment for the request URL.
func (w Window) IndexList() string {
	return strings.Join(w.Indexes, ",")
}

// IndexWindow computes lookback windows against a clock.
type IndexWindow struct {
	clock  clock.Clock
	prefix string
	loc    *time.Location
}

func NewIndexWindow(clk clock.Clock, prefix string, loc *time.Location) *IndexWindow {
	if clk == nil {
		clk = clock.NewClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &IndexWindow{clock: clk, prefix: prefix, loc: loc}
}

// Compute returns the window ending now. A non-blank override replaces the
// derived index list entirely; it must already have passed CheckIndexes.
func (c *IndexWindow) Compute(lookback time.Duration, override string) Window {
	now := c.clock.Now()
	since := now.Add(-lookback)

	if o := strings.TrimSpace(override); o != "" {
		return Window{Now: now, Since: since, Indexes: strings.Split(o, ","), Override: true}
	}
	return Window{Now: now, Since: since, Indexes: DailyIndexes(now, since, c.prefix, c.loc)}
}

// DailyIndexes walks back one calendar day at a time from now's date to
// since's date, both inclusive, newest first. The result always holds at
// least today's index.
func DailyIndexes(now, since time.Time, prefix string, loc *time.Location) []string {
	now = now.In(loc)
	since = since.In(loc)

	// Noon avoids landing on a skipped or repeated hour around DST changes.
	day := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, loc)
	last := time.Date(since.Year(), since.Month(), since.Day(), 12, 0, 0, 0, loc)

	out := []string{prefix + day.Format(IndexDateLayout)}
	for day.After(last) {
		day = day.AddDate(0, 0, -1)
		out = append(out, prefix+day.Format(IndexDateLayout))
	}
	return out
}
