package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	corelogger "github.com/platformbuilds/countgate/pkg/logger"
)

// BuildLog is the append-only log of the enclosing build step. It is a pure
// side channel: nothing written here influences control flow.
type BuildLog interface {
	Printf(format string, args ...interface{})
}

// Discard is a BuildLog that drops every line.
var Discard BuildLog = discard{}

type discard struct{}

func (discard) Printf(string, ...interface{}) {}

// WriterLog writes one line per Printf to w and mirrors it to the structured
// logger at debug level so that build output and service logs line up.
type WriterLog struct {
	mu     sync.Mutex
	w      io.Writer
	core   corelogger.Logger
	prefix string
}

func NewWriterLog(w io.Writer, core corelogger.Logger) *WriterLog {
	if core == nil {
		core = corelogger.NewNop()
	}
	return &WriterLog{w: w, core: core}
}

// WithPrefix returns a log sharing the same writer whose lines start with
// "[prefix] ". Used when several gates write into one build log.
func (l *WriterLog) WithPrefix(prefix string) *WriterLog {
	return &WriterLog{w: l.w, core: l.core.With("gate", prefix), prefix: prefix}
}

func (l *WriterLog) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		line = "[" + l.prefix + "] " + line
	}
	l.mu.Lock()
	_, _ = io.WriteString(l.w, strings.TrimRight(line, "\n")+"\n")
	l.mu.Unlock()
	l.core.Debug("build log", "line", line)
}

// Recorder keeps lines in memory. The HTTP API returns them to the caller.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) Printf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
