package fiber

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// LogLevel mirrors the teacher's eventloop LogLevel: a small ordered enum
// cheap enough to check before building a LogEntry.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "level(?)"
	}
}

// LogEntry is a single structured diagnostic. A Scheduler emits one per
// Spawn (Category "spawn"); other callers may log their own. Shaped after the
// teacher's eventloop.LogEntry, narrowed to this package's domain
// (LoopID/TaskID/TimerID become FiberID).
type LogEntry struct {
	Level     LogLevel
	Category  string
	FiberID   uint64
	Message   string
	Err       error
	Context   map[string]any
	Timestamp time.Time
}

// Logger is the pluggable sink for LogEntry values. Implementations must be
// safe for concurrent use: Scheduler instances on different threads may log
// at the same time.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

type nopLogger struct{}

func (nopLogger) Log(LogEntry)          {}
func (nopLogger) IsEnabled(LogLevel) bool { return false }

// NopLogger discards every entry. It is the default Logger for a Scheduler
// that doesn't configure one via WithLogger.
var NopLogger Logger = nopLogger{}

// DefaultLogger writes plain-text lines to an *os.File, gated by an atomic
// minimum level, mirroring eventloop.DefaultLogger. Prefer the logiface
// adapter (logging_logiface.go) for structured output; this exists for
// quick local debugging without pulling in the structured-logging stack.
type DefaultLogger struct {
	level atomic.Int32
	mu    sync.Mutex
	Out   *os.File
}

// NewDefaultLogger creates a DefaultLogger writing to os.Stderr at level.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: os.Stderr}
	l.level.Store(int32(level))
	return l
}

// NewFileLogger creates a DefaultLogger writing to an already-open file.
func NewFileLogger(f *os.File, level LogLevel) *DefaultLogger {
	l := &DefaultLogger{Out: f}
	l.level.Store(int32(level))
	return l
}

func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

func (l *DefaultLogger) Log(entry LogEntry) {
	if !l.IsEnabled(entry.Level) {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.Err != nil {
		fmt.Fprintf(l.Out, "%s [%s] fiber=%d %s: %v\n", entry.Timestamp.Format(time.RFC3339Nano), entry.Level, entry.FiberID, entry.Message, entry.Err)
		return
	}
	fmt.Fprintf(l.Out, "%s [%s] fiber=%d %s\n", entry.Timestamp.Format(time.RFC3339Nano), entry.Level, entry.FiberID, entry.Message)
}

// RateLimitedLogger wraps a Logger and throttles noisy, high-frequency
// diagnostic categories (repeated steal misses, park/wake cycles) through a
// go-catrate Limiter, so a busy work-stealing pool doesn't flood the
// underlying sink. Entries at LevelWarn and above always pass through
// unthrottled.
type RateLimitedLogger struct {
	next    Logger
	limiter *catrate.Limiter
}

// NewRateLimitedLogger wraps next, allowing at most `rates` occurrences of
// any given Category per the configured window (see catrate.NewLimiter).
func NewRateLimitedLogger(next Logger, rates map[time.Duration]int) *RateLimitedLogger {
	return &RateLimitedLogger{next: next, limiter: catrate.NewLimiter(rates)}
}

func (l *RateLimitedLogger) IsEnabled(level LogLevel) bool { return l.next.IsEnabled(level) }

func (l *RateLimitedLogger) Log(entry LogEntry) {
	if entry.Level >= LevelWarn {
		l.next.Log(entry)
		return
	}
	if _, ok := l.limiter.Allow(entry.Category); !ok {
		return
	}
	l.next.Log(entry)
}
