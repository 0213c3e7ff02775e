package fiber

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// LogifaceLogger adapts a logiface.Logger[*stumpy.Event] (configured with
// the stumpy JSON backend) to this package's Logger interface, so a
// Scheduler's diagnostics flow through the same structured-logging stack
// the rest of the module's host application uses. Grounded on
// logiface-stumpy/example_test.go's L.New(L.WithStumpy(...)) usage.
type LogifaceLogger struct {
	log *logiface.Logger[*stumpy.Event]
}

// NewLogifaceLogger builds a LogifaceLogger writing newline-delimited JSON
// via stumpy, with the given logiface.Option values (e.g.
// stumpy.L.WithStumpy(...), stumpy.L.WithWriter(...)) layered on top of the
// defaults.
func NewLogifaceLogger(options ...logiface.Option[*stumpy.Event]) *LogifaceLogger {
	return &LogifaceLogger{log: stumpy.L.New(options...)}
}

func (l *LogifaceLogger) IsEnabled(level LogLevel) bool {
	want := logifaceLevel(level)
	return want.Enabled() && want <= l.log.Level()
}

func (l *LogifaceLogger) Log(entry LogEntry) {
	b := l.log.Build(logifaceLevel(entry.Level))
	if !b.Enabled() {
		return
	}
	b.Int("fiber_id", int(entry.FiberID)).Str("category", entry.Category)
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}

func logifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
