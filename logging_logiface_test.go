package fiber

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogifaceLogger(buf *bytes.Buffer) *LogifaceLogger {
	writer := logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
		buf.Write(e.Bytes())
		buf.WriteByte('\n')
		return nil
	})
	return &LogifaceLogger{log: stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField("")),
		stumpy.L.WithWriter(writer),
	)}
}

func TestLogifaceLogger_LogWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogifaceLogger(&buf)

	l.Log(LogEntry{
		Level:    LevelInfo,
		Category: "spawn",
		FiberID:  7,
		Message:  "fiber spawned",
	})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "spawn", decoded["category"])
	assert.EqualValues(t, 7, decoded["fiber_id"])
	assert.Equal(t, "fiber spawned", decoded["msg"])
}

func TestLogifaceLogger_LogIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogifaceLogger(&buf)

	l.Log(LogEntry{Level: LevelError, Message: "boom", Err: errors.New("broke")})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	assert.Equal(t, "broke", decoded["err"])
}

func TestLogifaceLogger_IsEnabledRespectsConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	writer := logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
		buf.Write(e.Bytes())
		return nil
	})
	l := &LogifaceLogger{log: stumpy.L.New(
		stumpy.L.WithLevel(logiface.LevelWarning),
		stumpy.L.WithWriter(writer),
	)}

	assert.False(t, l.IsEnabled(LevelDebug))
	assert.True(t, l.IsEnabled(LevelError))
}
