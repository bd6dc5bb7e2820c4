package xlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xcoll/lib/infra"
)

type testMemOutWriter struct {
	lock sync.Mutex
	data []byte
}

func (w *testMemOutWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testMemOutWriter) Lines() []map[string]any {
	w.lock.Lock()
	defer w.lock.Unlock()
	res := make([]map[string]any, 0, 8)
	for _, line := range strings.Split(strings.TrimSpace(string(w.data)), "\n") {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err == nil {
			res = append(res, m)
		}
	}
	return res
}

func (w *testMemOutWriter) Reset() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.data = make([]byte, 0, 4096)
}

func newTestMemLogger(t *testing.T, opts ...XLoggerOption) (XLogger, *testMemOutWriter) {
	t.Helper()
	w := &testMemOutWriter{data: make([]byte, 0, 4096)}
	writerMap[testMemAsOut] = zapcore.AddSync(w)
	t.Cleanup(func() {
		delete(writerMap, testMemAsOut)
	})
	opts = append([]XLoggerOption{
		WithXLoggerWriter(testMemAsOut),
		WithXLoggerEncoder(JSON),
	}, opts...)
	return NewXLogger(opts...), w
}

func TestLogLevelString(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevelDebug.String())
	require.Equal(t, "INFO", LogLevelInfo.String())
	require.Equal(t, "WARN", LogLevelWarn.String())
	require.Equal(t, "ERROR", LogLevelError.String())
	require.Equal(t, zapcore.DebugLevel, LogLevelDebug.zapLevel())
	require.Equal(t, zapcore.InfoLevel, LogLevelInfo.zapLevel())
	require.Equal(t, zapcore.WarnLevel, LogLevelWarn.zapLevel())
	require.Equal(t, zapcore.ErrorLevel, LogLevelError.zapLevel())
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, LogLevelInfo, ParseLogLevel(" info "))
	require.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	require.Equal(t, LogLevelError, ParseLogLevel("error"))
	require.Equal(t, LogLevelDebug, ParseLogLevel(""))
	require.Equal(t, LogLevelDebug, ParseLogLevel("verbose"))
}

func TestXLogger_InvalidOptions(t *testing.T) {
	require.Panics(t, func() {
		NewXLogger(WithXLoggerWriter(_writerMax))
	})
	require.Panics(t, func() {
		NewXLogger(WithXLoggerEncoder(_encMax))
	})
}

func TestXLogger_LevelAndFields(t *testing.T) {
	logger, w := newTestMemLogger(t, WithXLoggerLevel(LogLevelInfo))
	require.Equal(t, "info", logger.Level())

	logger.Debug("hidden")
	logger.Info("shown", zap.Int("size", 7))
	logger.Warn("warned")
	logger.Error(errors.New("boom"), "failed")
	logger.Logf(zapcore.InfoLevel, "joined %d elements", 2)
	require.NoError(t, logger.Sync())

	lines := w.Lines()
	require.Len(t, lines, 4)
	require.Equal(t, "shown", lines[0]["msg"])
	require.Equal(t, "INFO", lines[0]["lvl"])
	require.Equal(t, float64(7), lines[0]["size"])
	require.Equal(t, "WARN", lines[1]["lvl"])
	require.Equal(t, "boom", lines[2]["error"])
	require.Equal(t, "joined 2 elements", lines[3]["msg"])

	w.Reset()
	logger.IncreaseLogLevel(zapcore.DebugLevel)
	require.Equal(t, "debug", logger.Level())
	logger.Debug("now shown")
	lines = w.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, "DEBUG", lines[0]["lvl"])
}

func TestXLogger_ErrorStack(t *testing.T) {
	logger, w := newTestMemLogger(t, WithXLoggerLevel(LogLevelDebug))

	logger.ErrorStack(infra.NewErrorStack("[rbtree] red violation"), "validate")
	logger.ErrorStack(errors.New("plain"), "plain error")
	logger.ErrorStack(nil, "no error")

	lines := w.Lines()
	require.Len(t, lines, 3)
	require.Equal(t, "[rbtree] red violation", lines[0]["error"])
	frames, ok := lines[0]["errorStack"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, frames)
	require.Equal(t, "plain", lines[1]["error"])
	_, ok = lines[2]["error"]
	require.False(t, ok)
}

func TestXLogger_ContextFields(t *testing.T) {
	logger, w := newTestMemLogger(t,
		WithXLoggerLevel(LogLevelDebug),
		WithXLoggerContextFieldExtract("traceId", "TraceID"),
		WithXLoggerContextFieldExtract("service"),
		WithXLoggerContextFieldExtract("secret", ContextKeyMapToOmitempty),
		WithXLoggerContextFieldExtract(""),
	)

	ctx := ContextWithField(context.TODO(), "traceId", "1234567890")
	ctx = ContextWithField(ctx, "secret", "hidden")
	logger.DebugContext(ctx, "debug")
	logger.InfoContext(ctx, "info")
	logger.WarnContext(ctx, "warn")
	logger.ErrorContext(ctx, errors.New("ctx error"), "error")

	lines := w.Lines()
	require.Len(t, lines, 4)
	for _, line := range lines {
		require.Equal(t, "1234567890", line["TraceID"])
		require.Equal(t, "nil", line["service"])
		_, ok := line["secret"]
		require.False(t, ok)
	}
	require.Equal(t, "ctx error", lines[3]["error"])
}

func TestXLogger_EnvLevel(t *testing.T) {
	t.Setenv("XLOG_LVL", "warn")
	logger, _ := newTestMemLogger(t)
	require.Equal(t, "warn", logger.Level())
}
