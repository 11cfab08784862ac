package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept", map[string]interface{}{"stage": "BOTTLENECKS"})
	logger.Error("kept too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "kept", entries[0]["message"])
	assert.Equal(t, "BOTTLENECKS", entries[0]["stage"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(DebugLevel, &buf)
	child := parent.WithField("problem_id", 1).WithError(errors.New("clang exited 1"))

	child.Info("child")
	parent.Info("parent")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, float64(1), entries[0]["problem_id"])
	assert.Equal(t, "clang exited 1", entries[0]["error"])
	assert.NotContains(t, entries[1], "problem_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestZapAdapterFields(t *testing.T) {
	var buf bytes.Buffer
	z := NewZapLogger(New(DebugLevel, &buf)).With(zap.String("component", "toolchain"))

	z.Info("compiled",
		zap.Float64("ms", 12.5),
		zap.Int("bytes", 4096),
		zap.Bool("cached", false),
		zap.Duration("took", 1500*time.Millisecond),
		zap.Error(errors.New("warning: overriding the module target triple")),
	)
	z.Debug("debug passes through")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	e := entries[0]
	assert.Equal(t, "toolchain", e["component"])
	assert.Equal(t, 12.5, e["ms"])
	assert.Equal(t, float64(4096), e["bytes"])
	assert.Equal(t, false, e["cached"])
	assert.Equal(t, "1.5s", e["took"])
	assert.Equal(t, "warning: overriding the module target triple", e["error"])
	assert.Contains(t, e["caller"], "logger_test.go")
}

func TestZapAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	z := NewZapLogger(New(ErrorLevel, &buf))
	z.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := (&CtxLogger{New(InfoLevel, &buf)}).WithContext(context.Background())
	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.NotNil(t, FromContext(context.Background()))
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/problems", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/v1/problems", entries[0]["path"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
	assert.Equal(t, "WARN", entries[1]["level"])
}
