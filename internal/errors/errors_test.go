package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/irtune/internal/logging"
)

func TestKindMatching(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := Wrap(GenerationFailure, cause, "stream").WithComponent("generation").WithOperation("Stream")

	assert.True(t, stderrors.Is(err, GenerationFailure))
	assert.False(t, stderrors.Is(err, CompileError))
	assert.True(t, stderrors.Is(err, cause), "cause stays reachable")
	assert.Equal(t, GenerationFailure, KindOf(err))

	outer := Wrap(OptimizationFailed, err, "stage BOTTLENECKS")
	assert.True(t, stderrors.Is(outer, OptimizationFailed))
	assert.True(t, stderrors.Is(outer, GenerationFailure), "inner kind stays reachable")
	assert.Equal(t, OptimizationFailed, KindOf(outer))
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: NotCompiled}, "not compiled"},
		{"message", &Error{Kind: NotFound, Message: "problem 7"}, "not found: problem 7"},
		{
			"component and op",
			&Error{Kind: CompileError, Component: "harness", Op: "Optimize", Err: fmt.Errorf("exit status 1")},
			"compile error [harness.Optimize]: exit status 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(CompileError, nil, "x"))
}

func TestDetailOf(t *testing.T) {
	inner := New(ExtractionFailure, "no span").WithDetail("raw model text")
	outer := fmt.Errorf("attempt 2: %w", inner)
	assert.Equal(t, "raw model text", DetailOf(outer))
	assert.Equal(t, "", DetailOf(fmt.Errorf("plain")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(NotFound, "")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(New(ValidationFailure, "")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(GenerationFailure, "")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := logging.New(logging.DebugLevel, io.Discard)
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("native call failed")
	}))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
