//go:build darwin || linux

package harness

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

const squareSumIR = `define i32 @square_sum(i32 %a, i32 %b) {
entry:
  %s = add i32 %a, %b
  %m = mul i32 %s, %s
  ret i32 %m
}`

func newClangToolchain(t *testing.T, opts ToolchainOptions) *Toolchain {
	t.Helper()
	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not found on PATH")
	}
	opts.WorkDir = t.TempDir()
	tc, err := NewToolchain(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tc.Close() })
	return tc
}

func bindSquareSum(sym uintptr) (Func, error) {
	return Bind(sym, func(f func(int32, int32) int32) Func {
		return func(args Args) (any, error) {
			a, err := Arg[int32](args, 0)
			if err != nil {
				return nil, err
			}
			b, err := Arg[int32](args, 1)
			if err != nil {
				return nil, err
			}
			return f(a, b), nil
		}
	})
}

func TestToolchainCompileAndCall(t *testing.T) {
	var observed int
	tc := newClangToolchain(t, ToolchainOptions{
		Flags:   []string{"-O0"},
		Observe: func(time.Duration, error) { observed++ },
	})

	lib, err := tc.Compile(context.Background(), squareSumIR)
	require.NoError(t, err)
	defer lib.Close()

	sym, err := lib.Symbol("square_sum")
	require.NoError(t, err)
	fn, err := bindSquareSum(sym)
	require.NoError(t, err)

	out, err := fn(Args{int32(3), int32(4)})
	require.NoError(t, err)
	assert.Equal(t, int32(49), out)
	assert.Equal(t, 1, observed)

	_, err = lib.Symbol("missing_symbol")
	assert.Error(t, err)
}

func TestToolchainRejectsInvalidIR(t *testing.T) {
	tc := newClangToolchain(t, ToolchainOptions{})

	_, err := tc.Compile(context.Background(), "define i32 @square_sum(i32 %a) { not ir at all }")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.CompileError)
	assert.Contains(t, apperrors.DetailOf(err), "error")

	_, err = tc.Compile(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.CompileError)
}

func TestToolchainTimeout(t *testing.T) {
	tc := newClangToolchain(t, ToolchainOptions{Timeout: time.Nanosecond})
	_, err := tc.Compile(context.Background(), squareSumIR)
	require.ErrorIs(t, err, apperrors.CompileError)
	assert.Contains(t, err.Error(), "timed out")
}

func TestToolchainCloseRemovesWorkDir(t *testing.T) {
	tc := newClangToolchain(t, ToolchainOptions{})
	lib, err := tc.Compile(context.Background(), squareSumIR)
	require.NoError(t, err)
	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close(), "closing twice is harmless")

	entries, err := os.ReadDir(tc.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "sources and shared objects are cleaned up")

	require.NoError(t, tc.Close())
	_, err = os.Stat(tc.dir)
	assert.True(t, os.IsNotExist(err))
}

func TestProblemWithClang(t *testing.T) {
	tc := newClangToolchain(t, ToolchainOptions{})
	p, err := NewProblem(Definition{
		ID:       1,
		Name:     "square_sum",
		Source:   squareSumIR,
		Entry:    "square_sum",
		Baseline: addInts,
		Bind:     bindSquareSum,
		TestData: func() Args { return Args{int32(3), int32(4)} },
	}, tc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Reset() })

	require.NoError(t, p.Optimize(context.Background(), squareSumIR))
	for _, call := range []func(Args) (any, error){p.Fn, p.CFn, p.AIFn} {
		out, err := call(p.TestData())
		require.NoError(t, err)
		assert.Equal(t, int32(49), out)
	}

	err = p.Optimize(context.Background(), "define i32 @square_sum(i32 %a, i32 %b) { garbage }")
	require.ErrorIs(t, err, apperrors.CompileError)
	out, err := p.AIFn(p.TestData())
	require.NoError(t, err, "previous native candidate still bound")
	assert.Equal(t, int32(49), out)

	require.NoError(t, p.Reset())
	_, err = p.AIFn(p.TestData())
	assert.ErrorIs(t, err, apperrors.NotCompiled)

	require.NoError(t, p.Optimize(context.Background(), squareSumIR), "recompile after reset")
	out, err = p.AIFn(p.TestData())
	require.NoError(t, err)
	assert.Equal(t, int32(49), out)
}
