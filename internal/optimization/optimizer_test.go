package optimization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/generation/generationtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleIR = `define i32 @example_function(i32 %a, i32 %b) {
  %1 = add i32 %a, %b
  %2 = mul i32 %1, %1
  ret i32 %2
}`

func scripted() *generationtest.Fake {
	return generationtest.New().
		On(ExplainInstruction, "It adds a and b", ". ", "Then it squares the sum.").
		On(BottlenecksInstruction, "No loops.\n", "Nothing to hoist").
		On(RationaleInstruction, "Use nsw flags", ". ", "Mark it readnone.").
		On(SynthesizeInstruction, "```llvm\n", sampleIR, "\n```")
}

func TestStageOrderAndNames(t *testing.T) {
	assert.Equal(t, []Stage{Explanation, Bottlenecks, Rationale, OptimizedIR}, Stages)
	assert.Equal(t, "CODE EXPLANATION", Explanation.String())
	assert.Equal(t, "BOTTLENECKS", Bottlenecks.String())
	assert.Equal(t, "OPTIMIZATION RATIONALE", Rationale.String())
	assert.Equal(t, "OPTIMIZED IR", OptimizedIR.String())
	assert.Equal(t, "UNKNOWN", Stage(9).String())
}

func TestRunYieldsTaggedSectionsInOrder(t *testing.T) {
	gen := scripted()
	var observed []Stage
	opt := NewOptimizer(gen, func(s Stage, _ time.Duration, err error) {
		assert.NoError(t, err)
		observed = append(observed, s)
	})

	var got []Section
	for sec, err := range opt.Run(context.Background(), sampleIR) {
		require.NoError(t, err)
		got = append(got, sec)
	}

	want := []Section{
		{Explanation, "It adds a and b. "},
		{Explanation, "Then it squares the sum."},
		{Bottlenecks, "No loops.\n"},
		{Bottlenecks, "Nothing to hoist"},
		{Rationale, "Use nsw flags. "},
		{Rationale, "Mark it readnone."},
		{OptimizedIR, "```llvm\n" + sampleIR + "\n```"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, Stages, observed)

	calls := gen.Calls()
	require.Len(t, calls, 4)
	for i, stage := range []Stage{Explanation, Bottlenecks, Rationale} {
		assert.Equal(t, stage.Instruction(), calls[i].System)
		assert.Equal(t, sampleIR, calls[i].User)
		assert.True(t, calls[i].Stream)
	}
	synth := calls[3]
	assert.False(t, synth.Stream, "synthesis is a single whole-response call")
	assert.Contains(t, synth.User, sampleIR)
	assert.Contains(t, synth.User, "Use nsw flags. Mark it readnone.", "rationale text feeds synthesis")
}

func TestRunFailureAbortsWithOptimizationFailed(t *testing.T) {
	boom := errors.New("upstream 503")
	gen := scripted().Fail(BottlenecksInstruction, boom)
	opt := NewOptimizer(gen, nil)

	var stages []Stage
	var runErr error
	for sec, err := range opt.Run(context.Background(), sampleIR) {
		if err != nil {
			runErr = err
			break
		}
		stages = append(stages, sec.Stage)
	}

	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, apperrors.OptimizationFailed)
	assert.ErrorIs(t, runErr, apperrors.GenerationFailure)
	assert.ErrorIs(t, runErr, boom)
	assert.Contains(t, runErr.Error(), "BOTTLENECKS")
	assert.Equal(t, []Stage{Explanation, Explanation}, stages)
	assert.Len(t, gen.Calls(), 2, "no retries and no later stages")
}

func TestRunSynthesisFailure(t *testing.T) {
	gen := scripted().Fail(SynthesizeInstruction, errors.New("context length exceeded"))
	_, err := Collect(NewOptimizer(gen, nil).Run(context.Background(), sampleIR))
	assert.ErrorIs(t, err, apperrors.OptimizationFailed)
	assert.Contains(t, err.Error(), "OPTIMIZED IR")
}

func TestRunStopsWhenConsumerStops(t *testing.T) {
	gen := scripted()
	for range NewOptimizer(gen, nil).Run(context.Background(), sampleIR) {
		break
	}
	assert.Len(t, gen.Calls(), 1)
}

func TestCollect(t *testing.T) {
	res, err := Collect(NewOptimizer(scripted(), nil).Run(context.Background(), sampleIR))
	require.NoError(t, err)
	assert.Equal(t, "It adds a and b. Then it squares the sum.", res.Sections[Explanation])
	assert.Equal(t, "Use nsw flags. Mark it readnone.", res.Sections[Rationale])
	assert.Equal(t, "```llvm\n"+sampleIR+"\n```", res.Optimized)
}
