// Package optimization turns baseline IR into tagged analysis sections and
// a candidate optimized function, and recovers that function from the
// model's free-form answer.
package optimization

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/copyleftdev/irtune/internal/generation"
	"github.com/copyleftdev/irtune/internal/stream"
)

// Section is one chunk of output tagged with the stage that produced it.
// OPTIMIZED_IR yields exactly one Section holding the full response.
type Section struct {
	Stage Stage  `json:"stage"`
	Text  string `json:"text"`
}

// StageObserver receives the duration of every completed or failed stage.
type StageObserver func(stage Stage, took time.Duration, err error)

// Optimizer sequences the four generation stages of one attempt.
type Optimizer struct {
	gen     generation.Generator
	observe StageObserver
}

// NewOptimizer creates an Optimizer. observe may be nil.
func NewOptimizer(gen generation.Generator, observe StageObserver) *Optimizer {
	if observe == nil {
		observe = func(Stage, time.Duration, error) {}
	}
	return &Optimizer{gen: gen, observe: observe}
}

// Run yields the sections of one attempt on ir. The first three stages are
// streamed chunk by chunk; the rationale text is accumulated and fed, with
// ir, to the synthesis stage. A generation failure ends the sequence with a
// single OptimizationFailed error; nothing is retried. Feeding a previous
// optimized IR back in as ir reoptimizes it.
func (o *Optimizer) Run(ctx context.Context, ir string) iter.Seq2[Section, error] {
	return func(yield func(Section, error) bool) {
		var rationale strings.Builder

		for _, stage := range []Stage{Explanation, Bottlenecks, Rationale} {
			start := time.Now()
			for chunk, err := range stream.Assemble(o.gen.Stream(ctx, stage.Instruction(), ir)) {
				if err != nil {
					err = stageFailed(stage, err)
					o.observe(stage, time.Since(start), err)
					yield(Section{Stage: stage}, err)
					return
				}
				if stage == Rationale {
					rationale.WriteString(chunk)
				}
				if !yield(Section{Stage: stage, Text: chunk}, nil) {
					return
				}
			}
			o.observe(stage, time.Since(start), nil)
		}

		start := time.Now()
		out, err := o.gen.Complete(ctx, SynthesizeInstruction, synthesisPayload(ir, rationale.String()))
		if err != nil {
			err = stageFailed(OptimizedIR, err)
			o.observe(OptimizedIR, time.Since(start), err)
			yield(Section{Stage: OptimizedIR}, err)
			return
		}
		o.observe(OptimizedIR, time.Since(start), nil)
		yield(Section{Stage: OptimizedIR, Text: out}, nil)
	}
}

// Result collects a finished run.
type Result struct {
	Sections map[Stage]string
	// Optimized is the raw OPTIMIZED_IR response, before extraction.
	Optimized string
}

// Collect drains a Run and groups the text by stage.
func Collect(seq iter.Seq2[Section, error]) (*Result, error) {
	res := &Result{Sections: make(map[Stage]string, len(Stages))}
	for sec, err := range seq {
		if err != nil {
			return res, err
		}
		res.Sections[sec.Stage] += sec.Text
		if sec.Stage == OptimizedIR {
			res.Optimized = sec.Text
		}
	}
	return res, nil
}
