package verify

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/harness"
	"github.com/copyleftdev/irtune/internal/logging"
	"github.com/copyleftdev/irtune/internal/metrics"
)

const component = "verify"

// Recorder appends benchmark records to a problem's history.
type Recorder interface {
	Append(ctx context.Context, rec *Record) error
}

// Cycle runs one verification attempt: recompile, compare, benchmark, record.
// Callers must not run two cycles on the same Problem at once.
type Cycle struct {
	Runner   Runner
	Recorder Recorder
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// Run resets p, compiles ir as its candidate, checks that the baseline, the
// reference and the candidate agree on p's test data, then times all three.
// An empty ir verifies the problem's own source against itself. The record
// is appended to the history only when every step succeeded.
func (c *Cycle) Run(ctx context.Context, p *harness.Problem, ir string) (*Record, error) {
	id := strconv.Itoa(p.ID())
	rec, err := c.run(ctx, p, ir)
	if err != nil {
		kind := apperrors.KindOf(err)
		c.Metrics.Failure(string(kind))
		c.Metrics.Cycle(id, outcome(kind))
		c.logger().Warn("Verification failed", map[string]interface{}{
			"problem": p.ID(),
			"kind":    string(kind),
			"error":   err,
		})
		return nil, err
	}
	c.Metrics.Cycle(id, "ok")
	c.Metrics.Benchmark(id, harness.Baseline.String(), rec.BaselineMS)
	c.Metrics.Benchmark(id, harness.Reference.String(), rec.CompiledMS)
	c.Metrics.Benchmark(id, harness.Optimized.String(), rec.OptimizedMS)
	c.logger().Info("Verification passed", map[string]interface{}{
		"problem":      p.ID(),
		"attempt":      rec.Attempt,
		"baseline_ms":  rec.BaselineMS,
		"compiled_ms":  rec.CompiledMS,
		"optimized_ms": rec.OptimizedMS,
		"speedup":      rec.Speedup(),
	})
	return rec, nil
}

func (c *Cycle) run(ctx context.Context, p *harness.Problem, ir string) (*Record, error) {
	if err := p.Reset(); err != nil {
		return nil, apperrors.Wrap(apperrors.CompileError, err, "reset").WithComponent(component).WithOperation("Run")
	}
	if strings.TrimSpace(ir) == "" {
		ir = p.Source()
	}
	if err := p.Optimize(ctx, ir); err != nil {
		return nil, err
	}

	args := p.TestData()
	base, err := p.Fn(args)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	ref, err := p.CFn(args)
	if err != nil {
		return nil, fmt.Errorf("compiled reference: %w", err)
	}
	if err := check(base, ref, harness.Baseline, harness.Reference); err != nil {
		return nil, err
	}
	cand, err := p.AIFn(args)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}
	if err := check(ref, cand, harness.Reference, harness.Optimized); err != nil {
		return nil, err
	}

	var ms [3]float64
	for i, v := range []harness.Variant{harness.Baseline, harness.Reference, harness.Optimized} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fn, err := p.Variant(v)
		if err != nil {
			return nil, err
		}
		if ms[i], err = c.Runner.Measure(fn, args); err != nil {
			return nil, fmt.Errorf("%s: %w", v, err)
		}
	}

	rec := NewRecord(p.ID(), ms[0], ms[1], ms[2])
	if c.Recorder != nil {
		if err := c.Recorder.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("record benchmark: %w", err)
		}
	}
	return rec, nil
}

func check(a, b any, va, vb harness.Variant) error {
	ok, err := Equivalent(a, b)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Errorf(apperrors.VerificationMismatch, "%s and %s outputs differ", va, vb).
			WithComponent(component).WithOperation("Run").
			WithDetail(fmt.Sprintf("%s: %v\n%s: %v", va, truncate(a), vb, truncate(b)))
	}
	return nil
}

func truncate(v any) string {
	const max = 512
	s := fmt.Sprint(v)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func outcome(kind apperrors.Kind) string {
	switch kind {
	case apperrors.CompileError:
		return "compile_error"
	case apperrors.VerificationMismatch:
		return "mismatch"
	default:
		return "error"
	}
}

func (c *Cycle) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.New(logging.InfoLevel, io.Discard)
	}
	return c.Logger
}
