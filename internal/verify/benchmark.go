package verify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/irtune/internal/harness"
)

// DefaultRepetitions is the number of calls timed per measurement.
const DefaultRepetitions = 100

// Runner times repeated calls of a variant.
type Runner struct {
	Repetitions int
}

// Measure calls fn Repetitions times with args and returns the total
// wall-clock time in milliseconds. The first call is not excluded.
func (r Runner) Measure(fn harness.Func, args harness.Args) (float64, error) {
	n := r.Repetitions
	if n <= 0 {
		n = DefaultRepetitions
	}
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := fn(args); err != nil {
			return 0, fmt.Errorf("benchmark call %d: %w", i, err)
		}
	}
	return float64(time.Since(start).Nanoseconds()) / 1e6, nil
}

// Record is the outcome of one verification cycle. Records are appended to
// a problem's history and never modified.
type Record struct {
	ID          string    `json:"id"`
	ProblemID   int       `json:"problem_id"`
	Attempt     int       `json:"attempt"`
	BaselineMS  float64   `json:"baseline_ms"`
	CompiledMS  float64   `json:"compiled_ms"`
	OptimizedMS float64   `json:"optimized_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord stamps a record with a fresh ID and the current time. Attempt
// is assigned by the store on append.
func NewRecord(problemID int, baseline, compiled, optimized float64) *Record {
	return &Record{
		ID:          uuid.NewString(),
		ProblemID:   problemID,
		BaselineMS:  baseline,
		CompiledMS:  compiled,
		OptimizedMS: optimized,
		CreatedAt:   time.Now().UTC(),
	}
}

// Speedup is the compiled reference time over the candidate time.
func (r Record) Speedup() float64 {
	if r.OptimizedMS <= 0 {
		return 0
	}
	return r.CompiledMS / r.OptimizedMS
}

// String formats the record like the console report.
func (r Record) String() string {
	return fmt.Sprintf("Base: %.4f\nCompiled: %.4f\nAI-Opt: %.4f", r.BaselineMS, r.CompiledMS, r.OptimizedMS)
}
