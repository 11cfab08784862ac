// Package problems holds the built-in optimization problems.
package problems

import (
	"embed"
	"fmt"
	"math/rand/v2"
	"sort"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/harness"
)

//go:embed ir/*.ll
var irFS embed.FS

func source(name string) string {
	b, err := irFS.ReadFile("ir/" + name + ".ll")
	if err != nil {
		panic(fmt.Sprintf("problems: missing embedded IR %s: %v", name, err))
	}
	return string(b)
}

// Sizes of the generated array inputs.
const (
	saxpyLen     = 4096
	prefixSumLen = 4096
)

// Definitions returns the built-in problems ordered by ID.
func Definitions() []harness.Definition {
	return []harness.Definition{
		{
			ID:          1,
			Name:        "square_sum",
			Description: "Square of the sum of two 32-bit integers.",
			Source:      source("square_sum"),
			Entry:       "square_sum",
			Baseline:    squareSum,
			Bind:        bindSquareSum,
			TestData:    func() harness.Args { return harness.Args{int32(3), int32(4)} },
		},
		{
			ID:          2,
			Name:        "saxpy",
			Description: "Single-precision a*x + y over float32 arrays.",
			Source:      source("saxpy"),
			Entry:       "saxpy",
			Baseline:    saxpy,
			Bind:        bindSaxpy,
			TestData:    saxpyData,
		},
		{
			ID:          3,
			Name:        "prefix_sum",
			Description: "Inclusive running sum of an int32 array.",
			Source:      source("prefix_sum"),
			Entry:       "prefix_sum",
			Baseline:    prefixSum,
			Bind:        bindPrefixSum,
			TestData:    prefixSumData,
		},
	}
}

// Registry indexes problems by ID.
type Registry struct {
	problems map[int]*harness.Problem
	ids      []int
}

// NewRegistry binds every definition to compiler.
func NewRegistry(compiler harness.Compiler, defs ...harness.Definition) (*Registry, error) {
	if len(defs) == 0 {
		defs = Definitions()
	}
	r := &Registry{problems: make(map[int]*harness.Problem, len(defs))}
	for _, def := range defs {
		if _, dup := r.problems[def.ID]; dup {
			return nil, apperrors.Errorf(apperrors.InvalidInput, "duplicate problem id %d", def.ID)
		}
		p, err := harness.NewProblem(def, compiler)
		if err != nil {
			return nil, err
		}
		r.problems[def.ID] = p
		r.ids = append(r.ids, def.ID)
	}
	sort.Ints(r.ids)
	return r, nil
}

// Get returns the problem with the given ID.
func (r *Registry) Get(id int) (*harness.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return nil, apperrors.Errorf(apperrors.NotFound, "problem %d", id).
			WithComponent("problems").WithOperation("Get")
	}
	return p, nil
}

// List returns all problems ordered by ID.
func (r *Registry) List() []*harness.Problem {
	out := make([]*harness.Problem, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.problems[id])
	}
	return out
}

// Close resets every problem, unloading its native code.
func (r *Registry) Close() error {
	var first error
	for _, p := range r.List() {
		if err := p.Reset(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func squareSum(args harness.Args) (any, error) {
	a, err := harness.Arg[int32](args, 0)
	if err != nil {
		return nil, err
	}
	b, err := harness.Arg[int32](args, 1)
	if err != nil {
		return nil, err
	}
	return (a + b) * (a + b), nil
}

func bindSquareSum(sym uintptr) (harness.Func, error) {
	return harness.Bind(sym, func(f func(int32, int32) int32) harness.Func {
		return func(args harness.Args) (any, error) {
			a, err := harness.Arg[int32](args, 0)
			if err != nil {
				return nil, err
			}
			b, err := harness.Arg[int32](args, 1)
			if err != nil {
				return nil, err
			}
			return f(a, b), nil
		}
	})
}

type saxpyArgs struct {
	a    float32
	x, y []float32
}

func saxpyInputs(args harness.Args) (saxpyArgs, error) {
	var in saxpyArgs
	var err error
	if in.a, err = harness.Arg[float32](args, 0); err != nil {
		return in, err
	}
	if in.x, err = harness.Arg[[]float32](args, 1); err != nil {
		return in, err
	}
	if in.y, err = harness.Arg[[]float32](args, 2); err != nil {
		return in, err
	}
	if len(in.x) != len(in.y) {
		return in, apperrors.Errorf(apperrors.InvalidInput, "saxpy: len(x)=%d, len(y)=%d", len(in.x), len(in.y))
	}
	return in, nil
}

func saxpy(args harness.Args) (any, error) {
	in, err := saxpyInputs(args)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(in.x))
	for i := range in.x {
		// The explicit conversion keeps the product rounded, as fmul then fadd does.
		out[i] = float32(in.a*in.x[i]) + in.y[i]
	}
	return out, nil
}

func bindSaxpy(sym uintptr) (harness.Func, error) {
	return harness.Bind(sym, func(f func(float32, *float32, *float32, *float32, int64)) harness.Func {
		return func(args harness.Args) (any, error) {
			in, err := saxpyInputs(args)
			if err != nil {
				return nil, err
			}
			out := make([]float32, len(in.x))
			f(in.a, first(in.x), first(in.y), first(out), int64(len(out)))
			return out, nil
		}
	})
}

func saxpyData() harness.Args {
	rng := rand.New(rand.NewPCG(2, 0x5a597079))
	x := make([]float32, saxpyLen)
	y := make([]float32, saxpyLen)
	for i := range x {
		x[i] = rng.Float32()*200 - 100
		y[i] = rng.Float32()*200 - 100
	}
	return harness.Args{float32(2.5), x, y}
}

func prefixSum(args harness.Args) (any, error) {
	in, err := harness.Arg[[]int32](args, 0)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(in))
	var acc int32
	for i, v := range in {
		acc += v
		out[i] = acc
	}
	return out, nil
}

func bindPrefixSum(sym uintptr) (harness.Func, error) {
	return harness.Bind(sym, func(f func(*int32, *int32, int64)) harness.Func {
		return func(args harness.Args) (any, error) {
			in, err := harness.Arg[[]int32](args, 0)
			if err != nil {
				return nil, err
			}
			out := make([]int32, len(in))
			f(first(in), first(out), int64(len(in)))
			return out, nil
		}
	})
}

func prefixSumData() harness.Args {
	rng := rand.New(rand.NewPCG(3, 0x7073756d))
	in := make([]int32, prefixSumLen)
	for i := range in {
		in[i] = rng.Int32N(2001) - 1000
	}
	return harness.Args{in}
}

// first returns a pointer to s[0], or nil for an empty slice.
func first[T any](s []T) *T {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}
