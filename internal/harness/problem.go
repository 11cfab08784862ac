// Package harness compiles untrusted IR text into native functions and
// exposes the three callable variants of a problem: the Go baseline, the
// compiled reference and the compiled candidate.
package harness

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

const component = "harness"

// Args is the ordered argument tuple passed to every variant.
type Args []any

// Func is a callable variant of a problem. Implementations allocate their
// outputs, so two calls never share a result.
type Func func(args Args) (any, error)

// Binder adapts a native symbol address to a Func with the problem's
// signature.
type Binder func(sym uintptr) (Func, error)

// Variant names one of the three callables of a Problem.
type Variant int

const (
	Baseline Variant = iota
	Reference
	Optimized
)

func (v Variant) String() string {
	switch v {
	case Baseline:
		return "Base"
	case Reference:
		return "Compiled"
	case Optimized:
		return "AI-Opt"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Definition describes a problem before it is bound to a compiler.
type Definition struct {
	ID          int
	Name        string
	Description string
	// Source is the unoptimized IR compiled as the reference.
	Source string
	// Entry is the symbol the reference defines.
	Entry    string
	Baseline Func
	Bind     Binder
	// TestData must be deterministic; it is called at most once per Problem.
	TestData func() Args
}

type binding struct {
	lib   Library
	entry string
	fn    Func
}

func (b *binding) close() error {
	if b == nil {
		return nil
	}
	return b.lib.Close()
}

// Problem is one optimization task. The reference and candidate bindings are
// compiled independently; Optimize and Reset are serialized, but a whole
// verification cycle must be serialized by the caller.
type Problem struct {
	def      Definition
	compiler Compiler

	dataOnce sync.Once
	data     Args

	mu  sync.Mutex
	ref *binding
	ai  *binding
}

// NewProblem validates def and binds it to compiler.
func NewProblem(def Definition, compiler Compiler) (*Problem, error) {
	switch {
	case def.Source == "":
		return nil, apperrors.Errorf(apperrors.InvalidInput, "problem %d has no source IR", def.ID)
	case def.Entry == "":
		return nil, apperrors.Errorf(apperrors.InvalidInput, "problem %d has no entry symbol", def.ID)
	case def.Baseline == nil || def.Bind == nil || def.TestData == nil:
		return nil, apperrors.Errorf(apperrors.InvalidInput, "problem %d is missing baseline, binder or test data", def.ID)
	case compiler == nil:
		return nil, apperrors.New(apperrors.InvalidInput, "nil compiler")
	}
	return &Problem{def: def, compiler: compiler}, nil
}

func (p *Problem) ID() int { return p.def.ID }
func (p *Problem) Name() string { return p.def.Name }
func (p *Problem) Description() string { return p.def.Description }
func (p *Problem) Source() string { return p.def.Source }
func (p *Problem) Entry() string { return p.def.Entry }

// TestData returns the problem's argument tuple. The tuple is generated on
// first use and the same values are returned for the life of the Problem.
// Callers must treat it as read-only.
func (p *Problem) TestData() Args {
	p.dataOnce.Do(func() { p.data = p.def.TestData() })
	return p.data
}

// Fn invokes the Go baseline.
func (p *Problem) Fn(args Args) (any, error) { return p.def.Baseline(args) }

// CFn invokes the compiled reference.
func (p *Problem) CFn(args Args) (any, error) { return p.call(Reference, args) }

// AIFn invokes the compiled candidate.
func (p *Problem) AIFn(args Args) (any, error) { return p.call(Optimized, args) }

func (p *Problem) call(v Variant, args Args) (any, error) {
	fn, err := p.Variant(v)
	if err != nil {
		return nil, err
	}
	return fn(args)
}

// Variant returns the Func currently bound to v. A compiled Func points into
// a loaded library: after the next Reset, or after Optimize replaces the
// candidate, calling it jumps into unmapped code. Callers must not hold it
// across either call.
func (p *Problem) Variant(v Variant) (Func, error) {
	if v == Baseline {
		return p.def.Baseline, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.ref
	if v == Optimized {
		b = p.ai
	}
	if b == nil {
		return nil, apperrors.Errorf(apperrors.NotCompiled, "%s variant of problem %d is not compiled", v, p.def.ID).
			WithComponent(component).WithOperation("Variant")
	}
	return b.fn, nil
}

// Optimize compiles ir and binds it as the candidate, compiling the
// reference first if it is not bound. Both are committed only once the
// candidate is loaded and bound, so a CompileError leaves the previous
// bindings, or the unbound state, untouched.
func (p *Problem) Optimize(ctx context.Context, ir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref := p.ref
	if ref == nil {
		var err error
		if ref, err = p.load(ctx, p.def.Source, "reference"); err != nil {
			return err
		}
	}

	ai, err := p.load(ctx, ir, "candidate")
	if err != nil {
		if ref != p.ref {
			_ = ref.close()
		}
		return err
	}
	old := p.ai
	p.ref, p.ai = ref, ai
	_ = old.close()
	return nil
}

func (p *Problem) load(ctx context.Context, ir, what string) (*binding, error) {
	op := "Optimize"
	entry, ok := EntryPoint(ir, p.def.Entry)
	if !ok {
		return nil, apperrors.Errorf(apperrors.CompileError, "%s IR defines no function", what).
			WithComponent(component).WithOperation(op).WithDetail(ir)
	}

	lib, err := p.compiler.Compile(ctx, ir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CompileError, err, what).WithComponent(component).WithOperation(op)
	}
	sym, err := lib.Symbol(entry)
	if err != nil {
		_ = lib.Close()
		return nil, apperrors.Wrap(apperrors.CompileError, err, fmt.Sprintf("%s symbol @%s", what, entry)).
			WithComponent(component).WithOperation(op)
	}
	fn, err := p.def.Bind(sym)
	if err != nil {
		_ = lib.Close()
		return nil, apperrors.Wrap(apperrors.CompileError, err, fmt.Sprintf("bind %s @%s", what, entry)).
			WithComponent(component).WithOperation(op)
	}
	return &binding{lib: lib, entry: entry, fn: fn}, nil
}

// Reset discards both compiled bindings so the next Optimize recompiles from
// scratch. It is idempotent.
func (p *Problem) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	errRef := p.ref.close()
	errAI := p.ai.close()
	p.ref, p.ai = nil, nil
	if errRef != nil {
		return errRef
	}
	return errAI
}

// Entries reports the symbols currently bound for the reference and the
// candidate; empty strings mean unbound.
func (p *Problem) Entries() (reference, candidate string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ref != nil {
		reference = p.ref.entry
	}
	if p.ai != nil {
		candidate = p.ai.entry
	}
	return reference, candidate
}
