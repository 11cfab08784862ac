// Package harnesstest provides an in-process Compiler for tests that
// exercise problems without clang.
package harnesstest

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/harness"
)

// Compiler maps IR texts to Go funcs. IR it does not know is rejected with a
// CompileError, like clang would reject malformed text.
type Compiler struct {
	mu       sync.Mutex
	funcs    map[string]harness.Func
	compiles int
}

// NewCompiler returns an empty Compiler.
func NewCompiler() *Compiler {
	return &Compiler{funcs: make(map[string]harness.Func)}
}

// Register makes ir compile to fn.
func (c *Compiler) Register(ir string, fn harness.Func) *Compiler {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[ir] = fn
	return c
}

// Compiles reports how many successful compilations happened.
func (c *Compiler) Compiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles
}

// Compile implements harness.Compiler.
func (c *Compiler) Compile(_ context.Context, ir string) (harness.Library, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.funcs[ir]
	if !ok {
		return nil, apperrors.New(apperrors.CompileError, "clang exited with status 1").
			WithDetail("error: expected top-level entity")
	}
	c.compiles++
	return &library{fn: fn}, nil
}

var (
	symMu   sync.Mutex
	symbols []*library
)

type library struct {
	mu     sync.Mutex
	fn     harness.Func
	closed bool
}

func (l *library) Symbol(string) (uintptr, error) {
	symMu.Lock()
	defer symMu.Unlock()
	symbols = append(symbols, l)
	return uintptr(len(symbols)), nil
}

func (l *library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Bind is the harness.Binder matching Compiler's symbols. A bound Func fails
// once its library is closed.
func Bind(sym uintptr) (harness.Func, error) {
	symMu.Lock()
	defer symMu.Unlock()
	if sym == 0 || int(sym) > len(symbols) {
		return nil, errors.New("unknown symbol")
	}
	lib := symbols[sym-1]
	return func(args harness.Args) (any, error) {
		lib.mu.Lock()
		closed := lib.closed
		lib.mu.Unlock()
		if closed {
			return nil, errors.New("call into unloaded library")
		}
		return lib.fn(args)
	}, nil
}
