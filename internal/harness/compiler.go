package harness

import "context"

// Library is a loaded native module.
type Library interface {
	// Symbol returns the address of a defined function.
	Symbol(name string) (uintptr, error)
	// Close unloads the module and removes its files. Funcs bound to its
	// symbols must not be called afterwards.
	Close() error
}

// Compiler turns IR text into a loaded Library.
type Compiler interface {
	Compile(ctx context.Context, ir string) (Library, error)
}
