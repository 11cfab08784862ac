package harness

import (
	"fmt"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

// Bind registers sym as a native function of type F and adapts it to a Func
// with wrap. F is usually inferred from wrap:
//
//	harness.Bind(sym, func(f func(int32, int32) int32) harness.Func { ... })
func Bind[F any](sym uintptr, wrap func(F) Func) (Func, error) {
	var f F
	if err := RegisterFunc(&f, sym); err != nil {
		return nil, err
	}
	return wrap(f), nil
}

// Arg returns args[i] as a T.
func Arg[T any](args Args, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, apperrors.Errorf(apperrors.InvalidInput, "missing argument %d of %d", i, len(args))
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, apperrors.Errorf(apperrors.InvalidInput, "argument %d is %T, want %s", i, args[i], fmt.Sprintf("%T", zero))
	}
	return v, nil
}
