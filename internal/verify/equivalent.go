// Package verify checks that compiled variants agree with each other and
// measures how fast they run.
package verify

import (
	"reflect"

	"gonum.org/v1/gonum/floats/scalar"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

// Tolerances for float32 sequences, matching numpy.allclose defaults.
const (
	AbsTolerance = 1e-8
	RelTolerance = 1e-5
)

// Equivalent reports whether a and b hold the same output. []float32 values
// are compared element-wise within AbsTolerance or RelTolerance; everything
// else must be exactly equal. a and b must be distinct bindings: passing the
// same slice, map or pointer twice is a SameBinding error, since comparing
// a value with itself proves nothing.
func Equivalent(a, b any) (bool, error) {
	if aliased(a, b) {
		return false, apperrors.New(apperrors.SameBinding, "outputs share storage").
			WithComponent("verify").WithOperation("Equivalent")
	}

	if fa, ok := a.([]float32); ok {
		fb, ok := b.([]float32)
		if !ok || len(fa) != len(fb) {
			return false, nil
		}
		for i := range fa {
			if !scalar.EqualWithinAbsOrRel(float64(fa[i]), float64(fb[i]), AbsTolerance, RelTolerance) {
				return false, nil
			}
		}
		return true, nil
	}
	return reflect.DeepEqual(a, b), nil
}

// aliased reports whether a and b refer to the same storage.
func aliased(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() || va.Kind() != vb.Kind() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() > 0 && vb.Len() > 0 && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return !va.IsNil() && va.Pointer() == vb.Pointer()
	default:
		return false
	}
}
