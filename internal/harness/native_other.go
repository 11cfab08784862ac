//go:build !(darwin || linux)

package harness

import (
	"fmt"
	"runtime"
)

var errUnsupported = fmt.Errorf("loading compiled IR is not supported on %s", runtime.GOOS)

type sharedLibrary struct{}

func openLibrary(string) (*sharedLibrary, error) { return nil, errUnsupported }

func (*sharedLibrary) Symbol(string) (uintptr, error) { return 0, errUnsupported }

func (*sharedLibrary) Close() error { return nil }

// RegisterFunc always fails on this platform.
func RegisterFunc(any, uintptr) error { return errUnsupported }
