//go:build darwin || linux

package harness

import (
	"fmt"
	"os"
	"sync"

	"github.com/ebitengine/purego"
)

// sharedLibrary is a dlopen'ed shared object.
type sharedLibrary struct {
	handle uintptr
	path   string
	once   sync.Once
}

func openLibrary(path string) (*sharedLibrary, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &sharedLibrary{handle: h, path: path}, nil
}

func (l *sharedLibrary) Symbol(name string) (uintptr, error) {
	sym, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, err
	}
	if sym == 0 {
		return 0, fmt.Errorf("symbol %s resolved to nil", name)
	}
	return sym, nil
}

func (l *sharedLibrary) Close() error {
	var err error
	l.once.Do(func() {
		err = purego.Dlclose(l.handle)
		if rmErr := os.Remove(l.path); err == nil && rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	})
	return err
}

// RegisterFunc points fptr, a pointer to a func variable, at the native
// function sym. Unsupported signatures are reported as errors.
func RegisterFunc(fptr any, sym uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register native function: %v", r)
		}
	}()
	purego.RegisterFunc(fptr, sym)
	return nil
}
