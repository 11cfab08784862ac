// Package generationtest provides a scripted Generator for tests and
// offline runs.
package generationtest

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// Call records one request made to a Fake.
type Call struct {
	System string
	User   string
	Stream bool
}

// Fake answers each system instruction with scripted fragments. Complete
// returns the fragments joined. Unscripted instructions answer with Default.
type Fake struct {
	Responses map[string][]string
	Errors    map[string]error
	Default   []string

	mu    sync.Mutex
	calls []Call
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Responses: make(map[string][]string),
		Errors:    make(map[string]error),
	}
}

// On scripts the response for a system instruction and returns f.
func (f *Fake) On(system string, fragments ...string) *Fake {
	f.Responses[system] = fragments
	return f
}

// Fail scripts an error for a system instruction and returns f.
func (f *Fake) Fail(system string, err error) *Fake {
	f.Errors[system] = err
	return f
}

// Calls returns the recorded requests in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) record(c Call) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if err := f.Errors[c.System]; err != nil {
		return nil, err
	}
	if r, ok := f.Responses[c.System]; ok {
		return r, nil
	}
	return f.Default, nil
}

// Complete implements generation.Generator.
func (f *Fake) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	frags, err := f.record(Call{System: system, User: user})
	if err != nil {
		return "", err
	}
	return strings.Join(frags, ""), nil
}

// Stream implements generation.Generator.
func (f *Fake) Stream(ctx context.Context, system, user string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		frags, err := f.record(Call{System: system, User: user, Stream: true})
		if err != nil {
			yield("", err)
			return
		}
		for _, frag := range frags {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}
