// Package generation defines the text-generation capability used by the
// optimization pipeline and an OpenAI-compatible implementation of it.
package generation

import (
	"context"
	"iter"
)

// Generator produces text for a system instruction and a user payload.
type Generator interface {
	// Complete blocks until the whole response is available.
	Complete(ctx context.Context, system, user string) (string, error)
	// Stream returns the response as a lazy, finite sequence of fragments.
	// The sequence ends when the response completes or after yielding an
	// error. Each call issues a new request.
	Stream(ctx context.Context, system, user string) iter.Seq2[string, error]
}
