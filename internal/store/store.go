// Package store keeps the append-only benchmark history of each problem.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/copyleftdev/irtune/internal/verify"
)

// Store is a benchmark history. Append assigns the record's Attempt as the
// next number for its problem; records are never updated or removed.
type Store interface {
	verify.Recorder
	// History returns a problem's records ordered by attempt.
	History(ctx context.Context, problemID int) ([]verify.Record, error)
	Close() error
}

// Open returns the store of the given type: "memory" or "sqlite".
func Open(kind, dsn string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported store type %q", kind)
	}
}
