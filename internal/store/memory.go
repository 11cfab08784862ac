package store

import (
	"context"
	"sync"

	"github.com/copyleftdev/irtune/internal/verify"
)

// Memory is a Store held in process memory.
type Memory struct {
	mu      sync.RWMutex
	history map[int][]verify.Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{history: make(map[int][]verify.Record)}
}

// Append implements verify.Recorder.
func (m *Memory) Append(ctx context.Context, rec *verify.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Attempt = len(m.history[rec.ProblemID]) + 1
	m.history[rec.ProblemID] = append(m.history[rec.ProblemID], *rec)
	return nil
}

// History implements Store. The returned slice is a copy.
func (m *Memory) History(ctx context.Context, problemID int) ([]verify.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]verify.Record(nil), m.history[problemID]...), nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
