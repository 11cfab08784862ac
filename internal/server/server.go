// Package server exposes problems, the optimization pipeline and benchmark
// history over HTTP and JSON-RPC 2.0.
package server

import (
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/copyleftdev/irtune/internal/config"
	"github.com/copyleftdev/irtune/internal/logging"
	"github.com/copyleftdev/irtune/internal/metrics"
	"github.com/copyleftdev/irtune/internal/optimization"
	"github.com/copyleftdev/irtune/internal/problems"
	"github.com/copyleftdev/irtune/internal/store"
	"github.com/copyleftdev/irtune/internal/verify"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Deps are the collaborators a Server drives.
type Deps struct {
	Problems  *problems.Registry
	Optimizer *optimization.Optimizer
	Extractor *optimization.Extractor
	Store     store.Store
	Metrics   *metrics.Metrics
}

// session is the per-problem state of a display client. run serializes
// verification cycles, which reset and recompile the problem.
type session struct {
	run sync.Mutex

	mu         sync.RWMutex
	lastIR     string
	lastRecord *verify.Record
}

func (s *session) setIR(ir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIR = ir
}

func (s *session) setRecord(rec *verify.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRecord = rec
}

func (s *session) snapshot() (ir string, rec *verify.Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIR, s.lastRecord
}

// Server implements the HTTP and JSON-RPC surface of irtune.
type Server struct {
	cfg    *config.Config
	logger Logger
	deps   Deps
	cycle  *verify.Cycle

	sessions   map[int]*session
	sessionsMu sync.Mutex
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger, deps Deps) *Server {
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
		cycle: &verify.Cycle{
			Runner:   verify.Runner{Repetitions: cfg.Benchmark.Repetitions},
			Recorder: deps.Store,
			Metrics:  deps.Metrics,
			Logger:   logger.WithFields(map[string]interface{}{"component": "verify"}),
		},
		sessions: make(map[int]*session),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.HTTP.RequestTimeout))
			r.Get("/problems", s.handleListProblems)
			r.Get("/problems/{id}", s.handleGetProblem)
			r.Post("/problems/{id}/verify", s.handleVerify)
			r.Get("/problems/{id}/benchmarks", s.handleBenchmarks)
		})
		// Streams carry their own deadline.
		r.Post("/problems/{id}/analyze", s.handleAnalyze)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

func (s *Server) session(id int) *session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

// Close unloads every problem's native code. The store belongs to the
// caller.
func (s *Server) Close() error {
	if s.deps.Problems == nil {
		return nil
	}
	return s.deps.Problems.Close()
}
