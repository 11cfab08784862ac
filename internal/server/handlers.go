package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
	"github.com/copyleftdev/irtune/internal/harness"
	"github.com/copyleftdev/irtune/internal/optimization"
	"github.com/copyleftdev/irtune/internal/verify"
)

// irRequest is the optional body of analyze and verify requests.
type irRequest struct {
	IR string `json:"ir"`
}

type problemSummary struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Entry       string `json:"entry"`
}

type problemDetail struct {
	problemSummary
	Source     string         `json:"source"`
	TestData   harness.Args   `json:"test_data"`
	LastIR     string         `json:"last_ir,omitempty"`
	LastRecord *verify.Record `json:"last_record,omitempty"`
	Bound      struct {
		Reference string `json:"reference,omitempty"`
		Candidate string `json:"candidate,omitempty"`
	} `json:"bound"`
}

type verifyResult struct {
	Record  *verify.Record `json:"record"`
	Speedup float64        `json:"speedup"`
}

type historyResult struct {
	Records []verify.Record `json:"records"`
	Summary verify.Summary  `json:"summary"`
}

type errorBody struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func newErrorBody(err error) *errorBody {
	return &errorBody{
		Kind:    string(apperrors.KindOf(err)),
		Message: err.Error(),
		Detail:  apperrors.DetailOf(err),
	}
}

// event is one line of an analyze stream.
type event struct {
	Type  string     `json:"type"`
	Stage string     `json:"stage,omitempty"`
	Text  string     `json:"text,omitempty"`
	IR    string     `json:"ir,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func summarize(p *harness.Problem) problemSummary {
	return problemSummary{ID: p.ID(), Name: p.Name(), Description: p.Description(), Entry: p.Entry()}
}

func (s *Server) listProblems() []problemSummary {
	list := s.deps.Problems.List()
	out := make([]problemSummary, 0, len(list))
	for _, p := range list {
		out = append(out, summarize(p))
	}
	return out
}

func (s *Server) problemDetail(id int) (*problemDetail, error) {
	p, err := s.deps.Problems.Get(id)
	if err != nil {
		return nil, err
	}
	d := &problemDetail{
		problemSummary: summarize(p),
		Source:         p.Source(),
		TestData:       p.TestData(),
	}
	d.LastIR, d.LastRecord = s.session(id).snapshot()
	d.Bound.Reference, d.Bound.Candidate = p.Entries()
	return d, nil
}

// verifyProblem runs one cycle on ir, falling back to the session's last
// extracted IR and then to the problem's own source.
func (s *Server) verifyProblem(ctx context.Context, id int, ir string) (*verifyResult, error) {
	p, err := s.deps.Problems.Get(id)
	if err != nil {
		return nil, err
	}
	sess := s.session(id)
	if strings.TrimSpace(ir) == "" {
		ir, _ = sess.snapshot()
	}

	sess.run.Lock()
	defer sess.run.Unlock()

	rec, err := s.cycle.Run(ctx, p, ir)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ir) != "" {
		sess.setIR(ir)
	}
	sess.setRecord(rec)
	return &verifyResult{Record: rec, Speedup: rec.Speedup()}, nil
}

func (s *Server) benchmarkHistory(ctx context.Context, id int) (*historyResult, error) {
	if _, err := s.deps.Problems.Get(id); err != nil {
		return nil, err
	}
	records, err := s.deps.Store.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []verify.Record{}
	}
	return &historyResult{Records: records, Summary: verify.Summarize(records)}, nil
}

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.listProblems())
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.problemID(w, r)
	if !ok {
		return
	}
	d, err := s.problemDetail(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := s.problemID(w, r)
	if !ok {
		return
	}
	var body irRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	res, err := s.verifyProblem(r.Context(), id, body.IR)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.problemID(w, r)
	if !ok {
		return
	}
	res, err := s.benchmarkHistory(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleAnalyze streams the four stages as NDJSON events, then the
// extracted IR. Failures after the stream has started arrive as a final
// error event since the status line is already sent.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := s.problemID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Problems.Get(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if s.deps.Optimizer == nil || s.deps.Extractor == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error": &errorBody{Message: "text generation is not configured"},
		})
		return
	}
	var body irRequest
	if !s.decodeOptional(w, r, &body) {
		return
	}
	ir := body.IR
	if strings.TrimSpace(ir) == "" {
		ir = p.Source()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HTTP.StreamTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(ev event) bool {
		if err := enc.Encode(ev); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}
	fail := func(err error) {
		s.deps.Metrics.Failure(string(apperrors.KindOf(err)))
		s.logger.Warn("Analyze failed", map[string]interface{}{
			"problem": id,
			"error":   err,
		})
		emit(event{Type: "error", Error: newErrorBody(err)})
	}

	var optimized string
	for sec, err := range s.deps.Optimizer.Run(ctx, ir) {
		if err != nil {
			fail(err)
			return
		}
		if sec.Stage == optimization.OptimizedIR {
			optimized = sec.Text
		}
		if !emit(event{Type: "section", Stage: sec.Stage.String(), Text: sec.Text}) {
			return
		}
	}

	extracted, err := s.deps.Extractor.Extract(ctx, optimized)
	if err != nil {
		fail(err)
		return
	}
	s.session(id).setIR(extracted)
	emit(event{Type: "ir", IR: extracted})
}

func (s *Server) problemID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, apperrors.Errorf(apperrors.InvalidInput, "invalid problem id %q", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

// decodeOptional decodes a JSON body into v; an empty body leaves v zero.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, apperrors.Wrap(apperrors.InvalidInput, err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err})
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{"error": err, "status": status})
	}
	s.respondJSON(w, status, map[string]interface{}{"error": newErrorBody(err)})
}

// statusOf maps an error to its HTTP status, treating deadlines as 504.
func statusOf(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return apperrors.HTTPStatus(err)
}
