package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/copyleftdev/irtune/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HTTP.RequestTimeout)
	defer cancel()

	var result interface{}
	var err error

	switch request.Method {
	case "problem.list":
		result = s.listProblems()
	case "problem.get":
		result, err = s.rpcProblemGet(request.Params)
	case "problem.verify":
		result, err = s.rpcProblemVerify(ctx, request.Params)
	case "benchmark.history":
		result, err = s.rpcBenchmarkHistory(ctx, request.Params)
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := codeServerError
		if apperrors.KindOf(err) == apperrors.InvalidInput {
			code = codeInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID, newErrorBody(err))
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// paramObject returns the first positional parameter as an object.
func paramObject(params []interface{}) (map[string]interface{}, error) {
	if len(params) == 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, apperrors.New(apperrors.InvalidInput, "invalid parameter format, expected object")
	}
	return paramMap, nil
}

func paramProblemID(paramMap map[string]interface{}) (int, error) {
	v, ok := paramMap["problem_id"].(float64)
	if !ok || v != float64(int(v)) {
		return 0, apperrors.New(apperrors.InvalidInput, "problem_id must be an integer")
	}
	return int(v), nil
}

// rpcProblemGet handles problem.get.
// Expected parameters: {"problem_id": 1}
func (s *Server) rpcProblemGet(params []interface{}) (interface{}, error) {
	paramMap, err := paramObject(params)
	if err != nil {
		return nil, err
	}
	id, err := paramProblemID(paramMap)
	if err != nil {
		return nil, err
	}
	return s.problemDetail(id)
}

// rpcProblemVerify handles problem.verify. An absent ir verifies the last
// extracted IR, or the problem's source if there is none.
// Expected parameters: {"problem_id": 1, "ir": "define i32 @f(...) {...}"}
// Returns: {"record": {...}, "speedup": 1.8}
func (s *Server) rpcProblemVerify(ctx context.Context, params []interface{}) (interface{}, error) {
	paramMap, err := paramObject(params)
	if err != nil {
		return nil, err
	}
	id, err := paramProblemID(paramMap)
	if err != nil {
		return nil, err
	}
	var ir string
	if raw, present := paramMap["ir"]; present {
		if ir, err = asString(raw, "ir"); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	res, err := s.verifyProblem(ctx, id, ir)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("RPC verify completed", map[string]interface{}{
		"problem":  id,
		"duration": time.Since(start).String(),
	})
	return res, nil
}

// rpcBenchmarkHistory handles benchmark.history.
// Expected parameters: {"problem_id": 1}
// Returns: {"records": [...], "summary": {...}}
func (s *Server) rpcBenchmarkHistory(ctx context.Context, params []interface{}) (interface{}, error) {
	paramMap, err := paramObject(params)
	if err != nil {
		return nil, err
	}
	id, err := paramProblemID(paramMap)
	if err != nil {
		return nil, err
	}
	return s.benchmarkHistory(ctx, id)
}

func asString(v interface{}, name string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", apperrors.New(apperrors.InvalidInput, fmt.Sprintf("%s must be a string", name))
	}
	return s, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data ...interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(data) > 0 && data[0] != nil {
		errObj["data"] = data[0]
	}
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   errObj,
		"id":      id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
