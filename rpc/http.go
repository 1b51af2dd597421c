package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"tokendrop/native/distribution"
	"tokendrop/observability"
)

// RPCRequest models a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError models a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Server exposes the distribution engine over JSON-RPC.
type Server struct {
	engine  *distribution.Engine
	log     *slog.Logger
	metrics *observability.DistributionMetrics
}

// NewServer constructs an RPC server bound to the supplied engine.
func NewServer(engine *distribution.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:  engine,
		log:     log,
		metrics: observability.Distribution(),
	}
}

// ServeHTTP dispatches JSON-RPC requests to the registered method handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "invalid_request", "POST required")
		return
	}
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	method := strings.TrimSpace(req.Method)
	s.log.Debug("rpc request", "method", method)
	switch method {
	case "distribution_claim":
		s.handleClaim(w, r, &req)
	case "distribution_unlocked":
		s.handleUnlocked(w, r, &req)
	case "distribution_state":
		s.handleState(w, r, &req)
	case "distribution_listClaims":
		s.handleListClaims(w, r, &req)
	case "distribution_startMigration":
		s.handleStartMigration(w, r, &req)
	case "distribution_sweepRemaining":
		s.handleSweepRemaining(w, r, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", method)
	}
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}
