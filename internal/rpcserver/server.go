// Package rpcserver exposes the AC controls to a conversational assistant
// over a thin JSON-RPC 2.0 tool protocol (initialize, tools/list,
// tools/call), plus health and Prometheus metrics endpoints.
package rpcserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/nightbreeze/internal/metrics"
	"github.com/lox/nightbreeze/internal/switchbot"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "nightbreeze"
	serverVersion   = "1.0.0"
)

type Server struct {
	ac     *switchbot.AC
	apiKey string
	addr   string
}

// NewServer builds the tool server. An empty apiKey disables authentication
// (local development); otherwise requests must carry the key in an
// X-API-Key header or as a bearer token.
func NewServer(ac *switchbot.AC, apiKey, addr string) *Server {
	return &Server{ac: ac, apiKey: apiKey, addr: addr}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.requireAuth(s.handleRPC))
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// authorized checks the request's API key. No configured key means open
// access for local development.
func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	provided := r.Header.Get("X-API-Key")
	if provided == "" {
		provided = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return provided == s.apiKey
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			http.Error(w, "invalid or missing API key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, errorResponse(nil, codeParseError, "parse error"))
		return
	}
	if req.JSONRPC != jsonrpcVersion {
		writeResponse(w, errorResponse(req.ID, codeInvalidRequest, "unsupported jsonrpc version"))
		return
	}

	writeResponse(w, s.dispatch(r.Context(), &req))
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("rpcserver: write response: %v", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": serverName, "version": serverVersion},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})

	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": s.tools()})

	case "tools/call":
		return s.callTool(ctx, req)

	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// toolResult is the tools/call result shape: text content plus an isError
// flag. Tool failures are results, not protocol errors, so the assistant
// can read them.
type toolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params")
	}

	for _, tool := range s.tools() {
		if tool.Name != params.Name {
			continue
		}

		text, err := tool.handler(ctx, params.Arguments)
		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(tool.Name, "error").Inc()
			log.Printf("rpcserver: tool %s failed: %v", tool.Name, err)
			return resultResponse(req.ID, toolResult{
				Content: []toolContent{{Type: "text", Text: "Error: " + err.Error()}},
				IsError: true,
			})
		}

		metrics.ToolCallsTotal.WithLabelValues(tool.Name, "ok").Inc()
		return resultResponse(req.ID, toolResult{
			Content: []toolContent{{Type: "text", Text: text}},
		})
	}

	return errorResponse(req.ID, codeInvalidParams, "unknown tool: "+params.Name)
}
