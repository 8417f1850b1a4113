// Package httpapi exposes the agent control surface over HTTP: start a task,
// pause/resume/stop it, and read its status and history. At most one agent
// runs per process.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"browseragent/internal/browseragent"
)

// StartRequest is the payload for POST /api/v1/agent/start.
type StartRequest struct {
	Task        string          `json:"task"`
	LLMConfig   json.RawMessage `json:"llm_config,omitempty"`
	AgentConfig json.RawMessage `json:"agent_config,omitempty"`
	MaxSteps    int             `json:"max_steps,omitempty"`
}

// AgentFactory builds a ready-to-run agent for one start request. The
// returned agent must have a launched browser behind its controller.
type AgentFactory func(ctx context.Context, req StartRequest) (*browseragent.Agent, error)

// Server is the HTTP API server wired to one agent slot.
type Server struct {
	factory  AgentFactory
	maxSteps int
	mux      *http.ServeMux

	mu      sync.Mutex
	agent   *browseragent.Agent
	running bool
	stopped bool
}

// NewServer creates the control-surface server. maxSteps is the default step
// budget for requests that do not carry one.
func NewServer(factory AgentFactory, maxSteps int) *Server {
	s := &Server{factory: factory, maxSteps: maxSteps, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/agent/start", s.handleStart)
	s.mux.HandleFunc("POST /api/v1/agent/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/v1/agent/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/v1/agent/resume", s.handleResume)
	s.mux.HandleFunc("GET /api/v1/agent/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/v1/agent/history", s.handleHistory)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
