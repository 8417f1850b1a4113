package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Task == "" {
		respondError(w, http.StatusBadRequest, errors.New("task is required"))
		return
	}
	if req.MaxSteps <= 0 {
		req.MaxSteps = s.maxSteps
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		respondError(w, http.StatusConflict, errors.New("an agent is already active"))
		return
	}
	agent, err := s.factory(r.Context(), req)
	if err != nil {
		s.mu.Unlock()
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.agent = agent
	s.running = true
	s.stopped = false
	s.mu.Unlock()

	go func() {
		_, runErr := agent.Run(context.Background(), req.MaxSteps, nil, nil, nil)
		if runErr != nil {
			log.Error().Err(runErr).Str("task_id", agent.TaskID).Msg("agent run failed")
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"task_id":    agent.TaskID,
		"session_id": agent.SessionID,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agent := s.agent
	if agent != nil {
		s.stopped = true
	}
	s.mu.Unlock()
	if agent == nil {
		respondError(w, http.StatusNotFound, errors.New("no agent"))
		return
	}
	agent.State.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agent := s.agent
	s.mu.Unlock()
	if agent == nil {
		respondError(w, http.StatusNotFound, errors.New("no agent"))
		return
	}
	agent.State.Pause()
	respondJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agent := s.agent
	s.mu.Unlock()
	if agent == nil {
		respondError(w, http.StatusNotFound, errors.New("no agent"))
		return
	}
	agent.State.Resume()
	respondJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agent, running, stopped := s.agent, s.running, s.stopped
	s.mu.Unlock()

	if agent == nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "inactive"})
		return
	}
	status := "inactive"
	switch {
	case running && agent.State.Paused():
		status = "paused"
	case running:
		status = "running"
	case stopped:
		status = "stopped"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":               status,
		"task_id":              agent.TaskID,
		"session_id":           agent.SessionID,
		"steps":                agent.State.NSteps(),
		"consecutive_failures": agent.State.ConsecutiveFailures(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	agent := s.agent
	s.mu.Unlock()
	if agent == nil {
		respondError(w, http.StatusNotFound, errors.New("no agent"))
		return
	}
	respondJSON(w, http.StatusOK, agent.State.History())
}
