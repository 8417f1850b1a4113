package browseragent

import "sync"

// AgentState is the mutable per-run state shared between the Agent Core's
// step loop and the external pause/resume/stop control surface. Exactly one
// AgentState exists per agent instance and is never shared across agents.
//
// External calls (Pause, Resume, Stop) mutate only these flags and must
// stay cheap and non-blocking, so all access here is a single mutex-guarded
// flag flip plus a condition-variable broadcast.
type AgentState struct {
	mu   sync.Mutex
	cond *sync.Cond

	nSteps              int
	consecutiveFailures int
	paused              bool
	stopped             bool
	lastResults         []ActionResult
	history             AgentHistoryList
}

// NewAgentState returns a fresh, running state.
func NewAgentState() *AgentState {
	s := &AgentState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Pause requests that the step loop suspend at its next check-point.
func (s *AgentState) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears the pause flag and wakes any waiter. Stop always wins over
// pause: resuming a stopped run is a no-op for the paused flag, since the
// loop will observe Stopped() first.
func (s *AgentState) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Stop requests termination. If the loop is currently parked in
// WaitIfPaused, Stop immediately unparks it (stop wins over pause).
func (s *AgentState) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Paused reports the current pause flag.
func (s *AgentState) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stopped reports the current stop flag.
func (s *AgentState) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// WaitIfPaused blocks the calling goroutine (the step loop) while paused
// and not stopped. Pause is only observed at checkpoints like this one,
// never preemptively.
func (s *AgentState) WaitIfPaused() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.stopped {
		s.cond.Wait()
	}
}

// CheckInterrupted returns ErrAgentInterrupted if the run has been paused or
// stopped since the last check-point.
func (s *AgentState) CheckInterrupted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.paused {
		return ErrAgentInterrupted
	}
	return nil
}

// NSteps returns the monotonic step counter (P1).
func (s *AgentState) NSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nSteps
}

func (s *AgentState) incrementSteps() {
	s.mu.Lock()
	s.nSteps++
	s.mu.Unlock()
}

// ConsecutiveFailures returns the current failure streak.
func (s *AgentState) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}

func (s *AgentState) resetFailures() {
	s.mu.Lock()
	s.consecutiveFailures = 0
	s.mu.Unlock()
}

func (s *AgentState) incrementFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFailures++
	return s.consecutiveFailures
}

// LastResults returns the most recent step's action results.
func (s *AgentState) LastResults() []ActionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResults
}

func (s *AgentState) setLastResults(r []ActionResult) {
	s.mu.Lock()
	s.lastResults = r
	s.mu.Unlock()
}

func (s *AgentState) setFailures(n int) {
	s.mu.Lock()
	s.consecutiveFailures = n
	s.mu.Unlock()
}

// HistoryRef returns the live history list. Only the step loop appends to
// it; callers on other goroutines should use History for a copy.
func (s *AgentState) HistoryRef() *AgentHistoryList {
	return &s.history
}

// History returns the append-only AgentHistoryList accumulated so far.
func (s *AgentState) History() AgentHistoryList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

func (s *AgentState) appendHistory(h AgentHistory) {
	s.mu.Lock()
	s.history.History = append(s.history.History, h)
	s.mu.Unlock()
}
