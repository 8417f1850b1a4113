package browseragent

import (
	"errors"
	"fmt"
)

// ErrAgentInterrupted signals a cooperative interruption (pause/stop) raised
// mid-step. It never increments the failure counter.
var ErrAgentInterrupted = errors.New("agent interrupted")

// ConfigError is a fatal configuration-taxonomy error (malformed action
// definition, bad parameter schema, unknown tool-calling method).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

func newConfigError(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError wraps one or more parameter-schema violations for a named
// action.
type ValidationError struct {
	Action string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("action %q: validation failed: %v", e.Action, e.Issues)
}

// ExecutionError wraps a failure raised by an action's Execute callback.
type ExecutionError struct {
	Action string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %q: %v", e.Action, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// BudgetExhaustedError is terminal: consecutive failures reached max_failures
// or the step budget was exhausted.
type BudgetExhaustedError struct {
	Reason string
}

func (e *BudgetExhaustedError) Error() string { return e.Reason }

// ReplayDriftError signals that a historical element has no match in the
// current selector map during rerun_history.
type ReplayDriftError struct {
	StepNumber int
}

func (e *ReplayDriftError) Error() string {
	return fmt.Sprintf("step %d: could not find matching element", e.StepNumber)
}
