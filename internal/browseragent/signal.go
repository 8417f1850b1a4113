package browseragent

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// InterruptHandler implements two-press Ctrl-C semantics: the first press
// flips paused, a second press while already paused force-exits after a
// one-shot telemetry-flush guard.
type InterruptHandler struct {
	sigCh     chan os.Signal
	state     *AgentState
	once      sync.Once
	forceExit func()
	flushed   atomic.Bool
	done      chan struct{}
}

// NewInterruptHandler builds a handler over state; Install registers it for
// SIGINT and SIGTERM. forceExit is invoked exactly once, after the
// telemetry-flush guard, on the second signal while paused.
func NewInterruptHandler(state *AgentState, forceExit func()) *InterruptHandler {
	return &InterruptHandler{state: state, forceExit: forceExit, done: make(chan struct{})}
}

// Install registers the OS signal handler. Must be paired with Uninstall;
// both are bound to a single Run call, the only process-global state the
// agent touches.
func (h *InterruptHandler) Install() {
	h.sigCh = make(chan os.Signal, 1)
	signal.Notify(h.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			select {
			case <-h.sigCh:
				if h.state.Paused() {
					if h.flushed.CompareAndSwap(false, true) {
						if h.forceExit != nil {
							h.forceExit()
						}
					}
					return
				}
				h.state.Pause()
			case <-h.done:
				return
			}
		}
	}()
}

// Uninstall removes the signal handler, idempotently.
func (h *InterruptHandler) Uninstall() {
	h.once.Do(func() {
		if h.sigCh != nil {
			signal.Stop(h.sigCh)
		}
		close(h.done)
	})
}
