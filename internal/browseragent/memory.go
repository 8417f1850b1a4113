package browseragent

import (
	"context"
	"fmt"
	"strings"

	"browseragent/internal/llm"
)

// MemoryHook is the pluggable procedural-memory summarization point. It is
// intentionally a hook, not an algorithm: the default implementation below
// folds a fixed instruction plus recent turns back into the conversation as
// a system turn; callers may substitute a persistent-backed implementation
// without the agent depending on any specific store.
type MemoryHook interface {
	// Summarize is invoked every Interval steps with the last window of
	// messages. A non-empty return value is inserted as a system turn by the
	// caller. Errors are logged and swallowed by the Agent Core; they must
	// not increment the failure counter.
	Summarize(ctx context.Context, recent []ChatMessage) (string, error)
	Interval() int
}

// llmMemoryHook is the default MemoryHook: it asks the same chat model a
// fixed summarization instruction.
type llmMemoryHook struct {
	provider llm.Provider
	model    string
	interval int
}

// NewLLMMemoryHook returns a MemoryHook that asks provider/model for a
// concise procedural summary every interval steps.
func NewLLMMemoryHook(provider llm.Provider, model string, interval int) MemoryHook {
	if interval <= 0 {
		interval = 10
	}
	return &llmMemoryHook{provider: provider, model: model, interval: interval}
}

func (h *llmMemoryHook) Interval() int { return h.interval }

func (h *llmMemoryHook) Summarize(ctx context.Context, recent []ChatMessage) (string, error) {
	if len(recent) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, m := range recent {
		for _, p := range m.Parts {
			if p.Kind == "text" {
				fmt.Fprintf(&b, "[%s] %s\n", m.Role, p.Text)
			}
		}
	}
	msgs := []llm.Message{
		{Role: "system", Content: "Summarize the recent agent turns below into one concise procedural memory paragraph capturing what has been tried and learned so far."},
		{Role: "user", Content: b.String()},
	}
	resp, err := h.provider.Chat(ctx, msgs, nil, h.model)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// RingMemoryHook is a no-LLM-call alternative: each Summarize call records
// the last text part of the newest message it is given, keeps the last N
// such texts, and returns them joined with " | ". Useful for tests and for
// callers who want memory folding without a second model call.
type RingMemoryHook struct {
	interval int
	capacity int
	items    []string
}

// NewRingMemoryHook returns a fixed-capacity recency-buffer memory hook.
func NewRingMemoryHook(interval, capacity int) *RingMemoryHook {
	if interval <= 0 {
		interval = 10
	}
	if capacity <= 0 {
		capacity = 5
	}
	return &RingMemoryHook{interval: interval, capacity: capacity}
}

func (h *RingMemoryHook) Interval() int { return h.interval }

func (h *RingMemoryHook) Summarize(ctx context.Context, recent []ChatMessage) (string, error) {
	if len(recent) == 0 {
		return "", nil
	}
	last := recent[len(recent)-1]
	var text string
	for _, p := range last.Parts {
		if p.Kind == "text" {
			text = p.Text
		}
	}
	h.items = append(h.items, text)
	if len(h.items) > h.capacity {
		h.items = h.items[len(h.items)-h.capacity:]
	}
	return strings.Join(h.items, " | "), nil
}
