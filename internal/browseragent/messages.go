package browseragent

import (
	"context"
	"fmt"
	"strings"

	"browseragent/internal/llm"
)

// imageTokenCost is the fixed per-image token estimate. Images cost a flat
// constant rather than a per-pixel derivation so insertion and eviction
// always agree.
const imageTokenCost = 800

// Tokenizer counts the tokens a provider would actually consume; when nil,
// MessageManager falls back to the llm.EstimateTokens heuristic.
type Tokenizer interface {
	CountTokens(text string) int
}

// MessageManager owns the running conversation: system prompt, state turns,
// model-output turns, token accounting, and truncation.
type MessageManager struct {
	task             string
	model            string
	settings         AgentSettings
	tokenizer        Tokenizer
	compactor        llm.CompactionProvider
	lastCompaction   *llm.CompactionItem
	state            MessageManagerState
	availableActions string
}

// NewMessageManager constructs a manager with its system message already
// appended at index 0; that message is never evicted. When
// settings.MaxInputTokens is unset, the ceiling is derived from the model's
// known context window via llm.ContextSize.
func NewMessageManager(task, systemMessage, model string, settings AgentSettings, tokenizer Tokenizer) *MessageManager {
	if settings.MaxInputTokens <= 0 {
		if tokens, known := llm.ContextSize(model); known {
			settings.MaxInputTokens = tokens
		} else {
			settings.MaxInputTokens = 128000
		}
	}
	m := &MessageManager{task: task, model: model, settings: settings, tokenizer: tokenizer}
	sys := ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text", Text: systemMessage}}}
	m.state.Messages = append(m.state.Messages, sys)
	m.state.CurrentTokens += m.estimate(sys)
	return m
}

// AttachCompactor wires an llm.CompactionProvider so CutMessages prefers
// provider-native compaction over manual oldest-first eviction.
func (m *MessageManager) AttachCompactor(c llm.CompactionProvider) { m.compactor = c }

func (m *MessageManager) estimate(msg ChatMessage) int {
	total := 0
	for _, p := range msg.Parts {
		switch p.Kind {
		case "text":
			if m.tokenizer != nil {
				total += m.tokenizer.CountTokens(p.Text)
			} else {
				total += llm.EstimateTokens(p.Text)
			}
		case "image":
			total += imageTokenCost
		}
	}
	return total
}

func (m *MessageManager) append(msg ChatMessage) {
	m.state.Messages = append(m.state.Messages, msg)
	m.state.CurrentTokens += m.estimate(msg)
}

// StepInfo describes the current step's position for the state turn.
type StepInfo struct {
	StepNumber int
	MaxSteps   int
}

// AddStateMessage appends one human turn describing the current browser
// state: task reminder, URL, title, the interactive-element listing built
// from the selector map, the previous action's outcome, step N of M, and
// (when useVision and a screenshot exists) an image part.
func (m *MessageManager) AddStateMessage(summary *BrowserStateSummary, lastResults []ActionResult, step StepInfo, useVision bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", m.task)
	fmt.Fprintf(&b, "Current URL: %s\n", summary.URL)
	fmt.Fprintf(&b, "Page title: %s\n", summary.Title)
	if m.availableActions != "" {
		b.WriteString("Available actions:\n")
		b.WriteString(m.availableActions)
	}
	b.WriteString("Interactive elements:\n")
	for i := 0; i < len(summary.SelectorMap); i++ {
		el, ok := summary.SelectorMap[i]
		if !ok {
			continue
		}
		attrs := FilterAttributes(el, m.settings.IncludeAttributes)
		fmt.Fprintf(&b, "Index: %d, Tag: %s %s\n", i, el.TagName, attrs)
	}
	if len(lastResults) > 0 {
		last := lastResults[len(lastResults)-1]
		if last.Success {
			fmt.Fprintf(&b, "Last action succeeded.\n")
		} else {
			fmt.Fprintf(&b, "Last action failed: %s\n", last.Error)
		}
	}
	fmt.Fprintf(&b, "Step %d of %d.\n", step.StepNumber+1, step.MaxSteps)

	parts := []MessagePart{{Kind: "text", Text: b.String()}}
	if useVision && summary.Screenshot != "" {
		parts = append(parts, MessagePart{Kind: "image", ImageURL: "data:image/png;base64," + summary.Screenshot})
	}
	m.append(ChatMessage{Role: "user", Parts: parts})
}

// RemoveLastStateMessage undoes the most recent AddStateMessage call, even
// when later turns (a plan, a directive) have landed after it. The system
// message at index 0 is never touched.
func (m *MessageManager) RemoveLastStateMessage() {
	for i := len(m.state.Messages) - 1; i >= 1; i-- {
		msg := m.state.Messages[i]
		if msg.Role != "user" || len(msg.Parts) == 0 || !strings.HasPrefix(msg.Parts[0].Text, "Task: ") {
			continue
		}
		m.state.CurrentTokens -= m.estimate(msg)
		m.state.Messages = append(m.state.Messages[:i], m.state.Messages[i+1:]...)
		return
	}
}

// SetAvailableActions records the catalog listing that raw-mode state turns
// embed, since raw models never receive tool schemas out of band.
func (m *MessageManager) SetAvailableActions(listing string) { m.availableActions = listing }

// AddModelOutput appends a turn containing the serialized action list.
func (m *MessageManager) AddModelOutput(output *AgentOutput) {
	var b strings.Builder
	fmt.Fprintf(&b, "next_goal: %s\n", output.Brain.NextGoal)
	for _, a := range output.Action {
		fmt.Fprintf(&b, "action: %s %v\n", a.Name, a.Params)
	}
	m.append(ChatMessage{Role: "assistant", Parts: []MessagePart{{Kind: "text", Text: b.String()}}})
}

// AddPlan inserts a plan turn. position == -1 appends at the end.
func (m *MessageManager) AddPlan(plan string, position int) {
	msg := ChatMessage{Role: "assistant", Parts: []MessagePart{{Kind: "text", Text: "Plan: " + plan}}}
	if position < 0 || position >= len(m.state.Messages) {
		m.append(msg)
		return
	}
	m.state.Messages = append(m.state.Messages[:position], append([]ChatMessage{msg}, m.state.Messages[position:]...)...)
	m.state.CurrentTokens += m.estimate(msg)
}

// AddNewTask updates the task and appends a notice turn.
func (m *MessageManager) AddNewTask(text string) {
	m.task = text
	m.append(ChatMessage{Role: "user", Parts: []MessagePart{{Kind: "text", Text: "New task: " + text}}})
}

// AddSensitiveData authorizes credential injection only for URLs whose
// domain matches an allowed pattern. The injected format is a dedicated
// "credentials" system turn listing key=value pairs, rebuilt each step and
// never persisted into saved history (callers should
// RemoveLastCredentialsMessage before saving).
func (m *MessageManager) AddSensitiveData(currentURL string) {
	if len(m.settings.SensitiveData) == 0 {
		return
	}
	var lines []string
	for _, entry := range m.settings.SensitiveData {
		if !domainMatches(entry.DomainPattern, currentURL) {
			continue
		}
		for k, v := range entry.Values {
			lines = append(lines, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(lines) == 0 {
		return
	}
	m.append(ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text", Text: credentialsPrefix + "\n" + strings.Join(lines, "\n")}}})
}

// credentialsPrefix marks the injected credentials turn so it can be found
// and removed again on the next step.
const credentialsPrefix = "credentials:"

func isCredentialsTurn(msg ChatMessage) bool {
	if msg.Role != "system" || len(msg.Parts) == 0 {
		return false
	}
	return strings.HasPrefix(msg.Parts[0].Text, credentialsPrefix)
}

// RemoveLastCredentialsMessage removes the most recent AddSensitiveData
// turn, wherever later turns have landed after it, keeping injected
// credentials out of persisted history and out of subsequent prompts. The
// system message at index 0 is never touched.
func (m *MessageManager) RemoveLastCredentialsMessage() {
	for i := len(m.state.Messages) - 1; i >= 1; i-- {
		msg := m.state.Messages[i]
		if !isCredentialsTurn(msg) {
			continue
		}
		m.state.CurrentTokens -= m.estimate(msg)
		m.state.Messages = append(m.state.Messages[:i], m.state.Messages[i+1:]...)
		return
	}
}

func domainMatches(pattern, rawURL string) bool {
	host := strings.ToLower(rawURL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	pattern = strings.ToLower(pattern)
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:]
		return strings.HasSuffix(host, suffix) || host == pattern[2:]
	}
	return host == pattern
}

// GetMessages returns the full conversation list.
func (m *MessageManager) GetMessages() []ChatMessage { return m.state.Messages }

// State exposes the manager's persisted state (P2's token-accounting
// invariant is checked against this).
func (m *MessageManager) State() MessageManagerState { return m.state }

// CutMessages evicts oldest non-system messages until the running token
// estimate is at most MaxInputTokens. The system message (index 0) is never
// evicted. Prefers the attached CompactionProvider when available, falling
// back to manual eviction.
func (m *MessageManager) CutMessages() {
	if m.state.CurrentTokens <= m.settings.MaxInputTokens {
		return
	}
	if m.compactor != nil {
		if m.tryCompact() {
			return
		}
	}
	for m.state.CurrentTokens > m.settings.MaxInputTokens && len(m.state.Messages) > 1 {
		victim := m.state.Messages[1]
		m.state.CurrentTokens -= m.estimate(victim)
		m.state.Messages = append(m.state.Messages[:1], m.state.Messages[2:]...)
	}
	if m.state.CurrentTokens < 0 {
		m.state.CurrentTokens = 0
	}
}

// tryCompact asks the attached provider to fold everything after the system
// message into its server-held compaction state, then replaces those turns
// with a single marker referencing it.
func (m *MessageManager) tryCompact() bool {
	if m.compactor == nil || len(m.state.Messages) <= 2 {
		return false
	}
	item, err := m.compactor.Compact(context.Background(), toLLMMessages(m.state.Messages[1:]), m.model, m.lastCompaction)
	if err != nil || item == nil {
		return false
	}
	m.lastCompaction = item
	marker := ChatMessage{Role: "system", Parts: []MessagePart{{Kind: "text",
		Text: "Earlier turns were compacted server-side (compaction id " + item.ID + ")."}}}
	m.state.Messages = append(m.state.Messages[:1:1], marker)
	m.state.CurrentTokens = m.estimate(m.state.Messages[0]) + m.estimate(marker)
	return true
}

// ReduceMaxInputTokens lowers the ceiling by delta, used by
// _handle_step_error when a "max token limit reached" provider error is
// observed.
func (m *MessageManager) ReduceMaxInputTokens(delta int) {
	m.settings.MaxInputTokens -= delta
	if m.settings.MaxInputTokens < 0 {
		m.settings.MaxInputTokens = 0
	}
}
