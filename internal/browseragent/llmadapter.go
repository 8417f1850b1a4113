package browseragent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"browseragent/internal/llm"
)

// ToolCallingMethod is one of the four protocols the adapter may use to get
// structured output from a model.
type ToolCallingMethod string

const (
	MethodAuto            ToolCallingMethod = "auto"
	MethodFunctionCalling ToolCallingMethod = "function_calling"
	MethodTools           ToolCallingMethod = "tools"
	MethodJSONMode        ToolCallingMethod = "json_mode"
	MethodRaw             ToolCallingMethod = "raw"
)

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
var strayThinkCloseRe = regexp.MustCompile(`(?s)^.*?</think>`)
var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// LLMAdapter owns one chat model handle and negotiates a tool-calling
// method, wrapping an llm.Provider rather than reimplementing per-provider
// wire formats.
type LLMAdapter struct {
	provider llm.Provider
	model    string

	verifiedMethod   *ToolCallingMethod
	skipVerification bool
}

// NewLLMAdapter constructs an adapter over a concrete llm.Provider (OpenAI,
// Anthropic, or Google backend per internal/llm/providers.Build).
func NewLLMAdapter(provider llm.Provider, model string, skipVerification bool) *LLMAdapter {
	return &LLMAdapter{provider: provider, model: model, skipVerification: skipVerification}
}

// SetToolCallingMethod resolves preferred into one of the four concrete
// methods, probing the model when necessary.
func (a *LLMAdapter) SetToolCallingMethod(ctx context.Context, preferred ToolCallingMethod) (ToolCallingMethod, error) {
	if preferred != MethodAuto {
		if a.skipVerification || a.verifiedMethod != nil {
			a.verifiedMethod = &preferred
			return preferred, nil
		}
		if err := a.probe(ctx, preferred); err != nil {
			if preferred == MethodRaw {
				return "", fmt.Errorf("connectivity/credentials error verifying raw method: %w", err)
			}
			return "", fmt.Errorf("model does not support tool-calling method %q: %w", preferred, err)
		}
		a.verifiedMethod = &preferred
		return preferred, nil
	}

	if a.verifiedMethod != nil {
		return *a.verifiedMethod, nil
	}

	if candidate, ok := knownMethodHeuristic(a.model); ok {
		if a.skipVerification {
			a.verifiedMethod = &candidate
			return candidate, nil
		}
		if err := a.probe(ctx, candidate); err == nil {
			a.verifiedMethod = &candidate
			return candidate, nil
		}
	}

	for _, m := range []ToolCallingMethod{MethodFunctionCalling, MethodTools, MethodJSONMode, MethodRaw} {
		if a.skipVerification {
			a.verifiedMethod = &m
			return m, nil
		}
		if err := a.probe(ctx, m); err == nil {
			a.verifiedMethod = &m
			return m, nil
		}
	}
	return "", fmt.Errorf("no supported tool-calling method found for model %q", a.model)
}

// knownMethodHeuristic keys a default method by model-name substring,
// grounded on internal/llm/context.go's model-family knowledge table.
func knownMethodHeuristic(model string) (ToolCallingMethod, bool) {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "o1"), strings.Contains(lower, "o3"):
		return MethodFunctionCalling, true
	case strings.Contains(lower, "claude"):
		return MethodTools, true
	case strings.Contains(lower, "deepseek"), strings.Contains(lower, "mistral"), strings.Contains(lower, "llama"):
		return MethodRaw, true
	case strings.Contains(lower, "gemini"):
		return "", false
	default:
		return "", false
	}
}

// probe asks the model a trivial question with a known single-word answer
// using the proposed method.
func (a *LLMAdapter) probe(ctx context.Context, method ToolCallingMethod) error {
	var msgs []llm.Message
	var tools []llm.ToolSchema
	switch method {
	case MethodRaw, MethodJSONMode:
		msgs = []llm.Message{{Role: "user", Content: `Reply with exactly {"answer": "ping"} and nothing else.`}}
	default:
		msgs = []llm.Message{{Role: "user", Content: "Call the probe tool with answer=ping."}}
		tools = []llm.ToolSchema{{
			Name:        "probe",
			Description: "Answer the probe.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"answer": map[string]any{"type": "string"}},
				"required":   []string{"answer"},
			},
		}}
	}
	msg, err := a.provider.Chat(ctx, msgs, tools, a.model)
	if err != nil {
		return err
	}
	switch method {
	case MethodRaw, MethodJSONMode:
		if !strings.Contains(msg.Content, "ping") {
			return fmt.Errorf("probe did not contain expected token")
		}
	default:
		found := false
		for _, tc := range msg.ToolCalls {
			if strings.Contains(string(tc.Args), "ping") {
				found = true
			}
		}
		if !found && !strings.Contains(msg.Content, "ping") {
			return fmt.Errorf("probe did not return expected tool call")
		}
	}
	return nil
}

// ConvertInputMessages rewrites tool-role messages as ordinary user messages
// when the model is known to lack native tool-call-result handling.
func (a *LLMAdapter) ConvertInputMessages(msgs []ChatMessage, method ToolCallingMethod) []ChatMessage {
	if method != MethodRaw {
		return msgs
	}
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "tool" {
			var text strings.Builder
			for _, p := range m.Parts {
				text.WriteString(p.Text)
			}
			out = append(out, ChatMessage{Role: "user", Parts: []MessagePart{{Kind: "text", Text: "Tool output: " + text.String()}}})
			continue
		}
		out = append(out, m)
	}
	return out
}

func toLLMMessages(msgs []ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		var content strings.Builder
		for _, p := range m.Parts {
			if p.Kind == "text" {
				if content.Len() > 0 {
					content.WriteString("\n")
				}
				content.WriteString(p.Text)
			}
		}
		out = append(out, llm.Message{Role: m.Role, Content: content.String()})
	}
	return out
}

// GetNextAction invokes the model and produces a validated AgentOutput,
// truncating the action list to maxActions if the model over-produces.
func (a *LLMAdapter) GetNextAction(ctx context.Context, msgs []ChatMessage, method ToolCallingMethod, maxActions int, registry *ActionRegistry) (*AgentOutput, error) {
	converted := a.ConvertInputMessages(msgs, method)
	llmMsgs := toLLMMessages(converted)

	var result *AgentOutput
	var err error
	switch method {
	case MethodRaw, MethodJSONMode:
		result, err = a.getNextActionRaw(ctx, llmMsgs)
	default:
		result, err = a.getNextActionStructured(ctx, llmMsgs, method, registry)
	}
	if err != nil {
		return nil, fmt.Errorf("get_next_action via %q: %w", method, err)
	}
	if len(result.Action) > maxActions {
		result.Action = result.Action[:maxActions]
	}
	return result, nil
}

func (a *LLMAdapter) getNextActionRaw(ctx context.Context, msgs []llm.Message) (*AgentOutput, error) {
	msg, err := a.provider.Chat(ctx, msgs, nil, a.model)
	if err != nil {
		return nil, err
	}
	content := stripThink(msg.Content)
	out, parseErr := parseAgentOutput(content)
	if parseErr != nil {
		return nil, parseErr
	}
	return out, nil
}

func (a *LLMAdapter) getNextActionStructured(ctx context.Context, msgs []llm.Message, method ToolCallingMethod, registry *ActionRegistry) (*AgentOutput, error) {
	var tools []llm.ToolSchema
	if registry != nil {
		for _, def := range registry.GetAll() {
			tools = append(tools, llm.ToolSchema{Name: def.Name, Description: def.Description, Parameters: def.JSONSchema()})
		}
	}
	msg, err := a.provider.Chat(ctx, msgs, tools, a.model)
	if err != nil {
		return nil, err
	}
	if len(msg.ToolCalls) > 0 {
		out := &AgentOutput{Brain: AgentBrain{NextGoal: msg.Content}}
		for _, tc := range msg.ToolCalls {
			var params map[string]any
			_ = json.Unmarshal(tc.Args, &params)
			out.Action = append(out.Action, ActionModel{Name: tc.Name, Params: params})
		}
		return out, nil
	}
	content := stripThink(msg.Content)
	out, err := parseAgentOutput(content)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stripThink(s string) string {
	s = thinkTagRe.ReplaceAllString(s, "")
	s = strayThinkCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// parseAgentOutput parses a JSON object from content, preferring a fenced
// ```json block when present, else the whole string. As a last resort it
// extracts the outermost {...} span, salvaging replies that wrap their JSON
// in prose.
func parseAgentOutput(content string) (*AgentOutput, error) {
	candidate := content
	if m := fencedJSONRe.FindStringSubmatch(content); len(m) == 2 {
		candidate = m[1]
	}
	var out AgentOutput
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start >= 0 && end > start {
			var fallback AgentOutput
			if ferr := json.Unmarshal([]byte(content[start:end+1]), &fallback); ferr == nil {
				return &fallback, nil
			}
		}
		return nil, fmt.Errorf("parse agent output: %w", err)
	}
	return &out, nil
}

// ValidationOutput is the two-field structured schema used by output
// validation (§4.7.4).
type ValidationOutput struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// ValidateOutput runs a second LLM call asking whether the task outcome is
// actually satisfied.
func (a *LLMAdapter) ValidateOutput(ctx context.Context, msgs []ChatMessage, task string) (*ValidationOutput, error) {
	llmMsgs := toLLMMessages(msgs)
	llmMsgs = append(llmMsgs, llm.Message{Role: "user", Content: fmt.Sprintf(
		`Did the agent actually accomplish this task: %q? Reply with exactly {"is_valid": true|false, "reason": "..."}.`, task)})
	msg, err := a.provider.Chat(ctx, llmMsgs, nil, a.model)
	if err != nil {
		return &ValidationOutput{IsValid: false, Reason: "validator call failed: " + err.Error()}, nil
	}
	var v ValidationOutput
	content := stripThink(msg.Content)
	candidate := content
	if m := fencedJSONRe.FindStringSubmatch(content); len(m) == 2 {
		candidate = m[1]
	}
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return &ValidationOutput{IsValid: false, Reason: "validator returned unparseable output"}, nil
	}
	return &v, nil
}
