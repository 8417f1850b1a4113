// Package openai adapts the OpenAI chat-completions API (and any
// OpenAI-compatible endpoint, including local backends) to llm.Provider.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"browseragent/internal/config"
	"browseragent/internal/llm"
	"browseragent/internal/observability"
)

// Client drives one OpenAI-compatible endpoint.
type Client struct {
	sdk   sdk.Client
	model string
	extra map[string]any
}

// New builds a client from configuration. httpClient should come from
// observability.NewHTTPClient so provider calls carry trace propagation.
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Client{
		sdk:   sdk.NewClient(opts...),
		model: strings.TrimSpace(cfg.Model),
		extra: cfg.ExtraParams,
	}
}

// Chat implements llm.Provider.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = c.model
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(effectiveModel),
		Messages: AdaptMessages(msgs),
	}
	// Only attach tools when present; an empty array trips some
	// OpenAI-compatible servers.
	if len(tools) > 0 {
		params.Tools = AdaptSchemas(tools)
	}
	if len(c.extra) > 0 {
		params.SetExtraFields(c.extra)
	}

	ctx, span := llm.StartRequestSpan(ctx, "OpenAI Chat", effectiveModel, len(tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)
	log := observability.LoggerWithTrace(ctx)

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("chat_completion_error")
		span.RecordError(err)
		return llm.Message{}, err
	}
	log.Debug().
		Str("model", effectiveModel).
		Dur("duration", dur).
		Int("prompt_tokens", int(comp.Usage.PromptTokens)).
		Int("completion_tokens", int(comp.Usage.CompletionTokens)).
		Msg("chat_completion_ok")

	if len(comp.Choices) == 0 {
		return llm.Message{Role: "assistant"}, nil
	}
	msg := comp.Choices[0].Message
	out := llm.Message{Role: "assistant", Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		fn, ok := tc.AsAny().(sdk.ChatCompletionMessageFunctionToolCall)
		if !ok {
			continue
		}
		if isEmptyArgs(fn.Function.Arguments) {
			log.Warn().Str("tool", fn.Function.Name).Str("id", fn.ID).Msg("skipping tool call with empty arguments")
			continue
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			Name: fn.Function.Name,
			Args: json.RawMessage(fn.Function.Arguments),
			ID:   fn.ID,
		})
	}
	return out, nil
}

func isEmptyArgs(args string) bool {
	trimmed := strings.TrimSpace(args)
	return trimmed == "" || trimmed == "{}" || trimmed == "null"
}

var _ llm.Provider = (*Client)(nil)
