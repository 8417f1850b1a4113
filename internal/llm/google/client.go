// Package google adapts the Gemini API (google.golang.org/genai) to
// llm.Provider.
package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"browseragent/internal/config"
	"browseragent/internal/llm"
	"browseragent/internal/observability"
)

// Client drives the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// New builds a client from configuration.
func New(cfg config.GoogleConfig, httpClient *http.Client) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}

	httpOpts := genai.HTTPOptions{}
	if cfg.Timeout > 0 {
		t := time.Duration(cfg.Timeout) * time.Second
		httpOpts.Timeout = &t
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Chat implements llm.Provider.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = c.model
	}

	ctx, span := llm.StartRequestSpan(ctx, "Google Chat", effectiveModel, len(tools), len(msgs))
	defer span.End()
	llm.LogRedactedPrompt(ctx, msgs)
	log := observability.LoggerWithTrace(ctx)

	system, contents, err := toContents(msgs)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, err
	}
	toolDecls, toolCfg, err := adaptTools(tools)
	if err != nil {
		span.RecordError(err)
		return llm.Message{}, err
	}

	cfg := &genai.GenerateContentConfig{Tools: toolDecls, ToolConfig: toolCfg}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, effectiveModel, contents, cfg)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("google_chat_error")
		span.RecordError(err)
		return llm.Message{}, err
	}
	log.Debug().Str("model", effectiveModel).Dur("duration", dur).Msg("google_chat_ok")

	return messageFromResponse(resp)
}

// toContents splits the portable history into a system-instruction string
// plus Gemini contents. Tool results become function-response parts on user
// turns; assistant tool calls become function-call parts on model turns.
func toContents(msgs []llm.Message) (string, []*genai.Content, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "user":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case "assistant":
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if len(tc.Args) > 0 {
					_ = json.Unmarshal(tc.Args, &args)
				}
				p := genai.NewPartFromFunctionCall(tc.Name, args)
				if sig, err := base64.StdEncoding.DecodeString(tc.ThoughtSignature); err == nil && len(sig) > 0 {
					p.ThoughtSignature = sig
				}
				parts = append(parts, p)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case "tool":
			var respMap map[string]any
			if err := json.Unmarshal([]byte(m.Content), &respMap); err != nil {
				respMap = map[string]any{"output": m.Content}
			}
			part := genai.NewPartFromFunctionResponse(m.ToolID, respMap)
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			return "", nil, fmt.Errorf("google provider: unsupported role %q", m.Role)
		}
	}
	return strings.Join(system, "\n\n"), contents, nil
}

func adaptTools(schemas []llm.ToolSchema) ([]*genai.Tool, *genai.ToolConfig, error) {
	if len(schemas) == 0 {
		return nil, nil, nil
	}
	fd := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		if strings.TrimSpace(s.Name) == "" {
			return nil, nil, fmt.Errorf("google provider: tool name required")
		}
		fd = append(fd, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	// AUTO lets the model choose between calling a function and answering
	// with text; ANY forces calls and can loop the model on one tool.
	cfg := &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
	}
	return []*genai.Tool{{FunctionDeclarations: fd}}, cfg, nil
}

func messageFromResponse(resp *genai.GenerateContentResponse) (llm.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Message{Role: "assistant"}, nil
	}
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety:
		return llm.Message{}, fmt.Errorf("google provider: response blocked by safety filter")
	case genai.FinishReasonMalformedFunctionCall:
		return llm.Message{}, fmt.Errorf("google provider: malformed function call")
	}

	var sb strings.Builder
	var calls []llm.ToolCall
	callIdx := 0
	for _, part := range cand.Content.Parts {
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			callIdx++
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			calls = append(calls, llm.ToolCall{
				Name:             part.FunctionCall.Name,
				Args:             args,
				ID:               fmt.Sprintf("call-%d", callIdx),
				ThoughtSignature: base64.StdEncoding.EncodeToString(part.ThoughtSignature),
			})
		}
	}
	return llm.Message{Role: "assistant", Content: sb.String(), ToolCalls: calls}, nil
}

var _ llm.Provider = (*Client)(nil)
