package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/config"
	"browseragent/internal/llm"
)

func TestAdaptToolsLiftsPropertiesAndRequired(t *testing.T) {
	out, err := adaptTools([]llm.ToolSchema{{
		Name:        "type",
		Description: "Fill an input.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"selector": map[string]any{"type": "string"},
				"text":     map[string]any{"type": "string"},
			},
			"required": []string{"selector", "text"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	tool := out[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "type", tool.Name)
	assert.Equal(t, []string{"selector", "text"}, tool.InputSchema.Required)
	assert.NotNil(t, tool.InputSchema.Properties)
}

func TestAdaptToolsRejectsUnnamed(t *testing.T) {
	_, err := adaptTools([]llm.ToolSchema{{Name: "  "}})
	assert.Error(t, err)
}

func TestAdaptMessagesSplitsSystemAndConversation(t *testing.T) {
	c := New(config.AnthropicConfig{Model: "claude-3-7-sonnet-latest"}, nil)
	system, conv, err := c.adaptMessages([]llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "calling a tool", ToolCalls: []llm.ToolCall{
			{Name: "click", Args: json.RawMessage(`{"selector":"#a"}`), ID: "t1"},
		}},
		{Role: "tool", Content: "done", ToolID: "t1"},
	})
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)
	assert.Len(t, conv, 3)
}

func TestAdaptMessagesRejectsUnknownRole(t *testing.T) {
	c := New(config.AnthropicConfig{}, nil)
	_, _, err := c.adaptMessages([]llm.Message{{Role: "weird", Content: "x"}})
	assert.Error(t, err)
}

func TestDecodeArgs(t *testing.T) {
	assert.Equal(t, map[string]any{}, decodeArgs(nil))
	assert.Equal(t, map[string]any{}, decodeArgs(json.RawMessage(`"not an object"`)))
	assert.Equal(t, map[string]any{"a": float64(1)}, decodeArgs(json.RawMessage(`{"a":1}`)))
}

func TestEstTokenizer(t *testing.T) {
	tok := EstTokenizer{}
	assert.Equal(t, 0, tok.CountTokens(""))
	// Denser than the generic chars/4 heuristic.
	text := "some ordinary english sentence for counting"
	assert.GreaterOrEqual(t, tok.CountTokens(text), llm.EstimateTokens(text))
}
