package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/llm"
)

func TestAdaptSchemas(t *testing.T) {
	out := AdaptSchemas([]llm.ToolSchema{{
		Name:        "goto",
		Description: "Navigate to a URL.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"url": map[string]any{"type": "string"}},
			"required":   []string{"url"},
		},
	}})
	require.Len(t, out, 1)
	fn := out[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "goto", fn.Function.Name)
	assert.Equal(t, "Navigate to a URL.", fn.Function.Description.Value)
}

func TestAdaptMessagesRolesAndPadding(t *testing.T) {
	msgs := []llm.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: ""},
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{
			{Name: "click", Args: json.RawMessage(`{"selector":"#a"}`), ID: "c1"},
		}},
		{Role: "tool", Content: "", ToolID: "c1"},
	}
	out := AdaptMessages(msgs)
	require.Len(t, out, 4)

	assert.NotNil(t, out[0].OfSystem)
	require.NotNil(t, out[1].OfUser)

	asst := out[2].OfAssistant
	require.NotNil(t, asst)
	require.Len(t, asst.ToolCalls, 1)
	fn := asst.ToolCalls[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "c1", fn.ID)
	assert.Equal(t, "click", fn.Function.Name)

	tool := out[3].OfTool
	require.NotNil(t, tool)
	assert.Contains(t, tool.Content.OfString.Value, "empty tool response")
}

func TestIsEmptyArgs(t *testing.T) {
	assert.True(t, isEmptyArgs(""))
	assert.True(t, isEmptyArgs(" {} "))
	assert.True(t, isEmptyArgs("null"))
	assert.False(t, isEmptyArgs(`{"a":1}`))
}

func TestEstTokenizerCounts(t *testing.T) {
	tok := EstTokenizer{}
	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Greater(t, tok.CountTokens("hello world"), 1)
	assert.Greater(t, tok.CountTokens("fn(a, b) -> c;"), tok.CountTokens("plain words here"))
}
