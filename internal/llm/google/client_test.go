package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"browseragent/internal/llm"
)

func TestToContentsSplitsSystemInstruction(t *testing.T) {
	system, contents, err := toContents([]llm.Message{
		{Role: "system", Content: "you are a browser agent"},
		{Role: "user", Content: "open example.com"},
		{Role: "assistant", Content: "navigating"},
	})
	require.NoError(t, err)
	assert.Equal(t, "you are a browser agent", system)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
}

func TestToContentsToolResultBecomesFunctionResponse(t *testing.T) {
	_, contents, err := toContents([]llm.Message{
		{Role: "tool", Content: `{"title":"Example"}`, ToolID: "get_title"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	fr := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "get_title", fr.Name)
	assert.Equal(t, "Example", fr.Response["title"])
}

func TestToContentsWrapsNonJSONToolOutput(t *testing.T) {
	_, contents, err := toContents([]llm.Message{
		{Role: "tool", Content: "plain text output", ToolID: "extract"},
	})
	require.NoError(t, err)
	fr := contents[0].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "plain text output", fr.Response["output"])
}

func TestToContentsRejectsUnknownRole(t *testing.T) {
	_, _, err := toContents([]llm.Message{{Role: "mystery", Content: "x"}})
	assert.Error(t, err)
}

func TestAdaptTools(t *testing.T) {
	tools, cfg, err := adaptTools([]llm.ToolSchema{{
		Name:        "goto",
		Description: "Navigate.",
		Parameters:  map[string]any{"type": "object"},
	}})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "goto", tools[0].FunctionDeclarations[0].Name)
	assert.Equal(t, genai.FunctionCallingConfigModeAuto, cfg.FunctionCallingConfig.Mode)

	tools, cfg, err = adaptTools(nil)
	require.NoError(t, err)
	assert.Nil(t, tools)
	assert.Nil(t, cfg)

	_, _, err = adaptTools([]llm.ToolSchema{{Name: " "}})
	assert.Error(t, err)
}
