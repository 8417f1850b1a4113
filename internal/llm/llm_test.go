package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 26, EstimateTokens(string(make([]byte, 100))))
}

func TestEstimateTokensForMessages(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "12345678"},
		{Role: "user", Content: "1234"},
	}
	assert.Equal(t, EstimateTokens("12345678")+EstimateTokens("1234"), EstimateTokensForMessages(msgs))
}

func TestContextSizeKnownFamilies(t *testing.T) {
	n, known := ContextSize("gpt-4o-2024-08-06")
	assert.True(t, known)
	assert.Equal(t, 128_000, n)

	n, known = ContextSize("claude-3-7-sonnet-latest")
	assert.True(t, known)
	assert.Equal(t, 200_000, n)

	n, known = ContextSize("totally-unknown")
	assert.False(t, known)
	assert.Equal(t, 32_000, n)

	_, known = ContextSize("")
	assert.False(t, known)
}

func TestContextSizeEnvOverride(t *testing.T) {
	t.Setenv("LLM_CONTEXT_MY_LOCAL_MODEL", "65536")
	n, known := ContextSize("my-local-model")
	assert.True(t, known)
	assert.Equal(t, 65536, n)

	t.Setenv("LLM_CONTEXT_DEFAULT", "9000")
	n, known = ContextSize("another-unknown")
	assert.True(t, known)
	assert.Equal(t, 9000, n)
}

func TestElideDataURLs(t *testing.T) {
	in := `before data:image/png;base64,AAAA1234 after`
	assert.Equal(t, "before [image elided] after", elideDataURLs(in))
	assert.Equal(t, "no images", elideDataURLs("no images"))
}
