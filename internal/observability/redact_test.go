package observability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSONScrubsSecretKeys(t *testing.T) {
	in := json.RawMessage(`{
		"api_key": "sk-123",
		"Authorization": "Bearer abc",
		"cookie": "session=deadbeef",
		"nested": {"password": "hunter2", "url": "https://example.com"},
		"list": [{"access_token": "tok"}]
	}`)
	out := RedactJSON(in)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, "[REDACTED]", got["Authorization"])
	assert.Equal(t, "[REDACTED]", got["cookie"])
	nested := got["nested"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["password"])
	assert.Equal(t, "https://example.com", nested["url"])
	item := got["list"].([]any)[0].(map[string]any)
	assert.Equal(t, "[REDACTED]", item["access_token"])
}

func TestRedactJSONPassesThroughNonJSON(t *testing.T) {
	in := json.RawMessage(`not json at all`)
	assert.Equal(t, in, RedactJSON(in))
	assert.Empty(t, RedactJSON(nil))
}
