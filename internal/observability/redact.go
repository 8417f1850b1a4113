package observability

import (
	"encoding/json"
	"strings"
)

// sensitiveKeyFragments flags credential-shaped keys wherever they appear in
// a payload, including the agent's own sensitive-data injection keys and
// browser session material (cookies).
var sensitiveKeyFragments = []string{
	"api_key", "apikey", "x-api-key", "authorization", "auth",
	"token", "password", "secret", "bearer", "credential", "cookie",
}

// RedactJSON scrubs secret-shaped values from a JSON payload before it is
// logged. Non-JSON input is returned unchanged.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return b
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(low, frag) {
			return true
		}
	}
	return false
}
