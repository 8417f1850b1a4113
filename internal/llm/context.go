package llm

import (
	"os"
	"strconv"
	"strings"
)

// ContextSize returns an approximate context window (in tokens) for the given
// model name. The bool reports whether the value came from a known mapping or
// an explicit override (true) versus the conservative fallback (false).
//
// Values are approximate on purpose: they size the message manager's token
// budget, nothing else.
func ContextSize(model string) (tokens int, known bool) {
	if model == "" {
		return 0, false
	}
	if v, ok := lookupContextOverride(model); ok && v > 0 {
		return v, true
	}
	if size, ok := knownContextWindows[model]; ok {
		return size, true
	}
	for prefix, size := range knownContextWindows {
		if hasModelPrefix(model, prefix) {
			return size, true
		}
	}
	if v, ok := lookupContextOverride("*"); ok && v > 0 {
		return v, true
	}
	return 32_000, false
}

// knownContextWindows maps model-name prefixes to approximate window sizes.
var knownContextWindows = map[string]int{
	"gpt-5":   400_000,
	"gpt-4.1": 1_000_000,
	"gpt-4o":  128_000,
	"o3":      200_000,
	"o1":      200_000,

	"claude": 200_000,

	"gemini": 1_000_000,

	"llama":    128_000,
	"mistral":  32_000,
	"deepseek": 64_000,
}

func hasModelPrefix(model, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(model), strings.ToLower(prefix))
}

// lookupContextOverride consults LLM_CONTEXT_<MODEL> (dots, dashes, colons and
// slashes mapped to underscores, upper-cased) or LLM_CONTEXT_DEFAULT for "*",
// letting self-hosted deployments declare windows for models the table cannot
// know.
func lookupContextOverride(model string) (int, bool) {
	var key string
	if model == "*" {
		key = "LLM_CONTEXT_DEFAULT"
	} else {
		mapped := strings.NewReplacer(".", "_", "-", "_", ":", "_", "/", "_").Replace(model)
		key = "LLM_CONTEXT_" + strings.ToUpper(mapped)
	}
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
