// Package providers selects and constructs the configured llm.Provider
// backend.
package providers

import (
	"fmt"
	"net/http"

	"browseragent/internal/config"
	"browseragent/internal/llm"
	"browseragent/internal/llm/anthropic"
	"browseragent/internal/llm/google"
	openaillm "browseragent/internal/llm/openai"
)

// Build constructs an llm.Provider from configuration:
//   - openai: the OpenAI client
//   - local: the OpenAI client pointed at an OpenAI-compatible endpoint
//   - anthropic: the Messages API client
//   - google: the Gemini client
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.LLMClient.Provider {
	case "", "openai", "local":
		return openaillm.New(cfg.LLMClient.OpenAI, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.LLMClient.Anthropic, httpClient), nil
	case "google":
		return google.New(cfg.LLMClient.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMClient.Provider)
	}
}

// BuildTokenizer returns the provider-matched token estimator, or nil when
// the caller should fall back to llm.EstimateTokens.
func BuildTokenizer(cfg config.Config) llm.Tokenizer {
	switch cfg.LLMClient.Provider {
	case "", "openai", "local":
		return openaillm.EstTokenizer{}
	case "anthropic":
		return anthropic.EstTokenizer{}
	default:
		return nil
	}
}

// Model returns the configured model name for the active provider.
func Model(cfg config.Config) string {
	switch cfg.LLMClient.Provider {
	case "anthropic":
		return cfg.LLMClient.Anthropic.Model
	case "google":
		return cfg.LLMClient.Google.Model
	default:
		return cfg.LLMClient.OpenAI.Model
	}
}
