package config

import (
	"os"
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	if v := firstNonEmpty("", "foo", "bar"); v != "foo" {
		t.Fatalf("expected 'foo', got %q", v)
	}
	if v := firstNonEmpty(); v != "" {
		t.Fatalf("expected empty, got %q", v)
	}
}

func TestParseInt(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		n, err := parseInt("42")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 42 {
			t.Fatalf("expected 42, got %d", n)
		}
	})
	t.Run("invalid", func(t *testing.T) {
		if _, err := parseInt("notanint"); err == nil {
			t.Fatalf("expected error for invalid int")
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "OPENAI_API_KEY", "MAX_STEPS", "AGENT_CONFIG_FILE"} {
		old, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		defer func(k, old string, had bool) {
			if had {
				_ = os.Setenv(k, old)
			}
		}(k, old, had)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxSteps != 100 {
		t.Fatalf("expected default MaxSteps 100, got %d", cfg.MaxSteps)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default LogLevel info, got %q", cfg.LogLevel)
	}
	if !cfg.Browser.Headless {
		t.Fatalf("expected headless default true")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MAX_STEPS", "5")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMClient.Provider != "anthropic" {
		t.Fatalf("expected provider anthropic, got %q", cfg.LLMClient.Provider)
	}
	if cfg.LLMClient.Anthropic.APIKey != "sk-test" {
		t.Fatalf("expected anthropic api key set, got %q", cfg.LLMClient.Anthropic.APIKey)
	}
	if cfg.MaxSteps != 5 {
		t.Fatalf("expected MaxSteps 5, got %d", cfg.MaxSteps)
	}
	if cfg.Browser.Headless {
		t.Fatalf("expected headless false from env override")
	}
}

func TestLoad_YAMLOverlayFillsUnsetFields(t *testing.T) {
	yamlBody := `llm_client:
  provider: google
  google:
    api_key: yaml-key
    model: gemini-1.5-pro
max_steps: 42
`
	path := "testdata_overlay.yaml"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write overlay file: %v", err)
	}
	defer os.Remove(path)

	for _, k := range []string{"LLM_PROVIDER", "GOOGLE_LLM_API_KEY", "MAX_STEPS"} {
		old, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		defer func(k, old string, had bool) {
			if had {
				_ = os.Setenv(k, old)
			}
		}(k, old, had)
	}
	t.Setenv("AGENT_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLMClient.Provider != "google" {
		t.Fatalf("expected provider google from yaml overlay, got %q", cfg.LLMClient.Provider)
	}
	if cfg.LLMClient.Google.APIKey != "yaml-key" {
		t.Fatalf("expected yaml-key, got %q", cfg.LLMClient.Google.APIKey)
	}
	if cfg.MaxSteps != 42 {
		t.Fatalf("expected MaxSteps 42 from yaml, got %d", cfg.MaxSteps)
	}
}
