// Package config loads runtime configuration for the browser agent: which
// LLM backend to drive the agent with, how the embedded browser should be
// launched, and where logs/telemetry/history should go.
package config

// OpenAIConfig configures the OpenAI (or OpenAI-compatible) chat backend.
type OpenAIConfig struct {
	APIKey      string         `yaml:"api_key"`
	BaseURL     string         `yaml:"base_url,omitempty"`
	Model       string         `yaml:"model"`
	LogPayloads bool           `yaml:"log_payloads,omitempty"`
	ExtraParams map[string]any `yaml:"extra_params,omitempty"`
}

// AnthropicPromptCacheConfig controls Anthropic prompt-caching scope.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled,omitempty"`
	CacheSystem   bool `yaml:"cache_system,omitempty"`
	CacheTools    bool `yaml:"cache_tools,omitempty"`
	CacheMessages bool `yaml:"cache_messages,omitempty"`
}

// AnthropicConfig configures the Anthropic Messages API backend.
type AnthropicConfig struct {
	APIKey      string                     `yaml:"api_key"`
	BaseURL     string                     `yaml:"base_url,omitempty"`
	Model       string                     `yaml:"model"`
	PromptCache AnthropicPromptCacheConfig `yaml:"prompt_cache,omitempty"`
	ExtraParams map[string]any             `yaml:"extra_params,omitempty"`
}

// GoogleConfig configures the Gemini backend via google.golang.org/genai.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout_seconds,omitempty"`
}

// LLMClientConfig selects and configures the active LLM backend.
type LLMClientConfig struct {
	// Provider is one of "openai" (default), "local" (OpenAI-compatible
	// completions endpoint), "anthropic", or "google".
	Provider  string          `yaml:"provider"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
}

// ObsConfig configures OTLP trace/metric export. OTLP empty disables export.
type ObsConfig struct {
	OTLP           string `yaml:"otlp_endpoint,omitempty"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
}

// BrowserConfig controls how the embedded Chrome instance is launched.
type BrowserConfig struct {
	Headless              bool   `yaml:"headless"`
	ExecPath              string `yaml:"exec_path,omitempty"`
	UserDataDir           string `yaml:"user_data_dir,omitempty"`
	WindowWidth           int    `yaml:"window_width,omitempty"`
	WindowHeight          int    `yaml:"window_height,omitempty"`
	DefaultTimeoutSeconds int    `yaml:"default_timeout_seconds,omitempty"`
}

// Config is the top-level configuration for the agent process.
type Config struct {
	LLMClient LLMClientConfig `yaml:"llm_client"`
	Obs       ObsConfig       `yaml:"observability"`
	Browser   BrowserConfig   `yaml:"browser"`

	LogPath  string `yaml:"log_path,omitempty"`
	LogLevel string `yaml:"log_level"`

	MaxSteps    int `yaml:"max_steps"`
	MaxFailures int `yaml:"max_failures"`

	// HistoryDir is where AgentHistory.json files are written on completion.
	HistoryDir string `yaml:"history_dir,omitempty"`

	// HTTPAddr, when non-empty, serves the control-surface HTTP API here
	// instead of running a single task to completion and exiting.
	HTTPAddr string `yaml:"http_addr,omitempty"`

	// SandboxDir is the base directory action file-parameters (upload_file,
	// screenshot paths, etc.) are resolved and confined to.
	SandboxDir string `yaml:"sandbox_dir,omitempty"`

	// CloudSync enables the event-bus cloud-sync consumer
	// (BROWSERUSE_CLOUD_SYNC environment variable).
	CloudSync bool `yaml:"cloud_sync,omitempty"`

	// CloudSyncURL is where the cloud-sync consumer posts run events.
	CloudSyncURL string `yaml:"cloud_sync_url,omitempty"`

	// SkipLLMVerification bypasses the tool-calling-method probe
	// (SKIP_LLM_API_KEY_VERIFICATION environment variable).
	SkipLLMVerification bool `yaml:"skip_llm_verification,omitempty"`
}
