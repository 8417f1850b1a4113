package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally .env),
// then overlays an optional YAML file named by AGENT_CONFIG_FILE onto the
// fields overlayYAML covers; values set from the environment win.
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment variables,
	// letting a checked-in .env deterministically control local runs.
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.LogLevel = "info"
	cfg.MaxSteps = 100
	cfg.MaxFailures = 3
	cfg.Browser.Headless = true
	cfg.Browser.WindowWidth = 1280
	cfg.Browser.WindowHeight = 1024
	cfg.Browser.DefaultTimeoutSeconds = 30

	cfg.LLMClient.Provider = strings.TrimSpace(os.Getenv("LLM_PROVIDER"))

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLMClient.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.LLMClient.OpenAI.Model = v
	}
	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_API_BASE_URL"))); v != "" {
		cfg.LLMClient.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_PAYLOADS")); v != "" {
		cfg.LLMClient.OpenAI.LogPayloads = strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLMClient.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.LLMClient.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLMClient.Anthropic.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_API_KEY")); v != "" {
		cfg.LLMClient.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_MODEL")); v != "" {
		cfg.LLMClient.Google.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_LLM_BASE_URL")); v != "" {
		cfg.LLMClient.Google.BaseURL = v
	}

	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MAX_STEPS")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.MaxSteps = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_FAILURES")); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.MaxFailures = n
		}
	}
	cfg.HistoryDir = strings.TrimSpace(os.Getenv("HISTORY_DIR"))
	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	cfg.SandboxDir = strings.TrimSpace(os.Getenv("SANDBOX_DIR"))

	// Truthiness for these two is "first character, lowercased, is t".
	cfg.CloudSync = firstCharIsT(os.Getenv("BROWSERUSE_CLOUD_SYNC"))
	cfg.CloudSyncURL = strings.TrimSpace(os.Getenv("BROWSERUSE_CLOUD_SYNC_URL"))
	cfg.SkipLLMVerification = firstCharIsT(os.Getenv("SKIP_LLM_API_KEY_VERIFICATION"))

	if v := strings.TrimSpace(os.Getenv("BROWSER_HEADLESS")); v != "" {
		cfg.Browser.Headless = strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
	}
	cfg.Browser.ExecPath = strings.TrimSpace(os.Getenv("BROWSER_EXEC_PATH"))
	cfg.Browser.UserDataDir = strings.TrimSpace(os.Getenv("BROWSER_USER_DATA_DIR"))

	cfg.Obs.OTLP = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.Obs.ServiceName = firstNonEmpty(strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")), "browseragent")
	cfg.Obs.ServiceVersion = strings.TrimSpace(os.Getenv("SERVICE_VERSION"))
	cfg.Obs.Environment = firstNonEmpty(strings.TrimSpace(os.Getenv("ENVIRONMENT")), "development")

	if path := strings.TrimSpace(os.Getenv("AGENT_CONFIG_FILE")); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// overlayYAML fills fields of cfg from the YAML file at path. Values set
// from the environment take precedence: string fields and provider blocks
// are taken from the file only while still empty (a provider block counts
// as empty when its API key is), MaxSteps and MaxFailures only when their
// variables are unset. Window size and timeout, which have no variables,
// take any positive value from the file.
func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	if cfg.LLMClient.Provider == "" {
		cfg.LLMClient.Provider = fileCfg.LLMClient.Provider
	}
	if cfg.LLMClient.OpenAI.APIKey == "" {
		cfg.LLMClient.OpenAI = fileCfg.LLMClient.OpenAI
	}
	if cfg.LLMClient.Anthropic.APIKey == "" {
		cfg.LLMClient.Anthropic = fileCfg.LLMClient.Anthropic
	}
	if cfg.LLMClient.Google.APIKey == "" {
		cfg.LLMClient.Google = fileCfg.LLMClient.Google
	}
	if fileCfg.Obs.OTLP != "" && cfg.Obs.OTLP == "" {
		cfg.Obs.OTLP = fileCfg.Obs.OTLP
	}
	if fileCfg.MaxSteps > 0 && strings.TrimSpace(os.Getenv("MAX_STEPS")) == "" {
		cfg.MaxSteps = fileCfg.MaxSteps
	}
	if fileCfg.MaxFailures > 0 && strings.TrimSpace(os.Getenv("MAX_FAILURES")) == "" {
		cfg.MaxFailures = fileCfg.MaxFailures
	}
	if cfg.HistoryDir == "" {
		cfg.HistoryDir = fileCfg.HistoryDir
	}
	if cfg.SandboxDir == "" {
		cfg.SandboxDir = fileCfg.SandboxDir
	}
	if cfg.Browser.ExecPath == "" {
		cfg.Browser.ExecPath = fileCfg.Browser.ExecPath
	}
	if cfg.Browser.UserDataDir == "" {
		cfg.Browser.UserDataDir = fileCfg.Browser.UserDataDir
	}
	if fileCfg.Browser.WindowWidth > 0 {
		cfg.Browser.WindowWidth = fileCfg.Browser.WindowWidth
	}
	if fileCfg.Browser.WindowHeight > 0 {
		cfg.Browser.WindowHeight = fileCfg.Browser.WindowHeight
	}
	if fileCfg.Browser.DefaultTimeoutSeconds > 0 {
		cfg.Browser.DefaultTimeoutSeconds = fileCfg.Browser.DefaultTimeoutSeconds
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func firstCharIsT(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && (s[0] == 't' || s[0] == 'T')
}
