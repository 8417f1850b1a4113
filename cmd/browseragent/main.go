// Command browseragent runs the LLM-driven browser agent: one-shot from the
// command line, or as a long-running control-surface daemon when HTTP_ADDR
// is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"browseragent/internal/browseragent"
	"browseragent/internal/config"
	"browseragent/internal/httpapi"
	llmpkg "browseragent/internal/llm"
	llmproviders "browseragent/internal/llm/providers"
	"browseragent/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	task := flag.String("task", "", "Natural-language task for the agent")
	maxSteps := flag.Int("max-steps", cfg.MaxSteps, "Step budget for the run")
	replay := flag.String("replay", "", "Path to a saved AgentHistory.json to re-execute instead of running the LLM loop")
	flag.Parse()

	if *task == "" && *replay == "" && cfg.HTTPAddr == "" {
		fmt.Fprintln(os.Stderr, "usage: browseragent -task \"...\" | -replay history.json  (or set HTTP_ADDR)")
		os.Exit(2)
	}

	if err := run(&cfg, *task, *maxSteps, *replay); err != nil {
		log.Fatal().Err(err).Msg("browseragent")
	}
}

func run(cfg *config.Config, task string, maxSteps int, replayPath string) error {
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	log.Info().Msg("browser agent starting")
	baseCtx := context.Background()

	shutdown, err := observability.InitOTel(baseCtx, cfg.Obs)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without export")
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	llmpkg.ConfigureLogging(cfg.LLMClient.OpenAI.LogPayloads)
	httpClient := observability.NewHTTPClient(nil)

	provider, err := llmproviders.Build(*cfg, httpClient)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}
	model := llmproviders.Model(*cfg)
	tokenizer := llmproviders.BuildTokenizer(*cfg)

	buildAgent := func(ctx context.Context, taskText string) (*browseragent.Agent, error) {
		browser := browseragent.NewChromedpBrowser()
		if err := browser.Launch(ctx, cfg.Browser.Headless, cfg.Browser.UserDataDir); err != nil {
			return nil, err
		}
		controller := browseragent.NewController(browser, cfg.SandboxDir)
		controller.MarkLaunched()

		settings := browseragent.DefaultAgentSettings()
		if cfg.MaxFailures > 0 {
			settings.MaxFailures = cfg.MaxFailures
		}
		systemPrompt := browseragent.DefaultSystemPrompt(taskText, controller.Registry(), settings)
		messages := browseragent.NewMessageManager(taskText, systemPrompt, model, settings, tokenizer)
		adapter := browseragent.NewLLMAdapter(provider, model, cfg.SkipLLMVerification)

		agent := browseragent.NewAgent(taskText, settings, controller, messages, adapter)
		if settings.MemoryInterval > 0 {
			agent.Memory = browseragent.NewLLMMemoryHook(provider, model, settings.MemoryInterval)
		}
		if cfg.CloudSync {
			if cfg.CloudSyncURL == "" {
				log.Warn().Msg("cloud sync enabled but no endpoint configured, skipping")
			} else {
				sync := browseragent.NewCloudSync(cfg.CloudSyncURL, httpClient)
				sync.Start(ctx, agent.Bus)
				agent.Sync = sync
			}
		}
		return agent, nil
	}

	if cfg.HTTPAddr != "" {
		factory := func(ctx context.Context, req httpapi.StartRequest) (*browseragent.Agent, error) {
			return buildAgent(ctx, req.Task)
		}
		server := httpapi.NewServer(factory, cfg.MaxSteps)
		log.Info().Str("addr", cfg.HTTPAddr).Msg("serving agent control surface")
		return http.ListenAndServe(cfg.HTTPAddr, server)
	}

	agent, err := buildAgent(baseCtx, task)
	if err != nil {
		return err
	}

	if replayPath != "" {
		saved, err := browseragent.LoadHistoryFromFile(replayPath)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		results, err := agent.RerunHistory(baseCtx, saved, 3, false, 0)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		log.Info().Int("actions", len(results)).Msg("replay complete")
		return nil
	}

	history, err := agent.Run(baseCtx, maxSteps, nil, nil, nil)
	if err != nil {
		return err
	}
	if cfg.HistoryDir != "" {
		if mkErr := os.MkdirAll(cfg.HistoryDir, 0o755); mkErr == nil {
			path := filepath.Join(cfg.HistoryDir, browseragent.DefaultHistoryFilename)
			if saveErr := history.SaveToFile(path); saveErr != nil {
				log.Warn().Err(saveErr).Msg("could not save history")
			} else {
				log.Info().Str("path", path).Msg("history saved")
			}
		}
	}
	if history.IsSuccessful() {
		fmt.Println(history.FinalResult())
	} else {
		log.Warn().Strs("errors", history.Errors()).Msg("task did not complete successfully")
	}
	return nil
}
