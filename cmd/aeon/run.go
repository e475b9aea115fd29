package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/convergence"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/memory"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/orchestrator"
	"github.com/brbuxton/aeon/pkg/telemetry"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run a single request through the orchestration core",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequest,
}

func runRequest(cmd *cobra.Command, args []string) error {
	logger, err := logging.CreateLogger(logging.Options{
		LogFile:      cfg.LogFile,
		Level:        cfg.LogLevel,
		Format:       cfg.LogFormat,
		EnableStdout: cfg.LogFile == "",
	})
	if err != nil {
		return fmt.Errorf("aeon: creating logger: %w", err)
	}
	defer logger.Close()

	provider, err := initializeLLM(cfg.Provider, cfg.Model, cfg.Temperature)
	if err != nil {
		return fmt.Errorf("aeon: initializing llm provider: %w", err)
	}
	adapter := llmadapter.NewLangchainAdapter(provider)
	retrying := llmadapter.NewRetryingAdapter(adapter, logger)

	writer, err := telemetry.NewWriter(cfg.TelemetryPath, logger)
	if err != nil {
		return fmt.Errorf("aeon: opening telemetry sink: %w", err)
	}
	defer writer.Close()

	globalTTLLimit := cfg.GlobalTTLLimit
	o := orchestrator.New(orchestrator.Config{
		Adapter:   retrying,
		Tools:     toolregistry.NewInMemory(),
		Memory:    memory.NewInMemory(),
		Telemetry: writer,
		Logger:    logger,
		DepthConfig: withTTLLimit(model.DefaultAdaptiveDepthConfiguration(), globalTTLLimit),
		Criteria: convergence.Criteria{
			CompletenessThreshold: cfg.CompletenessThreshold,
			CoherenceThreshold:    cfg.CoherenceThreshold,
			ConsistencyThreshold:  cfg.ConsistencyThreshold,
		},
		GlobalTTLLimit: &globalTTLLimit,
		MaxPasses:      cfg.MaxPasses,
	})

	result, err := o.Run(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("aeon: run failed: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("aeon: encoding result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func withTTLLimit(c model.AdaptiveDepthConfiguration, limit int) model.AdaptiveDepthConfiguration {
	c.GlobalTTLLimit = &limit
	return c
}

func initializeLLM(provider, modelID string, temperature float64) (llms.Model, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not found in environment variables")
		}
		return openai.New(openai.WithModel(modelID))
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not found in environment variables")
		}
		return anthropic.New(anthropic.WithModel(modelID))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
