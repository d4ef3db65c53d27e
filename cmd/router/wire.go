package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/petasbytes/converse-router/internal/config"
	"github.com/petasbytes/converse-router/internal/gateway"
	"github.com/petasbytes/converse-router/internal/prompt"
	"github.com/petasbytes/converse-router/internal/runner"
	"github.com/petasbytes/converse-router/internal/search"
	"github.com/petasbytes/converse-router/tools"
)

func buildRouter(ctx context.Context, cfg *config.Config, loader *prompt.Loader, logger *log.Logger) (*runner.Router, error) {
	system, err := loader.System(cfg.SystemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("system prompt: %w", err)
	}
	choice, err := gateway.ParseToolChoice(cfg.ToolChoice)
	if err != nil {
		return nil, err
	}

	web, wiki, err := buildSearch(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	reg, err := tools.NewRegistryFrom(tools.Defaults(web, wiki)...)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithSystem(system),
		runner.WithToolChoice(choice),
		runner.WithInference(gateway.Inference{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}),
		runner.WithLogger(logger),
	}

	// The guardrail is a Bedrock API even when Anthropic answers.
	var client *bedrockruntime.Client
	if cfg.Provider == config.ProviderBedrock || cfg.Guardrail.Enabled {
		if client, err = gateway.NewBedrockClient(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	if cfg.Guardrail.Enabled {
		opts = append(opts, runner.WithGuardrail(gateway.NewBedrockGuardrail(client, cfg.Guardrail.ID, cfg.Guardrail.Version)))
	}

	var gw gateway.Gateway
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("missing ANTHROPIC_API_KEY; export it before running")
		}
		gw = gateway.NewAnthropic(gateway.NewAnthropicClient(), cfg.ModelID)
	default:
		gw = gateway.NewBedrock(client, cfg.ModelID)
	}

	logger.Printf("[router] provider=%s model=%s search=%s", cfg.Provider, cfg.ModelID, cfg.SearchBackend())
	return runner.New(gw, reg, opts...), nil
}

// buildSearch returns the general web provider and the Wikipedia provider,
// both rate limited.
func buildSearch(ctx context.Context, cfg *config.Config, logger *log.Logger) (web, wiki search.Provider, err error) {
	w := search.NewWikipedia(cfg.Search.WikipediaLang)
	w.Logger = logger
	wiki = search.NewLimited(w, cfg.Search.RatePerMinute)
	web = wiki
	if cfg.SearchBackend() == config.SearchGoogle {
		g, err := search.NewGoogle(ctx, cfg.Search.GoogleAPIKey, cfg.Search.GoogleCX)
		if err != nil {
			return nil, nil, err
		}
		web = search.NewLimited(g, cfg.Search.RatePerMinute)
	}
	return web, wiki, nil
}
