// Package config loads router settings from an optional YAML file and the
// environment. Environment values win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petasbytes/converse-router/internal/gateway"
)

const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"

	SearchAuto      = "auto"
	SearchGoogle    = "google"
	SearchWikipedia = "wikipedia"
)

// Config mirrors router.yaml.
type Config struct {
	Provider         string          `yaml:"provider"` // bedrock | anthropic
	ModelID          string          `yaml:"model_id"`
	Region           string          `yaml:"region"`
	PromptRoot       string          `yaml:"prompt_root"`
	SystemPromptFile string          `yaml:"system_prompt_file"` // relative to PromptRoot
	MaxTokens        int             `yaml:"max_tokens"`
	Temperature      float64         `yaml:"temperature"`
	ToolChoice       string          `yaml:"tool_choice"` // auto | any | tool:<name>
	Timeout          time.Duration   `yaml:"timeout"`
	Guardrail        GuardrailConfig `yaml:"guardrail"`
	Search           SearchConfig    `yaml:"search"`
}

type GuardrailConfig struct {
	Enabled bool   `yaml:"enabled"`
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

type SearchConfig struct {
	Backend       string `yaml:"backend"` // auto | google | wikipedia
	GoogleAPIKey  string `yaml:"google_api_key"`
	GoogleCX      string `yaml:"google_cx"`
	RatePerMinute int    `yaml:"rate_per_minute"` // 0 disables limiting
	WikipediaLang string `yaml:"wikipedia_lang"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Provider:    ProviderBedrock,
		ModelID:     gateway.DefaultBedrockModel,
		PromptRoot:  ".",
		MaxTokens:   4096,
		Temperature: 0,
		ToolChoice:  "auto",
		Timeout:     2 * time.Minute,
		Guardrail:   GuardrailConfig{Version: gateway.DefaultGuardrailVersion},
		Search:      SearchConfig{Backend: SearchAuto, RatePerMinute: 60, WikipediaLang: "en"},
	}
}

// Load reads path (skipped when empty), expands ${VAR} references, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Provider == ProviderAnthropic && cfg.ModelID == gateway.DefaultBedrockModel {
		cfg.ModelID = string(gateway.DefaultAnthropicModel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Provider = getEnvOrDefault("ROUTER_PROVIDER", c.Provider)
	c.ModelID = getEnvOrDefault("ROUTER_MODEL_ID", c.ModelID)
	c.Region = getEnvOrDefault("AWS_REGION", c.Region)
	c.PromptRoot = getEnvOrDefault("ROUTER_PROMPT_ROOT", c.PromptRoot)
	c.SystemPromptFile = getEnvOrDefault("ROUTER_SYSTEM_PROMPT_FILE", c.SystemPromptFile)
	c.ToolChoice = getEnvOrDefault("ROUTER_TOOL_CHOICE", c.ToolChoice)
	c.Guardrail.ID = getEnvOrDefault("GUARDRAILS_ID", c.Guardrail.ID)
	c.Guardrail.Version = getEnvOrDefault("ROUTER_GUARDRAIL_VERSION", c.Guardrail.Version)
	c.Search.Backend = getEnvOrDefault("ROUTER_SEARCH_BACKEND", c.Search.Backend)
	c.Search.GoogleAPIKey = getEnvOrDefault("GOOGLE_API_KEY", c.Search.GoogleAPIKey)
	c.Search.GoogleCX = getEnvOrDefault("GOOGLE_CSE_ID", c.Search.GoogleCX)
	c.Search.WikipediaLang = getEnvOrDefault("ROUTER_WIKIPEDIA_LANG", c.Search.WikipediaLang)

	var err error
	if c.MaxTokens, err = envInt("ROUTER_MAX_TOKENS", c.MaxTokens); err != nil {
		return err
	}
	if c.Search.RatePerMinute, err = envInt("ROUTER_SEARCH_RATE", c.Search.RatePerMinute); err != nil {
		return err
	}
	if v := os.Getenv("ROUTER_TEMPERATURE"); v != "" {
		if c.Temperature, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid ROUTER_TEMPERATURE %q: %w", v, err)
		}
	}
	if v := os.Getenv("ROUTER_TIMEOUT"); v != "" {
		if c.Timeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid ROUTER_TIMEOUT %q: %w", v, err)
		}
	}
	if v := os.Getenv("ROUTER_GUARDRAIL_ENABLED"); v != "" {
		if c.Guardrail.Enabled, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("invalid ROUTER_GUARDRAIL_ENABLED %q: %w", v, err)
		}
	}
	return nil
}

// Validate rejects settings the router cannot run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderBedrock, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (want bedrock or anthropic)", c.Provider)
	}
	if c.ModelID == "" {
		return errors.New("model_id is required")
	}
	if c.MaxTokens <= 0 || c.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("max_tokens must be within [1,%d], got %d", math.MaxInt32, c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be within [0,1], got %v", c.Temperature)
	}
	if _, err := gateway.ParseToolChoice(c.ToolChoice); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Guardrail.Enabled && c.Guardrail.ID == "" {
		return errors.New("guardrail enabled but no id set (GUARDRAILS_ID)")
	}
	if c.Search.RatePerMinute < 0 {
		return fmt.Errorf("search rate_per_minute must not be negative, got %d", c.Search.RatePerMinute)
	}
	switch c.Search.Backend {
	case SearchAuto, SearchWikipedia:
	case SearchGoogle:
		if c.Search.GoogleAPIKey == "" || c.Search.GoogleCX == "" {
			return errors.New("google search needs GOOGLE_API_KEY and GOOGLE_CSE_ID")
		}
	default:
		return fmt.Errorf("unknown search backend %q", c.Search.Backend)
	}
	return nil
}

// SearchBackend resolves "auto": Google when credentials are present,
// Wikipedia otherwise.
func (c *Config) SearchBackend() string {
	if c.Search.Backend != SearchAuto {
		return c.Search.Backend
	}
	if c.Search.GoogleAPIKey != "" && c.Search.GoogleCX != "" {
		return SearchGoogle
	}
	return SearchWikipedia
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
