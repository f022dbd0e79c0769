package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "dev", "mock":
		return NewDevProvider(), nil

	case "":
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider or DEV_MODE=true)")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini, dev)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config. Provider-specific API key
// environment variables fill in a missing key.
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	cfg := Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     int(modelConfig.Timeout.Seconds()),
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   os.Getenv("HTTP_PROXY"),
		HTTPSProxy:  os.Getenv("HTTPS_PROXY"),
		NoProxy:     os.Getenv("NO_PROXY"),
	}

	if cfg.APIKey == "" {
		switch strings.ToLower(cfg.Provider) {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini", "google":
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.BaseURL == "" && strings.ToLower(cfg.Provider) == "ollama" {
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	return cfg
}
