// Package llm defines the language model providers used to draft procedures.
package llm

import (
	"context"
	"fmt"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/internal/llm/ollama"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

// LLM defines the interface for language model providers
type LLM interface {
	// Generate returns the model's completion of prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// IsModelAvailable checks if the configured model is available
	IsModelAvailable(ctx context.Context) error

	// Model names the configured model.
	Model() string
}

// Provider names a language model backend.
type Provider string

// Supported providers.
const (
	ProviderOllama Provider = "ollama"
)

// NewClient creates a new LLM client based on the configuration
func NewClient(cfg *config.AIConfig, log *logger.Logger) (LLM, error) {
	switch Provider(cfg.Provider) {
	case ProviderOllama, "":
		return ollama.NewClient(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
