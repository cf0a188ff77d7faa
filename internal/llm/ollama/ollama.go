// Package ollama talks to a local or remote Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

const defaultTimeout = 120 * time.Second

// Client generates text with an Ollama model.
type Client struct {
	client      *api.Client
	model       string
	temperature float64
	timeout     time.Duration
	log         *logger.Logger
}

// NewClient creates an Ollama client. An empty host falls back to
// OLLAMA_HOST and the Ollama defaults.
func NewClient(cfg *config.AIConfig, log *logger.Logger) (*Client, error) {
	var (
		client *api.Client
		err    error
	)
	if cfg.Host != "" {
		var base *url.URL
		base, err = url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
		}
		client = api.NewClient(base, http.DefaultClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		log:         log.Component("ollama"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate runs a non-streaming completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"top_p":       0.9,
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Generating response")

	var b strings.Builder
	err := c.client.Generate(timeoutCtx, req, func(g api.GenerateResponse) error {
		b.WriteString(g.Response)
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Str("model", c.model).Msg("Failed to generate response")
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}

	return b.String(), nil
}

// IsModelAvailable checks the server has the configured model pulled.
func (c *Client) IsModelAvailable(ctx context.Context) error {
	models, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range models.Models {
		if model.Name == c.model || model.Model == c.model {
			return nil
		}
	}

	return fmt.Errorf("model %s not found. Available models: %v", c.model, modelNames(models.Models))
}

func modelNames(models []api.ListModelResponse) []string {
	names := make([]string, len(models))
	for i, model := range models {
		names[i] = model.Name
	}
	return names
}
