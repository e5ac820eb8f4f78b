package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/promptlab/pkg/errs"
	"golang.org/x/time/rate"
)

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("no response from LLM")

// ChatConfig represents the configuration for a completion client.
type ChatConfig struct {
	Provider          string // "openai", "ollama" or "anthropic"
	Model             string
	BaseURL           string
	APIKey            string
	Temperature       float64
	MaxTokens         int
	RequestsPerSecond float64 // 0 disables pacing
}

// Client sends single-turn prompts to a hosted chat model.
type Client struct {
	config  ChatConfig
	llm     llms.Model
	limiter *rate.Limiter
}

// NewWithConfig creates a new Client with the given configuration.
func NewWithConfig(config ChatConfig) (*Client, error) {
	if config.Provider == "" {
		config.Provider = "openai"
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case "openai":
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ollama":
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	case "anthropic":
		if config.Model == "" {
			config.Model = "claude-3-5-haiku-latest"
		}
		opts := []anthropic.Option{anthropic.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, anthropic.WithToken(config.APIKey))
		}
		model, err = anthropic.New(opts...)
	default:
		return nil, &errs.ConfigurationError{Field: "llm.provider", Message: fmt.Sprintf("unknown provider %q", config.Provider)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewFromModel(model, config)
}

// NewFromModel wraps an existing langchaingo model.
func NewFromModel(model llms.Model, config ChatConfig) (*Client, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	if config.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second cannot be negative")
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		config:  config,
		llm:     model,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string {
	return c.config.Model
}

// Send sends prompt as the only message of a new conversation and returns the
// text of the first choice.
func (c *Client) Send(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &errs.CompletionError{Model: c.config.Model, Err: err}
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{llms.WithMaxTokens(c.config.MaxTokens)}
	if c.config.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.config.Temperature))
	}

	response, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", &errs.CompletionError{Model: c.config.Model, Retryable: errs.Classify(err), Err: err}
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", &errs.CompletionError{Model: c.config.Model, Err: ErrEmptyResponse}
	}

	return response.Choices[0].Content, nil
}
