package config

import (
	"fmt"
	"net/url"

	"github.com/xhad/promptlab/pkg/errs"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "openai", "ollama", "anthropic":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.LLM.BaseURL != "" && !validURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 16384 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 16384",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.requests_per_second",
			Message: "requests_per_second cannot be negative",
		})
	}

	// Validate embedding config
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q", c.Embedding.Provider),
		})
	}

	if c.Embedding.BaseURL != "" && !validURL(c.Embedding.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid base URL",
		})
	}

	// Validate store config
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.path",
				Message: "path is required for the sqlite backend",
			})
		}
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "database URL is required for the pgvector backend",
			})
		} else if !validURL(c.Store.URL) {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q", c.Store.Backend),
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate dataset config
	if c.Dataset.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "dataset.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Dataset.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dataset.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Suggest.Similar < 1 {
		errors = append(errors, ValidationError{
			Field:   "suggest.similar",
			Message: "similar must be positive",
		})
	}

	return errors
}

// RequireCredentials fails when a hosted provider is selected without an API key.
func (c *Config) RequireCredentials() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			return &errs.ConfigurationError{Field: "llm.api_key", Message: "OPENAI_API_KEY is not set"}
		}
	case "anthropic":
		if c.LLM.APIKey == "" {
			return &errs.ConfigurationError{Field: "llm.api_key", Message: "ANTHROPIC_API_KEY is not set"}
		}
	}
	return nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
