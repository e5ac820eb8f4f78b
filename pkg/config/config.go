package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider          string  `yaml:"provider"`
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		Model             string  `yaml:"model"`
		MaxTokens         int     `yaml:"max_tokens"`
		Temperature       float64 `yaml:"temperature"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"llm"`

	Embedding struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Store struct {
		Backend    string `yaml:"backend"`
		Path       string `yaml:"path"`
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
		VectorDim  int    `yaml:"vector_dim"`
	} `yaml:"store"`

	Dataset struct {
		Path            string  `yaml:"path"`
		BatchSize       int     `yaml:"batch_size"`
		EnrichAbstracts bool    `yaml:"enrich_abstracts"`
		RateLimit       float64 `yaml:"rate_limit"`
	} `yaml:"dataset"`

	Suggest struct {
		Similar int `yaml:"similar"`
	} `yaml:"suggest"`

	Menu struct {
		Path string `yaml:"path"`
	} `yaml:"menu"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// Overrides carry command-line values. They win over both the config file and
// the environment, and are applied before provider-dependent defaults.
type Overrides struct {
	Provider        string
	Model           string
	DatasetPath     string
	EnrichAbstracts bool
	Similar         int
}

func LoadConfig(path string) (*Config, error) {
	return LoadConfigWithOverrides(path, Overrides{})
}

func LoadConfigWithOverrides(path string, overrides Overrides) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/promptlab/config.yaml"),
			"/etc/promptlab/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig(overrides)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	resolve(&config, overrides)
	return &config, nil
}

func getDefaultConfig(overrides Overrides) (*Config, error) {
	config := &Config{}
	resolve(config, overrides)
	return config, nil
}

func resolve(config *Config, overrides Overrides) {
	fileProvider := providerName(config.LLM.Provider)
	if provider := os.Getenv("PROMPTLAB_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if overrides.Provider != "" {
		config.LLM.Provider = overrides.Provider
	}
	// Credentials, model and endpoint in the file belong to the file's provider.
	if providerName(config.LLM.Provider) != fileProvider {
		config.LLM.APIKey = ""
		config.LLM.Model = ""
		config.LLM.BaseURL = ""
	}
	if overrides.Model != "" {
		config.LLM.Model = overrides.Model
	}
	if overrides.DatasetPath != "" {
		config.Dataset.Path = overrides.DatasetPath
	}
	if overrides.EnrichAbstracts {
		config.Dataset.EnrichAbstracts = true
	}
	if overrides.Similar > 0 {
		config.Suggest.Similar = overrides.Similar
	}

	mergeWithEnv(config)
	applyDefaults(config)
}

func providerName(provider string) string {
	if provider == "" {
		return "openai"
	}
	return provider
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "ollama":
			config.LLM.Model = "mistral"
		case "anthropic":
			config.LLM.Model = "claude-3-5-haiku-latest"
		default:
			config.LLM.Model = "gpt-4o-mini"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "openai" {
			config.Embedding.Model = "text-embedding-3-small"
		} else {
			config.Embedding.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 512
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "sqlite"
	}
	if config.Store.Path == "" {
		config.Store.Path = "data/promptlab.db"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "short_titles"
	}
	if config.Store.VectorDim == 0 {
		if config.Embedding.Provider == "openai" {
			config.Store.VectorDim = 1536
		} else {
			config.Store.VectorDim = 768
		}
	}

	if config.Dataset.Path == "" {
		config.Dataset.Path = "data/short_titles.csv"
	}
	if config.Dataset.BatchSize == 0 {
		config.Dataset.BatchSize = 50
	}
	if config.Dataset.RateLimit == 0 {
		config.Dataset.RateLimit = 2.0
	}

	if config.Suggest.Similar == 0 {
		config.Suggest.Similar = 10
	}

	if config.Menu.Path == "" {
		config.Menu.Path = "data/menu.txt"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case "anthropic":
			config.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "", "openai":
			config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedding.Provider == "" || config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
}
