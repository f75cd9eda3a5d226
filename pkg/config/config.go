package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embeddings struct {
		Provider  string  `yaml:"provider"`
		Model     string  `yaml:"model"`
		BaseURL   string  `yaml:"base_url"`
		Token     string  `yaml:"-"` // env only, never from file
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embeddings"`

	LLM struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		BaseURL     string  `yaml:"base_url"`
		Token       string  `yaml:"-"`
		MaxTokens int `yaml:"max_tokens"`
		// pointer so an explicit 0 survives defaulting
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		Backend   string `yaml:"backend"` // "sqlite" or "postgres"
		Path      string `yaml:"path"`    // sqlite file
		URL       string `yaml:"url"`     // postgres connection string
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"database"`

	Chunker struct {
		TargetSize     int `yaml:"target_size"`
		OverlapPercent int `yaml:"overlap_percent"`
	} `yaml:"chunker"`

	Retriever struct {
		// model-specific, must be set explicitly
		RelevanceThreshold float64 `yaml:"relevance_threshold"`
		SearchK            int     `yaml:"search_k"`
		TopK               int     `yaml:"top_k"`
		MaxQuoteLen        int     `yaml:"max_quote_len"`
	} `yaml:"retriever"`

	Search struct {
		APIKey     string `yaml:"-"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"search"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/lore/config.yaml"),
			"/etc/lore/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embeddings.Provider == "" {
		config.Embeddings.Provider = "ollama"
	}
	if config.Embeddings.BatchSize == 0 {
		config.Embeddings.BatchSize = 500
	}
	if config.Embeddings.RateLimit == 0 {
		config.Embeddings.RateLimit = 2.0
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == nil {
		defaultTemp := 0.1
		config.LLM.Temperature = &defaultTemp
	}

	if config.Database.Backend == "" {
		config.Database.Backend = "sqlite"
	}
	if config.Database.Path == "" {
		config.Database.Path = "lore.db"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}

	if config.Chunker.TargetSize == 0 {
		config.Chunker.TargetSize = 500
	}
	if config.Chunker.OverlapPercent == 0 {
		config.Chunker.OverlapPercent = 15
	}

	// Retriever.RelevanceThreshold deliberately has no default.
	if config.Retriever.SearchK == 0 {
		config.Retriever.SearchK = 10
	}
	if config.Retriever.TopK == 0 {
		config.Retriever.TopK = 3
	}
	if config.Retriever.MaxQuoteLen == 0 {
		config.Retriever.MaxQuoteLen = 300
	}

	if config.Search.MaxResults == 0 {
		config.Search.MaxResults = 5
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embeddings.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if token := os.Getenv("OPENAI_API_KEY"); token != "" {
		config.Embeddings.Token = token
		config.LLM.Token = token
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if dbPath := os.Getenv("LORE_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		config.Search.APIKey = key
	}
}
