package model

import "time"

// Config holds all dealdesk configuration
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Research    ResearchConfig    `yaml:"research" mapstructure:"research"`
}

// LLMConfig configures the extraction model
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// StoreConfig selects the entity store backend
type StoreConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"` // sqlite://path or postgres://...
}

// SearchConfig configures the web candidate searchers
type SearchConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Model             string        `yaml:"model" mapstructure:"model"`
	MaxCandidates     int           `yaml:"max_candidates" mapstructure:"max_candidates"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	CacheTTL          time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheDir          string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	ProbeWebsites     bool          `yaml:"probe_websites" mapstructure:"probe_websites"`
	ProfileDomains    []string      `yaml:"profile_domains,omitempty" mapstructure:"profile_domains"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig bounds fan-out
type ConcurrencyConfig struct {
	HydrationWorkers int `yaml:"hydration_workers" mapstructure:"hydration_workers"`
	ResearchWorkers  int `yaml:"research_workers" mapstructure:"research_workers"`
	ProbeWorkers     int `yaml:"probe_workers" mapstructure:"probe_workers"`
}

// ResearchConfig configures the research queue drain
type ResearchConfig struct {
	Schedule  string `yaml:"schedule" mapstructure:"schedule"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "", // Disabled until a provider and key are configured
			Model:       "",
			Timeout:     60,
			MaxTokens:   4000,
			Temperature: 0.1,
		},
		Store: StoreConfig{
			DSN: "sqlite://./dealdesk.db",
		},
		Search: SearchConfig{
			Enabled:           true,
			MaxCandidates:     5,
			RequestsPerSecond: 2,
			Burst:             2,
			CacheTTL:          24 * time.Hour,
			CacheDir:          "",
			ProbeWebsites:     true,
			UserAgent:         "dealdesk/0.1 (+https://github.com/ppiankov/dealdesk)",
			Timeout:           10 * time.Second,
			MaxBodyBytes:      1_000_000,
		},
		Concurrency: ConcurrencyConfig{
			HydrationWorkers: 4,
			ResearchWorkers:  2,
			ProbeWorkers:     4,
		},
		Research: ResearchConfig{
			Schedule:  "@every 10m",
			BatchSize: 20,
		},
	}
}
