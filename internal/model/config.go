package model

import "time"

// Config is the full plancheck configuration. Field tags serve both viper (mapstructure)
// and `config show/init` (yaml).
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
}

// HTTPConfig controls fetching of code documents by URL
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRedirects  int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// LLMConfig selects and configures the rule extraction model
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, gemini, dev
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig controls caching of LLM completions and loaded rule sets
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Directory string        `yaml:"directory" mapstructure:"directory"` // Empty disables the disk layer
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`         // Drawings checked in parallel
	LLMWorkers int `yaml:"llm_workers" mapstructure:"llm_workers"` // Candidates normalized in parallel
}

// RateLimitingConfig paces requests to LLM providers
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// StoreConfig selects where rule sets are persisted
type StoreConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // file or postgres
	RulesDir    string `yaml:"rules_dir" mapstructure:"rules_dir"`
	DatabaseURL string `yaml:"database_url,omitempty" mapstructure:"database_url"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// OutputConfig controls report files written by the CLI
type OutputConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
	Markdown  bool   `yaml:"markdown" mapstructure:"markdown"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // TRACE, DEBUG, INFO, WARN, ERROR, FATAL
	Format string `yaml:"format" mapstructure:"format"` // json or text
}

// ExtractionConfig controls rule generation from code documents
type ExtractionConfig struct {
	ChunkSize int  `yaml:"chunk_size" mapstructure:"chunk_size"`
	DevMode   bool `yaml:"dev_mode" mapstructure:"dev_mode"` // Use canned model output instead of a provider
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			MaxBodyBytes:  25 << 20,
			MaxRedirects:  5,
			MaxRetries:    3,
			UserAgent:     "plancheck/0.3 (+https://github.com/ppiankov/plancheck)",
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   2000,
			Temperature: 0,
			Timeout:     120 * time.Second,
			MaxRetries:  3,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:    4,
			LLMWorkers: 3,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Store: StoreConfig{
			Backend:  "file",
			RulesDir: "rules",
		},
		Server: ServerConfig{
			Port:           3000,
			RequestTimeout: 5 * time.Minute,
			MaxUploadBytes: 50 << 20,
		},
		Output: OutputConfig{
			Directory: ".",
			Markdown:  false,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Extraction: ExtractionConfig{
			ChunkSize: 11000,
		},
	}
}
