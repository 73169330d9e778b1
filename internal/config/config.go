// Package config assembles the process configuration from the environment:
// a single Config struct composed of sub-configs, populated by Load from
// os.Getenv with typed defaults, plus an embedded YAML file of
// option-schema defaults.
package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config is the process-wide configuration.
type Config struct {
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Defaults DefaultsConfig
}

// ServerConfig is the HTTP bind address.
type ServerConfig struct {
	Host string // APP_BACKEND_HOST, default 127.0.0.1
	Port int    // APP_BACKEND_PORT, default 5123
}

// OpenAIConfig carries the text-embedding provider credential. Never logged.
type OpenAIConfig struct {
	APIKey string
}

// DefaultsConfig is the embedded options-schema defaults, parsed from
// defaults.yaml into Config.Defaults. catalog.DefaultJobOptions does not
// read it; it takes its values from the constants package.
type DefaultsConfig struct {
	JobOptions struct {
		Thumb struct {
			Width     int `yaml:"width"`
			Height43  int `yaml:"height_4_3"`
			Height169 int `yaml:"height_16_9"`
			RenderDPI int `yaml:"render_dpi"`
		} `yaml:"thumb"`
		PDF struct {
			TimeoutSec     int    `yaml:"timeout_sec"`
			MaxConcurrency int    `yaml:"max_concurrency"`
			Prefer         string `yaml:"prefer"`
		} `yaml:"pdf"`
		Embed struct {
			ModelText      string `yaml:"model_text"`
			ModelImage     string `yaml:"model_image"`
			MaxConcurrency int    `yaml:"max_concurrency"`
			BatchSize      int    `yaml:"batch_size"`
			ReqPerMin      int    `yaml:"req_per_min"`
			TokPerMin      int    `yaml:"tok_per_min"`
			MaxRetries     int    `yaml:"max_retries"`
		} `yaml:"embed"`
		CommitEveryPages int     `yaml:"commit_every_pages"`
		CommitEverySec   float64 `yaml:"commit_every_sec"`
	} `yaml:"job_options"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load builds the process configuration from environment variables and the
// embedded defaults.yaml.
func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// An embedded file failing to parse is a build-time defect, not a
		// runtime condition to recover from.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			Host: envString("APP_BACKEND_HOST", "127.0.0.1"),
			Port: envInt("APP_BACKEND_PORT", 5123),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Defaults: defaults,
	}
}
