// Package config loads engine settings from config file, environment and
// defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the agent binary needs to run.
type Config struct {
	// OpenAIAPIKey authenticates against the completion provider.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	// OpenAIBaseURL overrides the provider endpoint. Optional.
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	ChatModel   string `mapstructure:"chat_model"`
	VisionModel string `mapstructure:"vision_model"`

	// MaxHistoryDepth bounds the conversation length. Minimum 2.
	MaxHistoryDepth int `mapstructure:"max_history_depth"`
	// MaxIterations caps completion/tool cycles per round.
	MaxIterations int `mapstructure:"max_iterations"`
	// Streaming toggles streamed completions.
	Streaming bool `mapstructure:"streaming"`

	// CaptureTools names the tools whose results get vision augmentation.
	CaptureTools []string `mapstructure:"capture_tools"`

	// MCPConfig is the path to the mcpServers JSON file.
	MCPConfig string `mapstructure:"mcp_config"`
	// MCPServer is the server entry to connect to.
	MCPServer string `mapstructure:"mcp_server"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig mirrors the logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load reads configuration with the precedence env > config file >
// defaults. Environment variables use the DESKAGENT_ prefix with
// underscores, e.g. DESKAGENT_CHAT_MODEL.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("chat_model", "gpt-4.1-mini")
	v.SetDefault("vision_model", "gpt-4.1-nano")
	v.SetDefault("max_history_depth", 15)
	v.SetDefault("max_iterations", 10)
	v.SetDefault("streaming", true)
	v.SetDefault("capture_tools", []string{"capture_screen"})
	v.SetDefault("mcp_config", "mcp.json")
	v.SetDefault("mcp_server", "desktop")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	v.SetEnvPrefix("DESKAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// OPENAI_API_KEY is the conventional name; honor it without prefix.
	_ = v.BindEnv("openai_api_key", "DESKAGENT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openai_base_url", "DESKAGENT_OPENAI_BASE_URL", "OPENAI_BASE_URL")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values for internal consistency.
func (c *Config) Validate() error {
	if c.MaxHistoryDepth < 2 {
		return fmt.Errorf("max_history_depth must be at least 2, got %d", c.MaxHistoryDepth)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("chat_model must not be empty")
	}
	return nil
}
