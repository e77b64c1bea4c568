// Package mcpclient connects the engine to MCP capability servers over
// stdio, SSE or streamable HTTP, and adapts their tools and results to
// the engine's types.
package mcpclient

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	logger "deskagent/logger/v2"
)

// ProtocolType defines the connection protocol
type ProtocolType string

const (
	ProtocolStdio ProtocolType = "stdio"
	ProtocolSSE   ProtocolType = "sse"
	ProtocolHTTP  ProtocolType = "http"
)

// ServerConfig describes one MCP server entry.
type ServerConfig struct {
	Command  string            `json:"command,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Protocol ProtocolType      `json:"protocol,omitempty"`
	// SSE/HTTP specific fields
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// GetProtocol resolves the connection protocol, detecting it from the URL
// when it is not set explicitly.
func (c *ServerConfig) GetProtocol() ProtocolType {
	if c.Protocol != "" {
		return c.Protocol
	}
	if c.URL != "" {
		if strings.Contains(c.URL, "/sse") {
			return ProtocolSSE
		}
		if strings.HasPrefix(c.URL, "http://") || strings.HasPrefix(c.URL, "https://") {
			return ProtocolHTTP
		}
	}
	return ProtocolStdio
}

// Config is the on-disk MCP configuration. It follows the mcpServers
// layout used by MCP-aware clients.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads an mcpServers JSON file. An empty path yields an empty
// config, meaning no capability servers.
func LoadConfig(configPath string, log logger.Logger) (*Config, error) {
	if log == nil {
		log = logger.NewNoop()
	}
	if configPath == "" {
		log.Debug("no MCP config path, running without capability servers")
		return &Config{MCPServers: make(map[string]ServerConfig)}, nil
	}

	//nolint:gosec // G304: configPath comes from command-line/config, not user input
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	log.Debug("MCP config loaded",
		logger.String("config_path", configPath),
		logger.Int("servers", len(config.MCPServers)))
	return &config, nil
}

// GetServer looks up a server entry by name.
func (c *Config) GetServer(name string) (ServerConfig, error) {
	server, ok := c.MCPServers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("MCP server %q not found in config (available: %s)",
			name, strings.Join(c.ListServers(), ", "))
	}
	return server, nil
}

// ListServers returns the configured server names in sorted order.
func (c *Config) ListServers() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
