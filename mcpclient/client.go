package mcpclient

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	logger "deskagent/logger/v2"
)

const protocolVersion = "2024-11-05"

// Client is a connection to one MCP server.
type Client struct {
	name      string
	config    ServerConfig
	mcpClient *client.Client
	log       logger.Logger
}

// New prepares a client for the named server. Connect must be called
// before any other method.
func New(name string, config ServerConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Client{name: name, config: config, log: log}
}

// Connect establishes the connection with retry and completes the MCP
// initialization handshake.
func (c *Client) Connect(ctx context.Context) error {
	const maxRetries = 3
	baseDelay := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * baseDelay
			c.log.Debug("retrying MCP connection",
				logger.String("server", c.name),
				logger.Int("attempt", attempt),
				logger.String("delay", delay.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.connectOnce(ctx); err != nil {
			lastErr = err
			c.log.Warn("MCP connection attempt failed",
				logger.String("server", c.name),
				logger.Int("attempt", attempt),
				logger.String("error", err.Error()))
			continue
		}

		c.log.Info("connected to MCP server",
			logger.String("server", c.name),
			logger.String("protocol", string(c.config.GetProtocol())))
		return nil
	}
	return fmt.Errorf("failed to connect to MCP server %q after %d attempts: %w", c.name, maxRetries, lastErr)
}

func (c *Client) connectOnce(ctx context.Context) error {
	mcpClient, err := c.createClient(ctx)
	if err != nil {
		return err
	}

	_, err = mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "deskagent",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		_ = mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP connection: %w", err)
	}

	c.mcpClient = mcpClient
	return nil
}

func (c *Client) createClient(ctx context.Context) (*client.Client, error) {
	switch c.config.GetProtocol() {
	case ProtocolSSE:
		var options []transport.ClientOption
		if len(c.config.Headers) > 0 {
			options = append(options, transport.WithHeaders(c.config.Headers))
		}
		sseTransport, err := transport.NewSSE(c.config.URL, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE transport: %w", err)
		}
		mcpClient := client.NewClient(sseTransport)
		// Start with the background context so the stream outlives the
		// connect call's context.
		if err := mcpClient.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to start SSE client: %w", err)
		}
		return mcpClient, nil

	case ProtocolHTTP:
		var options []transport.StreamableHTTPCOption
		if len(c.config.Headers) > 0 {
			options = append(options, transport.WithHTTPHeaders(c.config.Headers))
		}
		httpTransport, err := transport.NewStreamableHTTP(c.config.URL, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP transport: %w", err)
		}
		mcpClient := client.NewClient(httpTransport)
		if err := mcpClient.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to start HTTP client: %w", err)
		}
		return mcpClient, nil

	default:
		mcpClient, err := client.NewStdioMCPClient(c.config.Command, mergedEnv(c.config.Env), c.config.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client: %w", err)
		}
		return mcpClient, nil
	}
}

// mergedEnv layers the config env vars over the process environment.
func mergedEnv(override map[string]string) []string {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		if idx := strings.IndexByte(e, '='); idx > 0 {
			envMap[e[:idx]] = e[idx+1:]
		}
	}
	for key, value := range override {
		envMap[key] = value
	}
	env := make([]string, 0, len(envMap))
	for key, value := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

// ListTools returns the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if c.mcpClient == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.name)
	}
	result, err := c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools from %q: %w", c.name, err)
	}
	c.log.Debug("listed MCP tools",
		logger.String("server", c.name),
		logger.Int("count", len(result.Tools)))
	return result.Tools, nil
}

// CallTool invokes a tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	if c.mcpClient == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.name)
	}
	result, err := c.mcpClient.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %q on %q failed: %w", name, c.name, err)
	}
	return result, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.mcpClient == nil {
		return nil
	}
	err := c.mcpClient.Close()
	c.mcpClient = nil
	return err
}
