// desktopd is a stdio MCP server exposing a simulated desktop. deskagent
// launches it as a subprocess via its mcpServers config.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"deskagent/executor"
)

func main() {
	s := server.NewMCPServer("desktopd", "1.0.0",
		server.WithToolCapabilities(false),
	)

	desktop := executor.NewDesktop(1920, 1080)
	executor.RegisterDesktopTools(s, desktop)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("desktopd exited: %v", err)
	}
}
