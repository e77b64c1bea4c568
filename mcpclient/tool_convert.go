package mcpclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"deskagent/agent"
)

// emptyObjectSchema replaces missing or empty tool schemas. The chat
// completions API rejects function definitions without a valid object
// schema, so parameterless tools get an explicit empty one.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ConvertTools maps the server's tool list to the engine's schema type,
// patching parameterless tools with an empty object schema.
func ConvertTools(tools []mcp.Tool) []agent.ToolSchema {
	out := make([]agent.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, agent.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: patchSchema(t.InputSchema),
		})
	}
	return out
}

func patchSchema(schema mcp.ToolInputSchema) []byte {
	raw, err := json.Marshal(schema)
	if err != nil {
		return emptyObjectSchema
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return emptyObjectSchema
	}
	if parsed["type"] != "object" {
		return emptyObjectSchema
	}
	if props, ok := parsed["properties"].(map[string]any); !ok || len(props) == 0 {
		return emptyObjectSchema
	}
	return raw
}

// ToolResultAsString flattens an MCP tool result into text. Text content
// blocks are joined; non-text blocks are summarized by type so the model
// knows something was returned.
func ToolResultAsString(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image content: %s, %d bytes base64]", c.MIMEType, len(c.Data)))
		case *mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		default:
			parts = append(parts, fmt.Sprintf("[unsupported content type %T]", content))
		}
	}
	return strings.Join(parts, "\n")
}
