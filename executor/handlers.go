package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolDef pairs a tool declaration with the desktop method serving it.
type toolDef struct {
	name        string
	description string
	schema      json.RawMessage
	handle      func(d *Desktop, args map[string]any) (string, error)
}

var desktopTools = []toolDef{
	{
		name:        "find_window",
		description: "Locate a window by title (substring match). Returns its position and size.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"title":{"type":"string","description":"Window title to search for"}
		},"required":["title"]}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.FindWindow(stringArg(args, "title"))
		},
	},
	{
		name:        "move_mouse",
		description: "Move the cursor to absolute screen coordinates.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"x":{"type":"integer"},
			"y":{"type":"integer"}
		},"required":["x","y"]}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.MoveMouse(intArg(args, "x"), intArg(args, "y"))
		},
	},
	{
		name:        "mouse_action",
		description: "Perform a click, press or release at the current cursor position. Press and release on a title bar drag the window.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"button":{"type":"string","enum":["left","right","middle"]},
			"click_type":{"type":"string","enum":["Click","Press","Release"]}
		},"required":["button"]}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.MouseAction(stringArg(args, "button"), stringArg(args, "click_type"))
		},
	},
	{
		name:        "scroll",
		description: "Scroll at the current cursor position.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"delta_x":{"type":"integer"},
			"delta_y":{"type":"integer"}
		}}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.Scroll(intArg(args, "delta_x"), intArg(args, "delta_y"))
		},
	},
	{
		name:        "keyboard_action",
		description: "Type text or press a key (e.g. Enter, Ctrl+C) in the focused window.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"text":{"type":"string","description":"Text to type"},
			"key":{"type":"string","description":"Key or chord to press"}
		}}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.KeyboardAction(stringArg(args, "text"), stringArg(args, "key"))
		},
	},
	{
		name:        "run_shell_command",
		description: "Execute a shell command, e.g. to open an application.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"command":{"type":"string"}
		},"required":["command"]}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.RunShellCommand(stringArg(args, "command"))
		},
	},
	{
		name:        "wait",
		description: "Pause between actions.",
		schema: json.RawMessage(`{"type":"object","properties":{
			"duration_ms":{"type":"integer"}
		},"required":["duration_ms"]}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.Wait(intArg(args, "duration_ms"))
		},
	},
	{
		name:        "capture_screen",
		description: "Capture the screen as a base64 PNG.",
		schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		handle: func(d *Desktop, args map[string]any) (string, error) {
			return d.CaptureScreen()
		},
	},
}

// RegisterDesktopTools adds every desktop tool to the MCP server, bound
// to the given desktop instance.
func RegisterDesktopTools(s *server.MCPServer, d *Desktop) {
	for _, td := range desktopTools {
		def := td
		tool := mcp.NewToolWithRawSchema(def.name, def.description, def.schema)
		s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := def.handle(d, req.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%s: %v", def.name, err)), nil
			}
			return mcp.NewToolResultText(result), nil
		})
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// intArg tolerates the float64 numbers JSON decoding produces.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}
