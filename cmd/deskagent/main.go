// deskagent is the interactive desktop control agent. It connects to an
// MCP capability server, exposes its tools to the chat model and runs
// rounds of conversation until the user quits.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"deskagent/agent"
	"deskagent/config"
	"deskagent/events"
	"deskagent/llm"
	logger "deskagent/logger/v2"
	"deskagent/mcpclient"
)

const systemPrompt = `You are a helpful AI assistant designed to control the user's desktop via function calls.

**Core Functionality:**
* Analyze user requests carefully.
* Break down complex tasks (like finding a window, typing in it, and then moving it) into a sequence of individual tool calls.
* Use the available tools step-by-step to fulfill the request.
* Execute tools sequentially unless the user explicitly asks for parallel actions *and* the actions are independent.

**Tool Usage Guidelines:**
* **find_window**: Use this first to locate a window by its title before interacting with it. Note the returned coordinates (x, y) and dimensions.
* **move_mouse**: Moves the cursor to absolute coordinates.
* **mouse_action**: Performs clicks, presses, or releases.
    * Click: button: "left", click_type: "Click" (or omit click_type).
    * Press & Hold: button: "left", click_type: "Press".
    * Release: button: "left", click_type: "Release".
* **keyboard_action**: Types text or simulates key presses (like Enter, Ctrl+C).
* **run_shell_command**: Executes commands like opening applications (e.g., command: "notepad").
* **capture_screen**: Captures the screen. Use the resulting text description (which includes vision model analysis) for subsequent analysis or actions. Do not attempt to interpret the base64 data directly.

**Complex Actions (Example: Dragging a Window):**
1. Use find_window to get the window's position (e.g., title bar coordinates x, y).
2. Call move_mouse to position the cursor on the title bar (e.g., x, y + 10).
3. Call wait(duration_ms=150) to ensure the cursor is settled.
4. Call mouse_action with button: "left", click_type: "Press" to grab the title bar.
5. Call wait(duration_ms=100) to ensure the press is registered.
6. Call move_mouse to the *new* desired window position (e.g., new_x, new_y + 10).
7. Call wait(duration_ms=100) to ensure the move is complete.
8. Call mouse_action with button: "left", click_type: "Release" to drop the window.

**Interaction:**
* Ask for clarification if a request is ambiguous or requires information you don't have (e.g., "Where should I move the window?").
* Inform the user upon successful completion of the overall task.
* Report any errors encountered during tool execution.`

var (
	configFile string
	logLevel   string
	chatModel  string
)

var rootCmd = &cobra.Command{
	Use:   "deskagent",
	Short: "LLM-driven desktop control agent",
	Long:  "deskagent runs an interactive loop where an LLM controls a desktop through MCP tool calls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file (yaml/json)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&chatModel, "model", "", "chat model override")
}

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if chatModel != "" {
		cfg.ChatModel = chatModel
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	mcpConfig, err := mcpclient.LoadConfig(cfg.MCPConfig, log)
	if err != nil {
		return err
	}
	serverConfig, err := mcpConfig.GetServer(cfg.MCPServer)
	if err != nil {
		return err
	}

	mcpClient := mcpclient.New(cfg.MCPServer, serverConfig, log)
	if err := mcpClient.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = mcpClient.Close() }()

	mcpTools, err := mcpClient.ListTools(ctx)
	if err != nil {
		return err
	}
	tools := mcpclient.ConvertTools(mcpTools)
	log.Info("capability server ready", logger.Int("tools", len(tools)))

	emitter := events.NewEmitter()
	emitter.AddObserver(events.ObserverFunc(printEvent))

	history, err := agent.NewHistory(systemPrompt, cfg.MaxHistoryDepth, log)
	if err != nil {
		return err
	}

	chatClient := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, log)
	vision := llm.NewVision(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.VisionModel, log)
	peer := mcpclient.NewPeer(mcpClient)

	a, err := agent.New(chatClient, peer, history, tools,
		agent.WithLogger(log),
		agent.WithEmitter(emitter),
		agent.WithVision(vision, cfg.CaptureTools),
		agent.WithStreaming(cfg.Streaming),
		agent.WithMaxIterations(cfg.MaxIterations),
	)
	if err != nil {
		return err
	}

	return interact(ctx, a, log)
}

// interact runs the read/round loop until the user quits or a fatal
// error invalidates the conversation.
func interact(ctx context.Context, a *agent.Agent, log logger.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("deskagent ready. Type a request, or 'quit' to exit.")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			fmt.Println("bye")
			return nil
		}

		reply, err := a.RunRound(ctx, input)
		if err != nil {
			var rerr *agent.RoundError
			if errors.As(err, &rerr) && rerr.Fatal() {
				return fmt.Errorf("conversation corrupted: %w", err)
			}
			log.Error("round failed", err)
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n", reply)
	}
}

// printEvent renders progress for the interactive session. Streaming
// chunks are written inline; tool activity gets one line each.
func printEvent(event *events.Event) {
	switch data := event.Data.(type) {
	case events.StreamingChunkEvent:
		fmt.Print(data.Text)
	case events.ToolCallStartEvent:
		fmt.Printf("\n[tool] %s %s\n", data.ToolName, data.Arguments)
	case events.ToolCallErrorEvent:
		fmt.Printf("[tool] %s failed: %s\n", data.ToolName, data.Error)
	case events.VisionFallbackEvent:
		fmt.Printf("[vision] analysis failed: %s\n", data.Error)
	}
}
