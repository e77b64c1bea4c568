// Package agent implements the tool-call orchestration loop: it streams
// model output, assembles tool-call fragments into complete requests,
// dispatches them to a capability peer, and feeds results back into the
// conversation until the model replies with plain text.
package agent

import "context"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool"
)

// ToolCallRequest is a fully assembled tool invocation the model asked for.
// ArgumentsRaw is the verbatim JSON argument text as streamed by the model;
// it is parsed at dispatch time so malformed arguments fail per call, not
// per round.
type ToolCallRequest struct {
	ID           string
	Name         string
	ArgumentsRaw string
}

// ToolCallResult is the outcome of executing a single tool call.
// Exactly one of Content or ErrorMessage carries the payload; ErrorMessage
// is non-empty when the call failed (bad arguments, peer error, transport).
type ToolCallResult struct {
	CallID       string
	Name         string
	Content      string
	ErrorMessage string
}

// Failed reports whether the call produced an error instead of content.
func (r ToolCallResult) Failed() bool {
	return r.ErrorMessage != ""
}

// Body returns the text that should be recorded in the conversation for
// this result: the content on success, the error message on failure.
func (r ToolCallResult) Body() string {
	if r.Failed() {
		return r.ErrorMessage
	}
	return r.Content
}

// Turn is one entry in the conversation history.
type Turn struct {
	Role Role
	Text string

	// ToolCalls is set on assistant turns that requested tool execution.
	ToolCalls []ToolCallRequest

	// ToolCallID links a tool-result turn back to the assistant request
	// it answers. Set only when Role is RoleToolResult.
	ToolCallID string

	// ToolName is the tool that produced a tool-result turn.
	ToolName string
}

// SystemTurn, UserTurn, AssistantTurn and ToolResultTurn are the
// constructors used throughout the engine; building Turn literals by hand
// is reserved for tests.

func SystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Text: text}
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func AssistantTurn(text string, calls []ToolCallRequest) Turn {
	return Turn{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

func ToolResultTurn(callID, toolName, body string) Turn {
	return Turn{Role: RoleToolResult, Text: body, ToolCallID: callID, ToolName: toolName}
}

// ToolSchema describes one tool the model may call. InputSchema is the raw
// JSON Schema for the tool's arguments, passed through to the model
// unmodified.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema []byte
}

// ToolCallDelta is one streamed fragment of a tool call. SlotIndex groups
// fragments belonging to the same call; ID and Name may arrive on any
// fragment (or never), and ArgumentsChunk carries a piece of the JSON
// argument text.
type ToolCallDelta struct {
	SlotIndex      int
	ID             string
	Name           string
	ArgumentsChunk string
}

// StreamFragment is one chunk of a streamed completion: free text, tool
// call fragments, or both.
type StreamFragment struct {
	TextChunk  string
	ToolDeltas []ToolCallDelta
}

// CompletionStream yields fragments of a single model completion. The
// usage pattern follows the SSE stream readers: Next advances, Current
// returns the fragment, Err reports the terminal error after Next returns
// false.
type CompletionStream interface {
	Next() bool
	Current() StreamFragment
	Err() error
	Close() error
}

// CompletionClient produces model completions over a conversation.
type CompletionClient interface {
	// StreamCompletion starts a streamed completion. The caller owns the
	// returned stream and must drain or close it.
	StreamCompletion(ctx context.Context, turns []Turn, tools []ToolSchema) (CompletionStream, error)

	// Completion performs a single-shot completion, returning the reply
	// text and any tool calls the model requested.
	Completion(ctx context.Context, turns []Turn, tools []ToolSchema) (string, []ToolCallRequest, error)
}

// CapabilityPeer executes a named tool with parsed arguments and returns
// the textual result. Implementations wrap the remote capability provider.
type CapabilityPeer interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// VisionDescriber turns a base64-encoded image into a textual description.
type VisionDescriber interface {
	Describe(ctx context.Context, imageBase64, prompt string) (string, error)
}
