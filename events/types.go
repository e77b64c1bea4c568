// Package events carries typed notifications out of the orchestration
// engine so callers can render progress without coupling to its internals.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names each notification the engine emits.
type EventType string

const (
	// Round events
	RoundStart EventType = "round_start"
	RoundEnd   EventType = "round_end"
	RoundError EventType = "round_error"

	// Streaming events
	StreamingChunk EventType = "streaming_chunk"

	// Tool events
	ToolCallStart EventType = "tool_call_start"
	ToolCallEnd   EventType = "tool_call_end"
	ToolCallError EventType = "tool_call_error"

	// History events
	HistoryTrimmed EventType = "history_trimmed"

	// Vision events
	VisionFallback EventType = "vision_fallback"
)

// EventData is implemented by every typed payload.
type EventData interface {
	EventDataType() EventType
}

// Event wraps a typed payload with routing metadata. RoundID groups every
// event spawned by a single round.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	RoundID   string
	Data      EventData
}

// RoundStartEvent marks the beginning of a round with the user message
// that started it.
type RoundStartEvent struct {
	UserMessage string
}

func (RoundStartEvent) EventDataType() EventType { return RoundStart }

// RoundEndEvent carries the final assistant reply and how many model
// iterations the round took.
type RoundEndEvent struct {
	Reply      string
	Iterations int
}

func (RoundEndEvent) EventDataType() EventType { return RoundEnd }

// RoundErrorEvent reports a round that ended in failure.
type RoundErrorEvent struct {
	Error string
}

func (RoundErrorEvent) EventDataType() EventType { return RoundError }

// StreamingChunkEvent carries a piece of reply text as it streams.
type StreamingChunkEvent struct {
	Text string
}

func (StreamingChunkEvent) EventDataType() EventType { return StreamingChunk }

// ToolCallStartEvent marks a tool invocation being handed to the peer.
type ToolCallStartEvent struct {
	CallID    string
	ToolName  string
	Arguments string
}

func (ToolCallStartEvent) EventDataType() EventType { return ToolCallStart }

// ToolCallEndEvent carries the result of a successful tool invocation.
type ToolCallEndEvent struct {
	CallID   string
	ToolName string
	Duration time.Duration
	Size     int
}

func (ToolCallEndEvent) EventDataType() EventType { return ToolCallEnd }

// ToolCallErrorEvent reports a failed tool invocation.
type ToolCallErrorEvent struct {
	CallID   string
	ToolName string
	Error    string
}

func (ToolCallErrorEvent) EventDataType() EventType { return ToolCallError }

// HistoryTrimmedEvent reports a turn evicted to honor the depth limit.
type HistoryTrimmedEvent struct {
	EvictedRole string
	Depth       int
}

func (HistoryTrimmedEvent) EventDataType() EventType { return HistoryTrimmed }

// VisionFallbackEvent reports a screenshot whose vision description
// failed, leaving the raw capture payload in the conversation.
type VisionFallbackEvent struct {
	CallID string
	Error  string
}

func (VisionFallbackEvent) EventDataType() EventType { return VisionFallback }

// GenerateEventID returns a unique event identifier.
func GenerateEventID() string {
	return fmt.Sprintf("evt_%s", uuid.NewString())
}
