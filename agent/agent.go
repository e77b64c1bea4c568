package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"deskagent/events"
	logger "deskagent/logger/v2"
)

// DefaultMaxIterations bounds how many completion/tool cycles a single
// round may take before it is cut off.
const DefaultMaxIterations = 10

// Agent drives rounds of conversation: user message in, streamed
// completions and tool dispatches in the middle, final assistant text out.
type Agent struct {
	client  CompletionClient
	history *History
	tools   []ToolSchema

	dispatcher *Dispatcher
	augmentor  *Augmentor

	log           logger.Logger
	emitter       *events.Emitter
	streaming     bool
	maxIterations int
}

// Option configures the agent at construction time.
type Option func(*Agent)

// WithLogger sets the agent logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithEmitter routes engine events to the emitter.
func WithEmitter(e *events.Emitter) Option {
	return func(a *Agent) { a.emitter = e }
}

// WithVision enables screenshot augmentation: results from the named
// capture tools are described by the vision model before entering the
// conversation.
func WithVision(vision VisionDescriber, captureTools []string) Option {
	return func(a *Agent) {
		a.augmentor = NewAugmentor(vision, captureTools, a.log, a.emitter)
	}
}

// WithStreaming toggles streamed completions. When disabled the agent
// falls back to single-shot completions.
func WithStreaming(enabled bool) Option {
	return func(a *Agent) { a.streaming = enabled }
}

// WithMaxIterations caps the completion/dispatch cycles per round.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// New assembles an agent around a completion client, a capability peer
// and a conversation history. Options are applied in order, so WithLogger
// and WithEmitter should come before WithVision.
func New(client CompletionClient, peer CapabilityPeer, history *History, tools []ToolSchema, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, fmt.Errorf("agent: completion client is required")
	}
	if history == nil {
		return nil, fmt.Errorf("agent: history is required")
	}

	a := &Agent{
		client:        client,
		history:       history,
		tools:         tools,
		log:           logger.NewNoop(),
		streaming:     true,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.dispatcher = NewDispatcher(peer, a.log, a.emitter)
	if a.augmentor == nil {
		a.augmentor = NewAugmentor(nil, nil, a.log, a.emitter)
	}
	a.history.OnEvict(func(evicted Turn, depth int) {
		a.emitter.Emit("", events.HistoryTrimmedEvent{
			EvictedRole: string(evicted.Role),
			Depth:       depth,
		})
	})
	return a, nil
}

// History exposes the conversation record, mainly for callers that want
// to inspect depth between rounds.
func (a *Agent) History() *History {
	return a.history
}

// RunRound processes one user message to its final assistant reply. The
// model may request any number of tool batches in between; each batch is
// executed, augmented and fed back before the model is consulted again.
//
// Completion transport errors abort the round before any assistant turn
// is recorded, so the round can be retried. A history invariant violation
// is fatal and the conversation should be discarded.
func (a *Agent) RunRound(ctx context.Context, userMessage string) (string, error) {
	roundID := uuid.NewString()
	a.emitter.Emit(roundID, events.RoundStartEvent{UserMessage: userMessage})
	a.log.Info("round started",
		logger.String("round_id", roundID),
		logger.Int("history_depth", a.history.Len()))

	a.history.Append(UserTurn(userMessage))

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		// Mid-round eviction can in principle leave a tool result at
		// index 1, so the invariant is checked before every
		// consultation, not once per round.
		if err := a.history.Validate(); err != nil {
			a.emitter.Emit(roundID, events.RoundErrorEvent{Error: err.Error()})
			return "", err
		}

		text, calls, err := a.complete(ctx, roundID)
		if err != nil {
			a.emitter.Emit(roundID, events.RoundErrorEvent{Error: err.Error()})
			return "", err
		}

		a.history.Append(AssistantTurn(text, calls))

		if len(calls) == 0 {
			if text == "" {
				a.log.Warn("model returned an empty response",
					logger.String("round_id", roundID))
				text = "(the model returned an empty response)"
			}
			a.emitter.Emit(roundID, events.RoundEndEvent{Reply: text, Iterations: iteration})
			a.log.Info("round complete",
				logger.String("round_id", roundID),
				logger.Int("iterations", iteration))
			return text, nil
		}

		a.log.Debug("dispatching tool batch",
			logger.String("round_id", roundID),
			logger.Int("calls", len(calls)))

		results, err := a.dispatcher.Dispatch(ctx, roundID, calls)
		if err != nil {
			rerr := roundErr(KindPeerFailure, "dispatch", err)
			a.emitter.Emit(roundID, events.RoundErrorEvent{Error: rerr.Error()})
			return "", rerr
		}
		results = a.augmentor.AugmentAll(ctx, roundID, results)

		for _, res := range results {
			a.history.Append(ToolResultTurn(res.CallID, res.Name, res.Body()))
		}
	}

	err := roundErr(KindTransport, "round",
		fmt.Errorf("no final reply after %d iterations", a.maxIterations))
	a.emitter.Emit(roundID, events.RoundErrorEvent{Error: err.Error()})
	return "", err
}

// complete runs one model consultation, streamed or single-shot.
func (a *Agent) complete(ctx context.Context, roundID string) (string, []ToolCallRequest, error) {
	turns := a.history.Snapshot()

	if !a.streaming {
		text, calls, err := a.client.Completion(ctx, turns, a.tools)
		if err != nil {
			return "", nil, roundErr(KindTransport, "completion", err)
		}
		return text, calls, nil
	}

	stream, err := a.client.StreamCompletion(ctx, turns, a.tools)
	if err != nil {
		return "", nil, roundErr(KindTransport, "completion.stream", err)
	}
	defer func() { _ = stream.Close() }()

	assembler := NewAssembler(a.log)
	for stream.Next() {
		frag := stream.Current()
		if frag.TextChunk != "" {
			a.emitter.Emit(roundID, events.StreamingChunkEvent{Text: frag.TextChunk})
		}
		assembler.Apply(frag)
	}
	if err := stream.Err(); err != nil {
		return "", nil, roundErr(KindTransport, "completion.stream", err)
	}

	text, calls := assembler.Finish()
	return text, calls, nil
}
