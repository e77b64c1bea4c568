// Package llm adapts the OpenAI chat completions API to the engine's
// completion interfaces.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"deskagent/agent"
	logger "deskagent/logger/v2"
)

// Client implements agent.CompletionClient over the OpenAI chat
// completions endpoint.
type Client struct {
	api   openai.Client
	model string
	log   logger.Logger
}

// NewClient builds a completion client for the given model. baseURL is
// optional and overrides the default endpoint for compatible providers.
func NewClient(apiKey, baseURL, model string, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNoop()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: model,
		log:   log,
	}
}

// StreamCompletion starts a streamed chat completion over the
// conversation.
func (c *Client) StreamCompletion(ctx context.Context, turns []agent.Turn, tools []agent.ToolSchema) (agent.CompletionStream, error) {
	params, err := c.buildParams(turns, tools)
	if err != nil {
		return nil, err
	}
	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	return &chatStream{inner: stream}, nil
}

// Completion performs a single-shot chat completion.
func (c *Client) Completion(ctx context.Context, turns []agent.Turn, tools []agent.ToolSchema) (string, []agent.ToolCallRequest, error) {
	params, err := c.buildParams(turns, tools)
	if err != nil {
		return "", nil, err
	}
	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := completion.Choices[0].Message
	calls := make([]agent.ToolCallRequest, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, agent.ToolCallRequest{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			ArgumentsRaw: tc.Function.Arguments,
		})
	}
	return msg.Content, calls, nil
}

func (c *Client) buildParams(turns []agent.Turn, tools []agent.ToolSchema) (openai.ChatCompletionNewParams, error) {
	messages, err := buildMessages(turns)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
		params.ParallelToolCalls = openai.Bool(true)
	}
	return params, nil
}

func buildMessages(turns []agent.Turn) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(t.Text))
		case agent.RoleUser:
			out = append(out, openai.UserMessage(t.Text))
		case agent.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(t.Text))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(t.ToolCalls))
			for _, call := range t.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.ArgumentsRaw,
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if t.Text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(t.Text),
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case agent.RoleToolResult:
			out = append(out, openai.ToolMessage(t.Text, t.ToolCallID))
		default:
			return nil, fmt.Errorf("unknown turn role %q", t.Role)
		}
	}
	return out, nil
}

func buildTools(tools []agent.ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
		}
		if len(t.InputSchema) > 0 {
			var schema map[string]any
			if err := json.Unmarshal(t.InputSchema, &schema); err == nil {
				fn.Parameters = shared.FunctionParameters(schema)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

// chatStream adapts the SSE chunk stream to agent.CompletionStream,
// translating provider deltas into engine fragments.
type chatStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current agent.StreamFragment
}

func (s *chatStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		frag := agent.StreamFragment{TextChunk: delta.Content}
		for _, tc := range delta.ToolCalls {
			frag.ToolDeltas = append(frag.ToolDeltas, agent.ToolCallDelta{
				SlotIndex:      int(tc.Index),
				ID:             tc.ID,
				Name:           tc.Function.Name,
				ArgumentsChunk: tc.Function.Arguments,
			})
		}
		s.current = frag
		return true
	}
	return false
}

func (s *chatStream) Current() agent.StreamFragment {
	return s.current
}

func (s *chatStream) Err() error {
	return s.inner.Err()
}

func (s *chatStream) Close() error {
	return s.inner.Close()
}
