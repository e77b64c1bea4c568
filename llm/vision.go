package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	logger "deskagent/logger/v2"
)

// Vision implements agent.VisionDescriber using a chat completion with an
// inline image part. Screenshots from capture tools are PNG.
type Vision struct {
	api   openai.Client
	model string
	log   logger.Logger
}

// NewVision builds a vision describer for the given model.
func NewVision(apiKey, baseURL, model string, log logger.Logger) *Vision {
	if log == nil {
		log = logger.NewNoop()
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Vision{
		api:   openai.NewClient(opts...),
		model: model,
		log:   log,
	}
}

// Describe sends the base64-encoded PNG to the vision model and returns
// its textual description.
func (v *Vision) Describe(ctx context.Context, imageBase64, prompt string) (string, error) {
	dataURL := fmt.Sprintf("data:image/png;base64,%s", imageBase64)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	completion, err := v.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}

	description := completion.Choices[0].Message.Content
	v.log.Debug("vision description complete",
		logger.Int("image_b64_len", len(imageBase64)),
		logger.Int("description_len", len(description)))
	return description, nil
}
