package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"deskagent/events"
	logger "deskagent/logger/v2"
)

// VisionPrompt steers the vision model toward the details the chat model
// needs to plan its next action.
const VisionPrompt = "Describe this screenshot in detail, focusing on visible text, UI elements, and overall layout."

// Augmentor rewrites screen-capture tool results into textual
// descriptions. Captures carry an image the chat model cannot read; the
// augmentor routes the image through a vision model and replaces the
// payload with prose.
type Augmentor struct {
	vision       VisionDescriber
	captureTools map[string]bool
	log          logger.Logger
	emitter      *events.Emitter
}

// NewAugmentor builds an augmentor that recognizes the named capture
// tools. With a nil describer augmentation is disabled and results pass
// through unchanged.
func NewAugmentor(vision VisionDescriber, captureTools []string, log logger.Logger, emitter *events.Emitter) *Augmentor {
	if log == nil {
		log = logger.NewNoop()
	}
	set := make(map[string]bool, len(captureTools))
	for _, name := range captureTools {
		set[name] = true
	}
	return &Augmentor{vision: vision, captureTools: set, log: log, emitter: emitter}
}

// Augment post-processes one tool result. Results from non-capture tools
// and failed calls are returned untouched. For a capture result the
// base64 image is described by the vision model; if description fails the
// raw payload is kept with a diagnostic note appended so the model still
// knows the capture itself succeeded.
func (a *Augmentor) Augment(ctx context.Context, roundID string, res ToolCallResult) ToolCallResult {
	if a.vision == nil || res.Failed() || !a.captureTools[res.Name] {
		return res
	}

	image, ok := extractCapturedImage(res.Content)
	if !ok {
		a.log.Warn("capture result has no image payload, passing through",
			logger.String("tool", res.Name),
			logger.String("call_id", res.CallID))
		return res
	}

	description, err := a.vision.Describe(ctx, image, VisionPrompt)
	if err != nil {
		a.log.Warn("vision analysis failed, keeping raw capture payload",
			logger.String("call_id", res.CallID),
			logger.String("error", err.Error()))
		a.emitter.Emit(roundID, events.VisionFallbackEvent{
			CallID: res.CallID,
			Error:  err.Error(),
		})
		res.Content = fmt.Sprintf("%s\n\nScreenshot captured but vision analysis failed: %v", res.Content, err)
		return res
	}

	a.log.Debug("capture result augmented with vision description",
		logger.String("call_id", res.CallID),
		logger.Int("description_len", len(description)))
	res.Content = fmt.Sprintf("Screenshot description: %s", description)
	return res
}

// AugmentAll applies Augment to each result, preserving order.
func (a *Augmentor) AugmentAll(ctx context.Context, roundID string, results []ToolCallResult) []ToolCallResult {
	out := make([]ToolCallResult, len(results))
	for i, res := range results {
		out[i] = a.Augment(ctx, roundID, res)
	}
	return out
}

// extractCapturedImage pulls the base64 image out of a capture result.
// Capture tools report JSON with a base64_data field.
func extractCapturedImage(content string) (string, bool) {
	var payload struct {
		Base64Data string `json:"base64_data"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", false
	}
	if payload.Base64Data == "" {
		return "", false
	}
	return payload.Base64Data, true
}
