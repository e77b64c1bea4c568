package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"deskagent/events"
	logger "deskagent/logger/v2"
)

// callPlan is the per-call execution plan built during the sequential
// preparation phase. Calls whose arguments fail to parse are marked
// skipExecution with the error already rendered; they never reach the
// peer but still produce a result slot.
type callPlan struct {
	request       ToolCallRequest
	args          map[string]any
	skipExecution bool
	preError      string
}

// Dispatcher runs a batch of tool calls against the capability peer. All
// executable calls run concurrently; results come back in request order
// with exactly one entry per request.
type Dispatcher struct {
	peer    CapabilityPeer
	log     logger.Logger
	emitter *events.Emitter
}

// NewDispatcher wires a dispatcher to a peer. Logger may be nil; emitter
// may be nil to disable event emission.
func NewDispatcher(peer CapabilityPeer, log logger.Logger, emitter *events.Emitter) *Dispatcher {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Dispatcher{peer: peer, log: log, emitter: emitter}
}

// Dispatch executes the batch and returns one result per request, in the
// same order. A failed call is reported inside its result, never as a
// batch error; the returned error is reserved for a nil peer.
func (d *Dispatcher) Dispatch(ctx context.Context, roundID string, requests []ToolCallRequest) ([]ToolCallResult, error) {
	if d.peer == nil {
		return nil, fmt.Errorf("dispatch: no capability peer configured")
	}
	if len(requests) == 0 {
		return nil, nil
	}

	// Phase 1: sequential preparation. Argument parsing happens here so
	// a malformed call fails deterministically without spawning work.
	plans := make([]callPlan, len(requests))
	for i, req := range requests {
		plan := callPlan{request: req}
		args, err := parseArguments(req.ArgumentsRaw, d.log, req.Name)
		if err != nil {
			plan.skipExecution = true
			plan.preError = fmt.Sprintf("invalid tool arguments for %s: %v (raw: %s)",
				req.Name, err, req.ArgumentsRaw)
		} else {
			plan.args = args
		}
		plans[i] = plan
	}

	// Phase 2: parallel execution into pre-allocated slots. Each
	// goroutine writes only its own index, so no locking is needed.
	results := make([]ToolCallResult, len(plans))
	var wg sync.WaitGroup
	for i := range plans {
		plan := plans[i]
		if plan.skipExecution {
			results[i] = ToolCallResult{
				CallID:       plan.request.ID,
				Name:         plan.request.Name,
				ErrorMessage: plan.preError,
			}
			continue
		}

		wg.Add(1)
		go func(idx int, plan callPlan) {
			defer wg.Done()
			results[idx] = d.executeOne(ctx, roundID, plan)
		}(i, plan)
	}
	wg.Wait()

	// Phase 3: sequential assembly. Log and emit in request order so
	// observers see a deterministic sequence.
	for _, res := range results {
		if res.Failed() {
			d.log.Warn("tool call failed",
				logger.String("tool", res.Name),
				logger.String("call_id", res.CallID),
				logger.String("error", res.ErrorMessage))
			d.emitter.Emit(roundID, events.ToolCallErrorEvent{
				CallID:   res.CallID,
				ToolName: res.Name,
				Error:    res.ErrorMessage,
			})
		}
	}
	return results, nil
}

func (d *Dispatcher) executeOne(ctx context.Context, roundID string, plan callPlan) ToolCallResult {
	start := time.Now()
	d.emitter.Emit(roundID, events.ToolCallStartEvent{
		CallID:    plan.request.ID,
		ToolName:  plan.request.Name,
		Arguments: plan.request.ArgumentsRaw,
	})
	d.log.Debug("invoking tool",
		logger.String("tool", plan.request.Name),
		logger.String("call_id", plan.request.ID))

	content, err := d.peer.Invoke(ctx, plan.request.Name, plan.args)
	if err != nil {
		return ToolCallResult{
			CallID:       plan.request.ID,
			Name:         plan.request.Name,
			ErrorMessage: fmt.Sprintf("tool %s failed: %v", plan.request.Name, err),
		}
	}

	d.emitter.Emit(roundID, events.ToolCallEndEvent{
		CallID:   plan.request.ID,
		ToolName: plan.request.Name,
		Duration: time.Since(start),
		Size:     len(content),
	})
	d.log.Debug("tool call complete",
		logger.String("tool", plan.request.Name),
		logger.Duration("duration", time.Since(start)),
		logger.Int("result_bytes", len(content)))
	return ToolCallResult{
		CallID:  plan.request.ID,
		Name:    plan.request.Name,
		Content: content,
	}
}

// parseArguments turns the streamed argument text into a map. Empty text
// means a parameterless call. Valid JSON that is not an object is
// tolerated as an empty argument set; text that is not JSON at all is an
// error the caller reports back to the model.
func parseArguments(raw string, log logger.Logger, toolName string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	var asMap map[string]any
	if err := json.Unmarshal([]byte(raw), &asMap); err == nil {
		return asMap, nil
	}

	var asAny any
	if err := json.Unmarshal([]byte(raw), &asAny); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}

	log.Warn("tool arguments are valid JSON but not an object, treating as empty",
		logger.String("tool", toolName),
		logger.String("raw", raw))
	return map[string]any{}, nil
}
