package agent_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"deskagent/agent"
	"deskagent/events"
)

// fakeStream replays canned fragments.
type fakeStream struct {
	fragments []agent.StreamFragment
	pos       int
	err       error
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Current() agent.StreamFragment { return s.fragments[s.pos-1] }
func (s *fakeStream) Err() error                    { return s.err }
func (s *fakeStream) Close() error                  { return nil }

// fakeCompletionClient returns one scripted response per consultation and
// records the conversations it was shown.
type fakeCompletionClient struct {
	responses []fakeStream
	seen      [][]agent.Turn
	streamErr error
}

func (c *fakeCompletionClient) StreamCompletion(ctx context.Context, turns []agent.Turn, tools []agent.ToolSchema) (agent.CompletionStream, error) {
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	c.seen = append(c.seen, turns)
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("no scripted responses left")
	}
	next := c.responses[0]
	c.responses = c.responses[1:]
	return &next, nil
}

func (c *fakeCompletionClient) Completion(ctx context.Context, turns []agent.Turn, tools []agent.ToolSchema) (string, []agent.ToolCallRequest, error) {
	stream, err := c.StreamCompletion(ctx, turns, tools)
	if err != nil {
		return "", nil, err
	}
	asm := agent.NewAssembler(nil)
	for stream.Next() {
		asm.Apply(stream.Current())
	}
	text, calls := asm.Finish()
	return text, calls, nil
}

func toolCallResponse(id, name, args string) fakeStream {
	return fakeStream{fragments: []agent.StreamFragment{
		{ToolDeltas: []agent.ToolCallDelta{{SlotIndex: 0, ID: id, Name: name, ArgumentsChunk: args}}},
	}}
}

func textResponse(chunks ...string) fakeStream {
	frags := make([]agent.StreamFragment, len(chunks))
	for i, c := range chunks {
		frags[i] = agent.StreamFragment{TextChunk: c}
	}
	return fakeStream{fragments: frags}
}

func TestRunRoundToolCycleThenReply(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{
		toolCallResponse("call_1", "run_shell_command", `{"command":"notepad"}`),
		textResponse("Done", "."),
	}}
	peer := newFakePeer()
	peer.results["run_shell_command"] = `{"status":"launched"}`

	history, err := agent.NewHistory("sys", 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := agent.New(client, peer, history, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunRound(context.Background(), "open notepad")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Done." {
		t.Errorf("reply = %q, want Done.", reply)
	}
	if !peer.invoked("run_shell_command") {
		t.Error("tool never dispatched")
	}

	// sys, user, assistant(tool call), tool result, assistant(text)
	turns := history.Snapshot()
	if len(turns) != 5 {
		t.Fatalf("history depth = %d, want 5", len(turns))
	}
	wantRoles := []agent.Role{
		agent.RoleSystem, agent.RoleUser, agent.RoleAssistant,
		agent.RoleToolResult, agent.RoleAssistant,
	}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turns[%d].Role = %q, want %q", i, turns[i].Role, want)
		}
	}
	if turns[3].ToolCallID != "call_1" {
		t.Errorf("tool result not correlated: %+v", turns[3])
	}

	// The second consultation must include the tool result.
	if len(client.seen) != 2 {
		t.Fatalf("model consulted %d times, want 2", len(client.seen))
	}
	second := client.seen[1]
	if second[len(second)-1].Role != agent.RoleToolResult {
		t.Errorf("second consultation missing tool result, last role = %q", second[len(second)-1].Role)
	}
}

func TestRunRoundPlainReplyNoTools(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{
		textResponse("Hello there."),
	}}
	history, _ := agent.NewHistory("sys", 15, nil)
	a, err := agent.New(client, newFakePeer(), history, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunRound(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Hello there." {
		t.Errorf("reply = %q", reply)
	}
	if history.Len() != 3 {
		t.Errorf("history depth = %d, want 3", history.Len())
	}
}

func TestRunRoundEmptyResponseGetsNotice(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{
		{fragments: nil},
	}}
	history, _ := agent.NewHistory("sys", 15, nil)
	a, err := agent.New(client, newFakePeer(), history, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunRound(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" {
		t.Error("empty response should surface a notice, not an empty string")
	}
}

func TestRunRoundFailedToolFeedsErrorBack(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{
		toolCallResponse("call_1", "keyboard_action", `{"text":"hi"}`),
		textResponse("The tool failed."),
	}}
	peer := newFakePeer()
	peer.errs["keyboard_action"] = fmt.Errorf("no focused window")

	history, _ := agent.NewHistory("sys", 15, nil)
	a, err := agent.New(client, peer, history, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunRound(context.Background(), "type hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "The tool failed." {
		t.Errorf("reply = %q", reply)
	}

	turns := history.Snapshot()
	toolTurn := turns[3]
	if toolTurn.Role != agent.RoleToolResult {
		t.Fatalf("turns[3].Role = %q", toolTurn.Role)
	}
	if toolTurn.Text == "" || toolTurn.Text == "{}" {
		t.Errorf("tool error not recorded: %q", toolTurn.Text)
	}
}

func TestRunRoundTransportErrorLeavesHistoryRetryable(t *testing.T) {
	client := &fakeCompletionClient{streamErr: fmt.Errorf("connection refused")}
	history, _ := agent.NewHistory("sys", 15, nil)
	a, err := agent.New(client, newFakePeer(), history, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.RunRound(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var rerr *agent.RoundError
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T", err)
	}
	if rerr.Kind != agent.KindTransport {
		t.Errorf("Kind = %v, want transport", rerr.Kind)
	}
	if rerr.Fatal() {
		t.Error("transport error must not be fatal")
	}
	// No assistant turn recorded; validation still passes for a retry.
	if verr := history.Validate(); verr != nil {
		t.Errorf("history invalid after transport error: %v", verr)
	}
}

func TestRunRoundFatalOnCorruptHistory(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{textResponse("x")}}
	history, _ := agent.NewHistory("sys", 15, nil)
	history.Append(agent.ToolResultTurn("ghost", "wait", "{}"))

	a, err := agent.New(client, newFakePeer(), history, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.RunRound(context.Background(), "hi")
	var rerr *agent.RoundError
	if !errors.As(err, &rerr) || !rerr.Fatal() {
		t.Fatalf("expected fatal invariant error, got %v", err)
	}
}

func TestRunRoundAbortsWhenEvictionCorruptsMidRound(t *testing.T) {
	// With a tight depth limit, the second tool cycle evicts enough
	// turns to leave a tool result at index 1. The next consultation
	// must not happen; the round aborts with the fatal invariant error.
	client := &fakeCompletionClient{responses: []fakeStream{
		toolCallResponse("call_1", "wait", `{"duration_ms":1}`),
		toolCallResponse("call_2", "wait", `{"duration_ms":1}`),
		textResponse("done"),
	}}
	history, err := agent.NewHistory("sys", 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := agent.New(client, newFakePeer(), history, nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunRound(context.Background(), "loop twice")
	if err == nil {
		t.Fatalf("round completed with reply %q despite corrupted history", reply)
	}
	var rerr *agent.RoundError
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T", err)
	}
	if rerr.Kind != agent.KindHistoryInvariant || !rerr.Fatal() {
		t.Errorf("got kind %q fatal=%v, want fatal history_invariant", rerr.Kind, rerr.Fatal())
	}
	// The corrupted snapshot never reached the model.
	if len(client.seen) != 2 {
		t.Errorf("model consulted %d times, want 2", len(client.seen))
	}
	if turns := history.Snapshot(); turns[1].Role != agent.RoleToolResult {
		t.Fatalf("test setup drifted: turns[1].Role = %q, want tool result", turns[1].Role)
	}
}

func TestRunRoundEmitsLifecycleEvents(t *testing.T) {
	client := &fakeCompletionClient{responses: []fakeStream{
		toolCallResponse("call_1", "wait", `{"duration_ms":10}`),
		textResponse("ok"),
	}}
	emitter := events.NewEmitter()
	var got []events.EventType
	emitter.AddObserver(events.ObserverFunc(func(e *events.Event) {
		got = append(got, e.Type)
	}))

	history, _ := agent.NewHistory("sys", 15, nil)
	a, err := agent.New(client, newFakePeer(), history, nil, agent.WithEmitter(emitter))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.RunRound(context.Background(), "wait a bit"); err != nil {
		t.Fatal(err)
	}

	want := map[events.EventType]bool{
		events.RoundStart:    false,
		events.ToolCallStart: false,
		events.ToolCallEnd:   false,
		events.RoundEnd:      false,
	}
	for _, typ := range got {
		if _, ok := want[typ]; ok {
			want[typ] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("event %q never emitted", typ)
		}
	}
}

func TestRunRoundIterationCap(t *testing.T) {
	// The model keeps asking for tools forever; the round must stop.
	responses := make([]fakeStream, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, toolCallResponse(
			fmt.Sprintf("call_%d", i), "wait", `{"duration_ms":1}`))
	}
	client := &fakeCompletionClient{responses: responses}

	history, _ := agent.NewHistory("sys", 50, nil)
	a, err := agent.New(client, newFakePeer(), history, nil, agent.WithMaxIterations(3))
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.RunRound(context.Background(), "loop forever")
	if err == nil {
		t.Fatal("expected iteration cap error")
	}
}
