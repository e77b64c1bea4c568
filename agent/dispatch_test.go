package agent_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"deskagent/agent"
)

// fakePeer records invocations and answers from a canned table.
type fakePeer struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string
	errs    map[string]error
}

func newFakePeer() *fakePeer {
	return &fakePeer{
		results: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func (p *fakePeer) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, name)
	p.mu.Unlock()

	if err, ok := p.errs[name]; ok {
		return "", err
	}
	if res, ok := p.results[name]; ok {
		return res, nil
	}
	return fmt.Sprintf("ok:%s", name), nil
}

func (p *fakePeer) invoked(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c == name {
			return true
		}
	}
	return false
}

func TestDispatchResultsInRequestOrder(t *testing.T) {
	peer := newFakePeer()
	peer.results["find_window"] = `{"found":true}`
	peer.results["wait"] = `{"waited_ms":100}`
	d := agent.NewDispatcher(peer, nil, nil)

	requests := []agent.ToolCallRequest{
		{ID: "c1", Name: "find_window", ArgumentsRaw: `{"title":"Notepad"}`},
		{ID: "c2", Name: "wait", ArgumentsRaw: `{"duration_ms":100}`},
		{ID: "c3", Name: "move_mouse", ArgumentsRaw: `{"x":1,"y":2}`},
	}
	results, err := d.Dispatch(context.Background(), "round1", requests)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, req := range requests {
		if results[i].CallID != req.ID {
			t.Errorf("results[%d].CallID = %q, want %q", i, results[i].CallID, req.ID)
		}
		if results[i].Failed() {
			t.Errorf("results[%d] unexpectedly failed: %s", i, results[i].ErrorMessage)
		}
	}
}

func TestDispatchMalformedArgumentsSkipsPeer(t *testing.T) {
	peer := newFakePeer()
	d := agent.NewDispatcher(peer, nil, nil)

	results, err := d.Dispatch(context.Background(), "round1", []agent.ToolCallRequest{
		{ID: "c1", Name: "move_mouse", ArgumentsRaw: `{invalid`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].Failed() {
		t.Fatal("malformed arguments must produce a failed result")
	}
	if results[0].CallID != "c1" {
		t.Errorf("CallID = %q, want c1", results[0].CallID)
	}
	if !strings.Contains(results[0].ErrorMessage, "{invalid") {
		t.Errorf("error should echo the raw arguments: %q", results[0].ErrorMessage)
	}
	if peer.invoked("move_mouse") {
		t.Error("peer must not be invoked for malformed arguments")
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	peer := newFakePeer()
	peer.errs["keyboard_action"] = fmt.Errorf("no focused window")
	d := agent.NewDispatcher(peer, nil, nil)

	results, err := d.Dispatch(context.Background(), "round1", []agent.ToolCallRequest{
		{ID: "c1", Name: "keyboard_action", ArgumentsRaw: `{"text":"hi"}`},
		{ID: "c2", Name: "wait", ArgumentsRaw: `{"duration_ms":50}`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Failed() {
		t.Error("keyboard_action should have failed")
	}
	if results[1].Failed() {
		t.Errorf("wait should have survived: %s", results[1].ErrorMessage)
	}
}

func TestDispatchArgumentParsing(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantFail bool
	}{
		{"empty means no arguments", "", false},
		{"object", `{"x":1}`, false},
		{"non-object JSON tolerated as empty", `[1,2,3]`, false},
		{"bare string tolerated as empty", `"hello"`, false},
		{"truncated JSON fails", `{"x":`, true},
		{"plain text fails", `not json at all`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer := newFakePeer()
			d := agent.NewDispatcher(peer, nil, nil)
			results, err := d.Dispatch(context.Background(), "r", []agent.ToolCallRequest{
				{ID: "c1", Name: "wait", ArgumentsRaw: tt.raw},
			})
			if err != nil {
				t.Fatal(err)
			}
			if results[0].Failed() != tt.wantFail {
				t.Errorf("Failed() = %v, want %v (error: %s)",
					results[0].Failed(), tt.wantFail, results[0].ErrorMessage)
			}
			if tt.wantFail && peer.invoked("wait") {
				t.Error("peer invoked despite unparseable arguments")
			}
		})
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := agent.NewDispatcher(newFakePeer(), nil, nil)
	results, err := d.Dispatch(context.Background(), "r", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for empty batch", len(results))
	}
}
