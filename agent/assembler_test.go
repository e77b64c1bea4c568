package agent_test

import (
	"testing"

	"deskagent/agent"
	logger "deskagent/logger/v2"
)

func TestAssemblerInterleavedFragments(t *testing.T) {
	a := agent.NewAssembler(logger.NewNoop())

	// Two calls streaming interleaved, arguments split across chunks.
	a.Apply(agent.StreamFragment{
		TextChunk: "Let me ",
		ToolDeltas: []agent.ToolCallDelta{
			{SlotIndex: 0, ID: "call_a", Name: "move_mouse", ArgumentsChunk: `{"x":1`},
		},
	})
	a.Apply(agent.StreamFragment{
		TextChunk: "do that.",
		ToolDeltas: []agent.ToolCallDelta{
			{SlotIndex: 1, ID: "call_b", Name: "wait", ArgumentsChunk: `{"duration`},
			{SlotIndex: 0, ArgumentsChunk: `00,"y":200}`},
		},
	})
	a.Apply(agent.StreamFragment{
		ToolDeltas: []agent.ToolCallDelta{
			{SlotIndex: 1, ArgumentsChunk: `_ms":150}`},
		},
	})

	text, calls := a.Finish()
	if text != "Let me do that." {
		t.Errorf("text = %q, want %q", text, "Let me do that.")
	}
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "call_a" || calls[0].ArgumentsRaw != `{"x":100,"y":200}` {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if calls[1].ID != "call_b" || calls[1].ArgumentsRaw != `{"duration_ms":150}` {
		t.Errorf("call 1 = %+v", calls[1])
	}
}

func TestAssemblerLaterNonEmptyWins(t *testing.T) {
	a := agent.NewAssembler(nil)

	a.Apply(agent.StreamFragment{ToolDeltas: []agent.ToolCallDelta{
		{SlotIndex: 0, ID: "call_x", Name: "find_window"},
	}})
	// Empty id/name on a later fragment must not clear the earlier ones,
	// but a non-empty value replaces them.
	a.Apply(agent.StreamFragment{ToolDeltas: []agent.ToolCallDelta{
		{SlotIndex: 0, ArgumentsChunk: `{}`},
	}})
	a.Apply(agent.StreamFragment{ToolDeltas: []agent.ToolCallDelta{
		{SlotIndex: 0, ID: "call_y"},
	}})

	_, calls := a.Finish()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "call_y" {
		t.Errorf("ID = %q, want call_y", calls[0].ID)
	}
	if calls[0].Name != "find_window" {
		t.Errorf("Name = %q, want find_window", calls[0].Name)
	}
}

func TestAssemblerDropsIncompleteCalls(t *testing.T) {
	a := agent.NewAssembler(nil)

	a.Apply(agent.StreamFragment{ToolDeltas: []agent.ToolCallDelta{
		{SlotIndex: 0, ID: "call_ok", Name: "wait", ArgumentsChunk: `{}`},
		{SlotIndex: 1, Name: "orphan_no_id", ArgumentsChunk: `{}`},
		{SlotIndex: 2, ID: "call_no_name", ArgumentsChunk: `{}`},
	}})

	_, calls := a.Finish()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1 (incomplete calls dropped)", len(calls))
	}
	if calls[0].ID != "call_ok" {
		t.Errorf("surviving call = %q, want call_ok", calls[0].ID)
	}
}

func TestAssemblerSlotOrder(t *testing.T) {
	a := agent.NewAssembler(nil)

	// Slots arriving out of order still come out ascending.
	a.Apply(agent.StreamFragment{ToolDeltas: []agent.ToolCallDelta{
		{SlotIndex: 2, ID: "c2", Name: "t2"},
		{SlotIndex: 0, ID: "c0", Name: "t0"},
		{SlotIndex: 1, ID: "c1", Name: "t1"},
	}})

	_, calls := a.Finish()
	want := []string{"c0", "c1", "c2"}
	for i, id := range want {
		if calls[i].ID != id {
			t.Errorf("calls[%d].ID = %q, want %q", i, calls[i].ID, id)
		}
	}
}

func TestAssemblerEmptyStream(t *testing.T) {
	a := agent.NewAssembler(nil)
	text, calls := a.Finish()
	if text != "" || len(calls) != 0 {
		t.Errorf("empty stream produced text=%q calls=%d", text, len(calls))
	}
}
