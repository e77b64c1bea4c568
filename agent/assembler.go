package agent

import (
	"sort"
	"strings"

	logger "deskagent/logger/v2"
)

// pendingCall accumulates the fragments of one tool call while the
// completion streams.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Assembler folds streamed completion fragments into reply text and
// complete tool-call requests. Fragments for the same call share a slot
// index; argument chunks are concatenated in arrival order, and a later
// non-empty ID or name wins over an earlier one.
type Assembler struct {
	text  strings.Builder
	slots map[int]*pendingCall
	log   logger.Logger
}

// NewAssembler returns an empty assembler. A nil logger is replaced with
// a no-op one.
func NewAssembler(log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NewNoop()
	}
	return &Assembler{
		slots: make(map[int]*pendingCall),
		log:   log,
	}
}

// Apply folds one stream fragment into the accumulated state.
func (a *Assembler) Apply(f StreamFragment) {
	a.text.WriteString(f.TextChunk)
	for _, d := range f.ToolDeltas {
		pc, ok := a.slots[d.SlotIndex]
		if !ok {
			pc = &pendingCall{}
			a.slots[d.SlotIndex] = pc
		}
		if d.ID != "" {
			pc.id = d.ID
		}
		if d.Name != "" {
			pc.name = d.Name
		}
		pc.args.WriteString(d.ArgumentsChunk)
	}
}

// Finish returns the accumulated reply text and the completed calls in
// ascending slot order. Calls that never received an ID or a name are
// dropped with a warning; they cannot be dispatched or answered.
func (a *Assembler) Finish() (string, []ToolCallRequest) {
	indexes := make([]int, 0, len(a.slots))
	for i := range a.slots {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCallRequest, 0, len(indexes))
	for _, i := range indexes {
		pc := a.slots[i]
		if pc.id == "" || pc.name == "" {
			a.log.Warn("dropping incomplete tool call fragment",
				logger.Int("slot", i),
				logger.String("id", pc.id),
				logger.String("name", pc.name))
			continue
		}
		calls = append(calls, ToolCallRequest{
			ID:           pc.id,
			Name:         pc.name,
			ArgumentsRaw: pc.args.String(),
		})
	}
	return a.text.String(), calls
}
