package agent

import (
	"fmt"

	logger "deskagent/logger/v2"
)

// DefaultMaxHistoryDepth bounds the conversation length before eviction
// kicks in.
const DefaultMaxHistoryDepth = 15

// History is the bounded conversation record. The turn at index 0 is the
// system prompt and is never evicted; when the history grows past its
// depth limit the oldest non-system turn (index 1) is removed.
//
// History is not safe for concurrent use; the round controller owns it.
type History struct {
	turns    []Turn
	maxDepth int
	log      logger.Logger
	onEvict  func(evicted Turn, depth int)
}

// NewHistory creates a history seeded with the system prompt. maxDepth
// must be at least 2 so the system prompt plus one working turn always
// fit.
func NewHistory(systemPrompt string, maxDepth int, log logger.Logger) (*History, error) {
	if maxDepth < 2 {
		return nil, fmt.Errorf("history depth %d too small, need at least 2", maxDepth)
	}
	if log == nil {
		log = logger.NewNoop()
	}
	return &History{
		turns:    []Turn{SystemTurn(systemPrompt)},
		maxDepth: maxDepth,
		log:      log,
	}, nil
}

// OnEvict registers a callback invoked for every evicted turn, after the
// eviction has taken place.
func (h *History) OnEvict(fn func(evicted Turn, depth int)) {
	h.onEvict = fn
}

// Append adds a turn and evicts from index 1 until the history fits the
// depth limit again.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
	for len(h.turns) > h.maxDepth && len(h.turns) >= 2 {
		evicted := h.turns[1]
		h.turns = append(h.turns[:1], h.turns[2:]...)
		h.log.Debug("evicted oldest turn",
			logger.String("role", string(evicted.Role)),
			logger.Int("depth", len(h.turns)))
		if h.onEvict != nil {
			h.onEvict(evicted, len(h.turns))
		}
	}
}

// Validate checks the structural invariant that must hold before a round:
// the history never starts with a tool result directly after the system
// prompt. A tool result there means an assistant request was evicted or
// never recorded, and the provider would reject the conversation.
func (h *History) Validate() error {
	if len(h.turns) >= 2 && h.turns[0].Role == RoleSystem && h.turns[1].Role == RoleToolResult {
		return roundErr(KindHistoryInvariant, "history.validate",
			fmt.Errorf("tool result at index 1 with no preceding assistant request"))
	}
	return nil
}

// Snapshot returns a copy of the turns for handing to the completion
// client. Mutating the copy never affects the history.
func (h *History) Snapshot() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of recorded turns, system prompt included.
func (h *History) Len() int {
	return len(h.turns)
}
