package agent

import "fmt"

// ErrorKind classifies round failures so callers can distinguish
// recoverable per-call problems from errors that invalidate the whole
// conversation.
type ErrorKind string

const (
	// KindTransport covers failures talking to the model provider.
	KindTransport ErrorKind = "transport"
	// KindBadArguments marks tool arguments that were not valid JSON.
	KindBadArguments ErrorKind = "bad_arguments"
	// KindPeerFailure marks errors returned by the capability peer.
	KindPeerFailure ErrorKind = "peer_failure"
	// KindVisionFailure marks screenshot description failures.
	KindVisionFailure ErrorKind = "vision_failure"
	// KindHistoryInvariant marks a corrupted conversation history.
	// This is the only fatal kind.
	KindHistoryInvariant ErrorKind = "history_invariant"
)

// RoundError is the error type returned by round execution. Op names the
// operation that failed.
type RoundError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *RoundError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error invalidates the conversation. Transport
// and execution errors leave the history intact and the round retryable;
// an invariant violation does not.
func (e *RoundError) Fatal() bool {
	return e.Kind == KindHistoryInvariant
}

func roundErr(kind ErrorKind, op string, err error) *RoundError {
	return &RoundError{Kind: kind, Op: op, Err: err}
}
