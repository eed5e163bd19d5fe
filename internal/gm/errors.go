package gm

import "errors"

var (
	// ErrOrchestrationNetwork indicates the narration service was
	// unreachable or timed out. Recoverable: the turn is abandoned and a
	// player may re-issue an action.
	ErrOrchestrationNetwork = errors.New("gm: narration service unreachable")

	// ErrResponseParse indicates both the direct parse and the brace
	// extraction of the narration output failed. Unrecoverable for the turn.
	ErrResponseParse = errors.New("gm: failed to parse narration response")
)
