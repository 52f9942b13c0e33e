package agent

import "errors"

// Sentinel errors for orchestration.
// Only errors that callers check with errors.Is() are defined here.
var (
	// ErrInvalidSession indicates the session ID is malformed or unknown.
	// The API layer maps this to 400/404.
	ErrInvalidSession = errors.New("invalid session")

	// ErrExecutionFailed indicates the model call failed after retries.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrRoundLimit indicates the model kept requesting tools past the
	// configured round bound. Fatal: the run is aborted, not truncated.
	ErrRoundLimit = errors.New("tool round limit exceeded")

	// ErrUnknownTool indicates the model requested a tool name outside
	// the registered set.
	ErrUnknownTool = errors.New("unknown tool requested")
)
