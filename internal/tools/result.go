package tools

// Status indicates whether a tool invocation succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Error codes carried in Result.Error. The model sees these verbatim,
// so they stay short and stable.
const (
	// ErrCodeNotFound: the requested player or archive does not exist upstream.
	ErrCodeNotFound = "not_found"
	// ErrCodeUpstream: Chess.com transport or HTTP failure.
	ErrCodeUpstream = "upstream"
	// ErrCodeParse: the input could not be parsed as PGN.
	ErrCodeParse = "parse"
	// ErrCodeExecution: invalid arguments or internal tool failure.
	ErrCodeExecution = "execution"
)

// Error is a structured tool failure the model can understand and
// react to (retry with corrected arguments, apologize, ask the user).
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the envelope every tool returns to the model.
// Failures that the conversation can recover from are reported here
// with a nil Go error; only fatal conditions (missing configuration)
// surface as Go errors and abort the orchestration.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

func errResult(code, message string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
		Error:   &Error{Code: code, Message: message},
	}
}
