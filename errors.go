package commandry

import (
	"errors"
	"fmt"
)

// Sentinel errors for commandry. Use errors.Is to check.
var (
	ErrFunctionNotFound   = errors.New("function not found")
	ErrMissingArgument    = errors.New("missing argument")
	ErrUnsupportedType    = errors.New("unsupported type")
	ErrUnsupportedKeyType = errors.New("unsupported dictionary key type")
	ErrTurnLimit          = errors.New("turn limit reached")
)

// RegistryError reports an invalid function declaration (missing
// documentation, missing parameter type, duplicate name). It occurs only
// at registration time and indicates a programming error; sessions built
// on a broken registry should not start.
type RegistryError struct {
	Function string
	Reason   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("invalid function %q: %s", e.Function, e.Reason)
}

// DecodeError reports a failed argument decode for one parameter.
type DecodeError struct {
	Function  string
	Parameter string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("argument decode failed for parameter %q in function %q: %v", e.Parameter, e.Function, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExecutionError wraps any failure raised by an invoked handler, including
// recovered panics. The function name is attached for diagnostics.
type ExecutionError struct {
	Function string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("function %q execution failed: %v", e.Function, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TransportError is a non-200 response from the chat-completions endpoint.
// Body carries the response text verbatim.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chat API returned status code %d: %s", e.StatusCode, e.Body)
}

// UpstreamError is an error object embedded in the event stream itself
// (the service reported a failure mid-stream with a 200 status).
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "chat API returned error: " + e.Message
}

// ProtocolError reports an event payload that could not be parsed.
type ProtocolError struct {
	Payload string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed event payload: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError reports arguments rejected by schema validation
// (WithValidation). The message is safe to send back to the model for
// self-correction.
type ValidationError struct {
	Function string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for function %q: %s", e.Function, e.Reason)
}

// panicError wraps a recovered panic value for ExecutionError.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
