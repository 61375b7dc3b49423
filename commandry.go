package commandry

import "encoding/json"

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Message is one turn of the conversation. Function-result messages carry
// the invoked function's name in Name; other roles leave it empty.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Args holds the decoded arguments for one function invocation, keyed by
// parameter name. Integers are int64, numbers float64, records
// map[string]any (see Decode); omitted optional parameters appear with
// their declared default.
type Args map[string]any

// String returns the named argument as a string, or "" if absent or not a
// string.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns the named argument as an int64. Defaults declared as untyped
// Go ints are converted.
func (a Args) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns the named argument as a float64.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Bool returns the named argument as a bool.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Record returns the named argument as a decoded record.
func (a Args) Record(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// List returns the named argument as a decoded list.
func (a Args) List(name string) []any {
	l, _ := a[name].([]any)
	return l
}

// Response is one assembled streamed response: the cumulative content, the
// requested function call (if any), and the most recent content fragment.
// It is rebuilt chunk by chunk (see foldChunk) and consumed once Ready.
type Response struct {
	Ready             bool
	Content           string
	FunctionName      string
	FunctionArguments string
	DeltaText         string
}

// Call describes the function invocation requested by a ready response.
// Arguments holds each top-level argument re-encoded as JSON text, the
// form Registry.Execute consumes.
type Call struct {
	Name      string
	Arguments map[string]string
}

// FunctionCall extracts the requested invocation from a ready response.
// It returns false when the response carries no complete call (no name, or
// an empty arguments buffer), and an error when the accumulated arguments
// buffer is not one JSON object.
func (r *Response) FunctionCall() (Call, bool, error) {
	if r == nil || !r.Ready || r.FunctionName == "" || r.FunctionArguments == "" {
		return Call{}, false, nil
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(r.FunctionArguments), &parsed); err != nil {
		return Call{}, false, &ProtocolError{Payload: r.FunctionArguments, Err: err}
	}
	args := make(map[string]string, len(parsed))
	for k, v := range parsed {
		args[k] = string(v)
	}
	return Call{Name: r.FunctionName, Arguments: args}, true, nil
}

// AssistantMessage returns the assistant message a ready response should
// append to history, or false when the response has no content.
func (r *Response) AssistantMessage() (Message, bool) {
	if r == nil || !r.Ready || r.Content == "" {
		return Message{}, false
	}
	return Message{Role: RoleAssistant, Content: r.Content}, true
}
