package commandry

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "data: [DONE]"
)

// decodeStream consumes a server-sent event stream line by line and yields
// each JSON event payload. The `data: [DONE]` sentinel terminates the
// sequence; blank keep-alive lines and comments are skipped. A stream that
// ends without the sentinel is a normal end, not an error.
func decodeStream(r io.Reader, yield func(payload string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == doneSentinel {
			return nil
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		if err := yield(line[len(dataPrefix):]); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Wire shape of one streamed chat-completion chunk.
type chatChunk struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []chunkChoice   `json:"choices"`
	Error   json.RawMessage `json:"error"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type chunkDelta struct {
	Role         string             `json:"role"`
	Content      string             `json:"content"`
	FunctionCall *functionCallDelta `json:"function_call"`
}

type functionCallDelta struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// foldChunk folds one event payload into the response assembled so far
// (prev may be nil on the first event). Content fragments have trailing
// newlines stripped before being appended and exposed as DeltaText; the
// first function-call name wins; arguments fragments concatenate in
// arrival order. A non-empty finish reason marks the result ready.
func foldChunk(prev *Response, payload string) (*Response, error) {
	var chunk chatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return nil, &ProtocolError{Payload: payload, Err: err}
	}
	if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
		return nil, &UpstreamError{Message: string(chunk.Error)}
	}
	if len(chunk.Choices) == 0 {
		return nil, &ProtocolError{Payload: payload, Err: errors.New("no choices")}
	}
	choice := chunk.Choices[0]

	next := &Response{Ready: choice.FinishReason != ""}
	if prev != nil {
		next.Content = prev.Content
		next.FunctionName = prev.FunctionName
		next.FunctionArguments = prev.FunctionArguments
	}
	if choice.Delta.Content != "" {
		text := strings.TrimRight(choice.Delta.Content, "\n")
		next.DeltaText = text
		next.Content += text
	}
	if fc := choice.Delta.FunctionCall; fc != nil {
		if fc.Name != "" && next.FunctionName == "" {
			next.FunctionName = fc.Name
		}
		if fc.Arguments != "" {
			next.FunctionArguments += fc.Arguments
		}
	}
	return next, nil
}
