// Package testutil provides test helpers for commandry (e.g. a scripted
// chat-completions server emitting SSE streams).
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Server is a scripted chat-completions endpoint. Each incoming request is
// answered with the next scripted turn: its payloads written as
// `data: <payload>` SSE frames followed by `data: [DONE]`. Requests beyond
// the script get a 500.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	turns    [][]string
	next     int
	requests [][]byte
	headers  []http.Header
}

// NewServer starts a scripted server; each turn is the list of JSON event
// payloads for one request. The server shuts down at test cleanup.
func NewServer(tb testing.TB, turns ...[]string) *Server {
	tb.Helper()
	s := &Server{turns: turns}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	tb.Cleanup(s.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, body)
	s.headers = append(s.headers, r.Header.Clone())
	turn := s.next
	s.next++
	s.mu.Unlock()
	if turn >= len(s.turns) {
		http.Error(w, "no scripted response left", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	for _, payload := range s.turns[turn] {
		fmt.Fprintf(w, "data: %s\n\n", payload)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

// Requests returns the raw request bodies received so far, in order.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// Headers returns the request headers received so far, in order.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

// RequestBodies returns the received request bodies decoded as JSON.
func (s *Server) RequestBodies(tb testing.TB) []map[string]any {
	tb.Helper()
	raw := s.Requests()
	out := make([]map[string]any, len(raw))
	for i, b := range raw {
		if err := json.Unmarshal(b, &out[i]); err != nil {
			tb.Fatalf("request %d is not JSON: %v", i, err)
		}
	}
	return out
}

// ContentChunk builds a streamed chunk carrying a content fragment.
// finishReason may be empty for intermediate chunks.
func ContentChunk(content, finishReason string) string {
	return chunk(map[string]any{"content": content}, finishReason)
}

// FunctionCallChunk builds a streamed chunk carrying a function-call
// fragment. Empty name or arguments fields are omitted, so successive
// argument fragments can be scripted.
func FunctionCallChunk(name, arguments, finishReason string) string {
	fc := map[string]any{}
	if name != "" {
		fc["name"] = name
	}
	if arguments != "" {
		fc["arguments"] = arguments
	}
	return chunk(map[string]any{"function_call": fc}, finishReason)
}

// FinishChunk builds a content-free chunk that only carries a finish
// reason.
func FinishChunk(finishReason string) string {
	return chunk(map[string]any{}, finishReason)
}

// ErrorChunk builds a payload embedding an upstream error object.
func ErrorChunk(message string) string {
	b, _ := json.Marshal(map[string]any{"error": map[string]any{"message": message}})
	return string(b)
}

func chunk(delta map[string]any, finishReason string) string {
	choice := map[string]any{"index": 0, "delta": delta}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	} else {
		choice["finish_reason"] = nil
	}
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 0,
		"model":   "test-model",
		"choices": []any{choice},
	})
	return string(b)
}
