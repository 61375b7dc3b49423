package commandry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
)

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

// Client is one chat session: the append-only conversation history, the
// transport, and the function-calling loop. The first message is always
// the system prompt, installed at construction and never removed.
//
// A Client serializes turns: a second ChatStream call blocks until the
// current turn's loop completes or fails.
type Client struct {
	model        string
	systemPrompt string
	opts         clientOptions

	turnMu   sync.Mutex // serializes turns
	mu       sync.Mutex // guards messages
	messages []Message
}

// NewClient creates a chat session for the given model, seeded with the
// system prompt. The API key falls back to OPENAI_API_KEY and the
// organization to OPENAI_ORGANIZATION when not set via options.
func NewClient(model, systemPrompt string, opts ...ClientOption) *Client {
	o := clientOptions{
		baseURL:     defaultBaseURL,
		maxTokens:   2000,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		o.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.organization == "" {
		o.organization = os.Getenv("OPENAI_ORGANIZATION")
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Client{
		model:        model,
		systemPrompt: systemPrompt,
		opts:         o,
		messages:     []Message{{Role: RoleSystem, Content: systemPrompt}},
	}
}

// Messages returns a snapshot of the conversation history.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Close releases the transport's idle connections. The history survives;
// only the network resources are let go.
func (c *Client) Close() {
	c.opts.httpClient.CloseIdleConnections()
}

func (c *Client) append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *Client) snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// chatRequest is the wire body of one chat-completions request.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Functions   []map[string]any `json:"functions,omitempty"`
	MaxTokens   int              `json:"max_tokens"`
	N           int              `json:"n"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream"`
}

// errStreamDone stops decodeStream once the response reports readiness.
var errStreamDone = errors.New("stream done")

// ChatStream sends a prompt and streams the reply's content deltas to
// yield in arrival order. When the model requests a function call, the
// call is dispatched through reg and its result fed back as a function
// message; the loop continues until a call-free reply (or a void call)
// ends the turn. Errors surface mid-stream; history keeps everything
// appended before the failure.
func (c *Client) ChatStream(ctx context.Context, prompt string, reg *Registry, yield func(delta string) error) error {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	outbound := Message{Role: RoleUser, Content: prompt}
	for turn := 0; ; turn++ {
		if c.opts.maxTurns > 0 && turn >= c.opts.maxTurns {
			return fmt.Errorf("%w after %d requests", ErrTurnLimit, turn)
		}
		resp, err := c.sendMessage(ctx, outbound, reg, yield)
		if err != nil {
			return err
		}
		if resp == nil || !resp.Ready {
			return nil
		}
		if msg, ok := resp.AssistantMessage(); ok {
			c.opts.logger.Info("storing message", "role", msg.Role)
			c.append(msg)
		}
		call, ok, err := resp.FunctionCall()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		c.opts.logger.Info("calling function", "function", call.Name)
		result, err := reg.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			return err
		}
		fn, found := reg.Get(call.Name)
		if !found || !fn.HasReturn() {
			return nil
		}
		content := "null"
		if len(result) > 0 {
			content = string(result)
		}
		outbound = Message{Role: RoleFunction, Content: content, Name: call.Name}
	}
}

// Chat sends a prompt and returns the concatenated reply.
func (c *Client) Chat(ctx context.Context, prompt string, reg *Registry) (string, error) {
	var sb strings.Builder
	err := c.ChatStream(ctx, prompt, reg, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// sendMessage appends the outbound message, issues one streaming request
// with the full history and the registry's schemas, and drains the event
// stream into an assembled response, yielding content deltas as they fold.
func (c *Client) sendMessage(ctx context.Context, outbound Message, reg *Registry, yield func(string) error) (*Response, error) {
	c.append(outbound)

	body := chatRequest{
		Model:       c.model,
		Messages:    c.snapshot(),
		MaxTokens:   c.opts.maxTokens,
		N:           1,
		Temperature: c.opts.temperature,
		Stream:      true,
	}
	if reg != nil {
		if schemas := reg.Schemas(); len(schemas) > 0 {
			body.Functions = schemas
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.baseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.opts.organization != "" {
		req.Header.Set("OpenAI-Organization", c.opts.organization)
	}
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	var assembled *Response
	err = decodeStream(resp.Body, func(payload string) error {
		next, foldErr := foldChunk(assembled, payload)
		if foldErr != nil {
			return foldErr
		}
		if next.DeltaText != "" {
			if yieldErr := yield(next.DeltaText); yieldErr != nil {
				return yieldErr
			}
		}
		assembled = next
		if assembled.Ready {
			return errStreamDone
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStreamDone) {
		return nil, err
	}
	return assembled, nil
}
