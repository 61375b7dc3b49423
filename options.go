package commandry

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// RegistryOption configures a Registry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	validate      bool
	recoverPanics bool
	timeout       time.Duration
	onBefore      func(context.Context, Call)
	onAfter       func(context.Context, Call, error, time.Duration)
}

// WithValidation enables schema validation of incoming arguments: the same
// parameters schema shown to the model is compiled at registration and
// every call is checked against it before decoding.
func WithValidation() RegistryOption {
	return func(o *registryOptions) {
		o.validate = true
	}
}

// WithRecoverPanics enables or disables panic recovery in Execute
// (enabled by default; panics become ExecutionError).
func WithRecoverPanics(enable bool) RegistryOption {
	return func(o *registryOptions) {
		o.recoverPanics = enable
	}
}

// WithExecuteTimeout bounds each handler invocation. Zero (the default)
// means no registry-imposed timeout; the caller's ctx still applies.
func WithExecuteTimeout(d time.Duration) RegistryOption {
	return func(o *registryOptions) {
		o.timeout = d
	}
}

// WithOnBeforeExecute sets a hook called before each dispatch.
func WithOnBeforeExecute(fn func(context.Context, Call)) RegistryOption {
	return func(o *registryOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterExecute sets a hook called after each dispatch with the
// outcome and duration.
func WithOnAfterExecute(fn func(context.Context, Call, error, time.Duration)) RegistryOption {
	return func(o *registryOptions) {
		o.onAfter = fn
	}
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	apiKey       string
	organization string
	baseURL      string
	httpClient   *http.Client
	maxTokens    int
	temperature  float64
	maxTurns     int
	logger       *slog.Logger
}

// WithAPIKey sets the API key. Defaults to the OPENAI_API_KEY environment
// variable.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) {
		o.apiKey = key
	}
}

// WithOrganization sets the organization header value. Defaults to the
// OPENAI_ORGANIZATION environment variable.
func WithOrganization(org string) ClientOption {
	return func(o *clientOptions) {
		o.organization = org
	}
}

// WithBaseURL overrides the chat-completions endpoint (e.g. a test server
// or a compatible proxy).
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient supplies the underlying HTTP client (e.g. with custom
// transport settings). The client is reused for the session's lifetime.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithMaxTokens sets the max_tokens request field (default 2000).
func WithMaxTokens(n int) ClientOption {
	return func(o *clientOptions) {
		o.maxTokens = n
	}
}

// WithTemperature sets the temperature request field (default 0.7).
func WithTemperature(t float64) ClientOption {
	return func(o *clientOptions) {
		o.temperature = t
	}
}

// WithMaxTurns bounds the number of request cycles one prompt may trigger
// through chained function calls. Zero (the default) means unbounded,
// matching the upstream protocol; when the bound is hit the turn fails
// with ErrTurnLimit.
func WithMaxTurns(n int) ClientOption {
	return func(o *clientOptions) {
		o.maxTurns = n
	}
}

// WithLogger sets the session logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}
