package commandry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Registry maps function names to Function descriptors and executes calls
// against them. Registration validates declarations; execution substitutes
// defaults, decodes arguments, invokes the handler and serializes the
// result. Safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	funcs       map[string]*Function // handlers wrapped with middlewares
	raw         map[string]*Function // as registered; Use rewraps from here
	validators  map[string]*jsonschema.Schema
	middlewares []Middleware
	opts        registryOptions
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{recoverPanics: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		funcs:      make(map[string]*Function),
		raw:        make(map[string]*Function),
		validators: make(map[string]*jsonschema.Schema),
		opts:       o,
	}
}

// Register adds a function. A function with the same name is replaced.
// With WithValidation, the parameters schema is compiled here so broken
// declarations fail at registration, not at dispatch.
func (r *Registry) Register(fn *Function) error {
	if fn == nil || fn.handler == nil {
		return &RegistryError{Reason: "nil function"}
	}
	var validator *jsonschema.Schema
	if r.opts.validate {
		compiled, err := compileParameters(fn)
		if err != nil {
			return &RegistryError{Function: fn.name, Reason: fmt.Sprintf("parameters schema does not compile: %v", err)}
		}
		validator = compiled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw[fn.name] = fn
	r.funcs[fn.name] = r.wrap(fn)
	if validator != nil {
		r.validators[fn.name] = validator
	}
	return nil
}

// wrap returns fn with the stored middleware chain applied to its handler
// (first middleware outermost). Caller holds r.mu.
func (r *Registry) wrap(fn *Function) *Function {
	h := fn.handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](fn, h)
	}
	wrapped := *fn
	wrapped.handler = h
	return &wrapped
}

// Use stores the middlewares and reapplies them from scratch to every
// registered function, so repeated calls never double-wrap. Functions
// registered later also get the chain.
func (r *Registry) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = middlewares
	for name, fn := range r.raw {
		r.funcs[name] = r.wrap(fn)
	}
}

// Get returns the registered function, or (nil, false) if absent.
func (r *Registry) Get(name string) (*Function, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.funcs)
}

// Schemas returns every function descriptor, sorted by name for
// deterministic request bodies.
func (r *Registry) Schemas() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, r.funcs[name].Schema())
	}
	return out
}

// Execute runs one function call. rawArgs maps each argument name to its
// JSON text as sent by the model. The result is the JSON-serialized return
// value, or nil when the function declares no return type.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs map[string]string) (result json.RawMessage, err error) {
	r.mu.Lock()
	fn, ok := r.funcs[name]
	validator := r.validators[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, Call{Name: name, Arguments: rawArgs})
	}
	start := time.Now()
	if r.opts.onAfter != nil {
		defer func() {
			r.opts.onAfter(ctx, Call{Name: name, Arguments: rawArgs}, err, time.Since(start))
		}()
	}
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				result = nil
				err = &ExecutionError{Function: name, Err: &panicError{p: p}}
			}
		}()
	}
	if r.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.timeout)
		defer cancel()
	}

	for _, p := range fn.params {
		if _, present := rawArgs[p.Name]; !present && !p.Optional {
			return nil, fmt.Errorf("%w %q in function %q", ErrMissingArgument, p.Name, name)
		}
	}
	if validator != nil {
		if err := validateArguments(validator, fn, rawArgs); err != nil {
			return nil, err
		}
	}

	args := make(Args, len(fn.params))
	for _, p := range fn.params {
		raw, present := rawArgs[p.Name]
		if !present {
			args[p.Name] = p.Default
			continue
		}
		v, decodeErr := Decode(raw, p.Type)
		if decodeErr != nil {
			return nil, &DecodeError{Function: name, Parameter: p.Name, Err: decodeErr}
		}
		args[p.Name] = v
	}

	out, err := fn.handler(ctx, args)
	if err != nil {
		return nil, &ExecutionError{Function: name, Err: err}
	}
	if !fn.HasReturn() {
		return nil, nil
	}
	if out == nil {
		return json.RawMessage("null"), nil
	}
	encoded, err := Encode(out, fn.returns)
	if err != nil {
		return nil, &ExecutionError{Function: name, Err: err}
	}
	return json.RawMessage(encoded), nil
}
