package commandry

import (
	"context"
	"fmt"
)

// Handler is the invocation closure bound to a registered function. It
// receives decoded arguments (defaults already substituted) and returns
// the function's result, which is serialized only when the function
// declares a return type.
type Handler func(ctx context.Context, args Args) (any, error)

// Parameter is one declared parameter of a function. Constructed once at
// build time and immutable thereafter.
type Parameter struct {
	Name        string
	Type        *Type
	Optional    bool
	Default     any // present iff Optional
	Description string
}

// Function is the static descriptor of one callable operation plus its
// handler: name, documentation, ordered parameters, return-type presence.
// Build with NewFunction; a Function is read-only once built.
type Function struct {
	name        string
	description string
	params      []Parameter
	returns     *Type // nil means no return value
	handler     Handler
	schema      map[string]any // cached, built once by Handle
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Description returns the function documentation shown to the model.
func (f *Function) Description() string { return f.description }

// Parameters returns a copy of the declared parameters in order.
func (f *Function) Parameters() []Parameter {
	return append([]Parameter(nil), f.params...)
}

// HasReturn reports whether the function declares a return type. Functions
// without one produce no function-result message when dispatched.
func (f *Function) HasReturn() bool { return f.returns != nil }

// Schema returns the function descriptor sent to the model:
// {name, description, parameters: {type, properties, required}}.
// The returned map shares nested values with the cached schema; callers
// must not mutate it.
func (f *Function) Schema() map[string]any { return f.schema }

// FunctionBuilder accumulates a function declaration. Errors are collected
// and reported by Handle, so declarations chain without per-step checks.
type FunctionBuilder struct {
	fn  Function
	err error
}

// NewFunction starts a function declaration. The description is the
// function's documentation and must not be empty.
func NewFunction(name, description string) *FunctionBuilder {
	b := &FunctionBuilder{fn: Function{name: name, description: description}}
	if description == "" {
		b.fail("missing documentation for function %q", name)
	}
	return b
}

// Param declares a required parameter. Both the type and the description
// are mandatory.
func (b *FunctionBuilder) Param(name string, t *Type, description string) *FunctionBuilder {
	return b.addParam(Parameter{Name: name, Type: t, Description: description})
}

// OptionalParam declares an optional parameter with a default value that
// is substituted when the model omits the argument. The type is wrapped as
// Optional if it is not already, so an explicit null argument decodes to
// nil rather than the default.
func (b *FunctionBuilder) OptionalParam(name string, t *Type, def any, description string) *FunctionBuilder {
	if t != nil && t.kind != KindOptional {
		t = Optional(t)
	}
	return b.addParam(Parameter{Name: name, Type: t, Optional: true, Default: def, Description: description})
}

func (b *FunctionBuilder) addParam(p Parameter) *FunctionBuilder {
	if b.err != nil {
		return b
	}
	if p.Type == nil {
		return b.fail("missing type for parameter %q in function %q", p.Name, b.fn.name)
	}
	if p.Description == "" {
		return b.fail("missing documentation for parameter %q in function %q", p.Name, b.fn.name)
	}
	for _, existing := range b.fn.params {
		if existing.Name == p.Name {
			return b.fail("duplicate parameter %q in function %q", p.Name, b.fn.name)
		}
	}
	b.fn.params = append(b.fn.params, p)
	return b
}

// Returns declares the function's return type. Without it the function is
// void and dispatch produces no function-result message.
func (b *FunctionBuilder) Returns(t *Type) *FunctionBuilder {
	if b.err != nil {
		return b
	}
	if t == nil {
		return b.fail("nil return type in function %q", b.fn.name)
	}
	b.fn.returns = t
	return b
}

// Handle finishes the declaration with its invocation closure and builds
// the cached schema. All declaration errors (missing documentation,
// missing types, unsupported schema shapes) surface here.
func (b *FunctionBuilder) Handle(h Handler) (*Function, error) {
	if b.err != nil {
		return nil, b.err
	}
	if h == nil {
		return nil, &RegistryError{Function: b.fn.name, Reason: "missing handler"}
	}
	schema, err := b.fn.buildSchema()
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", b.fn.name, err)
	}
	fn := b.fn
	fn.handler = h
	fn.schema = schema
	return &fn, nil
}

func (b *FunctionBuilder) fail(format string, args ...any) *FunctionBuilder {
	if b.err == nil {
		b.err = &RegistryError{Function: b.fn.name, Reason: fmt.Sprintf(format, args...)}
	}
	return b
}

// buildSchema translates the declaration into the wire descriptor.
// Optional parameter types unwrap in the fragment; optionality shows only
// through the required list.
func (f *Function) buildSchema() (map[string]any, error) {
	properties := make(map[string]any, len(f.params))
	required := make([]string, 0, len(f.params))
	for _, p := range f.params {
		fragment, err := p.Type.Schema()
		if err != nil {
			return nil, err
		}
		fragment["description"] = p.Description
		properties[p.Name] = fragment
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"name":        f.name,
		"description": f.description,
		"parameters": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}, nil
}
