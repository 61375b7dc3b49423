package commandry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileParameters compiles a function's parameters schema into a
// validator. The schema round-trips through its JSON encoding so the
// compiler sees exactly what the model sees.
func compileParameters(fn *Function) (*jsonschema.Schema, error) {
	params, ok := fn.Schema()["parameters"]
	if !ok {
		return nil, fmt.Errorf("function %q has no parameters schema", fn.name)
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if root, ok := doc.(map[string]any); ok {
		widenOptionalParameters(root, fn)
		hoistDefinitions(root)
	}
	compiler := jsonschema.NewCompiler()
	url := "commandry:///" + fn.name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// widenOptionalParameters admits an explicit null for each optional
// parameter. The wire schema shows optionality only through the required
// list, which the model reads correctly but a validator enforces
// literally; an explicit null argument must still decode to absent.
func widenOptionalParameters(root map[string]any, fn *Function) {
	props, ok := root["properties"].(map[string]any)
	if !ok {
		return
	}
	for _, p := range fn.params {
		if !p.Optional {
			continue
		}
		fragment, ok := props[p.Name]
		if !ok {
			continue
		}
		props[p.Name] = map[string]any{
			"anyOf": []any{fragment, map[string]any{"type": "null"}},
		}
	}
}

// hoistDefinitions lifts every nested "definitions" block up to the
// document root. Record schemas embedded as parameter fragments carry
// their definitions locally while their $refs point at the root, which
// chat completions accept but the compiler resolves strictly.
func hoistDefinitions(root map[string]any) {
	defs := make(map[string]any)
	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		for key, value := range node {
			switch v := value.(type) {
			case map[string]any:
				if key == "definitions" {
					for name, def := range v {
						defs[name] = def
					}
				}
				walk(v)
			case []any:
				for _, item := range v {
					if m, ok := item.(map[string]any); ok {
						walk(m)
					}
				}
			}
		}
	}
	walk(root)
	if len(defs) > 0 {
		root["definitions"] = defs
	}
}

// validateArguments checks the raw argument object against the compiled
// parameters schema before any per-parameter decode. Values that are not
// valid JSON are treated as bare string literals, matching the permissive
// string decode.
func validateArguments(validator *jsonschema.Schema, fn *Function, rawArgs map[string]string) error {
	optional := make(map[string]bool, len(fn.params))
	for _, p := range fn.params {
		if p.Optional {
			optional[p.Name] = true
		}
	}
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for name, raw := range rawArgs {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(name)
		sb.Write(key)
		sb.WriteByte(':')
		if raw == "" && optional[name] {
			sb.WriteString("null")
		} else if json.Valid([]byte(raw)) {
			sb.WriteString(raw)
		} else {
			quoted, _ := json.Marshal(raw)
			sb.Write(quoted)
		}
	}
	sb.WriteByte('}')
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(sb.String()))
	if err != nil {
		return &ValidationError{Function: fn.name, Reason: err.Error()}
	}
	if err := validator.Validate(instance); err != nil {
		return &ValidationError{Function: fn.name, Reason: err.Error()}
	}
	return nil
}
