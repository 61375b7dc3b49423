package commandry

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Kind identifies the shape of a Type descriptor.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindNumber
	KindBoolean
	KindOptional
	KindList
	KindMap
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindOptional:
		return "optional"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Type is a descriptor in the supported type universe: primitives,
// optional<T>, list<T>, map<string,T> and named records. Build values with
// the constructors (String, Integer, Optional, ListOf, MapOf, Record);
// a zero Type is invalid and fails translation.
type Type struct {
	kind   Kind
	elem   *Type // optional inner, list element, map value
	key    *Type // map key; kept so unsupported key kinds can be named
	name   string
	desc   string
	fields []RecordField
}

// RecordField is one named field of a record. A field whose type is
// Optional is excluded from the record's required list.
type RecordField struct {
	Name string
	Type *Type
}

// String returns a string descriptor.
func String() *Type { return &Type{kind: KindString} }

// Integer returns an integer descriptor.
func Integer() *Type { return &Type{kind: KindInteger} }

// Number returns a floating-point number descriptor.
func Number() *Type { return &Type{kind: KindNumber} }

// Boolean returns a boolean descriptor.
func Boolean() *Type { return &Type{kind: KindBoolean} }

// Optional wraps inner as an optional type. Optional-of-optional is not
// supported and fails at schema translation.
func Optional(inner *Type) *Type { return &Type{kind: KindOptional, elem: inner} }

// ListOf returns a list descriptor with the given element type.
func ListOf(elem *Type) *Type { return &Type{kind: KindList, elem: elem} }

// MapOf returns a map descriptor. Only string keys translate; any other
// key type fails at schema translation, naming the key type.
func MapOf(key, value *Type) *Type { return &Type{kind: KindMap, key: key, elem: value} }

// Record returns a named record descriptor with ordered fields.
// The description may be empty.
func Record(name, description string, fields ...RecordField) *Type {
	return &Type{kind: KindRecord, name: name, desc: description, fields: fields}
}

// Field declares one record field.
func Field(name string, t *Type) RecordField { return RecordField{Name: name, Type: t} }

// Kind returns the descriptor's kind.
func (t *Type) Kind() Kind { return t.kind }

// String names the type for error messages (e.g. "integer", "list<string>",
// record name).
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindOptional:
		return "optional<" + t.elem.String() + ">"
	case KindList:
		return "list<" + t.elem.String() + ">"
	case KindMap:
		return "map<" + t.key.String() + "," + t.elem.String() + ">"
	case KindRecord:
		return t.name
	default:
		return "invalid"
	}
}

// Schema translates the descriptor into a JSON Schema fragment.
// Optionality does not change the fragment; it is expressed through the
// enclosing function's required list. Records referenced from inside
// another record are emitted once under "definitions" and referenced by
// "$ref"; a record at the translation root is inlined and carries the
// definitions of its nested records.
func (t *Type) Schema() (map[string]any, error) {
	return t.schema(nil)
}

// schema recurses with the current record emission's shared definitions.
// defs is nil outside any record emission.
func (t *Type) schema(defs map[string]map[string]any) (map[string]any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedType)
	}
	switch t.kind {
	case KindString:
		return map[string]any{"type": "string"}, nil
	case KindInteger:
		return map[string]any{"type": "integer"}, nil
	case KindNumber:
		return map[string]any{"type": "number"}, nil
	case KindBoolean:
		return map[string]any{"type": "boolean"}, nil
	case KindOptional:
		if t.elem != nil && t.elem.kind == KindOptional {
			return nil, fmt.Errorf("%w: optional of optional", ErrUnsupportedType)
		}
		return t.elem.schema(defs)
	case KindList:
		items, err := t.elem.schema(defs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case KindMap:
		if t.key == nil || t.key.kind != KindString {
			return nil, fmt.Errorf("%w %s: only string keys are supported", ErrUnsupportedKeyType, t.key.String())
		}
		values, err := t.elem.schema(defs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": values}, nil
	case KindRecord:
		if defs == nil {
			local := make(map[string]map[string]any)
			obj, err := t.emitRecord(local)
			if err != nil {
				return nil, err
			}
			if len(local) > 0 {
				definitions := make(map[string]any, len(local))
				for name, def := range local {
					definitions[name] = def
				}
				obj["definitions"] = definitions
			}
			return obj, nil
		}
		if _, seen := defs[t.name]; !seen {
			defs[t.name] = nil // reserve before recursing to terminate on recursive records
			def, err := t.emitRecord(defs)
			if err != nil {
				return nil, err
			}
			defs[t.name] = def
		}
		return map[string]any{"$ref": "#/definitions/" + t.name}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.String())
	}
}

// emitRecord builds the inline object schema for a record, collecting
// nested record definitions into defs.
func (t *Type) emitRecord(defs map[string]map[string]any) (map[string]any, error) {
	properties := make(map[string]any, len(t.fields))
	required := make([]string, 0, len(t.fields))
	for _, f := range t.fields {
		s, err := f.Type.schema(defs)
		if err != nil {
			return nil, err
		}
		properties[f.Name] = s
		if f.Type.kind != KindOptional {
			required = append(required, f.Name)
		}
	}
	obj := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	if t.desc != "" {
		obj["description"] = t.desc
	}
	return obj, nil
}

// Decode turns a JSON-encoded textual value into a value of the
// descriptor's type. Mirrors Schema's case structure.
//
// Decoding is deliberately permissive for strings: bare text that is not
// valid JSON decodes to itself, so "hello", "123" and "true" all decode to
// the literal text under a string descriptor. For optional types, the
// literal "null" (or empty text) decodes to nil. Integers decode to int64,
// numbers to float64, records to map[string]any keyed by field name.
func Decode(text string, t *Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnsupportedType)
	}
	switch t.kind {
	case KindString:
		var s string
		if err := json.Unmarshal([]byte(text), &s); err == nil {
			return s, nil
		}
		return text, nil
	case KindInteger:
		var n int64
		if err := json.Unmarshal([]byte(text), &n); err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", text, err)
		}
		return n, nil
	case KindNumber:
		var f float64
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return nil, fmt.Errorf("parse number %q: %w", text, err)
		}
		return f, nil
	case KindBoolean:
		var b bool
		if err := json.Unmarshal([]byte(text), &b); err != nil {
			return nil, fmt.Errorf("parse boolean %q: %w", text, err)
		}
		return b, nil
	case KindOptional:
		if trimmed := strings.TrimSpace(text); trimmed == "" || trimmed == "null" {
			return nil, nil
		}
		return Decode(text, t.elem)
	case KindList:
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("parse array %q: %w", text, err)
		}
		out := make([]any, len(raw))
		for i, item := range raw {
			v, err := Decode(string(item), t.elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindMap:
		if t.key == nil || t.key.kind != KindString {
			return nil, fmt.Errorf("%w %s: only string keys are supported", ErrUnsupportedKeyType, t.key.String())
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("parse object %q: %w", text, err)
		}
		out := make(map[string]any, len(raw))
		for k, item := range raw {
			v, err := Decode(string(item), t.elem)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case KindRecord:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("parse record %s %q: %w", t.name, text, err)
		}
		out := make(map[string]any, len(t.fields))
		for _, f := range t.fields {
			item, ok := raw[f.Name]
			if !ok {
				if f.Type.kind == KindOptional {
					continue
				}
				return nil, fmt.Errorf("missing field %q in record %s", f.Name, t.name)
			}
			v, err := Decode(string(item), f.Type)
			if err != nil {
				return nil, err
			}
			out[f.Name] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.String())
	}
}

// Encode is Decode's inverse: it serializes a value to JSON text under the
// descriptor. Records serialize field-by-field in declared order from a
// map[string]any; lists accept any slice, maps any string-keyed map
// (keys sorted for determinism).
func Encode(v any, t *Type) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: <nil>", ErrUnsupportedType)
	}
	switch t.kind {
	case KindString, KindInteger, KindNumber, KindBoolean:
		if err := checkPrimitive(v, t.kind); err != nil {
			return "", err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case KindOptional:
		if v == nil {
			return "null", nil
		}
		return Encode(v, t.elem)
	case KindList:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return "", fmt.Errorf("encode %s: expected slice, got %T", t.String(), v)
		}
		var sb strings.Builder
		sb.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				sb.WriteByte(',')
			}
			item, err := Encode(rv.Index(i).Interface(), t.elem)
			if err != nil {
				return "", err
			}
			sb.WriteString(item)
		}
		sb.WriteByte(']')
		return sb.String(), nil
	case KindMap:
		if t.key == nil || t.key.kind != KindString {
			return "", fmt.Errorf("%w %s: only string keys are supported", ErrUnsupportedKeyType, t.key.String())
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return "", fmt.Errorf("encode %s: expected string-keyed map, got %T", t.String(), v)
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			item, err := Encode(rv.MapIndex(reflect.ValueOf(k)).Interface(), t.elem)
			if err != nil {
				return "", err
			}
			sb.WriteString(item)
		}
		sb.WriteByte('}')
		return sb.String(), nil
	case KindRecord:
		m, ok := v.(map[string]any)
		if !ok {
			return "", fmt.Errorf("encode record %s: expected map[string]any, got %T", t.name, v)
		}
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		for _, f := range t.fields {
			fv, present := m[f.Name]
			if !present {
				if f.Type.kind == KindOptional {
					continue
				}
				return "", fmt.Errorf("encode record %s: missing field %q", t.name, f.Name)
			}
			if !first {
				sb.WriteByte(',')
			}
			first = false
			kb, _ := json.Marshal(f.Name)
			sb.Write(kb)
			sb.WriteByte(':')
			item, err := Encode(fv, f.Type)
			if err != nil {
				return "", err
			}
			sb.WriteString(item)
		}
		sb.WriteByte('}')
		return sb.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t.String())
	}
}

// checkPrimitive rejects values whose Go type cannot represent the
// primitive kind, so Encode fails loudly instead of emitting mistyped JSON.
func checkPrimitive(v any, kind Kind) error {
	switch kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("encode string: got %T", v)
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("encode boolean: got %T", v)
		}
	case KindInteger:
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		case float32:
			if f := float64(n); f != math.Trunc(f) {
				return fmt.Errorf("encode integer: got non-integral %v", n)
			}
		case float64:
			if n != math.Trunc(n) {
				return fmt.Errorf("encode integer: got non-integral %v", n)
			}
		default:
			return fmt.Errorf("encode %v: got %T", kind, v)
		}
	case KindNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("encode %v: got %T", kind, v)
		}
	}
	return nil
}
