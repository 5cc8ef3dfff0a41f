// Package tools implements the Tool Registry of §4.3: the closed error
// taxonomy, the dependency container tools draw on, and the reflection-based
// parameter_schema generator every Tool Declaration advertises to the brain.
package tools

import (
	"reflect"
	"strings"
)

// SchemaFor generates the JSON-schema-shaped parameter_schema value §3
// requires on every Tool Declaration, via reflection over a Go args struct.
// Beyond the teacher's sdk/tools/schema.go, a field's `desc` struct tag is
// folded in as the property's "description" — the brain only ever sees a
// tool's name, description and parameter_schema, so per-argument prose is
// the one place a field's intent reaches the model at all — and an `enum`
// tag (comma-separated) constrains a string property's allowed values,
// for closed vocabularies such as sandbox.TodoItem.Status.
func SchemaFor[T any]() map[string]any {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}, "additionalProperties": false}
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{"value": schemaForType(rt)}, "required": []any{"value"}, "additionalProperties": false}
	}
	props := map[string]any{}
	req := []any{}

	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.PkgPath != "" {
			continue
		}
		name, omit := jsonFieldName(f)
		if name == "" {
			continue
		}
		ft := f.Type
		isPtr := ft.Kind() == reflect.Pointer
		if isPtr {
			ft = ft.Elem()
		}
		prop := schemaForType(ft)
		annotate(prop, f)
		props[name] = prop
		if !omit && !isPtr {
			req = append(req, name)
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

// annotate folds a struct field's `desc` and `enum` tags into its already-
// computed schema, in place.
func annotate(prop map[string]any, f reflect.StructField) {
	if d := f.Tag.Get("desc"); d != "" {
		prop["description"] = d
	}
	if e := f.Tag.Get("enum"); e != "" && prop["type"] == "string" {
		values := strings.Split(e, ",")
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		prop["enum"] = enum
	}
}

func jsonFieldName(f reflect.StructField) (name string, omitempty bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if tag != "" {
		parts := strings.Split(tag, ",")
		name = parts[0]
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitempty = true
				break
			}
		}
		if name == "" {
			name = lowerFirst(f.Name)
		}
		return name, omitempty
	}
	return lowerFirst(f.Name), false
}

func lowerFirst(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = []rune(strings.ToLower(string(r[0])))[0]
	return string(r)
}

func schemaForType(t reflect.Type) map[string]any {
	if t == nil {
		return map[string]any{"type": "string"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": schemaForType(t.Elem())}
	case reflect.Map:
		return map[string]any{"type": "object", "additionalProperties": schemaForType(t.Elem())}
	case reflect.Struct:
		if t.PkgPath() == "time" && t.Name() == "Duration" {
			return map[string]any{"type": "string"}
		}
		props := map[string]any{}
		req := []any{}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name, omit := jsonFieldName(f)
			if name == "" {
				continue
			}
			ft := f.Type
			isPtr := ft.Kind() == reflect.Pointer
			if isPtr {
				ft = ft.Elem()
			}
			prop := schemaForType(ft)
			annotate(prop, f)
			props[name] = prop
			if !omit && !isPtr {
				req = append(req, name)
			}
		}
		return map[string]any{"type": "object", "properties": props, "required": req, "additionalProperties": false}
	default:
		return map[string]any{"type": "string"}
	}
}
