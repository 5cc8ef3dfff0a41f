package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chitti-ai/chitti/internal/wire"
)

// Tool is an executable capability callable by the brain via function
// calls, per §4.3: declaration() + invoke(args, deadline).
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any

	Handler func(ctx context.Context, args json.RawMessage, deps *Container) (any, error)
}

func (t Tool) Declaration() wire.ToolDeclaration {
	return wire.ToolDeclaration{Name: t.Name, Description: t.Description, ParameterSchema: t.Schema}
}

// Invoke decodes args strictly against the tool's schema, falling back to
// the teacher's unknown-field-repair and loose-JSON-repair heuristics
// (sdk/tools/tool.go, sdk/tools/args_normalize.go) before giving up with a
// BadArgsError, which the Registry folds into a FunctionResult instead of a
// transport failure per §4.3's "Tool error taxonomy".
func (t Tool) Invoke(ctx context.Context, argsJSON string, deps *Container) (any, error) {
	if t.Handler == nil {
		return nil, &InternalError{Reason: fmt.Sprintf("tool %q missing handler", t.Name)}
	}
	s := strings.TrimSpace(argsJSON)

	call := func(raw []byte) (any, error) {
		result, err := t.Handler(ctx, json.RawMessage(raw), deps)
		if err == nil {
			return result, nil
		}
		if looksLikeUnknownFieldErr(err) {
			if repaired, ok := repairJSONKeysBySchema(t.Schema, raw); ok {
				if result2, err2 := t.Handler(ctx, json.RawMessage(repaired), deps); err2 == nil {
					return result2, nil
				}
			}
		}
		return result, err
	}

	if s == "" {
		return call([]byte(`{}`))
	}
	if raw, err := strictDecode(s); err == nil {
		return call(raw)
	}
	if repaired, ok := repairToolArgs(t.Name, s); ok {
		return call(repaired)
	}
	if _, err := strictDecode(s); err != nil {
		return nil, &BadArgsError{Reason: err.Error()}
	}
	return call([]byte(s))
}

func strictDecode(s string) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Func builds a Tool from a typed Args struct and a handler, generating the
// JSON schema via reflection — unchanged in shape from the teacher's
// sdk/tools/tool.go Func constructor.
func Func[Args any](name, description string, fn func(ctx context.Context, args Args, deps *Container) (any, error)) Tool {
	schema := SchemaFor[Args]()
	return Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		Handler: func(ctx context.Context, raw json.RawMessage, deps *Container) (any, error) {
			var a Args
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&a); err != nil {
				return nil, &BadArgsError{Reason: err.Error()}
			}
			return fn(ctx, a, deps)
		},
	}
}
