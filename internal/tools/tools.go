// Package tools defines the closed set of functions the assistant may call
// against the dental CRM. Each tool carries an OpenAI function definition and
// an executor; executors expect arguments that already passed tenant
// enforcement.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dentalops/assistant/internal/appserver"
)

// Tool is a single callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Exec        func(ctx context.Context, args map[string]any) (string, error)
}

// Definition renders the tool in the shape the chat completion API expects.
func (t Tool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		},
	}
}

// Registry holds tools by name and preserves registration order.
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry builds a registry. Duplicate names panic; the tool set is
// assembled once at startup and a collision is a programming error.
func NewRegistry(list ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(list))}
	for _, t := range list {
		if _, exists := r.byName[t.Name]; exists {
			panic(fmt.Sprintf("tools: duplicate tool %q", t.Name))
		}
		r.byName[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return r
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions renders the named subset of tools for a chat request. Unknown
// names are skipped so agents can declare tools that are disabled at runtime.
func (r *Registry) Definitions(names []string) []openai.Tool {
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.byName[name]; ok {
			defs = append(defs, t.Definition())
		}
	}
	return defs
}

// marshalResult encodes a success envelope: {"ok":true} plus the domain
// payload keys.
func marshalResult(payload map[string]any) (string, error) {
	envelope := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		envelope[k] = v
	}
	envelope["ok"] = true
	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("tools: encode result: %w", err)
	}
	return string(data), nil
}

// ErrorEnvelope renders a failed tool call in the envelope shape successful
// calls use, so the formatter never has to special-case transport errors.
func ErrorEnvelope(toolName string, err error) string {
	payload := map[string]any{"ok": false, "tool": toolName, "error": err.Error()}
	var apiErr *appserver.APIError
	if errors.As(err, &apiErr) {
		payload["status_code"] = apiErr.StatusCode
		payload["body"] = apiErr.Body
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// objectSchema builds a JSON schema object with the given properties.
func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

// argInt64 reads an integer argument that may arrive as a JSON number or a
// numeric string.
func argInt64(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("tools: missing argument %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, fmt.Errorf("tools: argument %q is not a number: %q", key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("tools: argument %q has unsupported type %T", key, raw)
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string, fallback int) int {
	n, err := argInt64(args, key)
	if err != nil {
		return fallback
	}
	return int(n)
}

// writableFields extracts the "fields" object argument and rejects any key
// outside the allowed set.
func writableFields(args map[string]any, allowed map[string]bool) (map[string]any, error) {
	raw, ok := args["fields"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("tools: argument %q must be a non-empty object", "fields")
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if !allowed[k] {
			return nil, fmt.Errorf("tools: field %q is not writable", k)
		}
		out[k] = v
	}
	return out, nil
}
