package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrDuplicateTool    = errors.New("duplicate tool")
)

type entry struct {
	spec    ToolSpec
	handler Handler
	schema  *jsonschema.Schema // nil when the spec has no input schema
}

// Registry maps tool names to their spec and handler. Registration order is
// preserved for Describe. Register is not safe for concurrent use; lookups are
// read-only after setup.
type Registry struct {
	order   []string
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// NewRegistryFrom registers each definition in order.
func NewRegistryFrom(defs ...ToolDefinition) (*Registry, error) {
	r := NewRegistry()
	for _, d := range defs {
		if err := r.Register(d.ToolSpec, d.Function); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. The input schema is compiled once so every Invoke can
// validate arguments against it.
func (r *Registry) Register(spec ToolSpec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if handler == nil {
		return fmt.Errorf("register tool %q: nil handler", spec.Name)
	}
	if _, ok := r.entries[spec.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, spec.Name)
	}
	e := entry{spec: spec, handler: handler}
	if spec.InputSchema != nil {
		sch, err := compileSchema(spec.Name, spec.InputSchema)
		if err != nil {
			return fmt.Errorf("register tool %q: %w", spec.Name, err)
		}
		e.schema = sch
	}
	r.entries[spec.Name] = e
	r.order = append(r.order, spec.Name)
	return nil
}

// Describe returns the registered specs in registration order.
func (r *Registry) Describe() []ToolSpec {
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].spec)
	}
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Invoke validates args against the tool's schema and runs its handler.
// Empty args are treated as {}.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return "", fmt.Errorf("%w: input is not valid JSON", ErrInvalidArguments)
	}
	if e.schema != nil {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		if err := e.schema.Validate(inst); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	return e.handler(ctx, args)
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	url := "mem:///tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return c.Compile(url)
}
