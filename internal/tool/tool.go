package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rickgao/hass-mcp/internal/automation"
)

// Output is the uniform result of a tool invocation.
type Output struct {
	Success     bool                    `json:"success"`
	Automations []automation.Automation `json:"automations,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// MarshalJSON writes "automations" whenever the slice is non-nil, so an
// empty list still encodes as [].
func (o Output) MarshalJSON() ([]byte, error) {
	type plain Output
	if o.Automations == nil {
		return json.Marshal(plain(o))
	}
	return json.Marshal(struct {
		plain
		Automations []automation.Automation `json:"automations"`
	}{plain(o), o.Automations})
}

// Tool is one invocable tool.
type Tool interface {
	Name() string
	Manifest() Manifest
	// Invoke runs the tool on JSON arguments. Failures are reported in the
	// Output; Invoke does not panic on bad input.
	Invoke(ctx context.Context, args json.RawMessage) Output
}

// Manifest describes a tool to clients.
type Manifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Schema is the subset of JSON Schema the manifests use.
type Schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Properties  map[string]Schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

// Registry maps tool names to tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Manifests returns every manifest ordered by tool name.
func (r *Registry) Manifests() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Manifest, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Manifest())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
