// Package toolregistry defines the Tool registry collaborator interface
// and a reference in-process implementation.
package toolregistry

import (
	"context"
	"fmt"
	"sync"
)

// ToolDescriptor is the metadata the orchestration core sees for a
// registered tool.
type ToolDescriptor struct {
	Name         string
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// Invoker is the function a tool executes when invoked.
type Invoker func(ctx context.Context, args map[string]any) (any, error)

// ToolRegistry is the collaborator interface the Supervisor and Semantic
// Validator consult for hallucination detection and tool-call repair.
type ToolRegistry interface {
	ListAll(ctx context.Context) ([]ToolDescriptor, error)
	Get(ctx context.Context, name string) (ToolDescriptor, bool, error)
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// InMemory is a reference registry backed by a map, suitable for the CLI
// entry point and tests.
type InMemory struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
	impls map[string]Invoker
}

// NewInMemory constructs an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{
		tools: make(map[string]ToolDescriptor),
		impls: make(map[string]Invoker),
	}
}

// Register adds a tool with its invoker.
func (r *InMemory) Register(desc ToolDescriptor, fn Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[desc.Name] = desc
	r.impls[desc.Name] = fn
}

func (r *InMemory) ListAll(_ context.Context) ([]ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out, nil
}

func (r *InMemory) Get(_ context.Context, name string) (ToolDescriptor, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok, nil
}

func (r *InMemory) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.impls[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	return fn(ctx, args)
}
