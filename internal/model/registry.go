package model

import (
	"fmt"
	"sync"
)

// GeneratorFactory constructs a Generator. Registered at startup, invoked
// lazily on first lookup.
type GeneratorFactory func() (Generator, error)

// EmbedderFactory constructs an Embedder.
type EmbedderFactory func() (Embedder, error)

// Registry maps model identifiers to factories and caches the constructed
// instances, so each backend is loaded once and reused for the process
// lifetime. A Registry is constructed at startup and passed by reference;
// there is no package-level instance.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	generatorFactories map[string]GeneratorFactory
	embedderFactories  map[string]EmbedderFactory

	generators map[string]Generator
	embedders  map[string]Embedder
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		generatorFactories: make(map[string]GeneratorFactory),
		embedderFactories:  make(map[string]EmbedderFactory),
		generators:         make(map[string]Generator),
		embedders:          make(map[string]Embedder),
	}
}

// RegisterGenerator registers a generator factory under the given name.
// Registering the same name twice replaces the factory; instances already
// constructed are kept.
func (r *Registry) RegisterGenerator(name string, factory GeneratorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generatorFactories[name] = factory
}

// RegisterEmbedder registers an embedder factory under the given name.
func (r *Registry) RegisterEmbedder(name string, factory EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedderFactories[name] = factory
}

// Generator returns the generator registered under name, constructing it on
// first use.
func (r *Registry) Generator(name string) (Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.generators[name]; ok {
		return g, nil
	}

	factory, ok := r.generatorFactories[name]
	if !ok {
		return nil, fmt.Errorf("generator %q not registered", name)
	}

	g, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing generator %q: %w", name, err)
	}

	r.generators[name] = g
	return g, nil
}

// Embedder returns the embedder registered under name, constructing it on
// first use.
func (r *Registry) Embedder(name string) (Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.embedders[name]; ok {
		return e, nil
	}

	factory, ok := r.embedderFactories[name]
	if !ok {
		return nil, fmt.Errorf("embedder %q not registered", name)
	}

	e, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing embedder %q: %w", name, err)
	}

	r.embedders[name] = e
	return e, nil
}
