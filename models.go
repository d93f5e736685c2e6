package declarest

import (
	"encoding/json"
	"sync"
)

// Model is the optional structural contract for request/response bindings.
// Plain structs with JSON tags work everywhere a Model does; implementing
// the interface only buys custom mapping.
type Model interface {
	ToMap() (map[string]any, error)
}

// ModelValidator is implemented by models that self-check outbound bodies.
type ModelValidator interface {
	Validate() bool
}

// ModelRegistry binds model names used in config documents to prototype
// factories. It is an explicit, process-scoped object passed to clients,
// not a package-level singleton; separate registries stay isolated.
type ModelRegistry struct {
	mu        sync.RWMutex
	factories map[string]func() any
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{factories: make(map[string]func() any)}
}

// Register binds name to a factory returning a fresh model instance,
// typically a pointer to a tagged struct:
//
//	registry.Register("User", func() any { return &User{} })
func (r *ModelRegistry) Register(name string, factory func() any) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// New instantiates a registered model.
func (r *ModelRegistry) New(name string) (any, bool) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names lists the registered model names.
func (r *ModelRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// coerceBody normalizes an outbound body against the optionally configured
// model binding. The result is a JSON-encodable value ready for transport.
func coerceBody(body any, modelName string, registry *ModelRegistry) (any, error) {
	if body == nil {
		return nil, nil
	}

	// Explicit Model implementations map themselves.
	if m, ok := body.(Model); ok {
		if v, ok := body.(ModelValidator); ok && !v.Validate() {
			return nil, newValidationError("body", "model validation failed")
		}
		mapped, err := m.ToMap()
		if err != nil {
			return nil, newValidationError("body", "model mapping failed: %v", err)
		}
		return mapped, nil
	}

	if modelName == "" || registry == nil {
		return body, nil
	}
	instance, ok := registry.New(modelName)
	if !ok {
		return nil, newConfigurationError("request model %q is not registered", modelName)
	}

	// Round-trip through the model type to enforce its schema.
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, newValidationError("body", "body is not JSON-encodable: %v", err)
	}
	if err := json.Unmarshal(encoded, instance); err != nil {
		return nil, newValidationError("body", "body does not match model %q: %v", modelName, err)
	}
	if v, ok := instance.(ModelValidator); ok && !v.Validate() {
		return nil, newValidationError("body", "body validation failed for model %q", modelName)
	}
	if m, ok := instance.(Model); ok {
		mapped, err := m.ToMap()
		if err != nil {
			return nil, newValidationError("body", "model mapping failed: %v", err)
		}
		return mapped, nil
	}
	return instance, nil
}
