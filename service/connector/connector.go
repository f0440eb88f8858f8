package connector

import (
	"context"
	"sync"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
)

// Service is the narrow boundary to an external vendor. Submit performs the
// irreversible effect and returns the vendor-side identifier; failures come
// back as errors (typically a DeliveryError), never as a flag.
type Service interface {
	Name() string

	// Kind returns the task kind this connector serves.
	Kind() model.Kind

	// MaxPayload returns the platform payload cap in characters, zero when
	// the platform imposes none. The engine folds it into policy limits.
	MaxPayload() int

	Submit(ctx context.Context, task *model.Task) (*types.Result, error)
}

// Registry holds the connectors available to the engine. It is constructed
// once at startup and passed by reference; there is no process-wide
// registry.
type Registry struct {
	mux      sync.RWMutex
	services map[model.Kind]Service
}

// NewRegistry creates a registry pre-populated with the given connectors.
func NewRegistry(services ...Service) *Registry {
	registry := &Registry{services: make(map[model.Kind]Service)}
	for _, service := range services {
		registry.Register(service)
	}
	return registry
}

// Register adds a connector; a later registration for the same kind wins.
func (r *Registry) Register(service Service) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.services[service.Kind()] = service
}

// Lookup returns the connector serving kind, or nil.
func (r *Registry) Lookup(kind model.Kind) Service {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.services[kind]
}

// Kinds returns the kinds with a registered connector.
func (r *Registry) Kinds() []model.Kind {
	r.mux.RLock()
	defer r.mux.RUnlock()
	kinds := make([]model.Kind, 0, len(r.services))
	for kind := range r.services {
		kinds = append(kinds, kind)
	}
	return kinds
}
