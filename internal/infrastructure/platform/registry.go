package platform

import (
	domainplatform "github.com/orderbridge/backend/internal/domain/platform"
)

// AdapterRegistry is the concrete platform registry. Adapters are fixed at
// construction; there is no runtime registration.
type AdapterRegistry struct {
	adapters map[domainplatform.Code]domainplatform.DeliveryPlatform
}

// NewAdapterRegistry creates a registry from the given adapters
func NewAdapterRegistry(adapters ...domainplatform.DeliveryPlatform) *AdapterRegistry {
	m := make(map[domainplatform.Code]domainplatform.DeliveryPlatform, len(adapters))
	for _, a := range adapters {
		m[a.Code()] = a
	}
	return &AdapterRegistry{adapters: m}
}

// Get returns the adapter for the given code
func (r *AdapterRegistry) Get(code domainplatform.Code) (domainplatform.DeliveryPlatform, error) {
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, domainplatform.ErrUnknownPlatform
	}
	return adapter, nil
}

// List returns all registered adapters
func (r *AdapterRegistry) List() []domainplatform.DeliveryPlatform {
	out := make([]domainplatform.DeliveryPlatform, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

var _ domainplatform.Registry = (*AdapterRegistry)(nil)
