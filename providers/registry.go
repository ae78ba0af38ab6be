package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-buildhealth/core"
)

// Registry maps provider kinds to their normalizers. Safe for concurrent
// use; registration normally happens once at startup.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[core.ProviderKind]core.Normalizer
}

func NewRegistry() *Registry {
	return &Registry{
		normalizers: map[core.ProviderKind]core.Normalizer{},
	}
}

func (r *Registry) Register(normalizer core.Normalizer) error {
	if r == nil {
		return fmt.Errorf("providers: registry is nil")
	}
	if normalizer == nil {
		return fmt.Errorf("providers: normalizer is required")
	}
	kind := normalizer.Kind()
	if err := kind.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.normalizers[kind]; exists {
		return fmt.Errorf("providers: normalizer already registered for kind %q", kind)
	}
	r.normalizers[kind] = normalizer
	return nil
}

func (r *Registry) Resolve(kind core.ProviderKind) (core.Normalizer, error) {
	if r == nil {
		return nil, fmt.Errorf("providers: registry is nil")
	}
	normalized := core.ProviderKind(strings.TrimSpace(strings.ToLower(string(kind))))
	r.mu.RLock()
	defer r.mu.RUnlock()
	normalizer, ok := r.normalizers[normalized]
	if !ok {
		return nil, core.NewValidationError("provider_kind",
			fmt.Sprintf("no normalizer registered for kind %q", kind))
	}
	return normalizer, nil
}

func (r *Registry) Kinds() []core.ProviderKind {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]core.ProviderKind, 0, len(r.normalizers))
	for kind := range r.normalizers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
