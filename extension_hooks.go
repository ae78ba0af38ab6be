package buildhealth

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/providers"
)

// NormalizerPack is a named group of provider normalizers a downstream
// module contributes, e.g. an in-house CI system.
type NormalizerPack struct {
	Name        string
	Normalizers []core.Normalizer
}

// BundleFactory builds an arbitrary command/query bundle over an
// assembled service.
type BundleFactory func(service *Service) (any, error)

// ExtensionHooks lets embedding applications contribute normalizers and
// handler bundles before the service is assembled.
type ExtensionHooks struct {
	mu sync.RWMutex

	normalizerPacks map[string]NormalizerPack
	bundles         map[string]BundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		normalizerPacks: map[string]NormalizerPack{},
		bundles:         map[string]BundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterNormalizerPack(pack NormalizerPack) error {
	if h == nil {
		return fmt.Errorf("buildhealth: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("buildhealth: normalizer pack name is required")
	}
	if len(pack.Normalizers) == 0 {
		return fmt.Errorf("buildhealth: normalizer pack %q has no normalizers", name)
	}

	normalized := NormalizerPack{
		Name:        name,
		Normalizers: append([]core.Normalizer(nil), pack.Normalizers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.normalizerPacks[name]; exists {
		return fmt.Errorf("buildhealth: normalizer pack %q already registered", name)
	}
	h.normalizerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterBundle(name string, factory BundleFactory) error {
	if h == nil {
		return fmt.Errorf("buildhealth: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("buildhealth: bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("buildhealth: bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("buildhealth: bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyNormalizerPacks registers every contributed normalizer with the
// registry; a kind collision aborts with the registry's error.
func (h *ExtensionHooks) ApplyNormalizerPacks(registry *providers.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("buildhealth: normalizer registry is required")
	}

	for _, pack := range h.NormalizerPacks() {
		for _, normalizer := range pack.Normalizers {
			if normalizer == nil {
				return fmt.Errorf("buildhealth: normalizer pack %q contains nil normalizer", pack.Name)
			}
			if err := registry.Register(normalizer); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildBundles(service *Service) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("buildhealth: service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]BundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) NormalizerPacks() []NormalizerPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.normalizerPacks))
	for name := range h.normalizerPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]NormalizerPack, 0, len(names))
	for _, name := range names {
		pack := h.normalizerPacks[name]
		out = append(out, NormalizerPack{
			Name:        pack.Name,
			Normalizers: append([]core.Normalizer(nil), pack.Normalizers...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
