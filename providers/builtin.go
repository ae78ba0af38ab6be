package providers

import (
	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/providers/github"
	"github.com/goliatone/go-buildhealth/providers/jenkins"
)

// NewDefaultRegistry returns a registry with every built-in normalizer
// registered.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	for _, normalizer := range []core.Normalizer{
		github.NewNormalizer(),
		jenkins.NewNormalizer(),
	} {
		// Built-ins are distinct kinds; registration cannot collide.
		_ = registry.Register(normalizer)
	}
	return registry
}
