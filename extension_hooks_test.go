package buildhealth_test

import (
	"encoding/json"
	"testing"

	buildhealth "github.com/goliatone/go-buildhealth"
	"github.com/goliatone/go-buildhealth/core"
	"github.com/goliatone/go-buildhealth/providers"
)

type customNormalizer struct {
	kind core.ProviderKind
}

func (n customNormalizer) Kind() core.ProviderKind { return n.kind }

func (customNormalizer) Normalize(payload []byte, providerName string) (core.BuildEvent, error) {
	return core.BuildEvent{
		ProviderKind: core.ProviderKindJenkins,
		ProviderName: providerName,
		ExternalID:   "1",
		Status:       core.BuildStatusSuccess,
		RawPayload:   json.RawMessage(payload),
	}, nil
}

func TestExtensionHooksNormalizerPacks(t *testing.T) {
	hooks := buildhealth.NewExtensionHooks()

	if err := hooks.RegisterNormalizerPack(buildhealth.NormalizerPack{}); err == nil {
		t.Fatalf("expected unnamed pack to be rejected")
	}
	if err := hooks.RegisterNormalizerPack(buildhealth.NormalizerPack{Name: "empty"}); err == nil {
		t.Fatalf("expected empty pack to be rejected")
	}

	pack := buildhealth.NormalizerPack{
		Name:        "inhouse",
		Normalizers: []core.Normalizer{customNormalizer{kind: core.ProviderKindJenkins}},
	}
	if err := hooks.RegisterNormalizerPack(pack); err != nil {
		t.Fatalf("register pack: %v", err)
	}
	if err := hooks.RegisterNormalizerPack(pack); err == nil {
		t.Fatalf("expected duplicate pack name to be rejected")
	}

	registry := providers.NewRegistry()
	if err := hooks.ApplyNormalizerPacks(registry); err != nil {
		t.Fatalf("apply packs: %v", err)
	}
	if _, err := registry.Resolve(core.ProviderKindJenkins); err != nil {
		t.Fatalf("expected contributed normalizer to resolve: %v", err)
	}

	// A second apply collides on the already-registered kind.
	if err := hooks.ApplyNormalizerPacks(registry); err == nil {
		t.Fatalf("expected kind collision on re-apply")
	}
}

func TestExtensionHooksBundles(t *testing.T) {
	hooks := buildhealth.NewExtensionHooks()

	if err := hooks.RegisterBundle("", nil); err == nil {
		t.Fatalf("expected unnamed bundle to be rejected")
	}
	if err := hooks.RegisterBundle("reports", nil); err == nil {
		t.Fatalf("expected nil factory to be rejected")
	}

	if err := hooks.RegisterBundle("reports", func(service *buildhealth.Service) (any, error) {
		return service.Metrics(), nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if got := hooks.BundleNames(); len(got) != 1 || got[0] != "reports" {
		t.Fatalf("expected bundle listing, got %v", got)
	}

	stores := newMemoryStores()
	svc, err := buildhealth.NewService(buildhealth.Config{},
		buildhealth.WithProviderStore(stores.providers),
		buildhealth.WithBuildStore(stores.builds),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	bundles, err := hooks.BuildBundles(svc)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	if bundles["reports"] == nil {
		t.Fatalf("expected reports bundle built over the service")
	}
}
