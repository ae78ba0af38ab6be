package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-buildhealth/core"
)

type countingProviderStore struct {
	mu               sync.Mutex
	provider         core.Provider
	getOrCreateCalls int
	getCalls         int
	getErr           error
}

func (s *countingProviderStore) GetOrCreate(_ context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateCalls++
	provider := s.provider
	provider.Kind = kind
	provider.Name = name
	return provider, nil
}

func (s *countingProviderStore) Get(_ context.Context, id string) (core.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Provider{}, s.getErr
	}
	provider := s.provider
	provider.ID = id
	return provider, nil
}

func newTestProviderCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedProviderStore_GetOrCreate_MissFetchThenHit(t *testing.T) {
	base := &countingProviderStore{provider: core.Provider{ID: "prov-1"}}
	store, err := NewCachedProviderStore(base, newTestProviderCacheService(t))
	if err != nil {
		t.Fatalf("new cached provider store: %v", err)
	}

	first, err := store.GetOrCreate(context.Background(), core.ProviderKindGitHubActions, "github-main")
	if err != nil {
		t.Fatalf("first get-or-create: %v", err)
	}
	if base.getOrCreateCalls != 1 {
		t.Fatalf("expected first read to reach the base store once, got %d", base.getOrCreateCalls)
	}

	second, err := store.GetOrCreate(context.Background(), core.ProviderKindGitHubActions, "github-main")
	if err != nil {
		t.Fatalf("second get-or-create: %v", err)
	}
	if base.getOrCreateCalls != 1 {
		t.Fatalf("expected second read to be a cache hit, base calls=%d", base.getOrCreateCalls)
	}
	if first.ID != second.ID {
		t.Fatalf("expected cached row to match, got %q != %q", first.ID, second.ID)
	}

	// A different provider name is a different key.
	if _, err := store.GetOrCreate(context.Background(), core.ProviderKindGitHubActions, "github-staging"); err != nil {
		t.Fatalf("third get-or-create: %v", err)
	}
	if base.getOrCreateCalls != 2 {
		t.Fatalf("expected distinct name to miss the cache, base calls=%d", base.getOrCreateCalls)
	}
}

func TestCachedProviderStore_Get_MissFetchThenHit(t *testing.T) {
	base := &countingProviderStore{provider: core.Provider{Name: "github-main"}}
	store, err := NewCachedProviderStore(base, newTestProviderCacheService(t))
	if err != nil {
		t.Fatalf("new cached provider store: %v", err)
	}

	if _, err := store.Get(context.Background(), "prov-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := store.Get(context.Background(), "prov-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read for a repeated id, got %d", base.getCalls)
	}
}

func TestProviderCacheKey_Contract(t *testing.T) {
	key := ProviderCacheKey(core.ProviderKindGitHubActions, " Team/Alpha CI ")
	const expected = "buildhealth::provider::v1::github_actions::Team%2FAlpha%20CI"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}
}

func TestCachedProviderStore_PropagatesBaseErrors(t *testing.T) {
	base := &countingProviderStore{getErr: core.ErrProviderNotFound}
	store, err := NewCachedProviderStore(base, newTestProviderCacheService(t))
	if err != nil {
		t.Fatalf("new cached provider store: %v", err)
	}

	if _, err := store.Get(context.Background(), "prov-404"); !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestNewCachedProviderStoreRequiresDependencies(t *testing.T) {
	if _, err := NewCachedProviderStore(nil, newTestProviderCacheService(t)); err == nil {
		t.Fatalf("expected nil base store to be rejected")
	}
	if _, err := NewCachedProviderStore(&countingProviderStore{}, nil); err == nil {
		t.Fatalf("expected nil cache service to be rejected")
	}
}
