package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-buildhealth/core"
)

const providerCacheKeyPrefix = "buildhealth::provider::v1"

// CachedProviderStore fronts provider reads with a cache. Provider rows
// are immutable once created, so entries never need invalidation; only
// the not-yet-created case bypasses the cache.
type CachedProviderStore struct {
	base  core.ProviderStore
	cache repositorycache.CacheService
}

func NewCachedProviderStore(base core.ProviderStore, cacheService repositorycache.CacheService) (*CachedProviderStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base provider store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: provider cache service is required")
	}
	return &CachedProviderStore{base: base, cache: cacheService}, nil
}

// ProviderCacheKey is the deterministic key contract for provider
// lookups: buildhealth::provider::v1::<kind>::<name> with each segment
// URL-path escaped.
func ProviderCacheKey(kind core.ProviderKind, name string) string {
	segments := []string{
		url.PathEscape(string(kind)),
		url.PathEscape(strings.TrimSpace(name)),
	}
	return strings.Join(append([]string{providerCacheKeyPrefix}, segments...), "::")
}

func (s *CachedProviderStore) GetOrCreate(ctx context.Context, kind core.ProviderKind, name string) (core.Provider, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	if err := kind.Validate(); err != nil {
		return core.Provider{}, err
	}
	cacheKey := ProviderCacheKey(kind, name)
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Provider, error) {
		return s.base.GetOrCreate(ctx, kind, name)
	})
}

func (s *CachedProviderStore) Get(ctx context.Context, id string) (core.Provider, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Provider{}, fmt.Errorf("sqlstore: cached provider store is not configured")
	}
	cacheKey := strings.Join([]string{providerCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Provider, error) {
		return s.base.Get(ctx, id)
	})
}

var _ core.ProviderStore = (*CachedProviderStore)(nil)
