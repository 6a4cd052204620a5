package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-keyring/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const tokenCacheKeyPrefix = "go-keyring::token::v1"

// CachedTokenStore layers a read-through cache over a TokenStore. Writes and
// deletes invalidate; ambiguous or empty-id reads always hit the base store
// since their answer depends on row counts.
type CachedTokenStore struct {
	base  core.TokenStore
	cache repositorycache.CacheService

	mu          sync.Mutex
	generations map[string]uint64
}

func NewCachedTokenStore(base core.TokenStore, cacheService repositorycache.CacheService) (*CachedTokenStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base token store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: token cache service is required")
	}
	return &CachedTokenStore{
		base:        base,
		cache:       cacheService,
		generations: make(map[string]uint64),
	}, nil
}

// TokenCacheKey returns the deterministic cache key contract for token
// reads: go-keyring::token::v1::<service>::<user>::<token_id> with each
// segment URL-path escaped.
func TokenCacheKey(serviceName, userID, tokenID string) (string, error) {
	serviceName = strings.TrimSpace(serviceName)
	userID = strings.TrimSpace(userID)
	tokenID = strings.TrimSpace(tokenID)
	if serviceName == "" || userID == "" || tokenID == "" {
		return "", fmt.Errorf("sqlstore: cache key requires service, user and token id")
	}
	segments := []string{serviceName, userID, tokenID}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{tokenCacheKeyPrefix}, segments...), "::"), nil
}

func pairKey(serviceName, userID string) string {
	return url.PathEscape(strings.TrimSpace(serviceName)) + "::" + url.PathEscape(strings.TrimSpace(userID))
}

func (s *CachedTokenStore) generation(serviceName, userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[pairKey(serviceName, userID)]
}

func (s *CachedTokenStore) rotate(serviceName, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[pairKey(serviceName, userID)]++
}

// readKey appends the (service, user) generation to the cache key contract.
// A singleton save replaces whichever row the pair held before, so every read
// key for the pair rotates on write rather than just the id being written.
func (s *CachedTokenStore) readKey(serviceName, userID, tokenID string) (string, error) {
	key, err := TokenCacheKey(serviceName, userID, tokenID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s::g%d", key, s.generation(serviceName, userID)), nil
}

func (s *CachedTokenStore) Save(ctx context.Context, userID string, token core.Token) (core.TokenRef, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TokenRef{}, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	ref, err := s.base.Save(ctx, userID, token)
	if err != nil {
		return core.TokenRef{}, err
	}
	s.rotate(ref.ServiceName, ref.UserID)
	return ref, nil
}

func (s *CachedTokenStore) Get(ctx context.Context, serviceName, userID, tokenID string) (core.Token, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Token{}, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	cacheKey, err := s.readKey(serviceName, userID, tokenID)
	if err != nil {
		// Empty-id lookups resolve by row count; caching them would pin a
		// stale answer.
		return s.base.Get(ctx, serviceName, userID, tokenID)
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Token, error) {
		return s.base.Get(ctx, serviceName, userID, tokenID)
	})
}

func (s *CachedTokenStore) List(ctx context.Context, filter core.TokenFilter) ([]core.Token, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedTokenStore) Delete(ctx context.Context, serviceName, userID, tokenID string) (bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return false, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	deleted, err := s.base.Delete(ctx, serviceName, userID, tokenID)
	if err != nil {
		return false, err
	}
	s.rotate(serviceName, userID)
	return deleted, nil
}

func (s *CachedTokenStore) Count(ctx context.Context, serviceName, userID string) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	return s.base.Count(ctx, serviceName, userID)
}

var _ core.TokenStore = (*CachedTokenStore)(nil)
