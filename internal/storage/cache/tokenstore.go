// Package cache adds a Redis read-aside layer over any relay.TokenStore.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest any) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTokenStore is a decorator that adds read-aside caching to any
// TokenStore. Only per-user reads are cached; broadcasts always hit the
// source of truth.
type CachedTokenStore struct {
	realStore relay.TokenStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedTokenStore(realStore relay.TokenStore, cache CacheClient, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATHS ---

func (s *CachedTokenStore) Get(ctx context.Context, userID string) (relay.TokenRecord, error) {
	key := s.cacheKey(userID)

	var cached relay.TokenRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	record, err := s.realStore.Get(ctx, userID)
	if err != nil {
		return relay.TokenRecord{}, err
	}

	// Populate is fire-and-forget: caching is an optimization, not a
	// transaction. If Redis is down we just serve from the store.
	_ = s.cache.Set(ctx, key, record, s.ttl)

	return record, nil
}

// All bypasses the cache entirely. A broadcast fanning out over a stale view
// of the collection would skip newly registered users.
func (s *CachedTokenStore) All(ctx context.Context) ([]relay.TokenRecord, error) {
	return s.realStore.All(ctx)
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTokenStore) Add(ctx context.Context, userID, token string) error {
	if err := s.realStore.Add(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// Remove invalidates even though the store write succeeded: a pruned token
// must stop receiving sends immediately, not when the TTL expires.
func (s *CachedTokenStore) Remove(ctx context.Context, userID string, tokens []string) error {
	if err := s.realStore.Remove(ctx, userID, tokens); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// --- Helpers ---

func (s *CachedTokenStore) invalidate(ctx context.Context, userID string) error {
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedTokenStore) cacheKey(userID string) string {
	return fmt.Sprintf("relay:tokens:%s", userID)
}
