package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-relay/internal/storage/cache"
	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest any) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) Add(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}
func (m *MockRealStore) Get(ctx context.Context, userID string) (relay.TokenRecord, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(relay.TokenRecord), args.Error(1)
}
func (m *MockRealStore) All(ctx context.Context) ([]relay.TokenRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]relay.TokenRecord), args.Error(1)
}
func (m *MockRealStore) Remove(ctx context.Context, userID string, tokens []string) error {
	return m.Called(ctx, userID, tokens).Error(0)
}

func TestCachedStore_Reads(t *testing.T) {
	ctx := context.Background()
	cacheKey := "relay:tokens:user-1"
	record := relay.TokenRecord{
		UserID: "user-1",
		Tokens: []string{"ExponentPushToken[aaaa]"},
	}

	t.Run("Cache miss falls through and populates", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(errors.New("cache miss"))
		mockDB.On("Get", ctx, "user-1").Return(record, nil)
		mockCache.On("Set", ctx, cacheKey, record, 1*time.Hour).Return(nil)

		got, err := store.Get(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, record, got)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Cache hit never touches the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Run(func(args mock.Arguments) {
			*(args.Get(2).(*relay.TokenRecord)) = record
		}).Return(nil)

		got, err := store.Get(ctx, "user-1")

		require.NoError(t, err)
		assert.Equal(t, record, got)
		mockDB.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("NotFound from the store is not cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(errors.New("cache miss"))
		mockDB.On("Get", ctx, "user-1").Return(relay.TokenRecord{}, relay.ErrNotFound)

		_, err := store.Get(ctx, "user-1")

		require.ErrorIs(t, err, relay.ErrNotFound)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("All bypasses the cache entirely", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		all := []relay.TokenRecord{record}
		mockDB.On("All", ctx).Return(all, nil)

		got, err := store.All(ctx)

		require.NoError(t, err)
		assert.Equal(t, all, got)
		mockCache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCachedStore_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()
	cacheKey := "relay:tokens:user-1"

	t.Run("Remove invalidates cache immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		tokens := []string{"ExponentPushToken[dead]"}

		// 1. Expect DB call
		mockDB.On("Remove", ctx, "user-1", tokens).Return(nil)

		// 2. Expect Cache DELETE (Crucial!)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		err := store.Remove(ctx, "user-1", tokens)

		require.NoError(t, err)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Add invalidates cache immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		mockDB.On("Add", ctx, "user-1", "ExponentPushToken[new1]").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		err := store.Add(ctx, "user-1", "ExponentPushToken[new1]")

		require.NoError(t, err)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed store write skips invalidation", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedTokenStore(mockDB, mockCache, 1*time.Hour)

		mockDB.On("Add", ctx, "user-1", "ExponentPushToken[new1]").Return(errors.New("store down"))

		err := store.Add(ctx, "user-1", "ExponentPushToken[new1]")

		require.Error(t, err)
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
}
