package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sevotec/voting-service/adapters/store"
	"github.com/sevotec/voting-service/adapters/warehouse"
	"github.com/sevotec/voting-service/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPool_ConcurrentPopsAreDistinct(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	const n = 100
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("token-%d", i)
	}
	require.NoError(t, s.AddTokens(ctx, tokens))

	pool := NewTokenPool(s, &warehouse.StaticWarehouse{}, discardLogger())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := pool.PopToken(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[token], "token %s handed out twice", token)
			seen[token] = true
		}()
	}
	wg.Wait()
	require.Len(t, seen, n)

	_, err := pool.PopToken(ctx)
	require.ErrorIs(t, err, core.ErrPoolExhausted)
	require.Equal(t, core.KindResourceExhausted, core.KindOf(err))
}

func TestTokenPool_Hydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("loads an empty pool", func(t *testing.T) {
		s := store.NewMemoryStore()
		pool := NewTokenPool(s, &warehouse.StaticWarehouse{Tokens: []string{"a", "b", "c"}}, discardLogger())

		loaded, err := pool.Hydrate(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, loaded)

		size, err := pool.Size(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, size)
	})

	t.Run("is a no-op on a populated pool", func(t *testing.T) {
		s := store.NewMemoryStore()
		require.NoError(t, s.AddTokens(ctx, []string{"existing"}))
		pool := NewTokenPool(s, &warehouse.StaticWarehouse{Tokens: []string{"a", "b"}}, discardLogger())

		loaded, err := pool.Hydrate(ctx)
		require.NoError(t, err)
		require.Zero(t, loaded)

		size, err := pool.Size(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, size)
	})

	t.Run("repeated hydration does not duplicate", func(t *testing.T) {
		s := store.NewMemoryStore()
		pool := NewTokenPool(s, &warehouse.StaticWarehouse{Tokens: []string{"a", "b"}}, discardLogger())

		_, err := pool.Hydrate(ctx)
		require.NoError(t, err)
		_, err = pool.Hydrate(ctx)
		require.NoError(t, err)

		size, err := pool.Size(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, size)
	})

	t.Run("warehouse failure leaves the pool empty", func(t *testing.T) {
		s := store.NewMemoryStore()
		pool := NewTokenPool(s, &warehouse.StaticWarehouse{Err: errors.New("connection refused")}, discardLogger())

		_, err := pool.Hydrate(ctx)
		require.Error(t, err)

		_, err = pool.PopToken(ctx)
		require.ErrorIs(t, err, core.ErrPoolExhausted)
	})
}
