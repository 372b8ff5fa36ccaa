package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/crackle/pkg/domain"
	"github.com/aretw0/crackle/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSlurpCacheContract runs a suite of tests to verify that a SlurpCache
// implementation adheres to the defined interface contract.
func RunSlurpCacheContract(t *testing.T, cache SlurpCache) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Store and Load", func(t *testing.T) {
		key := prefix + ".session.recv.token"
		rec := domain.SlurpRecording{
			Source: "recv.msg.token",
			Sinks:  []string{"send.msg.token"},
			Value:  model.Uint(0xCAFE),
		}
		require.NoError(t, cache.Store(ctx, key, rec))

		loaded, ok, err := cache.Load(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rec.Source, loaded.Source)
		assert.Equal(t, rec.Sinks, loaded.Sinks)
		assert.True(t, rec.Value.Equal(loaded.Value), "got %v", loaded.Value)
	})

	t.Run("Load Missing", func(t *testing.T) {
		_, ok, err := cache.Load(ctx, prefix+".missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + ".overwrite"
		require.NoError(t, cache.Store(ctx, key, domain.SlurpRecording{Source: "a", Value: model.String("one")}))
		require.NoError(t, cache.Store(ctx, key, domain.SlurpRecording{Source: "a", Value: model.Bytes([]byte{1, 2})}))

		loaded, ok, err := cache.Load(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, model.ValueBytes, loaded.Value.Type())
		assert.Equal(t, []byte{1, 2}, loaded.Value.AsBytes())
	})
}

// RunLockerContract verifies mutual exclusion and release of a DistributedLocker.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("20060102150405")

	unlock, err := locker.Lock(ctx, key, time.Minute)
	require.NoError(t, err)

	t.Run("Held Lock Blocks", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()
		_, err := locker.Lock(waitCtx, key, time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Released Lock Is Acquirable", func(t *testing.T) {
		require.NoError(t, unlock(ctx))
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		again, err := locker.Lock(waitCtx, key, time.Minute)
		require.NoError(t, err)
		assert.NoError(t, again(ctx))
	})
}
