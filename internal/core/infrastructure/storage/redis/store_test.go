package redis

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisconfig "github.com/weisyn/contractcore/internal/config/storage/redis"
	storage "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	"github.com/weisyn/contractcore/pkg/types"
)

// setupTestStore 需要设置 REDIS_ADDR，否则跳过
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR 未设置，跳过Redis集成测试")
	}
	prefix := "contractcore-test:" + uuid.NewString() + ":"
	cfg := redisconfig.New(&types.UserStorageConfig{RedisAddr: &addr, RedisPrefix: &prefix})

	store, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		all, _ := store.PrefixScan(ctx, nil)
		for k := range all {
			_ = store.Delete(ctx, []byte(k))
		}
		_ = store.Close()
	})
	return store
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `st/a\*b\?\[x\]`, escapeGlob("st/a*b?[x]"))
}

func TestStore_RoundTripAndScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	v, err := store.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Set(ctx, []byte("st/a/1"), []byte("1")))
	require.NoError(t, store.Set(ctx, []byte("st/a/2"), []byte("2")))
	require.NoError(t, store.Set(ctx, []byte("st/b/1"), []byte("x")))

	got, err := store.PrefixScan(ctx, []byte("st/a/"))
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"st/a/1": []byte("1"), "st/a/2": []byte("2")}, got)
}

func TestStore_RunInTransaction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, []byte("k0"), []byte("old")))

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		require.NoError(t, tx.Set([]byte("k1"), []byte("v1")))
		return errors.New("abort")
	})
	require.Error(t, err)
	exists, err := store.Exists(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Delete([]byte("k0")); err != nil {
			return err
		}
		return tx.Set([]byte("k1"), []byte("v1"))
	}))
	v, err := store.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
	exists, err = store.Exists(ctx, []byte("k0"))
	require.NoError(t, err)
	assert.False(t, exists)
}
