package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	storage "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
)

// setupTestStore 创建测试存储
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(memoryconfig.New(nil), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestBasicOperations 测试基本操作
func TestBasicOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Arrange
	key := []byte("st/a/k")

	// Act & Assert
	v, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Set(ctx, key, []byte{}))
	v, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, v, "空值与不存在必须可区分")
	assert.Empty(t, v)

	require.NoError(t, store.Set(ctx, key, []byte("v")))
	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key), "删除不存在的键不报错")
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestPrefixScan 测试前缀扫描
func TestPrefixScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, store.Set(ctx, []byte(fmt.Sprintf("ver/a/%03d", i)), []byte{byte(i)}))
	}
	require.NoError(t, store.Set(ctx, []byte("ver/b/000"), []byte("other")))

	result, err := store.PrefixScan(ctx, []byte("ver/a/"))
	require.NoError(t, err)
	assert.Len(t, result, 20)
	assert.Equal(t, []byte{7}, result["ver/a/007"])
}

// TestRunInTransaction 测试暂存事务
func TestRunInTransaction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, []byte("k0"), []byte("old")))

	t.Run("出错时不应用任何写入", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			require.NoError(t, tx.Set([]byte("k1"), []byte("v1")))
			require.NoError(t, tx.Delete([]byte("k0")))
			v, err := tx.Get([]byte("k0"))
			require.NoError(t, err)
			assert.Nil(t, v, "事务内可见自身的删除")
			return errors.New("abort")
		})
		require.Error(t, err)

		v, err := store.Get(ctx, []byte("k0"))
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), v)
		v, err = store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("成功时全部应用", func(t *testing.T) {
		var leaked storage.Transaction
		err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
			leaked = tx
			if err := tx.Set([]byte("k1"), []byte("v1")); err != nil {
				return err
			}
			return tx.Delete([]byte("k0"))
		})
		require.NoError(t, err)

		v, _ := store.Get(ctx, []byte("k1"))
		assert.Equal(t, []byte("v1"), v)
		v, _ = store.Get(ctx, []byte("k0"))
		assert.Nil(t, v)

		assert.ErrorIs(t, leaked.Set([]byte("k2"), nil), storage.ErrTxNotActive)
	})
}

// TestConcurrentWrites 并发写入不同键
func TestConcurrentWrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
				return tx.Set([]byte(fmt.Sprintf("c/%d", i)), []byte("x"))
			})
		}(i)
	}
	wg.Wait()

	result, err := store.PrefixScan(ctx, []byte("c/"))
	require.NoError(t, err)
	assert.Len(t, result, 50)
}

// TestClosed 关闭后拒绝操作
func TestClosed(t *testing.T) {
	store, err := New(memoryconfig.New(nil), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Get(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
}
