package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	badgerconfig "github.com/weisyn/contractcore/internal/config/storage/badger"
	interfaces "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
)

// setupTestStore 在临时目录上打开磁盘模式的 Store
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	options := badgerconfig.New(nil).GetOptions()
	options.Path = t.TempDir()
	options.SyncWrites = false

	store, err := New(badgerconfig.NewFromOptions(options), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestStore_BasicOperations 测试基本读写
func TestStore_BasicOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// 不存在的键返回 nil, nil
	val, err := store.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set(ctx, []byte("st/a/k"), []byte("v")))
	val, err = store.Get(ctx, []byte("st/a/k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	exists, err := store.Exists(ctx, []byte("st/a/k"))
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, []byte("st/a/k")))
	exists, err = store.Exists(ctx, []byte("st/a/k"))
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestStore_PrefixScan 前缀扫描不越过前缀边界
func TestStore_PrefixScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, []byte("st/a/1"), []byte("1")))
	require.NoError(t, store.Set(ctx, []byte("st/a/2"), []byte("2")))
	require.NoError(t, store.Set(ctx, []byte("st/b/1"), []byte("x")))

	result, err := store.PrefixScan(ctx, []byte("st/a/"))
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"st/a/1": []byte("1"), "st/a/2": []byte("2")}, result)
}

// TestStore_RunInTransaction 事务原子性
func TestStore_RunInTransaction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, []byte("k0"), []byte("old")))

	t.Run("fn 出错时全部回滚", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunInTransaction(ctx, func(tx interfaces.Transaction) error {
			require.NoError(t, tx.Set([]byte("k1"), []byte("v1")))
			require.NoError(t, tx.Delete([]byte("k0")))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		v, err := store.Get(ctx, []byte("k0"))
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), v)
		exists, err := store.Exists(ctx, []byte("k1"))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("事务内可读到未提交写入", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx interfaces.Transaction) error {
			if err := tx.Set([]byte("k2"), []byte("v2")); err != nil {
				return err
			}
			v, err := tx.Get([]byte("k2"))
			if err != nil {
				return err
			}
			assert.Equal(t, []byte("v2"), v)
			return nil
		})
		require.NoError(t, err)

		v, err := store.Get(ctx, []byte("k2"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), v)
	})
}

// TestStore_ClosedRejectsOperations 关闭后拒绝读写
func TestStore_ClosedRejectsOperations(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Set(context.Background(), []byte("k"), []byte("v")), interfaces.ErrStoreClosed)
	_, err := store.Get(context.Background(), []byte("k"))
	assert.ErrorIs(t, err, interfaces.ErrStoreClosed)
}

// TestStore_Reopen 数据持久化
func TestStore_Reopen(t *testing.T) {
	options := badgerconfig.New(nil).GetOptions()
	options.Path = t.TempDir()

	store, err := New(badgerconfig.NewFromOptions(options), nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), []byte("reg/a"), []byte("ptr")))
	require.NoError(t, store.Close())

	reopened, err := New(badgerconfig.NewFromOptions(options), nil)
	require.NoError(t, err)
	defer reopened.Close()
	v, err := reopened.Get(context.Background(), []byte("reg/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ptr"), v)
}
