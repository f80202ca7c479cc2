package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/testutil"
	"github.com/weisyn/contractcore/internal/core/infrastructure/crypto/hash"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

var (
	addrA = testutil.Addr(0xa1)
	addrB = testutil.Addr(0xb2)
)

func newTestManager(t *testing.T, store storage.KVStore) (*Manager, *testutil.MockEventBus) {
	t.Helper()
	if store == nil {
		store = testutil.NewTestStore(t)
	}
	bus := testutil.NewMockEventBus()
	m := New(Params{
		Store:  store,
		Clock:  testutil.NewTestClock(),
		Hasher: hash.NewHashService(),
		Bus:    bus,
		Logger: testutil.NewTestLogger(),
	})
	return m, bus
}

func initAddr(t *testing.T, m *Manager, addr types.Address, limits types.ResourceLimits) {
	t.Helper()
	require.NoError(t, m.Init(context.Background(), addr, limits))
}

// TestWriteRead_IsolatedPerAddress 地址之间状态隔离
func TestWriteRead_IsolatedPerAddress(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	initAddr(t, m, addrB, testutil.DefaultLimits())

	// Act
	require.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("v")))

	// Assert
	v, ok := m.Read(addrA, []byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	_, ok = m.Read(addrB, []byte("k"))
	assert.False(t, ok)
	assert.Equal(t, uint64(2), m.Size(addrA))
	assert.Equal(t, uint64(0), m.Size(addrB))
}

// TestInit_Twice_AlreadyExists 重复初始化
func TestInit_Twice_AlreadyExists(t *testing.T) {
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	err := m.Init(context.Background(), addrA, testutil.DefaultLimits())
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

// TestWrite_UnknownAddress_NotFound 未初始化的地址
func TestWrite_UnknownAddress_NotFound(t *testing.T) {
	m, _ := newTestManager(t, nil)
	err := m.Write(context.Background(), addrA, []byte("k"), []byte("v"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestWrite_SizeLimits 存储上限与键值大小上限
func TestWrite_SizeLimits(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	limits := testutil.DefaultLimits()
	limits.MaxStorage = 10
	initAddr(t, m, addrA, limits)

	t.Run("写入后超过 max_storage", func(t *testing.T) {
		err := m.Write(ctx, addrA, []byte("key"), []byte("12345678"))
		assert.ErrorIs(t, err, types.ErrSizeLimitExceeded)
		assert.Equal(t, uint64(0), m.Size(addrA))
	})

	t.Run("恰好等于 max_storage", func(t *testing.T) {
		require.NoError(t, m.Write(ctx, addrA, []byte("key"), []byte("1234567")))
		assert.Equal(t, uint64(10), m.Size(addrA))
	})

	t.Run("键过长", func(t *testing.T) {
		long := make([]byte, contractconfig.Default().MaxKeySize+1)
		long[0] = 'x'
		initAddr(t, m, addrB, testutil.DefaultLimits())
		err := m.Write(ctx, addrB, long, []byte("v"))
		assert.ErrorIs(t, err, types.ErrSizeLimitExceeded)
	})

	t.Run("空键", func(t *testing.T) {
		err := m.Write(ctx, addrB, nil, []byte("v"))
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

// TestApplyChangeset_AllOrNothing 任一变更非法时整体不生效
func TestApplyChangeset_AllOrNothing(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("a"), []byte("1")))

	// Act
	err := m.ApplyChangeset(ctx, addrA, []types.Change{
		{Key: []byte("a"), Value: []byte("2")},
		{Key: nil, Value: []byte("bad")},
	})

	// Assert
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	v, _ := m.Read(addrA, []byte("a"))
	assert.Equal(t, []byte("1"), v)
	assert.Len(t, m.History(addrA), 1)
}

// TestApplyChangeset_DeleteAndHistory 删除键并记录差异
func TestApplyChangeset_DeleteAndHistory(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.ApplyChangeset(ctx, addrA, []types.Change{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))
	require.NoError(t, m.ApplyChangeset(ctx, addrA, []types.Change{{Key: []byte("a"), Delete: true}}))

	_, ok := m.Read(addrA, []byte("a"))
	assert.False(t, ok)
	history := m.History(addrA)
	require.Len(t, history, 2)
	assert.Equal(t, []types.DiffEntry{{Key: []byte("a"), Old: []byte("1"), New: nil}}, history[1].Diffs)
}

// TestSnapshotRestore_RoundTrip 快照后修改再恢复，内容哈希一致
func TestSnapshotRestore_RoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, bus := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("counter"), []byte{1}))
	snap, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, m.Write(ctx, addrA, []byte("counter"), []byte{2}))
	require.NoError(t, m.Write(ctx, addrA, []byte("extra"), []byte{3}))

	// Act
	err = m.Restore(ctx, addrA, snap)

	// Assert
	require.NoError(t, err)
	view, ok := m.StateView(addrA)
	require.True(t, ok)
	assert.Equal(t, snap.StateHash, StateHash(hash.NewHashService(), view.Entries))
	assert.Len(t, view.Entries, 1)
	assert.Equal(t, "1.0.0", snap.Version)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, types.SnapshotSchemaVersion, snap.SchemaVersion)
	assert.Len(t, bus.Events(contractif.EventStateRestored), 1)
}

// TestRestore_TamperedSnapshot_CorruptedState 内容被篡改的快照被拒绝
func TestRestore_TamperedSnapshot_CorruptedState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("v")))
	snap, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)

	snap.Entries[0].Value = []byte("evil")
	err = m.Restore(ctx, addrA, snap)

	assert.ErrorIs(t, err, types.ErrCorruptedState)
	v, _ := m.Read(addrA, []byte("k"))
	assert.Equal(t, []byte("v"), v)
}

// TestRestore_ForeignSnapshot 其他地址的快照不能用于恢复
func TestRestore_ForeignSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	initAddr(t, m, addrB, testutil.DefaultLimits())
	snap, err := m.Snapshot(ctx, addrB, "1.0.0")
	require.NoError(t, err)

	err = m.Restore(ctx, addrA, snap)
	assert.ErrorIs(t, err, types.ErrInconsistentState)
}

// TestMarkCorrupted_BlocksWritesUntilRestore 隔离后禁止写入，恢复后解除
func TestMarkCorrupted_BlocksWritesUntilRestore(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, bus := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("v")))
	snap, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)

	// Act
	m.MarkCorrupted(ctx, addrA, errors.New("hash mismatch"))

	// Assert
	assert.True(t, m.IsCorrupted(addrA))
	assert.ErrorIs(t, m.Write(ctx, addrA, []byte("k"), []byte("w")), types.ErrCorruptedState)
	assert.ErrorIs(t, m.Migrate(ctx, addrA, "1.0.0", []types.MigrationStep{types.Remove("k")}), types.ErrCorruptedState)
	_, err = m.Snapshot(ctx, addrA, "1.0.0")
	assert.ErrorIs(t, err, types.ErrCorruptedState)
	assert.Len(t, m.Snapshots(addrA), 1)
	view, ok := m.StateView(addrA)
	require.True(t, ok)
	assert.True(t, view.Unreliable)
	v, ok := m.Read(addrA, []byte("k"))
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Len(t, bus.Events(contractif.EventStateCorrupted), 1)

	require.NoError(t, m.Restore(ctx, addrA, snap))
	assert.False(t, m.IsCorrupted(addrA))
	assert.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("w")))
}

// TestDiff_SortedWithAbsentSides 差异按键排序，缺失一侧为 nil
func TestDiff_SortedWithAbsentSides(t *testing.T) {
	m, _ := newTestManager(t, nil)
	a := &types.Snapshot{Entries: []types.Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}}
	b := &types.Snapshot{Entries: []types.Entry{
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("4")},
		{Key: []byte("d"), Value: []byte("5")},
	}}

	diff := m.Diff(a, b)

	assert.Equal(t, []types.DiffEntry{
		{Key: []byte("a"), Old: []byte("1")},
		{Key: []byte("c"), Old: []byte("3"), New: []byte("4")},
		{Key: []byte("d"), New: []byte("5")},
	}, diff)
}

// TestMigrate_AllSteps 重命名、新增、删除依次生效
func TestMigrate_AllSteps(t *testing.T) {
	ctx := context.Background()
	m, bus := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.ApplyChangeset(ctx, addrA, []types.Change{
		{Key: []byte("owner"), Value: []byte("alice")},
		{Key: []byte("legacy"), Value: []byte("x")},
	}))

	err := m.Migrate(ctx, addrA, "1.0.0", []types.MigrationStep{
		types.Rename("owner", "admin"),
		types.AddWithDefault("fee", []byte{0x05}),
		types.Remove("legacy"),
	})

	require.NoError(t, err)
	view, _ := m.StateView(addrA)
	assert.Equal(t, []types.Entry{
		{Key: []byte("admin"), Value: []byte("alice")},
		{Key: []byte("fee"), Value: []byte{0x05}},
	}, view.Entries)
	assert.Len(t, bus.Events(contractif.EventStateMigrated), 1)
}

// TestMigrate_StepFailure_StateUnchanged 第二步删除不存在的字段，状态与之前完全一致
func TestMigrate_StepFailure_StateUnchanged(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("owner"), []byte("alice")))
	before, _ := m.StateView(addrA)
	hasher := hash.NewHashService()

	// Act
	err := m.Migrate(ctx, addrA, "1.0.0", []types.MigrationStep{
		types.Rename("owner", "admin"),
		types.Remove("missing"),
	})

	// Assert
	assert.ErrorIs(t, err, types.ErrMigrationFailed)
	assert.ErrorIs(t, err, types.ErrNotFound)
	after, _ := m.StateView(addrA)
	assert.Equal(t, StateHash(hasher, before.Entries), StateHash(hasher, after.Entries))
	snaps := m.Snapshots(addrA)
	require.Len(t, snaps, 1, "迁移前的恢复点快照")
	assert.Equal(t, "1.0.0", snaps[0].Version)
	assert.Equal(t, snaps[0].StateHash, StateHash(hasher, after.Entries))
}

// TestMigrate_StepRules 各类步骤失败条件
func TestMigrate_StepRules(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	require.NoError(t, m.ApplyChangeset(ctx, addrA, []types.Change{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))

	cases := []struct {
		name string
		step types.MigrationStep
	}{
		{"重命名不存在的键", types.Rename("zz", "y")},
		{"重命名到已存在的键", types.Rename("a", "b")},
		{"新增已存在的键", types.AddWithDefault("a", []byte("x"))},
		{"删除不存在的键", types.Remove("zz")},
		{"未知步骤", types.MigrationStep{Op: "split", Key: []byte("a")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Migrate(ctx, addrA, "1.0.0", []types.MigrationStep{tc.step})
			assert.ErrorIs(t, err, types.ErrMigrationFailed)
		})
	}
}

// TestSnapshots_ListLookupDelete 快照列表、按ID查找与删除
func TestSnapshots_ListLookupDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, nil)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	s1, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	s2, err := m.Snapshot(ctx, addrA, "1.1.0")
	require.NoError(t, err)

	list := m.Snapshots(addrA)
	require.Len(t, list, 2)
	assert.Equal(t, s1.ID, list[0].ID)
	got, ok := m.SnapshotByID(addrA, s2.ID)
	require.True(t, ok)
	assert.Equal(t, "1.1.0", got.Version)

	require.NoError(t, m.DeleteSnapshot(ctx, addrA, s1.ID))
	assert.Len(t, m.Snapshots(addrA), 1)
	assert.ErrorIs(t, m.DeleteSnapshot(ctx, addrA, s1.ID), types.ErrNotFound)
}

// TestLoad_RebuildsFromBadger 重新打开存储后状态、快照、历史与隔离标记保持
func TestLoad_RebuildsFromBadger(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, dir := testutil.NewTestBadgerStore(t)
	m, _ := newTestManager(t, store)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	initAddr(t, m, addrB, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("v")))
	snap, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	m.MarkCorrupted(ctx, addrB, errors.New("disk"))
	require.NoError(t, store.Close())

	// Act
	reopened, _ := newTestManager(t, testutil.OpenBadgerStore(t, dir))
	require.NoError(t, reopened.Load(ctx))

	// Assert
	v, ok := reopened.Read(addrA, []byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	got, ok := reopened.SnapshotByID(addrA, snap.ID)
	require.True(t, ok)
	assert.Equal(t, snap.StateHash, got.StateHash)
	assert.Len(t, reopened.History(addrA), 1)
	assert.True(t, reopened.IsCorrupted(addrB))
	assert.False(t, reopened.IsCorrupted(addrA))

	next, err := reopened.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Seq)
}

type failingTxStore struct {
	storage.KVStore
}

func (f failingTxStore) RunInTransaction(context.Context, func(storage.Transaction) error) error {
	return errors.New("io error")
}

// TestApplyChangeset_PersistFailure_WriteError 落盘失败时内存不变
func TestApplyChangeset_PersistFailure_WriteError(t *testing.T) {
	ctx := context.Background()
	inner := testutil.NewTestStore(t)
	good, _ := newTestManager(t, inner)
	initAddr(t, good, addrA, testutil.DefaultLimits())

	m, _ := newTestManager(t, failingTxStore{inner})
	require.NoError(t, m.Load(ctx))
	err := m.Write(ctx, addrA, []byte("k"), []byte("v"))

	assert.ErrorIs(t, err, types.ErrWrite)
	_, ok := m.Read(addrA, []byte("k"))
	assert.False(t, ok)
}

// TestDiscard_RemovesAddressFromMemoryAndStore 丢弃后地址可重新初始化，重新加载后也不存在
func TestDiscard_RemovesAddressFromMemoryAndStore(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	m, _ := newTestManager(t, store)
	initAddr(t, m, addrA, testutil.DefaultLimits())
	initAddr(t, m, addrB, testutil.DefaultLimits())
	require.NoError(t, m.Write(ctx, addrA, []byte("k"), []byte("v")))
	_, err := m.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, m.Write(ctx, addrB, []byte("k"), []byte("b")))

	// Act
	err = m.Discard(ctx, addrA)

	// Assert
	require.NoError(t, err)
	assert.False(t, m.Exists(addrA))
	assert.Empty(t, m.Snapshots(addrA))
	assert.NoError(t, m.Discard(ctx, addrA), "重复丢弃无副作用")

	reloaded, _ := newTestManager(t, store)
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.Exists(addrA))
	v, ok := reloaded.Read(addrB, []byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("b"), v)

	initAddr(t, m, addrA, testutil.DefaultLimits())
	_, ok = m.Read(addrA, []byte("k"))
	assert.False(t, ok)
}
