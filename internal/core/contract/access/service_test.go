package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weisyn/contractcore/internal/core/contract/testutil"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

var (
	root  = testutil.Acct(0x01)
	alice = testutil.Acct(0x0a)
	bob   = testutil.Acct(0x0b)
)

func newTestService(t *testing.T) (*Service, *testutil.MockEventBus) {
	t.Helper()
	bus := testutil.NewMockEventBus()
	s := New(testutil.NewTestStore(t), testutil.NewTestClock(), bus, nil, testutil.NewTestLogger())
	_, err := s.GrantRole(context.Background(), types.DefaultAdminRole, root, root)
	require.NoError(t, err)
	bus.Reset()
	return s, bus
}

// TestGrantRole_BootstrapThenRequiresAdmin 首次授予超级管理员无需权限，之后需要
func TestGrantRole_BootstrapThenRequiresAdmin(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := New(testutil.NewTestStore(t), testutil.NewTestClock(), nil, nil, nil)

	// Act
	granted, err := s.GrantRole(ctx, types.DefaultAdminRole, root, alice)
	require.NoError(t, err)
	_, err2 := s.GrantRole(ctx, types.DefaultAdminRole, bob, alice)

	// Assert
	assert.True(t, granted)
	assert.True(t, s.HasRole(types.DefaultAdminRole, root))
	assert.ErrorIs(t, err2, types.ErrPermissionDenied)
	assert.False(t, s.HasRole(types.DefaultAdminRole, bob))
}

// TestGrantRole_Idempotent 重复授予返回 false 且不追加审计
func TestGrantRole_Idempotent(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s, bus := newTestService(t)

	// Act
	first, err := s.GrantRole(ctx, types.DeployerRole, alice, root)
	require.NoError(t, err)
	second, err := s.GrantRole(ctx, types.DeployerRole, alice, root)
	require.NoError(t, err)

	// Assert
	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, s.RoleMemberCount(types.DeployerRole))
	log, err := s.AuditLog(ctx)
	require.NoError(t, err)
	assert.Len(t, log, 2) // 初始化 + 一次授予
	assert.Len(t, bus.Events(contractif.EventRoleGranted), 1)
}

// TestGrantRole_NonAdminDenied 非管理员无法授予
func TestGrantRole_NonAdminDenied(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.GrantRole(context.Background(), types.DeployerRole, bob, alice)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.False(t, s.HasRole(types.DeployerRole, bob))
}

// TestRevokeRole_LastSuperAdmin 不能撤销最后一个超级管理员
func TestRevokeRole_LastSuperAdmin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	_, err := s.RevokeRole(ctx, types.DefaultAdminRole, root, root)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.True(t, s.HasRole(types.DefaultAdminRole, root))

	_, err = s.GrantRole(ctx, types.DefaultAdminRole, alice, root)
	require.NoError(t, err)
	revoked, err := s.RevokeRole(ctx, types.DefaultAdminRole, root, alice)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, s.RoleMemberCount(types.DefaultAdminRole))
}

// TestRevokeRole_NotHeld 撤销未持有的角色返回 false
func TestRevokeRole_NotHeld(t *testing.T) {
	s, bus := newTestService(t)
	revoked, err := s.RevokeRole(context.Background(), types.UpgraderRole, bob, root)
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, bus.Events(contractif.EventRoleRevoked))
}

// TestSetRoleAdmin_DelegatesGrantRights 修改管理角色后由新管理角色授予
func TestSetRoleAdmin_DelegatesGrantRights(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s, bus := newTestService(t)
	_, err := s.GrantRole(ctx, types.DeployerRole, alice, root)
	require.NoError(t, err)

	// Act
	require.NoError(t, s.SetRoleAdmin(ctx, types.ExecutorRole, types.DeployerRole, root))
	granted, err := s.GrantRole(ctx, types.ExecutorRole, bob, alice)

	// Assert
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, types.DeployerRole, s.GetRoleAdmin(types.ExecutorRole))
	events := bus.Events(contractif.EventRoleAdminChanged)
	require.Len(t, events, 1)
	payload := events[0].Args[0].(types.RoleAdminChangedEvent)
	assert.Equal(t, types.DefaultAdminRole, payload.PreviousAdmin)
	assert.Equal(t, types.DeployerRole, payload.NewAdmin)
}

// TestSetRoleAdmin_Rejections 根角色、未知角色与环路
func TestSetRoleAdmin_Rejections(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	unknown := types.Role{0x42}

	t.Run("根角色的管理角色不可修改", func(t *testing.T) {
		err := s.SetRoleAdmin(ctx, types.DefaultAdminRole, types.DeployerRole, root)
		assert.ErrorIs(t, err, types.ErrPermissionDenied)
	})

	t.Run("未知管理角色", func(t *testing.T) {
		err := s.SetRoleAdmin(ctx, types.DeployerRole, unknown, root)
		assert.ErrorIs(t, err, types.ErrUnknownRole)
	})

	t.Run("调用者不是当前管理员", func(t *testing.T) {
		err := s.SetRoleAdmin(ctx, types.DeployerRole, types.UpgraderRole, alice)
		assert.ErrorIs(t, err, types.ErrPermissionDenied)
	})

	t.Run("形成不含根角色的环", func(t *testing.T) {
		require.NoError(t, s.SetRoleAdmin(ctx, types.DeployerRole, types.UpgraderRole, root))
		err := s.SetRoleAdmin(ctx, types.UpgraderRole, types.DeployerRole, root)
		assert.ErrorIs(t, err, types.ErrPermissionDenied)
		assert.Equal(t, types.DefaultAdminRole, s.GetRoleAdmin(types.UpgraderRole))
	})
}

// TestAuditLog_RecordsEveryEffectiveChange 审计记录顺序与内容
func TestAuditLog_RecordsEveryEffectiveChange(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s, _ := newTestService(t)

	// Act
	_, _ = s.GrantRole(ctx, types.UpgraderRole, alice, root)
	_, _ = s.RevokeRole(ctx, types.UpgraderRole, alice, root)
	_, _ = s.RevokeRole(ctx, types.UpgraderRole, alice, root) // 无效撤销不记录

	// Assert
	log, err := s.AuditLog(ctx)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, types.AuditGrant, log[1].Action)
	assert.Equal(t, types.AuditRevoke, log[2].Action)
	assert.Equal(t, alice, log[2].Account)
	assert.Equal(t, root, log[2].Sender)
	assert.Equal(t, testutil.NewTestTime().Unix(), log[2].Timestamp)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{log[0].Seq, log[1].Seq, log[2].Seq})
}

// TestLoad_RebuildsFromBadger 关闭后重新打开存储，角色与管理关系保持
func TestLoad_RebuildsFromBadger(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store, dir := testutil.NewTestBadgerStore(t)
	s := New(store, testutil.NewTestClock(), nil, nil, nil)
	_, err := s.GrantRole(ctx, types.DefaultAdminRole, root, root)
	require.NoError(t, err)
	_, err = s.GrantRole(ctx, types.DeployerRole, alice, root)
	require.NoError(t, err)
	require.NoError(t, s.SetRoleAdmin(ctx, types.ExecutorRole, types.DeployerRole, root))
	require.NoError(t, store.Close())

	// Act
	reopened := New(testutil.OpenBadgerStore(t, dir), testutil.NewTestClock(), nil, nil, nil)
	require.NoError(t, reopened.Load(ctx))

	// Assert
	assert.True(t, reopened.HasRole(types.DefaultAdminRole, root))
	assert.True(t, reopened.HasRole(types.DeployerRole, alice))
	assert.Equal(t, types.DeployerRole, reopened.GetRoleAdmin(types.ExecutorRole))
	_, err = reopened.GrantRole(ctx, types.UpgraderRole, bob, root)
	require.NoError(t, err)
	log, err := reopened.AuditLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), log[len(log)-1].Seq)
}

type failingStore struct {
	storage.KVStore
}

func (f failingStore) RunInTransaction(context.Context, func(storage.Transaction) error) error {
	return errors.New("disk full")
}

// TestGrantRole_PersistFailure_LeavesMemoryUnchanged 持久化失败不改变内存
func TestGrantRole_PersistFailure_LeavesMemoryUnchanged(t *testing.T) {
	s := New(failingStore{testutil.NewTestStore(t)}, testutil.NewTestClock(), nil, nil, nil)
	_, err := s.GrantRole(context.Background(), types.DefaultAdminRole, root, root)
	assert.ErrorIs(t, err, types.ErrWrite)
	assert.False(t, s.HasRole(types.DefaultAdminRole, root))
}
