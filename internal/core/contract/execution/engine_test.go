package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weisyn/contractcore/internal/core/contract/access"
	"github.com/weisyn/contractcore/internal/core/contract/execution/wasm"
	"github.com/weisyn/contractcore/internal/core/contract/registry"
	"github.com/weisyn/contractcore/internal/core/contract/state"
	"github.com/weisyn/contractcore/internal/core/contract/testutil"
	"github.com/weisyn/contractcore/internal/core/infrastructure/crypto/hash"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

var (
	root  = testutil.Acct(0x01)
	alice = testutil.Acct(0x0a)
	addrA = testutil.Addr(0xa1)
)

type fixture struct {
	engine *Engine
	reg    *registry.Registry
	state  *state.Manager
	access *access.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := testutil.NewTestStore(t)
	clk := testutil.NewTestClock()
	hasher := hash.NewHashService()

	acl := access.New(store, clk, nil, nil, nil)
	for _, role := range []types.Role{types.DefaultAdminRole, types.DeployerRole} {
		_, err := acl.GrantRole(ctx, role, root, root)
		require.NoError(t, err)
	}
	sm := state.New(state.Params{Store: store, Clock: clk, Hasher: hasher})
	sandbox, err := wasm.New(nil, testutil.NewTestLogger())
	require.NoError(t, err)
	reg := registry.New(registry.Params{
		Store: store, Access: acl, State: sm, Sandbox: sandbox, Hasher: hasher, Clock: clk,
	})
	engine := New(Params{Registry: reg, State: sm, Access: acl, Sandbox: sandbox, Logger: testutil.NewTestLogger()})
	t.Cleanup(func() { _ = engine.Close(context.Background()) })
	return &fixture{engine: engine, reg: reg, state: sm, access: acl}
}

func (f *fixture) deploy(t *testing.T, limits types.ResourceLimits) {
	t.Helper()
	code, abi := testutil.CounterContract(7)
	_, err := f.reg.Register(context.Background(), contractif.RegisterRequest{
		Address: addrA, Bytecode: code, ABI: abi, Metadata: testutil.Metadata("1.0.0", true),
		Limits: limits, Caller: root,
	})
	require.NoError(t, err)
	stored, err := f.reg.Limits(addrA)
	require.NoError(t, err)
	require.NoError(t, f.state.Init(context.Background(), addrA, stored))
}

func (f *fixture) call(method string, args []byte, gasLimit uint64) (*types.ExecutionOutcome, error) {
	return f.engine.Execute(context.Background(), types.ExecutionRequest{
		Address: addrA, Method: method, Args: args, Caller: root, GasLimit: gasLimit,
	})
}

// TestExecute_SetThenRead gas(100) 加一次写入，GasUsed 为 100 且状态可读
func TestExecute_SetThenRead(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())

	// Act
	out, err := f.call("set", nil, 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint64(100), out.GasUsed)
	assert.Empty(t, out.Events)
	v, ok := f.state.Read(addrA, testutil.CounterKey)
	require.True(t, ok)
	assert.Equal(t, testutil.CounterValue, v)

	got, err := f.call("get", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, testutil.CounterValue, got.ReturnValue)
}

// TestExecute_FaultDiscardsWrites trap 后写入被丢弃，状态哈希不变
func TestExecute_FaultDiscardsWrites(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())
	_, err := f.call("set", nil, 0)
	require.NoError(t, err)
	before, err := f.state.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)

	// Act
	_, err = f.call("fail", nil, 0)

	// Assert
	assert.ErrorIs(t, err, types.ErrTrap)
	after, err := f.state.Snapshot(ctx, addrA, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, before.StateHash, after.StateHash)
}

// TestExecute_GasBudgetBoundary 恰好用尽预算成功，多一个单位则 OutOfGas 且不写入
func TestExecute_GasBudgetBoundary(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())

	out, err := f.call("burn", testutil.U32LE(500), 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), out.GasUsed)

	_, err = f.call("burn", testutil.U32LE(501), 500)
	assert.ErrorIs(t, err, types.ErrOutOfGas)

	// put 先扣 10 再写入，预算 9 时不应留下任何写入
	_, err = f.call("put", []byte("p"), 9)
	assert.ErrorIs(t, err, types.ErrOutOfGas)
	_, ok := f.state.Read(addrA, testutil.CounterKey)
	assert.False(t, ok)
}

// TestExecute_GasLimitClampedToDeployLimit 请求上限不能超过部署时的 MaxGas
func TestExecute_GasLimitClampedToDeployLimit(t *testing.T) {
	f := newFixture(t)
	limits := testutil.DefaultLimits()
	limits.MaxGas = 1000
	f.deploy(t, limits)

	_, err := f.call("burn", testutil.U32LE(1001), 5000)
	assert.ErrorIs(t, err, types.ErrOutOfGas)

	out, err := f.call("burn", testutil.U32LE(1000), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), out.GasUsed)
}

// TestExecute_MethodAndPermissionChecks ABI未声明与特权方法
func TestExecute_MethodAndPermissionChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())

	_, err := f.call("undeclared", nil, 0)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = f.engine.Execute(ctx, types.ExecutionRequest{Address: addrA, Method: "admin", Caller: alice})
	assert.ErrorIs(t, err, types.ErrPermissionDenied)

	_, err = f.access.GrantRole(ctx, types.ExecutorRole, alice, root)
	require.NoError(t, err)
	_, err = f.engine.Execute(ctx, types.ExecutionRequest{Address: addrA, Method: "admin", Caller: alice})
	require.NoError(t, err)
	v, _ := f.state.Read(addrA, testutil.CounterKey)
	assert.Equal(t, testutil.FailValue, v)

	_, err = f.engine.Execute(ctx, types.ExecutionRequest{Address: testutil.Addr(0xee), Method: "set", Caller: root})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestExecute_EventsOnlyOnSuccess 每次成功执行只返回本次发出的事件
func TestExecute_EventsOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())

	out, err := f.call("emit", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.ContractEvent{{Name: testutil.EventName, Data: testutil.CounterValue}}, out.Events)

	again, err := f.call("emit", nil, 0)
	require.NoError(t, err)
	assert.Len(t, again.Events, 1)
	_, err = f.call("fail", nil, 0)
	assert.ErrorIs(t, err, types.ErrTrap)
}

// TestExecute_Faults 调用深度与内存上限
func TestExecute_Faults(t *testing.T) {
	f := newFixture(t)
	limits := testutil.DefaultLimits()
	limits.MaxCallDepth = 32
	f.deploy(t, limits)

	_, err := f.call("recurse", nil, 0)
	assert.ErrorIs(t, err, types.ErrCallDepthExceeded)

	_, err = f.call("grow", nil, 0)
	assert.ErrorIs(t, err, types.ErrTrap)
}

// TestExecute_QuarantinedAddress 隔离中的地址拒绝执行
func TestExecute_QuarantinedAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())
	f.state.MarkCorrupted(ctx, addrA, errors.New("hash mismatch"))

	_, err := f.call("answer", nil, 0)

	assert.ErrorIs(t, err, types.ErrCorruptedState)
}

// TestHostEnv_ReadYourWrites 暂存写入对后续读取可见，且不触及状态
func TestHostEnv_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.deploy(t, testutil.DefaultLimits())
	require.NoError(t, f.state.Write(ctx, addrA, []byte("a"), []byte("1")))
	h := newHostEnv(f.state, addrA, 10, 4, 4)

	require.NoError(t, h.StorageWrite([]byte("a"), []byte("2")))
	require.NoError(t, h.StorageWrite([]byte("b"), []byte("3")))
	require.NoError(t, h.StorageWrite([]byte("a"), []byte("4")))

	v, ok, err := h.StorageRead([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("4"), v)
	persisted, _ := f.state.Read(addrA, []byte("a"))
	assert.Equal(t, []byte("1"), persisted)
	assert.Equal(t, []types.Change{{Key: []byte("a"), Value: []byte("4")}, {Key: []byte("b"), Value: []byte("3")}}, h.changeset())

	assert.ErrorIs(t, h.StorageWrite(nil, []byte("x")), types.ErrInvalidInput)
	assert.ErrorIs(t, h.StorageWrite([]byte("kkkkk"), nil), types.ErrSizeLimitExceeded)
	assert.ErrorIs(t, h.StorageWrite([]byte("k"), []byte("vvvvv")), types.ErrSizeLimitExceeded)
	assert.NoError(t, h.ChargeGas(10))
	assert.ErrorIs(t, h.ChargeGas(1), types.ErrOutOfGas)
	assert.Equal(t, uint64(10), h.used)
}
