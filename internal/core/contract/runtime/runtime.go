// Package runtime 合约核心对外入口
//
// ContractRuntime 组合访问控制、版本注册表、状态管理与执行引擎：同一地址上的
// 变更操作（执行、升级、回滚、迁移、状态更新、恢复）串行执行，不同地址并行。
//
// 任一变更操作遇到存储写失败后运行时进入只读模式，其后的变更操作直接返回
// ReadOnly；管理员可在只读期间恢复快照，确认存储可用后调用 ResumeWrites。
package runtime

import (
	"context"
	"errors"
	"fmt"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/addrlock"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	inframetrics "github.com/weisyn/contractcore/internal/core/infrastructure/metrics"
	"github.com/weisyn/contractcore/internal/core/infrastructure/writegate"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	wgif "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/writegate"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// InitializedKey 部署时写入的初始化标记
var InitializedKey = []byte("_initialized")

// ContractRuntime 合约运行时实现
type ContractRuntime struct {
	registry contractif.VersionRegistry
	state    contractif.StateManager
	access   contractif.AccessControl
	engine   contractif.ExecutionEngine
	bus      event.EventBus
	metrics  metrics.Recorder
	logger   log.Logger
	gate     wgif.WriteGate

	locks   *addrlock.Table
	tracker *Tracker
}

var _ contractif.Runtime = (*ContractRuntime)(nil)

// Params 运行时依赖；Bus 为空时不发布事件，Gate 为空时使用独立的写门闸
type Params struct {
	Registry contractif.VersionRegistry
	State    contractif.StateManager
	Access   contractif.AccessControl
	Engine   contractif.ExecutionEngine
	Bus      event.EventBus
	Clock    clock.Clock
	Metrics  metrics.Recorder
	Options  *contractconfig.ContractOptions
	Gate     wgif.WriteGate
	Logger   log.Logger
}

// New 创建合约运行时
func New(p Params) *ContractRuntime {
	if p.Metrics == nil {
		p.Metrics = inframetrics.NopRecorder{}
	}
	if p.Options == nil {
		p.Options = contractconfig.Default()
	}
	if p.Gate == nil {
		p.Gate = writegate.New(p.Clock)
	}
	logger := logpkg.NewModuleLogger(p.Logger, "contract.runtime")
	return &ContractRuntime{
		registry: p.Registry,
		state:    p.State,
		access:   p.Access,
		engine:   p.Engine,
		bus:      p.Bus,
		metrics:  p.Metrics,
		logger:   logger,
		gate:     p.Gate,
		locks:    addrlock.New(),
		tracker:  NewTracker(p.Clock, p.Options, p.Metrics, logger),
	}
}

// DeployContract 注册首个版本，初始化状态并拍下初始快照
func (r *ContractRuntime) DeployContract(ctx context.Context, req contractif.DeployRequest) (err error) {
	done, err := r.begin(ctx, types.OpDeploy, req.Address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(req.Address)
	defer unlock()

	version, err := r.registry.Register(ctx, contractif.RegisterRequest{
		Address:  req.Address,
		Bytecode: req.Bytecode,
		ABI:      req.ABI,
		Metadata: req.Metadata,
		Limits:   req.Limits,
		Caller:   req.Caller,
	})
	if err != nil {
		return err
	}
	if err := r.initState(ctx, req.Address, version.Metadata.Version); err != nil {
		r.undoDeploy(ctx, req.Address, err)
		return err
	}

	r.publish(contractif.EventContractDeployed, contractif.VersionChangedEvent{
		Address: req.Address, To: version.Metadata.Version, Caller: req.Caller,
	})
	return nil
}

// initState 初始化状态、写入初始化标记并拍下初始快照
func (r *ContractRuntime) initState(ctx context.Context, address types.Address, version string) error {
	limits, err := r.registry.Limits(address)
	if err != nil {
		return err
	}
	if err := r.state.Init(ctx, address, limits); err != nil {
		return err
	}
	if err := r.state.Write(ctx, address, InitializedKey, []byte{0x01}); err != nil {
		return err
	}
	_, err = r.state.Snapshot(ctx, address, version)
	return err
}

// undoDeploy 撤销已持久化的注册与部分状态，使地址可以重新部署
//
// 补偿本身失败时地址保持已注册，原始错误已使运行时进入只读模式。
func (r *ContractRuntime) undoDeploy(ctx context.Context, address types.Address, cause error) {
	r.logger.Errorf("部署中途失败，撤销注册: address=%s err=%v", address, cause)
	if err := r.state.Discard(ctx, address); err != nil {
		r.logger.Errorf("丢弃部分状态失败: address=%s err=%v", address, err)
		return
	}
	if err := r.registry.Unregister(ctx, address); err != nil {
		r.logger.Errorf("撤销注册失败: address=%s err=%v", address, err)
	}
}

// UpgradeContract 升级到新版本
//
// 指针在获取地址锁之前读取，锁内由注册表比较；等待期间指针被其他升级移动时
// 返回 VersionConflict。
func (r *ContractRuntime) UpgradeContract(ctx context.Context, caller types.Account, address types.Address, bytecode []byte, abi types.ABI, metadata types.Metadata) (err error) {
	expected, ok := r.registry.Head(address)
	if !ok {
		return types.ErrNotFound.With("contract %s not registered", address)
	}
	done, err := r.begin(ctx, types.OpUpgrade, address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(address)
	defer unlock()

	current, err := r.registry.GetLatest(address)
	if err != nil {
		return err
	}
	version, err := r.registry.Upgrade(ctx, contractif.UpgradeRequest{
		Address:  address,
		Bytecode: bytecode,
		ABI:      abi,
		Metadata: metadata,
		Caller:   caller,
		Expected: expected,
	})
	if err != nil {
		return err
	}
	r.publish(contractif.EventContractUpgraded, contractif.VersionChangedEvent{
		Address: address, From: current.Metadata.Version, To: version.Metadata.Version, Caller: caller,
	})
	return nil
}

// RollbackContract 回到前一个版本并恢复其状态
func (r *ContractRuntime) RollbackContract(ctx context.Context, caller types.Account, address types.Address) (err error) {
	expected, ok := r.registry.Head(address)
	if !ok {
		return types.ErrNotFound.With("contract %s not registered", address)
	}
	done, err := r.begin(ctx, types.OpRollback, address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(address)
	defer unlock()

	current, err := r.registry.GetLatest(address)
	if err != nil {
		return err
	}
	version, err := r.registry.Rollback(ctx, address, caller, expected)
	if err != nil {
		return err
	}
	r.publish(contractif.EventContractRolledBack, contractif.VersionChangedEvent{
		Address: address, From: current.Metadata.Version, To: version.Metadata.Version, Caller: caller,
	})
	return nil
}

// ExecuteContract 执行当前版本的方法
func (r *ContractRuntime) ExecuteContract(ctx context.Context, req types.ExecutionRequest) (outcome *types.ExecutionOutcome, err error) {
	done, err := r.begin(ctx, types.OpExecute, req.Address)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(req.Address)
	defer unlock()

	outcome, err = r.engine.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveGas(outcome.GasUsed)
	r.publish(contractif.EventContractExecuted, contractif.ExecutedEvent{
		Address: req.Address, Method: req.Method, Caller: req.Caller, GasUsed: outcome.GasUsed, Events: outcome.Events,
	})
	for _, e := range outcome.Events {
		r.publish(contractif.EventContractEmitted, contractif.EmittedEvent{Address: req.Address, Event: e})
	}
	return outcome, nil
}

// GetContractState 当前状态的只读视图
func (r *ContractRuntime) GetContractState(address types.Address) (types.StateView, bool) {
	view, ok := r.state.StateView(address)
	if ok && view.Unreliable {
		r.logger.Warnf("读取隔离中的合约状态: address=%s", address)
	}
	return view, ok
}

// UpdateContractState 管理员直接写入状态，仍受大小限制约束
func (r *ContractRuntime) UpdateContractState(ctx context.Context, caller types.Account, address types.Address, key, value []byte) (err error) {
	if err := r.access.RequireRole(types.DefaultAdminRole, caller); err != nil {
		return err
	}
	if !r.registry.Exists(address) {
		return types.ErrNotFound.With("contract %s not registered", address)
	}
	done, err := r.begin(ctx, types.OpStateUpdate, address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(address)
	defer unlock()

	return r.state.Write(ctx, address, key, value)
}

// MigrateContractState 按步骤迁移状态，任一步失败则状态不变
func (r *ContractRuntime) MigrateContractState(ctx context.Context, caller types.Account, address types.Address, steps []types.MigrationStep) (err error) {
	if err := r.access.RequireRole(types.UpgraderRole, caller); err != nil {
		return err
	}
	if !r.registry.Exists(address) {
		return types.ErrNotFound.With("contract %s not registered", address)
	}
	done, err := r.begin(ctx, types.OpMigrate, address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(address)
	defer unlock()

	current, err := r.registry.GetLatest(address)
	if err != nil {
		return err
	}
	return r.state.Migrate(ctx, address, current.Metadata.Version, steps)
}

// RestoreContractState 用指定快照恢复状态，成功后解除隔离
func (r *ContractRuntime) RestoreContractState(ctx context.Context, caller types.Account, address types.Address, snapshotID string) (err error) {
	if err := r.access.RequireRole(types.DefaultAdminRole, caller); err != nil {
		return err
	}
	snapshot, ok := r.state.SnapshotByID(address, snapshotID)
	if !ok {
		return types.ErrNotFound.With("snapshot %s of %s not found", snapshotID, address)
	}
	if r.gate.IsReadOnly() {
		token, err := r.gate.EnableRecoveryMode(fmt.Sprintf("restore %s to %s", address, snapshotID))
		if err != nil {
			return types.ErrConcurrencyLimitExceeded.Wrap(err, "another recovery is in progress")
		}
		defer func() { _ = r.gate.DisableRecoveryMode(token) }()
		ctx = wgif.WithWriteToken(ctx, token)
	}
	done, err := r.begin(ctx, types.OpRestore, address)
	if err != nil {
		return err
	}
	defer func() { done(err) }()
	unlock := r.locks.Lock(address)
	defer unlock()

	return r.state.Restore(ctx, address, snapshot)
}

// GetStateSnapshots 地址的全部快照
func (r *ContractRuntime) GetStateSnapshots(address types.Address) []*types.Snapshot {
	return r.state.Snapshots(address)
}

// GetActiveOperations 进行中的操作数
func (r *ContractRuntime) GetActiveOperations() int { return r.tracker.Active() }

// GetOperationsPerSecond 历史窗口内的平均每秒操作数
func (r *ContractRuntime) GetOperationsPerSecond() float64 { return r.tracker.OperationsPerSecond() }

// GrantRole 授予角色
func (r *ContractRuntime) GrantRole(ctx context.Context, caller types.Account, role types.Role, account types.Account) (bool, error) {
	return r.access.GrantRole(ctx, role, account, caller)
}

// RevokeRole 撤销角色
func (r *ContractRuntime) RevokeRole(ctx context.Context, caller types.Account, role types.Role, account types.Account) (bool, error) {
	return r.access.RevokeRole(ctx, role, account, caller)
}

// HasRole 账户是否持有角色
func (r *ContractRuntime) HasRole(role types.Role, account types.Account) bool {
	return r.access.HasRole(role, account)
}

// IsReadOnly 运行时是否处于只读模式及原因
func (r *ContractRuntime) IsReadOnly() (bool, string) {
	return r.gate.IsReadOnly(), r.gate.ReadOnlyReason()
}

// ResumeWrites 管理员确认存储可用后退出只读模式
func (r *ContractRuntime) ResumeWrites(caller types.Account) error {
	if err := r.access.RequireRole(types.DefaultAdminRole, caller); err != nil {
		return err
	}
	if reason := r.gate.ReadOnlyReason(); r.gate.IsReadOnly() {
		r.logger.Warnf("退出只读模式: caller=%s reason=%s", caller, reason)
	}
	r.gate.ExitReadOnly()
	return nil
}

// begin 校验写门闸并登记操作；返回的 done 在存储写失败时让运行时进入只读模式
func (r *ContractRuntime) begin(ctx context.Context, op types.OperationType, address types.Address) (func(error), error) {
	if err := r.gate.AssertWriteAllowed(ctx, string(op)); err != nil {
		return nil, types.ErrReadOnly.Wrap(err, "%s on %s", op, address)
	}
	done, err := r.tracker.Begin(op, address)
	if err != nil {
		return nil, err
	}
	return func(opErr error) {
		done(opErr)
		if errors.Is(opErr, types.ErrWrite) {
			r.logger.Errorf("存储写失败，进入只读模式: op=%s address=%s err=%v", op, address, opErr)
			r.gate.EnterReadOnly(fmt.Sprintf("%s on %s: %v", op, address, opErr))
		}
	}, nil
}

func (r *ContractRuntime) Registry() contractif.VersionRegistry { return r.registry }

func (r *ContractRuntime) AccessControl() contractif.AccessControl { return r.access }

func (r *ContractRuntime) publish(eventType event.EventType, payload interface{}) {
	if r.bus != nil {
		r.bus.Publish(eventType, payload)
	}
}
