package contract

import (
	"context"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// DeployRequest 部署请求
type DeployRequest struct {
	Address  types.Address
	Bytecode []byte
	ABI      types.ABI
	Metadata types.Metadata
	Limits   types.ResourceLimits
	Caller   types.Account
}

// Runtime 合约核心对外入口，协调部署、执行、升级与回滚
type Runtime interface {
	DeployContract(ctx context.Context, req DeployRequest) error
	UpgradeContract(ctx context.Context, caller types.Account, address types.Address, bytecode []byte, abi types.ABI, metadata types.Metadata) error
	RollbackContract(ctx context.Context, caller types.Account, address types.Address) error
	ExecuteContract(ctx context.Context, req types.ExecutionRequest) (*types.ExecutionOutcome, error)

	GetContractState(address types.Address) (types.StateView, bool)
	UpdateContractState(ctx context.Context, caller types.Account, address types.Address, key, value []byte) error
	MigrateContractState(ctx context.Context, caller types.Account, address types.Address, steps []types.MigrationStep) error
	RestoreContractState(ctx context.Context, caller types.Account, address types.Address, snapshotID string) error
	GetStateSnapshots(address types.Address) []*types.Snapshot

	GetActiveOperations() int
	GetOperationsPerSecond() float64

	// IsReadOnly 存储写失败后运行时拒绝变更操作，直到管理员调用 ResumeWrites
	IsReadOnly() (bool, string)
	ResumeWrites(caller types.Account) error

	GrantRole(ctx context.Context, caller types.Account, role types.Role, account types.Account) (bool, error)
	RevokeRole(ctx context.Context, caller types.Account, role types.Role, account types.Account) (bool, error)
	HasRole(role types.Role, account types.Account) bool

	Registry() VersionRegistry
	AccessControl() AccessControl
}
