package contract

import (
	"context"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// Head 当前版本指针及历史长度，用于比较并交换
type Head struct {
	Index  int `json:"index"`
	Length int `json:"length"`
}

// RegisterRequest 首次部署请求
type RegisterRequest struct {
	Address  types.Address
	Bytecode []byte
	ABI      types.ABI
	Metadata types.Metadata
	Limits   types.ResourceLimits
	Caller   types.Account
}

// UpgradeRequest 升级请求；Expected 为发起时观察到的指针
type UpgradeRequest struct {
	Address  types.Address
	Bytecode []byte
	ABI      types.ABI
	Metadata types.Metadata
	Caller   types.Account
	Expected Head
}

// VersionRegistry 每个地址的有序版本历史及当前指针
type VersionRegistry interface {
	Register(ctx context.Context, req RegisterRequest) (*types.Version, error)
	Upgrade(ctx context.Context, req UpgradeRequest) (*types.Version, error)
	Rollback(ctx context.Context, address types.Address, caller types.Account, expected Head) (*types.Version, error)

	// Head 当前指针；地址未注册时 ok 为 false
	Head(address types.Address) (Head, bool)

	GetVersion(address types.Address, version string) (*types.Version, error)
	GetLatest(address types.Address) (*types.Version, error)
	ListVersions(address types.Address) ([]*types.Version, error)
	SearchByDescription(query string) []types.ContractInfo
	Exists(address types.Address) bool

	// Limits 部署时绑定的资源限制
	Limits(address types.Address) (types.ResourceLimits, error)
	UpgradeHistory(address types.Address) ([]types.UpgradeRecord, error)
	ListContracts() []types.Address

	// Unregister 撤销只有首个版本的注册，仅用于部署中途失败后的补偿
	Unregister(ctx context.Context, address types.Address) error

	// Load 从存储重建注册表
	Load(ctx context.Context) error
}
