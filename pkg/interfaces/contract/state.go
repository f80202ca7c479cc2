package contract

import (
	"context"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// StateManager 按地址隔离的键值状态，支持快照、差异与迁移
//
// 所有变更都是整体生效：要么全部写入存储并对读者可见，要么不产生任何可见变化。
type StateManager interface {
	// Init 为新部署的地址创建空状态并绑定资源限制
	Init(ctx context.Context, address types.Address, limits types.ResourceLimits) error

	// Exists 地址是否有状态
	Exists(address types.Address) bool

	// Discard 删除地址的全部状态、快照与变更记录，仅用于部署中途失败后的补偿
	Discard(ctx context.Context, address types.Address) error

	// Read 读取键值
	Read(address types.Address, key []byte) ([]byte, bool)

	// Write 写入单个键值
	Write(ctx context.Context, address types.Address, key, value []byte) error

	// ApplyChangeset 原子提交一组写入
	ApplyChangeset(ctx context.Context, address types.Address, changes []types.Change) error

	// Snapshot 对当前状态拍快照并持久化，version 为快照时生效的版本；隔离中的地址返回 CorruptedState
	Snapshot(ctx context.Context, address types.Address, version string) (*types.Snapshot, error)

	// DeleteSnapshot 删除快照（仅用于撤销失败的升级）
	DeleteSnapshot(ctx context.Context, address types.Address, id string) error

	// Restore 用快照整体替换状态并校验内容哈希
	Restore(ctx context.Context, address types.Address, snapshot *types.Snapshot) error

	// Diff 两个快照之间按键排序的差异
	Diff(a, b *types.Snapshot) []types.DiffEntry

	// Migrate 先拍下恢复点快照再按顺序执行字段级迁移，任一步失败则状态保持为该快照
	Migrate(ctx context.Context, address types.Address, version string, steps []types.MigrationStep) error

	// Snapshots 地址的全部快照，按创建顺序
	Snapshots(address types.Address) []*types.Snapshot

	// SnapshotByID 按ID查找快照
	SnapshotByID(address types.Address, id string) (*types.Snapshot, bool)

	// StateView 当前状态的只读副本
	StateView(address types.Address) (types.StateView, bool)

	// Size 当前状态总字节数
	Size(address types.Address) uint64

	// History 已提交变更集的差异记录
	History(address types.Address) []types.ChangeRecord

	// MarkCorrupted 隔离地址，禁止后续变更直到恢复成功
	MarkCorrupted(ctx context.Context, address types.Address, reason error)

	// IsCorrupted 地址是否处于隔离状态
	IsCorrupted(address types.Address) bool

	// Load 从存储重建全部地址的状态
	Load(ctx context.Context) error
}
