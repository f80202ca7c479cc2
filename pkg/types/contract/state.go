package contract

import "sort"

// SnapshotSchemaVersion 当前快照结构版本
const SnapshotSchemaVersion uint32 = 1

// Entry 状态键值对
type Entry struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

// Snapshot 某一时刻的合约状态副本，带内容哈希
type Snapshot struct {
	ID            string   `json:"id"`
	Address       Address  `json:"address"`
	Seq           uint64   `json:"seq"`
	Version       string   `json:"version"`
	Timestamp     int64    `json:"timestamp"`
	Entries       []Entry  `json:"entries"` // 按键排序
	StateHash     [32]byte `json:"state_hash"`
	SchemaVersion uint32   `json:"schema_version"`
}

// StateView 只读状态视图，条目按键排序
type StateView struct {
	Address Address `json:"address"`
	Entries []Entry `json:"entries"`
	Size    uint64  `json:"size"`
	// Unreliable 地址处于隔离状态时为 true，读取结果可能不可信
	Unreliable bool `json:"unreliable,omitempty"`
}

// Get 在视图中查找键
func (v StateView) Get(key []byte) ([]byte, bool) {
	i := sort.Search(len(v.Entries), func(i int) bool { return string(v.Entries[i].Key) >= string(key) })
	if i < len(v.Entries) && string(v.Entries[i].Key) == string(key) {
		return v.Entries[i].Value, true
	}
	return nil, false
}

// DiffEntry 两个状态之间的单键差异，缺失一侧为nil
type DiffEntry struct {
	Key []byte `json:"key"`
	Old []byte `json:"old"`
	New []byte `json:"new"`
}

// Change 待提交的单个写入；Delete 为 true 时删除键
type Change struct {
	Key    []byte `json:"key"`
	Value  []byte `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

// ChangeRecord 一次已提交变更集的审计记录
type ChangeRecord struct {
	Seq   uint64      `json:"seq"`
	Diffs []DiffEntry `json:"diffs"`
}

// MigrationOp 迁移步骤类型
type MigrationOp string

const (
	MigrationRename         MigrationOp = "rename"
	MigrationAddWithDefault MigrationOp = "add_with_default"
	MigrationRemove         MigrationOp = "remove"
)

// MigrationStep 字段级迁移步骤
type MigrationStep struct {
	Op      MigrationOp `json:"op"`
	Key     []byte      `json:"key"`
	NewKey  []byte      `json:"new_key,omitempty"` // rename 目标
	Default []byte      `json:"default,omitempty"` // add_with_default 值
}

// Rename 构造重命名步骤
func Rename(from, to string) MigrationStep {
	return MigrationStep{Op: MigrationRename, Key: []byte(from), NewKey: []byte(to)}
}

// AddWithDefault 构造新增字段步骤
func AddWithDefault(key string, value []byte) MigrationStep {
	return MigrationStep{Op: MigrationAddWithDefault, Key: []byte(key), Default: value}
}

// Remove 构造删除字段步骤
func Remove(key string) MigrationStep {
	return MigrationStep{Op: MigrationRemove, Key: []byte(key)}
}
