// Package state 按地址隔离的合约状态管理
//
// 每个地址的状态是一个不可变映射，写入时复制并在地址锁内整体替换指针，
// 读者无需加锁即可看到完整的某一版本。所有变更先在单个存储事务中落盘，
// 成功后才替换内存指针。
package state

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/keys"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	inframetrics "github.com/weisyn/contractcore/internal/core/infrastructure/metrics"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/crypto"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// historyLimit 内存中保留的变更记录条数，存储中保留全部
const historyLimit = 1024

// stateData 某一时刻的完整状态，创建后不再修改
type stateData struct {
	entries map[string][]byte
	size    uint64
}

func newStateData(entries map[string][]byte) *stateData {
	var size uint64
	for k, v := range entries {
		size += uint64(len(k) + len(v))
	}
	return &stateData{entries: entries, size: size}
}

// stateMeta 持久化在 stm/<addr> 的元数据
type stateMeta struct {
	Limits    types.ResourceLimits `json:"limits"`
	Corrupted bool                 `json:"corrupted"`
	Reason    string               `json:"reason,omitempty"`
	SnapSeq   uint64               `json:"snap_seq"`
	ChangeSeq uint64               `json:"change_seq"`
}

type addrState struct {
	mu        sync.RWMutex
	data      atomic.Pointer[stateData]
	corrupted atomic.Bool
	meta      stateMeta
	snapshots []*types.Snapshot
	history   []types.ChangeRecord
}

// Manager 状态管理器
type Manager struct {
	store   storage.KVStore
	clock   clock.Clock
	hasher  crypto.HashManager
	bus     event.EventBus
	metrics metrics.Recorder
	options *contractconfig.ContractOptions
	logger  log.Logger

	mu     sync.RWMutex
	states map[types.Address]*addrState
}

var _ contractif.StateManager = (*Manager)(nil)

// Params 状态管理器依赖
type Params struct {
	Store   storage.KVStore
	Clock   clock.Clock
	Hasher  crypto.HashManager
	Bus     event.EventBus
	Metrics metrics.Recorder
	Options *contractconfig.ContractOptions
	Logger  log.Logger
}

// New 创建状态管理器；Bus、Metrics、Options 可为空
func New(p Params) *Manager {
	if p.Metrics == nil {
		p.Metrics = inframetrics.NopRecorder{}
	}
	if p.Options == nil {
		p.Options = contractconfig.Default()
	}
	return &Manager{
		store:   p.Store,
		clock:   p.Clock,
		hasher:  p.Hasher,
		bus:     p.Bus,
		metrics: p.Metrics,
		options: p.Options,
		logger:  logpkg.NewModuleLogger(p.Logger, "contract.state"),
		states:  make(map[types.Address]*addrState),
	}
}

func (m *Manager) get(address types.Address) (*addrState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[address]
	return s, ok
}

func (m *Manager) mustGet(address types.Address) (*addrState, error) {
	s, ok := m.get(address)
	if !ok {
		return nil, types.ErrNotFound.With("no state for %s", address)
	}
	return s, nil
}

// Init 为新地址创建空状态
func (m *Manager) Init(ctx context.Context, address types.Address, limits types.ResourceLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[address]; ok {
		return types.ErrAlreadyExists.With("state for %s already initialized", address)
	}
	s := &addrState{meta: stateMeta{Limits: limits}}
	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return putMeta(tx, address, s.meta)
	}); err != nil {
		return types.ErrWrite.Wrap(err, "init state for %s", address)
	}
	s.data.Store(newStateData(map[string][]byte{}))
	m.states[address] = s
	return nil
}

// Exists 地址是否有状态
func (m *Manager) Exists(address types.Address) bool {
	_, ok := m.get(address)
	return ok
}

// Discard 在一个事务内删除地址的全部持久化数据并移出内存
func (m *Manager) Discard(ctx context.Context, address types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[address]; !ok {
		return nil
	}
	var doomed []string
	for _, prefix := range [][]byte{keys.StatePrefix(address), keys.SnapshotPrefix(address), keys.ChangePrefix(address)} {
		found, err := m.store.PrefixScan(ctx, prefix)
		if err != nil {
			return types.ErrRead.Wrap(err, "scan %s", prefix)
		}
		for k := range found {
			doomed = append(doomed, k)
		}
	}
	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, k := range doomed {
			if err := tx.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return tx.Delete(keys.StateMeta(address))
	}); err != nil {
		return types.ErrWrite.Wrap(err, "discard state of %s", address)
	}
	delete(m.states, address)
	m.logger.Warnf("地址状态已丢弃: %s", address)
	return nil
}

// Read 读取键值，返回副本
func (m *Manager) Read(address types.Address, key []byte) ([]byte, bool) {
	s, ok := m.get(address)
	if !ok {
		return nil, false
	}
	if s.corrupted.Load() {
		m.logger.Warnf("读取隔离中的地址状态，结果可能不可信: %s", address)
	}
	v, ok := s.data.Load().entries[string(key)]
	if !ok {
		return nil, false
	}
	return cloneBytes(v), true
}

// Write 写入单个键值
func (m *Manager) Write(ctx context.Context, address types.Address, key, value []byte) error {
	return m.ApplyChangeset(ctx, address, []types.Change{{Key: key, Value: value}})
}

// ApplyChangeset 原子提交一组写入
func (m *Manager) ApplyChangeset(ctx context.Context, address types.Address, changes []types.Change) error {
	s, err := m.mustGet(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted.Load() {
		return types.ErrCorruptedState.With("address %s is quarantined", address)
	}

	current := s.data.Load()
	next := make(map[string][]byte, len(current.entries)+len(changes))
	for k, v := range current.entries {
		next[k] = v
	}
	for _, c := range changes {
		if err := m.checkEntry(c.Key, c.Value); err != nil {
			return err
		}
		if c.Delete {
			delete(next, string(c.Key))
			continue
		}
		next[string(c.Key)] = append([]byte{}, c.Value...)
	}
	nextData := newStateData(next)
	if err := m.checkLimits(s, nextData); err != nil {
		return err
	}
	return m.commitLocked(ctx, address, s, current, nextData)
}

func (m *Manager) checkEntry(key, value []byte) error {
	if len(key) == 0 {
		return types.ErrInvalidInput.With("empty state key")
	}
	if len(key) > m.options.MaxKeySize {
		return types.ErrSizeLimitExceeded.With("key size %d exceeds %d", len(key), m.options.MaxKeySize)
	}
	if len(value) > m.options.MaxValueSize {
		return types.ErrSizeLimitExceeded.With("value size %d exceeds %d", len(value), m.options.MaxValueSize)
	}
	return nil
}

func (m *Manager) checkLimits(s *addrState, next *stateData) error {
	if m.options.MaxEntries > 0 && len(next.entries) > m.options.MaxEntries {
		return types.ErrSizeLimitExceeded.With("entry count %d exceeds %d", len(next.entries), m.options.MaxEntries)
	}
	if limit := s.meta.Limits.MaxStorage; limit > 0 && next.size > limit {
		return types.ErrSizeLimitExceeded.With("state size %d exceeds max_storage %d", next.size, limit)
	}
	return nil
}

// commitLocked 持久化差异与变更记录后替换内存指针
func (m *Manager) commitLocked(ctx context.Context, address types.Address, s *addrState, current, next *stateData) error {
	diffs := diffMaps(current.entries, next.entries)
	if len(diffs) == 0 {
		return nil
	}
	meta := s.meta
	meta.ChangeSeq++
	record := types.ChangeRecord{Seq: meta.ChangeSeq, Diffs: diffs}

	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := writeDiffs(tx, address, diffs); err != nil {
			return err
		}
		if err := putChange(tx, address, record); err != nil {
			return err
		}
		return putMeta(tx, address, meta)
	}); err != nil {
		return types.ErrWrite.Wrap(err, "commit changeset for %s", address)
	}

	s.meta = meta
	s.data.Store(next)
	s.history = appendHistory(s.history, record)
	return nil
}

func appendHistory(history []types.ChangeRecord, record types.ChangeRecord) []types.ChangeRecord {
	history = append(history, record)
	if len(history) > historyLimit {
		history = append([]types.ChangeRecord(nil), history[len(history)-historyLimit:]...)
	}
	return history
}

// Snapshot 对当前状态拍快照并持久化
func (m *Manager) Snapshot(ctx context.Context, address types.Address, version string) (*types.Snapshot, error) {
	s, err := m.mustGet(address)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted.Load() {
		return nil, types.ErrCorruptedState.With("address %s is quarantined", address)
	}
	return m.snapshotLocked(ctx, address, s, version)
}

// snapshotLocked 调用方需持有 s.mu
func (m *Manager) snapshotLocked(ctx context.Context, address types.Address, s *addrState, version string) (*types.Snapshot, error) {
	entries := sortedEntries(s.data.Load().entries)
	meta := s.meta
	meta.SnapSeq++
	snap := &types.Snapshot{
		ID:            uuid.NewString(),
		Address:       address,
		Seq:           meta.SnapSeq,
		Version:       version,
		Timestamp:     m.clock.Unix(),
		Entries:       entries,
		StateHash:     StateHash(m.hasher, entries),
		SchemaVersion: types.SnapshotSchemaVersion,
	}
	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := putSnapshot(tx, snap); err != nil {
			return err
		}
		return putMeta(tx, address, meta)
	}); err != nil {
		return nil, types.ErrWrite.Wrap(err, "persist snapshot for %s", address)
	}

	s.meta = meta
	s.snapshots = append(s.snapshots, snap)
	m.metrics.IncSnapshots()
	m.logger.Debugf("快照已创建: address=%s seq=%d version=%s", address, snap.Seq, version)
	return cloneSnapshot(snap), nil
}

// DeleteSnapshot 删除快照
func (m *Manager) DeleteSnapshot(ctx context.Context, address types.Address, id string) error {
	s, err := m.mustGet(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, snap := range s.snapshots {
		if snap.ID != id {
			continue
		}
		if err := m.store.Delete(ctx, snapshotKey(snap)); err != nil {
			return types.ErrWrite.Wrap(err, "delete snapshot %s", id)
		}
		s.snapshots = append(s.snapshots[:i:i], s.snapshots[i+1:]...)
		return nil
	}
	return types.ErrNotFound.With("snapshot %s not found", id)
}

// Restore 用快照整体替换状态
//
// 复制前校验快照内容哈希，复制后从存储读回再次校验；读回不一致时地址被隔离。
func (m *Manager) Restore(ctx context.Context, address types.Address, snapshot *types.Snapshot) error {
	if snapshot == nil {
		return types.ErrInvalidInput.With("nil snapshot")
	}
	if snapshot.Address != address {
		return types.ErrInconsistentState.With("snapshot %s belongs to %s, not %s", snapshot.ID, snapshot.Address, address)
	}
	if got := StateHash(m.hasher, snapshot.Entries); got != snapshot.StateHash {
		return types.ErrCorruptedState.With("snapshot %s content hash mismatch", snapshot.ID)
	}

	s, err := m.mustGet(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.data.Load()
	next := newStateData(entriesToMap(snapshot.Entries))
	meta := s.meta
	meta.Corrupted = false
	meta.Reason = ""
	meta.ChangeSeq++
	diffs := diffMaps(current.entries, next.entries)
	record := types.ChangeRecord{Seq: meta.ChangeSeq, Diffs: diffs}

	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := writeDiffs(tx, address, diffs); err != nil {
			return err
		}
		if err := putChange(tx, address, record); err != nil {
			return err
		}
		return putMeta(tx, address, meta)
	}); err != nil {
		return types.ErrWrite.Wrap(err, "restore snapshot %s", snapshot.ID)
	}

	persisted, err := m.loadEntries(ctx, address)
	if err != nil {
		m.markCorruptedLocked(ctx, address, s, err)
		return types.ErrCorruptedState.Wrap(err, "verify restored state")
	}
	if StateHash(m.hasher, sortedEntries(persisted)) != snapshot.StateHash {
		err := types.ErrCorruptedState.With("restored state of %s does not match snapshot %s", address, snapshot.ID)
		m.markCorruptedLocked(ctx, address, s, err)
		return err
	}

	s.meta = meta
	s.corrupted.Store(false)
	s.data.Store(next)
	s.history = appendHistory(s.history, record)
	m.logger.Infof("状态已恢复: address=%s snapshot=%s", address, snapshot.ID)
	m.publish(contractif.EventStateRestored, contractif.StateEvent{Address: address, SnapshotID: snapshot.ID})
	return nil
}

// Diff 两个快照之间的差异
func (m *Manager) Diff(a, b *types.Snapshot) []types.DiffEntry {
	var ae, be []types.Entry
	if a != nil {
		ae = a.Entries
	}
	if b != nil {
		be = b.Entries
	}
	return diffMaps(entriesToMap(ae), entriesToMap(be))
}

// Migrate 按顺序执行迁移步骤
//
// 应用前先拍下恢复点快照；步骤作用在副本上，全部成功后一次性提交，
// 任一步失败时当前状态仍与该快照一致。
func (m *Manager) Migrate(ctx context.Context, address types.Address, version string, steps []types.MigrationStep) error {
	s, err := m.mustGet(address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted.Load() {
		return types.ErrCorruptedState.With("address %s is quarantined", address)
	}

	snap, err := m.snapshotLocked(ctx, address, s, version)
	if err != nil {
		return types.ErrMigrationFailed.Wrap(err, "snapshot before migration")
	}
	before := s.data.Load()
	work := make(map[string][]byte, len(before.entries))
	for k, v := range before.entries {
		work[k] = v
	}
	for i, step := range steps {
		if err := m.applyStep(work, step); err != nil {
			return types.ErrMigrationFailed.Wrap(err, "step %d (%s), state kept at snapshot %s", i+1, step.Op, snap.ID)
		}
	}
	next := newStateData(work)
	if err := m.checkLimits(s, next); err != nil {
		return types.ErrMigrationFailed.Wrap(err, "migrated state")
	}
	if err := m.commitLocked(ctx, address, s, before, next); err != nil {
		return types.ErrMigrationFailed.Wrap(err, "commit migration")
	}
	m.publish(contractif.EventStateMigrated, contractif.StateEvent{Address: address})
	return nil
}

func (m *Manager) applyStep(work map[string][]byte, step types.MigrationStep) error {
	key := string(step.Key)
	switch step.Op {
	case types.MigrationRename:
		v, ok := work[key]
		if !ok {
			return types.ErrNotFound.With("rename source %q missing", step.Key)
		}
		if _, exists := work[string(step.NewKey)]; exists {
			return types.ErrInvalidInput.With("rename target %q already exists", step.NewKey)
		}
		if err := m.checkEntry(step.NewKey, v); err != nil {
			return err
		}
		delete(work, key)
		work[string(step.NewKey)] = v
	case types.MigrationAddWithDefault:
		if _, exists := work[key]; exists {
			return types.ErrInvalidInput.With("field %q already exists", step.Key)
		}
		if err := m.checkEntry(step.Key, step.Default); err != nil {
			return err
		}
		work[key] = append([]byte{}, step.Default...)
	case types.MigrationRemove:
		if _, ok := work[key]; !ok {
			return types.ErrNotFound.With("field %q missing", step.Key)
		}
		delete(work, key)
	default:
		return types.ErrInvalidInput.With("unknown migration op %q", step.Op)
	}
	return nil
}

// Snapshots 地址的全部快照
func (m *Manager) Snapshots(address types.Address) []*types.Snapshot {
	s, ok := m.get(address)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Snapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = cloneSnapshot(snap)
	}
	return out
}

// SnapshotByID 按ID查找快照
func (m *Manager) SnapshotByID(address types.Address, id string) (*types.Snapshot, bool) {
	s, ok := m.get(address)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snapshots {
		if snap.ID == id {
			return cloneSnapshot(snap), true
		}
	}
	return nil, false
}

// StateView 当前状态的只读副本
func (m *Manager) StateView(address types.Address) (types.StateView, bool) {
	s, ok := m.get(address)
	if !ok {
		return types.StateView{}, false
	}
	data := s.data.Load()
	corrupted := s.corrupted.Load()
	if corrupted {
		m.logger.Warnf("读取隔离中的地址状态，结果可能不可信: %s", address)
	}
	return types.StateView{
		Address:    address,
		Entries:    sortedEntries(data.entries),
		Size:       data.size,
		Unreliable: corrupted,
	}, true
}

// Size 当前状态总字节数
func (m *Manager) Size(address types.Address) uint64 {
	s, ok := m.get(address)
	if !ok {
		return 0
	}
	return s.data.Load().size
}

// History 已提交变更集的差异记录
func (m *Manager) History(address types.Address) []types.ChangeRecord {
	s, ok := m.get(address)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.ChangeRecord(nil), s.history...)
}

// MarkCorrupted 隔离地址
func (m *Manager) MarkCorrupted(ctx context.Context, address types.Address, reason error) {
	s, ok := m.get(address)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.markCorruptedLocked(ctx, address, s, reason)
}

func (m *Manager) markCorruptedLocked(ctx context.Context, address types.Address, s *addrState, reason error) {
	s.corrupted.Store(true)
	s.meta.Corrupted = true
	if reason != nil {
		s.meta.Reason = reason.Error()
	}
	if err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return putMeta(tx, address, s.meta)
	}); err != nil {
		m.logger.Errorf("持久化隔离标记失败: address=%s err=%v", address, err)
	}
	m.logger.Errorf("地址已隔离: address=%s reason=%s", address, s.meta.Reason)
	m.publish(contractif.EventStateCorrupted, contractif.StateEvent{Address: address, Reason: s.meta.Reason})
}

// IsCorrupted 地址是否处于隔离状态
func (m *Manager) IsCorrupted(address types.Address) bool {
	s, ok := m.get(address)
	return ok && s.corrupted.Load()
}

func (m *Manager) publish(eventType event.EventType, payload interface{}) {
	if m.bus != nil {
		m.bus.Publish(eventType, payload)
	}
}

func cloneSnapshot(s *types.Snapshot) *types.Snapshot {
	c := *s
	c.Entries = make([]types.Entry, len(s.Entries))
	for i, e := range s.Entries {
		c.Entries[i] = types.Entry{Key: cloneBytes(e.Key), Value: cloneBytes(e.Value)}
	}
	return &c
}
