// Package registry 合约版本注册表
//
// 每个地址对应一段只追加的版本历史和一个可移动的当前指针。升级追加新版本
// 并前移指针，回滚沿前驱关系后移指针并恢复离开前驱版本时拍下的状态快照。
// 指针移动通过比较 (index, length) 完成，两个并发升级最多一个成功。
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/keys"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	inframetrics "github.com/weisyn/contractcore/internal/core/infrastructure/metrics"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/crypto"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// historyEntry 版本在历史中的前驱关系
type historyEntry struct {
	// Prev 升级到本版本时的当前版本索引，首个版本为 -1
	Prev int `json:"prev"`
	// PrevSnapshot 离开 Prev 时拍下的状态快照
	PrevSnapshot string `json:"prev_snapshot,omitempty"`
}

type record struct {
	mu sync.Mutex

	address   types.Address
	order     uint64
	versions  []*types.Version
	entries   []historyEntry
	current   int
	limits    types.ResourceLimits
	upgrades  []types.UpgradeRecord
	rollbacks int
	// upgradeTimes 最近的升级时间（unix秒），用于频率限制
	upgradeTimes []int64
}

func (rec *record) head() contractif.Head {
	return contractif.Head{Index: rec.current, Length: len(rec.versions)}
}

// Registry 版本注册表实现
type Registry struct {
	store   storage.KVStore
	access  contractif.AccessControl
	state   contractif.StateManager
	sandbox contractif.Sandbox
	hasher  crypto.HashManager
	clock   clock.Clock
	metrics metrics.Recorder
	options *contractconfig.ContractOptions
	logger  log.Logger

	mu        sync.RWMutex
	records   map[types.Address]*record
	nextOrder uint64
}

var _ contractif.VersionRegistry = (*Registry)(nil)

// Params 注册表依赖；Sandbox 为空时跳过字节码校验
type Params struct {
	Store   storage.KVStore
	Access  contractif.AccessControl
	State   contractif.StateManager
	Sandbox contractif.Sandbox
	Hasher  crypto.HashManager
	Clock   clock.Clock
	Metrics metrics.Recorder
	Options *contractconfig.ContractOptions
	Logger  log.Logger
}

// New 创建注册表
func New(p Params) *Registry {
	if p.Metrics == nil {
		p.Metrics = inframetrics.NopRecorder{}
	}
	if p.Options == nil {
		p.Options = contractconfig.Default()
	}
	return &Registry{
		store:   p.Store,
		access:  p.Access,
		state:   p.State,
		sandbox: p.Sandbox,
		hasher:  p.Hasher,
		clock:   p.Clock,
		metrics: p.Metrics,
		options: p.Options,
		logger:  logpkg.NewModuleLogger(p.Logger, "contract.registry"),
		records: make(map[types.Address]*record),
	}
}

func (r *Registry) get(address types.Address) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[address]
	return rec, ok
}

func (r *Registry) mustGet(address types.Address) (*record, error) {
	rec, ok := r.get(address)
	if !ok {
		return nil, types.ErrNotFound.With("contract %s not registered", address)
	}
	return rec, nil
}

func (r *Registry) newVersion(bytecode []byte, abi types.ABI, md types.Metadata) *types.Version {
	now := r.clock.Unix()
	md.CreatedAt = now
	md.UpdatedAt = now
	md.Author = append([]byte(nil), md.Author...)
	code := append([]byte(nil), bytecode...)
	var codeHash [32]byte
	copy(codeHash[:], r.hasher.Keccak256(code))
	return &types.Version{Metadata: md, Bytecode: code, ABI: abi, CodeHash: codeHash}
}

// Register 首次部署
func (r *Registry) Register(ctx context.Context, req contractif.RegisterRequest) (*types.Version, error) {
	if err := r.access.RequireRole(types.DeployerRole, req.Caller); err != nil {
		return nil, err
	}
	if r.Exists(req.Address) {
		return nil, types.ErrAlreadyExists.With("contract %s already registered", req.Address)
	}
	if _, err := r.validateMetadata(req.Metadata); err != nil {
		return nil, err
	}
	limits, err := r.resolveLimits(req.Limits)
	if err != nil {
		return nil, err
	}
	if err := r.validateCode(ctx, req.Bytecode, req.ABI, limits); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[req.Address]; ok {
		return nil, types.ErrAlreadyExists.With("contract %s already registered", req.Address)
	}

	version := r.newVersion(req.Bytecode, req.ABI, req.Metadata)
	rec := &record{
		address:  req.Address,
		order:    r.nextOrder,
		versions: []*types.Version{version},
		entries:  []historyEntry{{Prev: -1}},
		current:  0,
		limits:   limits,
	}
	if err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := putVersion(tx, req.Address, 0, version); err != nil {
			return err
		}
		return putRecord(tx, rec)
	}); err != nil {
		return nil, types.ErrWrite.Wrap(err, "persist registration of %s", req.Address)
	}

	r.records[req.Address] = rec
	r.nextOrder++
	r.metrics.IncVersions()
	r.logger.Infof("合约已注册: address=%s version=%s", req.Address, version.Metadata.Version)
	return cloneVersion(version), nil
}

// Upgrade 追加新版本并前移当前指针
//
// 步骤：(1) 对当前状态拍快照 (2) 追加版本 (3) 比较并移动指针；
// (2)(3) 在同一存储事务中提交，失败时删除 (1) 的快照。
func (r *Registry) Upgrade(ctx context.Context, req contractif.UpgradeRequest) (*types.Version, error) {
	if err := r.access.RequireRole(types.UpgraderRole, req.Caller); err != nil {
		return nil, err
	}
	rec, err := r.mustGet(req.Address)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if r.state.IsCorrupted(req.Address) {
		return nil, types.ErrCorruptedState.With("address %s is quarantined, restore it before upgrading", req.Address)
	}
	if err := checkHead(rec, req.Expected); err != nil {
		return nil, err
	}
	current := rec.versions[rec.current]
	if !current.Metadata.IsUpgradeable {
		return nil, types.ErrInvalidUpgrade.With("version %s of %s is not upgradeable", current.Metadata.Version, req.Address)
	}
	newVer, err := r.validateMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}
	curVer, err := current.Metadata.SemVer()
	if err != nil {
		return nil, types.ErrInconsistentState.Wrap(err, "stored version of %s", req.Address)
	}
	if !newVer.GT(curVer) {
		return nil, types.ErrIncompatibleVersion.With("new version %s must be greater than %s", req.Metadata.Version, current.Metadata.Version)
	}
	for _, v := range rec.versions {
		if sv, err := v.Metadata.SemVer(); err == nil && sv.EQ(newVer) {
			return nil, types.ErrIncompatibleVersion.With("version %s already exists in history", req.Metadata.Version)
		}
	}
	now := r.clock.Now()
	if err := r.checkRateLimit(rec, now); err != nil {
		return nil, err
	}
	if err := r.validateCode(ctx, req.Bytecode, req.ABI, rec.limits); err != nil {
		return nil, err
	}

	snap, err := r.state.Snapshot(ctx, req.Address, current.Metadata.Version)
	if err != nil {
		r.recordFailedUpgrade(ctx, rec, current.Metadata.Version, req.Metadata.Version, now)
		return nil, types.ErrUpgradeFailed.Wrap(err, "snapshot before upgrade")
	}

	version := r.newVersion(req.Bytecode, req.ABI, req.Metadata)
	next := cloneRecord(rec)
	next.versions = append(next.versions, version)
	next.entries = append(next.entries, historyEntry{Prev: rec.current, PrevSnapshot: snap.ID})
	next.current = len(next.versions) - 1
	next.rollbacks = 0
	next.upgrades = append(next.upgrades, types.UpgradeRecord{
		From: current.Metadata.Version, To: version.Metadata.Version, Timestamp: now.Unix(), Successful: true,
	})
	next.upgradeTimes = append(pruneTimes(next.upgradeTimes, now), now.Unix())

	if err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := putVersion(tx, req.Address, uint64(next.current), version); err != nil {
			return err
		}
		return putRecord(tx, next)
	}); err != nil {
		if derr := r.state.DeleteSnapshot(ctx, req.Address, snap.ID); derr != nil {
			r.logger.Warnf("撤销升级快照失败: address=%s snapshot=%s err=%v", req.Address, snap.ID, derr)
		}
		r.recordFailedUpgrade(ctx, rec, current.Metadata.Version, req.Metadata.Version, now)
		return nil, types.ErrUpgradeFailed.Wrap(err, "persist upgrade of %s", req.Address)
	}

	rec.apply(next)
	r.metrics.IncVersions()
	r.logger.Infof("合约已升级: address=%s %s -> %s", req.Address, current.Metadata.Version, version.Metadata.Version)
	return cloneVersion(version), nil
}

// Unregister 删除只有首个版本的注册记录
//
// 已升级过的地址返回 InvalidInput：版本历史只追加，不删除。
func (r *Registry) Unregister(ctx context.Context, address types.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[address]
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.versions) != 1 {
		return types.ErrInvalidInput.With("contract %s has %d versions", address, len(rec.versions))
	}
	if err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Delete(keys.Version(address, 0)); err != nil {
			return err
		}
		return tx.Delete(keys.Registry(address))
	}); err != nil {
		return types.ErrWrite.Wrap(err, "unregister %s", address)
	}
	delete(r.records, address)
	r.logger.Warnf("合约注册已撤销: address=%s", address)
	return nil
}

// Rollback 当前指针回到前驱版本并恢复离开前驱时的状态快照
func (r *Registry) Rollback(ctx context.Context, address types.Address, caller types.Account, expected contractif.Head) (*types.Version, error) {
	if err := r.access.RequireRole(types.UpgraderRole, caller); err != nil {
		return nil, err
	}
	rec, err := r.mustGet(address)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	// 回滚会解除隔离，只能由管理员通过快照恢复完成
	if r.state.IsCorrupted(address) {
		return nil, types.ErrCorruptedState.With("address %s is quarantined, restore it before rolling back", address)
	}
	if err := checkHead(rec, expected); err != nil {
		return nil, err
	}
	entry := rec.entries[rec.current]
	if entry.Prev < 0 {
		return nil, types.ErrNoPriorVersion.With("contract %s has no prior version", address)
	}
	if depth := r.options.RollbackDepth; depth > 0 && rec.rollbacks >= depth {
		return nil, types.ErrNoPriorVersion.With("rollback depth %d exhausted for %s", depth, address)
	}
	target, ok := r.state.SnapshotByID(address, entry.PrevSnapshot)
	if !ok {
		return nil, types.ErrInconsistentState.With("snapshot %s for rollback of %s missing", entry.PrevSnapshot, address)
	}

	from := rec.versions[rec.current].Metadata.Version
	to := rec.versions[entry.Prev].Metadata.Version
	before, err := r.state.Snapshot(ctx, address, from)
	if err != nil {
		return nil, types.ErrUpgradeFailed.Wrap(err, "snapshot before rollback")
	}
	if err := r.state.Restore(ctx, address, target); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	next := cloneRecord(rec)
	next.current = entry.Prev
	next.rollbacks++
	next.upgrades = append(next.upgrades, types.UpgradeRecord{
		From: from, To: to, Timestamp: now.Unix(), Successful: true, RolledBack: true,
	})
	if err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return putRecord(tx, next)
	}); err != nil {
		if rerr := r.state.Restore(ctx, address, before); rerr != nil {
			r.state.MarkCorrupted(ctx, address, rerr)
		}
		return nil, types.ErrUpgradeFailed.Wrap(err, "persist rollback of %s", address)
	}

	rec.apply(next)
	r.logger.Infof("合约已回滚: address=%s %s -> %s", address, from, to)
	return cloneVersion(rec.versions[rec.current]), nil
}

// checkHead 比较调用方观察到的指针；Length 为 0 表示不做比较
func checkHead(rec *record, expected contractif.Head) error {
	if expected.Length == 0 {
		return nil
	}
	if got := rec.head(); got != expected {
		return types.ErrVersionConflict.With("version pointer of %s moved: expected %d/%d, found %d/%d",
			rec.address, expected.Index, expected.Length, got.Index, got.Length)
	}
	return nil
}

func (r *Registry) checkRateLimit(rec *record, now time.Time) error {
	if interval := r.options.MinUpgradeInterval; interval > 0 && len(rec.upgradeTimes) > 0 {
		last := time.Unix(rec.upgradeTimes[len(rec.upgradeTimes)-1], 0)
		if now.Sub(last) < interval {
			return types.ErrUpgradeLimitExceeded.With("last upgrade of %s was %s ago, minimum interval %s",
				rec.address, now.Sub(last).Truncate(time.Second), interval)
		}
	}
	if max := r.options.MaxUpgradesPerDay; max > 0 && len(pruneTimes(rec.upgradeTimes, now)) >= max {
		return types.ErrUpgradeLimitExceeded.With("%s reached %d upgrades in 24h", rec.address, max)
	}
	return nil
}

// pruneTimes 只保留最近24小时内的升级时间
func pruneTimes(times []int64, now time.Time) []int64 {
	cutoff := now.Add(-24 * time.Hour).Unix()
	out := make([]int64, 0, len(times)+1)
	for _, t := range times {
		if t > cutoff {
			out = append(out, t)
		}
	}
	return out
}

// recordFailedUpgrade 失败的升级也进入升级历史，持久化失败只记日志
func (r *Registry) recordFailedUpgrade(ctx context.Context, rec *record, from, to string, now time.Time) {
	next := cloneRecord(rec)
	next.upgrades = append(next.upgrades, types.UpgradeRecord{From: from, To: to, Timestamp: now.Unix()})
	if err := r.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return putRecord(tx, next)
	}); err != nil {
		r.logger.Warnf("记录失败的升级失败: address=%s err=%v", rec.address, err)
		return
	}
	rec.apply(next)
}

// Head 当前指针
func (r *Registry) Head(address types.Address) (contractif.Head, bool) {
	rec, ok := r.get(address)
	if !ok {
		return contractif.Head{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.head(), true
}

// GetVersion 按版本号查找（按SemVer比较，允许前导v）
func (r *Registry) GetVersion(address types.Address, version string) (*types.Version, error) {
	rec, err := r.mustGet(address)
	if err != nil {
		return nil, err
	}
	want, perr := types.Metadata{Version: version}.SemVer()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, v := range rec.versions {
		if v.Metadata.Version == version {
			return cloneVersion(v), nil
		}
		if perr == nil {
			if sv, err := v.Metadata.SemVer(); err == nil && sv.EQ(want) {
				return cloneVersion(v), nil
			}
		}
	}
	return nil, types.ErrNotFound.With("version %s of %s not found", version, address)
}

// GetLatest 当前指针指向的版本
func (r *Registry) GetLatest(address types.Address) (*types.Version, error) {
	rec, err := r.mustGet(address)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneVersion(rec.versions[rec.current]), nil
}

// ListVersions 全部历史版本，按追加顺序
func (r *Registry) ListVersions(address types.Address) ([]*types.Version, error) {
	rec, err := r.mustGet(address)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]*types.Version, len(rec.versions))
	for i, v := range rec.versions {
		out[i] = cloneVersion(v)
	}
	return out, nil
}

// SearchByDescription 当前版本描述包含 query（忽略大小写）的合约，按注册顺序
func (r *Registry) SearchByDescription(query string) []types.ContractInfo {
	q := strings.ToLower(query)
	var out []types.ContractInfo
	for _, rec := range r.ordered() {
		rec.mu.Lock()
		cur := rec.versions[rec.current]
		if strings.Contains(strings.ToLower(cur.Metadata.Description), q) {
			out = append(out, types.ContractInfo{Address: rec.address, Current: cloneVersion(cur)})
		}
		rec.mu.Unlock()
	}
	return out
}

// Exists 地址是否已注册
func (r *Registry) Exists(address types.Address) bool {
	_, ok := r.get(address)
	return ok
}

// Limits 部署时绑定的资源限制
func (r *Registry) Limits(address types.Address) (types.ResourceLimits, error) {
	rec, err := r.mustGet(address)
	if err != nil {
		return types.ResourceLimits{}, err
	}
	return rec.limits, nil
}

// UpgradeHistory 升级与回滚记录
func (r *Registry) UpgradeHistory(address types.Address) ([]types.UpgradeRecord, error) {
	rec, err := r.mustGet(address)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]types.UpgradeRecord(nil), rec.upgrades...), nil
}

// ListContracts 全部已注册地址，按注册顺序
func (r *Registry) ListContracts() []types.Address {
	recs := r.ordered()
	out := make([]types.Address, len(recs))
	for i, rec := range recs {
		out[i] = rec.address
	}
	return out
}

func (r *Registry) ordered() []*record {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()
	sort.Slice(recs, func(i, j int) bool { return recs[i].order < recs[j].order })
	return recs
}

func cloneRecord(rec *record) *record {
	return &record{
		address:      rec.address,
		order:        rec.order,
		versions:     append([]*types.Version(nil), rec.versions...),
		entries:      append([]historyEntry(nil), rec.entries...),
		current:      rec.current,
		limits:       rec.limits,
		upgrades:     append([]types.UpgradeRecord(nil), rec.upgrades...),
		rollbacks:    rec.rollbacks,
		upgradeTimes: append([]int64(nil), rec.upgradeTimes...),
	}
}

// apply 将已持久化的副本写回，调用方持有 rec.mu
func (rec *record) apply(next *record) {
	rec.versions = next.versions
	rec.entries = next.entries
	rec.current = next.current
	rec.upgrades = next.upgrades
	rec.rollbacks = next.rollbacks
	rec.upgradeTimes = next.upgradeTimes
}

func cloneVersion(v *types.Version) *types.Version {
	c := *v
	c.Bytecode = append([]byte(nil), v.Bytecode...)
	c.Metadata.Author = append([]byte(nil), v.Metadata.Author...)
	c.ABI.Methods = append([]types.Method(nil), v.ABI.Methods...)
	c.ABI.Events = append([]types.EventDef(nil), v.ABI.Events...)
	c.ABI.Standards = append([]string(nil), v.ABI.Standards...)
	return &c
}
