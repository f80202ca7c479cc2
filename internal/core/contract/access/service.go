// Package access 基于角色的访问控制
//
// 每个角色有一个管理角色，只有管理角色的持有者可以授予或撤销该角色。
// DefaultAdminRole 自我管理；在尚无持有者时，任何调用者都可以完成首次授予。
package access

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/weisyn/contractcore/internal/core/contract/keys"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	inframetrics "github.com/weisyn/contractcore/internal/core/infrastructure/metrics"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

var memberMarker = []byte{0x01}

// Service 访问控制实现
type Service struct {
	store   storage.KVStore
	clock   clock.Clock
	bus     event.EventBus
	metrics metrics.Recorder
	logger  log.Logger

	mu       sync.RWMutex
	members  map[types.Role]map[types.Account]struct{}
	admins   map[types.Role]types.Role
	known    map[types.Role]struct{}
	auditSeq uint64
}

var _ contractif.AccessControl = (*Service)(nil)

// New 创建访问控制服务；bus 与 recorder 可为 nil
func New(store storage.KVStore, clk clock.Clock, bus event.EventBus, recorder metrics.Recorder, logger log.Logger) *Service {
	if recorder == nil {
		recorder = inframetrics.NopRecorder{}
	}
	s := &Service{
		store:   store,
		clock:   clk,
		bus:     bus,
		metrics: recorder,
		logger:  logpkg.NewModuleLogger(logger, "contract.access"),
	}
	s.reset()
	return s
}

func (s *Service) reset() {
	s.members = make(map[types.Role]map[types.Account]struct{})
	s.admins = make(map[types.Role]types.Role)
	s.known = map[types.Role]struct{}{
		types.DefaultAdminRole: {},
		types.DeployerRole:     {},
		types.ExecutorRole:     {},
		types.UpgraderRole:     {},
	}
	s.auditSeq = 0
}

// HasRole 账户是否持有角色
func (s *Service) HasRole(role types.Role, account types.Account) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasRoleLocked(role, account)
}

func (s *Service) hasRoleLocked(role types.Role, account types.Account) bool {
	_, ok := s.members[role][account]
	return ok
}

// RequireRole 未持有角色时返回 PermissionDenied
func (s *Service) RequireRole(role types.Role, account types.Account) error {
	if s.HasRole(role, account) {
		return nil
	}
	return types.ErrPermissionDenied.With("account %s lacks role %s", account, role)
}

// GetRoleAdmin 角色的管理角色
func (s *Service) GetRoleAdmin(role types.Role) types.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminOfLocked(role)
}

func (s *Service) adminOfLocked(role types.Role) types.Role {
	if admin, ok := s.admins[role]; ok {
		return admin
	}
	return types.DefaultAdminRole
}

// RoleMemberCount 角色持有者数量
func (s *Service) RoleMemberCount(role types.Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[role])
}

// RoleMembers 角色持有者
func (s *Service) RoleMembers(role types.Role) []types.Account {
	s.mu.RLock()
	out := make([]types.Account, 0, len(s.members[role]))
	for acc := range s.members[role] {
		out = append(out, acc)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// GrantRole 授予角色
func (s *Service) GrantRole(ctx context.Context, role types.Role, account, caller types.Account) (bool, error) {
	s.mu.Lock()
	bootstrap := role == types.DefaultAdminRole && len(s.members[types.DefaultAdminRole]) == 0
	if !bootstrap && !s.hasRoleLocked(s.adminOfLocked(role), caller) {
		s.mu.Unlock()
		return false, types.ErrPermissionDenied.With("caller %s is not admin of role %s", caller, role)
	}
	if s.hasRoleLocked(role, account) {
		s.mu.Unlock()
		return false, nil
	}

	entry := s.newAuditLocked(types.AuditGrant, role, account, caller, nil)
	if err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Set(keys.RoleMember(role, account), memberMarker); err != nil {
			return err
		}
		return putAudit(tx, entry)
	}); err != nil {
		s.mu.Unlock()
		return false, types.ErrWrite.Wrap(err, "persist grant of %s", role)
	}

	if s.members[role] == nil {
		s.members[role] = make(map[types.Account]struct{})
	}
	s.members[role][account] = struct{}{}
	s.known[role] = struct{}{}
	s.auditSeq = entry.Seq
	s.mu.Unlock()

	if bootstrap {
		s.logger.Infof("超级管理员初始化: %s", account)
	}
	s.metrics.IncRoleChanges(string(types.AuditGrant))
	s.publish(contractif.EventRoleGranted, types.RoleEvent{Role: role, Account: account, Sender: caller})
	return true, nil
}

// RevokeRole 撤销角色
func (s *Service) RevokeRole(ctx context.Context, role types.Role, account, caller types.Account) (bool, error) {
	s.mu.Lock()
	if !s.hasRoleLocked(s.adminOfLocked(role), caller) {
		s.mu.Unlock()
		return false, types.ErrPermissionDenied.With("caller %s is not admin of role %s", caller, role)
	}
	if !s.hasRoleLocked(role, account) {
		s.mu.Unlock()
		return false, nil
	}
	if role == types.DefaultAdminRole && len(s.members[role]) == 1 {
		s.mu.Unlock()
		return false, types.ErrPermissionDenied.With("cannot revoke the last super-admin")
	}

	entry := s.newAuditLocked(types.AuditRevoke, role, account, caller, nil)
	if err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Delete(keys.RoleMember(role, account)); err != nil {
			return err
		}
		return putAudit(tx, entry)
	}); err != nil {
		s.mu.Unlock()
		return false, types.ErrWrite.Wrap(err, "persist revoke of %s", role)
	}

	delete(s.members[role], account)
	s.auditSeq = entry.Seq
	s.mu.Unlock()

	s.metrics.IncRoleChanges(string(types.AuditRevoke))
	s.publish(contractif.EventRoleRevoked, types.RoleEvent{Role: role, Account: account, Sender: caller})
	return true, nil
}

// SetRoleAdmin 修改角色的管理角色
//
// 新的管理链必须能回到 DefaultAdminRole，否则该角色将无人可管理。
func (s *Service) SetRoleAdmin(ctx context.Context, role, admin types.Role, caller types.Account) error {
	s.mu.Lock()
	if role == types.DefaultAdminRole {
		s.mu.Unlock()
		return types.ErrPermissionDenied.With("admin of the root role cannot be changed")
	}
	if _, ok := s.known[admin]; !ok {
		s.mu.Unlock()
		return types.ErrUnknownRole.With("role %s has never been granted or configured", admin)
	}
	previous := s.adminOfLocked(role)
	if !s.hasRoleLocked(previous, caller) {
		s.mu.Unlock()
		return types.ErrPermissionDenied.With("caller %s is not admin of role %s", caller, role)
	}
	if !s.reachesRootLocked(role, admin) {
		s.mu.Unlock()
		return types.ErrPermissionDenied.With("role %s would become unreachable from the root role", role)
	}

	adminCopy := admin
	entry := s.newAuditLocked(types.AuditAdminChange, role, types.Account{}, caller, &adminCopy)
	if err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Set(keys.RoleAdmin(role), admin[:]); err != nil {
			return err
		}
		return putAudit(tx, entry)
	}); err != nil {
		s.mu.Unlock()
		return types.ErrWrite.Wrap(err, "persist admin of %s", role)
	}

	s.admins[role] = admin
	s.known[role] = struct{}{}
	s.auditSeq = entry.Seq
	s.mu.Unlock()

	s.metrics.IncRoleChanges(string(types.AuditAdminChange))
	s.publish(contractif.EventRoleAdminChanged, types.RoleAdminChangedEvent{
		Role: role, PreviousAdmin: previous, NewAdmin: admin, Sender: caller,
	})
	return nil
}

// reachesRootLocked 将 role 的管理角色设为 admin 后，沿管理链能否到达根角色
func (s *Service) reachesRootLocked(role, admin types.Role) bool {
	seen := map[types.Role]struct{}{role: {}}
	cur := admin
	for {
		if cur == types.DefaultAdminRole {
			return true
		}
		if _, dup := seen[cur]; dup {
			return false
		}
		seen[cur] = struct{}{}
		cur = s.adminOfLocked(cur)
	}
}

func (s *Service) newAuditLocked(action types.AuditAction, role types.Role, account, sender types.Account, admin *types.Role) types.AuditEntry {
	return types.AuditEntry{
		Seq:       s.auditSeq + 1,
		Action:    action,
		Role:      role,
		Account:   account,
		Sender:    sender,
		AdminRole: admin,
		Timestamp: s.clock.Unix(),
	}
}

func putAudit(tx storage.Transaction, entry types.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return tx.Set(keys.Audit(entry.Seq), raw)
}

// AuditLog 按序返回全部审计记录
func (s *Service) AuditLog(ctx context.Context) ([]types.AuditEntry, error) {
	raw, err := s.store.PrefixScan(ctx, []byte(keys.PrefixAudit))
	if err != nil {
		return nil, types.ErrRead.Wrap(err, "scan audit log")
	}
	entries := make([]types.AuditEntry, 0, len(raw))
	for k, v := range raw {
		var e types.AuditEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, types.ErrCorruptedState.Wrap(err, "decode audit entry %s", k)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

// Load 从存储重建角色表
func (s *Service) Load(ctx context.Context) error {
	members, err := s.store.PrefixScan(ctx, []byte(keys.PrefixRole))
	if err != nil {
		return types.ErrRead.Wrap(err, "scan role members")
	}
	admins, err := s.store.PrefixScan(ctx, []byte(keys.PrefixRoleAdm))
	if err != nil {
		return types.ErrRead.Wrap(err, "scan role admins")
	}
	audit, err := s.AuditLog(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()

	for k := range members {
		parts := strings.SplitN(strings.TrimPrefix(k, keys.PrefixRole), "/", 2)
		if len(parts) != 2 {
			return types.ErrCorruptedState.With("malformed role key %q", k)
		}
		role, err := decode32(parts[0])
		if err != nil {
			return types.ErrCorruptedState.Wrap(err, "role key %q", k)
		}
		account, err := decode32(parts[1])
		if err != nil {
			return types.ErrCorruptedState.Wrap(err, "role key %q", k)
		}
		r := types.Role(role)
		if s.members[r] == nil {
			s.members[r] = make(map[types.Account]struct{})
		}
		s.members[r][types.Account(account)] = struct{}{}
		s.known[r] = struct{}{}
	}
	for k, v := range admins {
		role, err := decode32(strings.TrimPrefix(k, keys.PrefixRoleAdm))
		if err != nil || len(v) != types.AddressLength {
			return types.ErrCorruptedState.With("malformed role admin %q", k)
		}
		var admin types.Role
		copy(admin[:], v)
		s.admins[types.Role(role)] = admin
		s.known[types.Role(role)] = struct{}{}
	}
	for _, e := range audit {
		if e.Seq > s.auditSeq {
			s.auditSeq = e.Seq
		}
		// 曾被授予后又被撤销的角色仍视为已知
		s.known[e.Role] = struct{}{}
	}

	s.logger.Infof("角色表已加载: roles=%d audit=%d", len(s.members), len(audit))
	return nil
}

func decode32(h string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

func (s *Service) publish(eventType event.EventType, payload interface{}) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}
