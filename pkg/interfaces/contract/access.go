// Package contract defines the component interfaces of the contract core:
// access control, state manager, version registry, execution engine and runtime.
package contract

import (
	"context"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// AccessControl 角色权限存储，拦截所有变更操作
type AccessControl interface {
	// HasRole 账户是否持有角色
	HasRole(role types.Role, account types.Account) bool

	// RequireRole 未持有角色时返回 PermissionDenied
	RequireRole(role types.Role, account types.Account) error

	// GrantRole 授予角色；已持有时返回 false, nil
	GrantRole(ctx context.Context, role types.Role, account, caller types.Account) (bool, error)

	// RevokeRole 撤销角色；未持有时返回 false, nil
	RevokeRole(ctx context.Context, role types.Role, account, caller types.Account) (bool, error)

	// GetRoleAdmin 角色的管理角色，未配置时为 DefaultAdminRole
	GetRoleAdmin(role types.Role) types.Role

	// SetRoleAdmin 修改角色的管理角色，调用者需持有当前管理角色
	SetRoleAdmin(ctx context.Context, role, admin types.Role, caller types.Account) error

	// RoleMemberCount 角色持有者数量
	RoleMemberCount(role types.Role) int

	// RoleMembers 角色持有者（按十六进制排序）
	RoleMembers(role types.Role) []types.Account

	// AuditLog 按序返回全部审计记录
	AuditLog(ctx context.Context) ([]types.AuditEntry, error)

	// Load 从存储重建内存中的角色表
	Load(ctx context.Context) error
}
