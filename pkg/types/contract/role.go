package contract

// AuditAction 审计动作
type AuditAction string

const (
	AuditGrant       AuditAction = "grant"
	AuditRevoke      AuditAction = "revoke"
	AuditAdminChange AuditAction = "admin_change"
)

// AuditEntry 角色变更审计记录，只追加
type AuditEntry struct {
	Seq       uint64      `json:"seq"`
	Action    AuditAction `json:"action"`
	Role      Role        `json:"role"`
	Account   Account     `json:"account"`
	Sender    Account     `json:"sender"`
	AdminRole *Role       `json:"admin_role,omitempty"` // admin_change 时的新管理角色
	Timestamp int64       `json:"timestamp"`
}

// RoleEvent 角色授予/撤销事件负载
type RoleEvent struct {
	Role    Role    `json:"role"`
	Account Account `json:"account"`
	Sender  Account `json:"sender"`
}

// RoleAdminChangedEvent 角色管理关系变更事件负载
type RoleAdminChangedEvent struct {
	Role          Role    `json:"role"`
	PreviousAdmin Role    `json:"previous_admin"`
	NewAdmin      Role    `json:"new_admin"`
	Sender        Account `json:"sender"`
}
