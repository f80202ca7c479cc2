package contract

import (
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// 合约核心发布的事件类型
const (
	EventContractDeployed   event.EventType = "contract:deployed"
	EventContractUpgraded   event.EventType = "contract:upgraded"
	EventContractRolledBack event.EventType = "contract:rolled_back"
	EventContractExecuted   event.EventType = "contract:executed"
	EventContractEmitted    event.EventType = "contract:emitted"
	EventStateMigrated      event.EventType = "contract:state_migrated"
	EventStateRestored      event.EventType = "contract:state_restored"
	EventStateCorrupted     event.EventType = "contract:state_corrupted"

	EventRoleGranted      event.EventType = "role:granted"
	EventRoleRevoked      event.EventType = "role:revoked"
	EventRoleAdminChanged event.EventType = "role:admin_changed"
)

// VersionChangedEvent 部署、升级与回滚事件负载
type VersionChangedEvent struct {
	Address types.Address
	From    string
	To      string
	Caller  types.Account
}

// ExecutedEvent 执行成功事件负载
type ExecutedEvent struct {
	Address types.Address
	Method  string
	Caller  types.Account
	GasUsed uint64
	Events  []types.ContractEvent
}

// EmittedEvent 合约通过 emit_event 发出的单个事件
type EmittedEvent struct {
	Address types.Address
	Event   types.ContractEvent
}

// StateEvent 状态迁移、恢复与隔离事件负载
type StateEvent struct {
	Address    types.Address
	SnapshotID string
	Reason     string
}
