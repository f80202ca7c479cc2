// Package metrics defines the operation metrics recorder used by the contract core.
package metrics

import "time"

// 操作结果标签
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
)

// Recorder 合约核心操作指标记录接口
type Recorder interface {
	// ObserveOperation 记录一次操作（类型、结果、耗时）
	ObserveOperation(op string, result string, elapsed time.Duration)

	// ObserveGas 记录一次执行消耗的 gas
	ObserveGas(gasUsed uint64)

	// SetActiveOperations 设置当前活跃操作数
	SetActiveOperations(n int)

	// IncSnapshots 快照计数 +1
	IncSnapshots()

	// IncVersions 版本计数 +1
	IncVersions()

	// IncRoleChanges 角色变更计数 +1（action: grant|revoke|admin_change）
	IncRoleChanges(action string)
}
