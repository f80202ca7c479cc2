// Package writegate 定义合约核心的写门闸接口
package writegate

import "context"

// WriteGate 全局写门闸
//
// 只读模式下拒绝全部变更操作；恢复模式签发的 token 绑定到 context 后可绕过只读，
// 用于管理员在只读期间执行快照恢复。
type WriteGate interface {
	// EnterReadOnly 进入只读模式，reason 供日志与查询使用
	EnterReadOnly(reason string)

	// ExitReadOnly 退出只读模式
	ExitReadOnly()

	IsReadOnly() bool
	ReadOnlyReason() string

	// EnableRecoveryMode 开启恢复模式并返回 token；同一时间只允许一个恢复操作
	EnableRecoveryMode(purpose string) (string, error)

	// DisableRecoveryMode 关闭恢复模式，token 不匹配时返回错误
	DisableRecoveryMode(token string) error

	IsRecoveryMode() bool

	// AssertWriteAllowed 校验写操作是否允许；拒绝时返回包装了 ErrWriteBlocked 的错误
	AssertWriteAllowed(ctx context.Context, op string) error
}
