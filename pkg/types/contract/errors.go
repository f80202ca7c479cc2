package contract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory 错误大类
type ErrorCategory string

const (
	CategoryDeployment ErrorCategory = "deployment"
	CategoryExecution  ErrorCategory = "execution"
	CategoryRegistry   ErrorCategory = "registry"
	CategoryState      ErrorCategory = "state"
	CategoryAuth       ErrorCategory = "auth"
	CategoryRuntime    ErrorCategory = "runtime"
)

// ErrorCode 错误码，跨组件保持不变，调用方据此区分错误种类
type ErrorCode string

const (
	// 部署
	CodeInvalidBytecode       ErrorCode = "InvalidBytecode"
	CodeSizeLimitExceeded     ErrorCode = "SizeLimitExceeded"
	CodeInvalidMetadata       ErrorCode = "InvalidMetadata"
	CodeResourceLimitExceeded ErrorCode = "ResourceLimitExceeded"
	CodeAlreadyExists         ErrorCode = "AlreadyExists"

	// 执行
	CodeNotFound          ErrorCode = "NotFound"
	CodeStateAccessError  ErrorCode = "StateAccessError"
	CodePermissionDenied  ErrorCode = "PermissionDenied"
	CodeOutOfGas          ErrorCode = "OutOfGas"
	CodeCallDepthExceeded ErrorCode = "CallDepthExceeded"
	CodeInvalidInput      ErrorCode = "InvalidInput"
	CodeTrap              ErrorCode = "Trap"

	// 注册表
	CodeIncompatibleVersion  ErrorCode = "IncompatibleVersion"
	CodeInvalidUpgrade       ErrorCode = "InvalidUpgrade"
	CodeMigrationFailed      ErrorCode = "MigrationFailed"
	CodeNoPriorVersion       ErrorCode = "NoPriorVersion"
	CodeVersionConflict      ErrorCode = "VersionConflict"
	CodeUpgradeFailed        ErrorCode = "UpgradeFailed"
	CodeUpgradeLimitExceeded ErrorCode = "UpgradeLimitExceeded"

	// 状态
	CodeReadError         ErrorCode = "ReadError"
	CodeWriteError        ErrorCode = "WriteError"
	CodeCorruptedState    ErrorCode = "CorruptedState"
	CodeInconsistentState ErrorCode = "InconsistentState"

	// 权限
	CodeUnknownRole ErrorCode = "UnknownRole"

	// 运行时
	CodeConcurrencyLimitExceeded ErrorCode = "ConcurrencyLimitExceeded"
	CodeReadOnly                 ErrorCode = "ReadOnly"
)

// Error 合约核心统一错误类型
//
// errors.Is 按错误码匹配：同一错误码在不同组件间含义一致（例如 PermissionDenied
// 既可能来自权限组件，也可能来自执行引擎的特权方法检查）。
type Error struct {
	Category ErrorCategory `json:"category"`
	Code     ErrorCode     `json:"code"`
	Message  string        `json:"message,omitempty"`
	Cause    error         `json:"-"`
}

// Error 实现error接口
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	b.WriteString(": ")
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap 返回根本原因
func (e *Error) Unwrap() error { return e.Cause }

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

// With 基于哨兵错误构造带消息的新错误
func (e *Error) With(format string, args ...interface{}) *Error {
	return &Error{Category: e.Category, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 基于哨兵错误构造带原因的新错误
func (e *Error) Wrap(cause error, format string, args ...interface{}) *Error {
	return &Error{Category: e.Category, Code: e.Code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func sentinel(c ErrorCategory, code ErrorCode) *Error {
	return &Error{Category: c, Code: code}
}

// ==================== 哨兵错误 ====================

var (
	ErrInvalidBytecode       = sentinel(CategoryDeployment, CodeInvalidBytecode)
	ErrSizeLimitExceeded     = sentinel(CategoryDeployment, CodeSizeLimitExceeded)
	ErrInvalidMetadata       = sentinel(CategoryDeployment, CodeInvalidMetadata)
	ErrResourceLimitExceeded = sentinel(CategoryDeployment, CodeResourceLimitExceeded)
	ErrAlreadyExists         = sentinel(CategoryDeployment, CodeAlreadyExists)

	ErrNotFound          = sentinel(CategoryExecution, CodeNotFound)
	ErrStateAccess       = sentinel(CategoryExecution, CodeStateAccessError)
	ErrOutOfGas          = sentinel(CategoryExecution, CodeOutOfGas)
	ErrCallDepthExceeded = sentinel(CategoryExecution, CodeCallDepthExceeded)
	ErrInvalidInput      = sentinel(CategoryExecution, CodeInvalidInput)
	ErrTrap              = sentinel(CategoryExecution, CodeTrap)

	ErrIncompatibleVersion  = sentinel(CategoryRegistry, CodeIncompatibleVersion)
	ErrInvalidUpgrade       = sentinel(CategoryRegistry, CodeInvalidUpgrade)
	ErrMigrationFailed      = sentinel(CategoryRegistry, CodeMigrationFailed)
	ErrNoPriorVersion       = sentinel(CategoryRegistry, CodeNoPriorVersion)
	ErrVersionConflict      = sentinel(CategoryRegistry, CodeVersionConflict)
	ErrUpgradeFailed        = sentinel(CategoryRegistry, CodeUpgradeFailed)
	ErrUpgradeLimitExceeded = sentinel(CategoryRegistry, CodeUpgradeLimitExceeded)

	ErrRead              = sentinel(CategoryState, CodeReadError)
	ErrWrite             = sentinel(CategoryState, CodeWriteError)
	ErrCorruptedState    = sentinel(CategoryState, CodeCorruptedState)
	ErrInconsistentState = sentinel(CategoryState, CodeInconsistentState)

	ErrPermissionDenied = sentinel(CategoryAuth, CodePermissionDenied)
	ErrUnknownRole      = sentinel(CategoryAuth, CodeUnknownRole)

	ErrConcurrencyLimitExceeded = sentinel(CategoryRuntime, CodeConcurrencyLimitExceeded)
	ErrReadOnly                 = sentinel(CategoryRuntime, CodeReadOnly)
)

// CodeOf 提取错误码，非合约错误返回空串
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsVersionError 版本相关错误
func IsVersionError(err error) bool {
	switch CodeOf(err) {
	case CodeIncompatibleVersion, CodeVersionConflict, CodeNoPriorVersion, CodeUpgradeFailed:
		return true
	}
	return false
}

// IsStateError 状态相关错误
func IsStateError(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Category == CategoryState || ce.Code == CodeMigrationFailed
	}
	return false
}

// IsFatalForAddress 该错误是否使地址进入隔离状态（需管理员恢复）
func IsFatalForAddress(err error) bool {
	switch CodeOf(err) {
	case CodeCorruptedState, CodeInconsistentState:
		return true
	}
	return false
}

// IsRecoverable 调用方是否可在不做管理干预的情况下重试
func IsRecoverable(err error) bool {
	return !IsFatalForAddress(err) && CodeOf(err) != CodeReadOnly
}
