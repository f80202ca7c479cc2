package contract

import (
	"strings"

	"github.com/blang/semver/v4"
)

// Metadata 合约版本元数据，每个版本一份且不可变
type Metadata struct {
	Version       string `json:"version"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	Author        []byte `json:"author"`
	Description   string `json:"description"`
	IsUpgradeable bool   `json:"is_upgradeable"`
}

// SemVer 解析版本号（严格SemVer，允许前导v）
func (m Metadata) SemVer() (semver.Version, error) {
	return semver.ParseTolerant(m.Version)
}

// Param ABI参数
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}

// Method ABI方法
//
// Privileged 为 true 时执行前需要调用者持有 Role（零值时使用 ExecutorRole）。
type Method struct {
	Name       string  `json:"name"`
	Inputs     []Param `json:"inputs,omitempty"`
	Outputs    []Param `json:"outputs,omitempty"`
	Payable    bool    `json:"payable,omitempty"`
	Privileged bool    `json:"privileged,omitempty"`
	Role       *Role   `json:"role,omitempty"`
}

// RequiredRole 特权方法所需角色
func (m Method) RequiredRole() Role {
	if m.Role != nil {
		return *m.Role
	}
	return ExecutorRole
}

// EventDef ABI事件定义
type EventDef struct {
	Name   string  `json:"name"`
	Inputs []Param `json:"inputs,omitempty"`
}

// ABI 合约接口描述
type ABI struct {
	Methods   []Method   `json:"methods"`
	Events    []EventDef `json:"events,omitempty"`
	Standards []string   `json:"standards,omitempty"`
}

// Method 按名称查找方法
func (a ABI) Method(name string) (Method, bool) {
	for _, m := range a.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// MethodNames 按声明顺序返回方法名；名称为空或重复时返回 InvalidMetadata
func (a ABI) MethodNames() ([]string, error) {
	seen := make(map[string]struct{}, len(a.Methods))
	names := make([]string, 0, len(a.Methods))
	for _, m := range a.Methods {
		if strings.TrimSpace(m.Name) == "" {
			return nil, ErrInvalidMetadata.With("ABI method with empty name")
		}
		if _, dup := seen[m.Name]; dup {
			return nil, ErrInvalidMetadata.With("duplicate ABI method %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		names = append(names, m.Name)
	}
	return names, nil
}

// Version 已注册的合约版本，创建后不可变
type Version struct {
	Metadata Metadata `json:"metadata"`
	Bytecode []byte   `json:"bytecode"`
	ABI      ABI      `json:"abi"`
	CodeHash [32]byte `json:"code_hash"`
}

// ResourceLimits 部署时绑定的资源上限
type ResourceLimits struct {
	MaxMemory    uint64 `json:"max_memory"`     // 线性内存字节上限
	MaxGas       uint64 `json:"max_gas"`        // 单次调用gas上限
	MaxStorage   uint64 `json:"max_storage"`    // 状态总字节上限
	MaxCallDepth uint32 `json:"max_call_depth"` // 调用栈深度上限
}

// UpgradeRecord 升级历史记录
type UpgradeRecord struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Timestamp  int64  `json:"timestamp"`
	Successful bool   `json:"successful"`
	RolledBack bool   `json:"rolled_back"`
}

// ContractInfo 注册表视图：地址及其当前版本
type ContractInfo struct {
	Address Address  `json:"address"`
	Current *Version `json:"current"`
}
