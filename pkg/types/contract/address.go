// Package contract 定义合约注册、状态与执行核心共用的领域类型。
package contract

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

// AddressLength 合约地址、角色、账户的固定字节长度
const AddressLength = 32

// Address 合约地址，合约在所有版本间的唯一身份
type Address [AddressLength]byte

// Role 角色标识
type Role [AddressLength]byte

// Account 账户标识（调用者）
type Account [AddressLength]byte

// 预置角色
var (
	// DefaultAdminRole 根超级管理员角色，自我管理
	DefaultAdminRole = Role{}
	// DeployerRole 部署角色
	DeployerRole = fillRole(1)
	// ExecutorRole 特权方法执行角色
	ExecutorRole = fillRole(2)
	// UpgraderRole 升级/回滚角色
	UpgraderRole = fillRole(3)
)

func fillRole(b byte) Role {
	var r Role
	for i := range r {
		r[i] = b
	}
	return r
}

// String 0x前缀十六进制
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Hex 不带前缀的十六进制，用作存储键片段
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// Base58 base58编码形式
func (a Address) Base58() string { return base58.Encode(a[:]) }

// IsZero 是否为零地址
func (a Address) IsZero() bool { return a == Address{} }

func (r Role) String() string {
	switch r {
	case DefaultAdminRole:
		return "DEFAULT_ADMIN"
	case DeployerRole:
		return "DEPLOYER"
	case ExecutorRole:
		return "EXECUTOR"
	case UpgraderRole:
		return "UPGRADER"
	}
	return "0x" + hex.EncodeToString(r[:])
}

// Hex 不带前缀的十六进制
func (r Role) Hex() string { return hex.EncodeToString(r[:]) }

func (a Account) String() string { return "0x" + hex.EncodeToString(a[:]) }

// Hex 不带前缀的十六进制
func (a Account) Hex() string { return hex.EncodeToString(a[:]) }

// ParseAddress 解析地址
//
// 支持两种格式：
//   - 0x前缀十六进制，不足32字节时左侧补零（0xA1 → 31个零字节 + 0xA1）
//   - base58编码的32字节
func ParseAddress(s string) (Address, error) {
	var addr Address
	b, err := parseFixed(s)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(addr[AddressLength-len(b):], b)
	return addr, nil
}

// ParseAccount 解析账户，规则同 ParseAddress
func ParseAccount(s string) (Account, error) {
	var acc Account
	b, err := parseFixed(s)
	if err != nil {
		return acc, fmt.Errorf("invalid account %q: %w", s, err)
	}
	copy(acc[AddressLength-len(b):], b)
	return acc, nil
}

// ParseRole 解析角色，支持预置角色名（DEFAULT_ADMIN/DEPLOYER/EXECUTOR/UPGRADER）
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(s) {
	case "DEFAULT_ADMIN", "ADMIN":
		return DefaultAdminRole, nil
	case "DEPLOYER":
		return DeployerRole, nil
	case "EXECUTOR":
		return ExecutorRole, nil
	case "UPGRADER":
		return UpgraderRole, nil
	}
	var r Role
	b, err := parseFixed(s)
	if err != nil {
		return r, fmt.Errorf("invalid role %q: %w", s, err)
	}
	copy(r[AddressLength-len(b):], b)
	return r, nil
}

func parseFixed(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h := s[2:]
		if len(h)%2 == 1 {
			h = "0" + h
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		if len(b) > AddressLength {
			return nil, fmt.Errorf("longer than %d bytes", AddressLength)
		}
		return b, nil
	}
	b := base58.Decode(s)
	if len(b) != AddressLength {
		return nil, fmt.Errorf("base58 payload must be %d bytes, got %d", AddressLength, len(b))
	}
	return b, nil
}

// MarshalText 以0x十六进制序列化
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText 解析0x十六进制或base58
func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText 以0x十六进制序列化
func (a Account) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText 解析0x十六进制或base58
func (a *Account) UnmarshalText(b []byte) error {
	v, err := ParseAccount(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText 以0x十六进制序列化（不使用预置角色名）
func (r Role) MarshalText() ([]byte, error) { return []byte("0x" + r.Hex()), nil }

// UnmarshalText 解析0x十六进制、base58或预置角色名
func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
