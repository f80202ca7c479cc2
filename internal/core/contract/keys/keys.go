// Package keys 合约核心持久化键布局
//
// 所有数值序号以20位十进制补零，保证字典序即数值序。
package keys

import (
	"fmt"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// 键前缀
const (
	PrefixVersion   = "ver/"
	PrefixRegistry  = "reg/"
	PrefixState     = "st/"
	PrefixStateMeta = "stm/"
	PrefixSnapshot  = "snap/"
	PrefixChange    = "chg/"
	PrefixRole      = "role/"
	PrefixRoleAdm   = "radm/"
	PrefixAudit     = "audit/"
)

func seq(n uint64) string { return fmt.Sprintf("%020d", n) }

// Version ver/<addr>/<seq>
func Version(addr types.Address, n uint64) []byte {
	return []byte(PrefixVersion + addr.Hex() + "/" + seq(n))
}

// VersionPrefix ver/<addr>/
func VersionPrefix(addr types.Address) []byte {
	return []byte(PrefixVersion + addr.Hex() + "/")
}

// Registry reg/<addr>
func Registry(addr types.Address) []byte {
	return []byte(PrefixRegistry + addr.Hex())
}

// State st/<addr>/<key>
func State(addr types.Address, key []byte) []byte {
	p := StatePrefix(addr)
	return append(p, key...)
}

// StatePrefix st/<addr>/
func StatePrefix(addr types.Address) []byte {
	return []byte(PrefixState + addr.Hex() + "/")
}

// StateMeta stm/<addr>
func StateMeta(addr types.Address) []byte {
	return []byte(PrefixStateMeta + addr.Hex())
}

// Snapshot snap/<addr>/<seq>
func Snapshot(addr types.Address, n uint64) []byte {
	return []byte(PrefixSnapshot + addr.Hex() + "/" + seq(n))
}

// SnapshotPrefix snap/<addr>/
func SnapshotPrefix(addr types.Address) []byte {
	return []byte(PrefixSnapshot + addr.Hex() + "/")
}

// Change chg/<addr>/<seq>
func Change(addr types.Address, n uint64) []byte {
	return []byte(PrefixChange + addr.Hex() + "/" + seq(n))
}

// ChangePrefix chg/<addr>/
func ChangePrefix(addr types.Address) []byte {
	return []byte(PrefixChange + addr.Hex() + "/")
}

// RoleMember role/<role>/<account>
func RoleMember(role types.Role, account types.Account) []byte {
	return []byte(PrefixRole + role.Hex() + "/" + account.Hex())
}

// RoleAdmin radm/<role>
func RoleAdmin(role types.Role) []byte {
	return []byte(PrefixRoleAdm + role.Hex())
}

// Audit audit/<seq>
func Audit(n uint64) []byte {
	return []byte(PrefixAudit + seq(n))
}
