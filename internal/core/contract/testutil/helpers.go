// Package testutil 提供合约核心测试的辅助工具
//
// 本包不依赖 contract 下的具体组件，避免循环依赖。
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	badgerconfig "github.com/weisyn/contractcore/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	"github.com/weisyn/contractcore/internal/core/infrastructure/clock"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage/badger"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// NewTestTime 固定的测试起始时间
func NewTestTime() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// NewTestClock 创建测试用的时钟
func NewTestClock() *clock.MockClock {
	return clock.NewMockClock(NewTestTime())
}

// NewTestLogger 创建测试用的Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// NewTestStore 基于 bigcache 的内存存储，测试结束时关闭
func NewTestStore(t testing.TB) storage.KVStore {
	t.Helper()
	store, err := memory.New(memoryconfig.New(nil), NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewTestBadgerStore 临时目录下的 BadgerDB 存储，测试结束时关闭
//
// 返回目录以便测试关闭后重新打开，验证持久化。
func NewTestBadgerStore(t testing.TB) (storage.KVStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := OpenBadgerStore(t, dir)
	return store, dir
}

// OpenBadgerStore 打开指定目录的 BadgerDB 存储
func OpenBadgerStore(t testing.TB, dir string) storage.KVStore {
	t.Helper()
	options := badgerconfig.New(nil).GetOptions()
	options.Path = dir
	options.SyncWrites = false
	store, err := badger.New(badgerconfig.NewFromOptions(options), NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Addr 由末字节构造地址（0xA1 → 31个零字节 + 0xA1）
func Addr(b byte) types.Address {
	var a types.Address
	a[types.AddressLength-1] = b
	return a
}

// Acct 由末字节构造账户
func Acct(b byte) types.Account {
	var a types.Account
	a[types.AddressLength-1] = b
	return a
}

// DefaultLimits 测试用资源限制
func DefaultLimits() types.ResourceLimits {
	return types.ResourceLimits{
		MaxMemory:    16 << 20,
		MaxGas:       10_000_000,
		MaxStorage:   1 << 20,
		MaxCallDepth: 64,
	}
}
