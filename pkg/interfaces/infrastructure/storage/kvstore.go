// Package storage 定义合约核心所依赖的键值存储协作方接口
//
// 合约核心只要求点查、前缀扫描与原子批量写；具体引擎（BadgerDB、内存、Redis）
// 位于 internal/core/infrastructure/storage 下。
package storage

import (
	"context"
	"errors"
)

var (
	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("storage: store closed")
	// ErrTxNotActive 事务已提交或已丢弃
	ErrTxNotActive = errors.New("storage: transaction not active")
)

// KVStore 键值存储
type KVStore interface {
	// Get 获取键值；键不存在时返回 nil, nil
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set 写入单个键值
	Set(ctx context.Context, key, value []byte) error

	// Delete 删除键；键不存在时不报错
	Delete(ctx context.Context, key []byte) error

	// Exists 键是否存在
	Exists(ctx context.Context, key []byte) (bool, error)

	// PrefixScan 扫描前缀下的所有键值，结果以 string(key) 为键
	PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error)

	// RunInTransaction 在单个原子事务中执行 fn；fn 返回错误时全部回滚
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Close 关闭存储
	Close() error
}

// Transaction 事务内操作
type Transaction interface {
	// Get 读取键值，可见本事务内尚未提交的写入；键不存在时返回 nil, nil
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}
