// Package config provides configuration provider interfaces.
package config

import (
	clockconfig "github.com/weisyn/contractcore/internal/config/clock"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	eventconfig "github.com/weisyn/contractcore/internal/config/event"
	logconfig "github.com/weisyn/contractcore/internal/config/log"
	badgerconfig "github.com/weisyn/contractcore/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	redisconfig "github.com/weisyn/contractcore/internal/config/storage/redis"
)

// 存储后端名称
const (
	StorageBackendBadger = "badger"
	StorageBackendMemory = "memory"
	StorageBackendRedis  = "redis"
)

// Provider 配置提供者接口
type Provider interface {
	// GetAppName 应用名称（用于日志与指标命名空间）
	GetAppName() string

	// GetDataDir 数据根目录
	GetDataDir() string

	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetClock 获取时钟配置
	GetClock() *clockconfig.ClockOptions

	// GetEvent 获取事件配置
	GetEvent() *eventconfig.EventOptions

	// === 存储 ===

	// GetStorageBackend 返回 badger | memory | redis
	GetStorageBackend() string

	GetBadger() *badgerconfig.BadgerOptions
	GetMemory() *memoryconfig.MemoryOptions
	GetRedis() *redisconfig.RedisOptions

	// GetContract 获取合约核心配置
	GetContract() *contractconfig.ContractOptions
}
