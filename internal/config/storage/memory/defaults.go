package memory

import "time"

// 内存存储默认配置值
const (
	// defaultShards bigcache 分片数，必须为2的幂
	// 原因：合约核心的并发度主要来自不同地址，64个分片足以摊开锁竞争
	defaultShards = 64

	// defaultLifeWindow 条目生命周期
	// 原因：内存存储充当完整的键值库而非缓存，条目不应过期
	defaultLifeWindow = 100 * 365 * 24 * time.Hour

	// defaultMaxEntriesInWindow 预分配条目数
	// 原因：值越大预分配内存越多，测试与命令行场景条目很少
	defaultMaxEntriesInWindow = 1024

	// defaultMaxEntrySize 预分配单条目大小(字节)
	defaultMaxEntrySize = 512

	// defaultHardMaxCacheSize 内存上限(MB)，0表示不限制
	// 原因：达到上限时 bigcache 会淘汰最旧条目，对键值库而言等同于数据丢失
	defaultHardMaxCacheSize = 0
)
