package badger

// BadgerDB存储默认配置值

const (
	// defaultPath 默认数据库路径
	// 原因：未指定数据目录时落在当前工作目录下，便于命令行直接使用
	defaultPath = "./data/badger"

	// defaultSyncWrites 默认启用同步写入
	// 原因：合约状态提交后必须可恢复，宁可牺牲写入延迟
	defaultSyncWrites = true

	// defaultMemTableSize 默认内存表大小为64MB
	defaultMemTableSize = 64 << 20

	// defaultValueLogFileSize value log 单文件大小
	// 原因：较小的 vlog 文件减少 mmap 虚拟地址占用
	defaultValueLogFileSize = 256 << 20

	// defaultBlockCacheSize 块缓存大小
	defaultBlockCacheSize = 32 << 20
)
