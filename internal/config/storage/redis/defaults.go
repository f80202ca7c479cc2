package redis

import "time"

// Redis存储默认配置值
const (
	// defaultAddr 默认地址
	defaultAddr = "127.0.0.1:6379"

	// defaultDB 默认逻辑库
	defaultDB = 0

	// defaultKeyPrefix 键前缀
	// 原因：与同一实例上的其他应用数据隔离
	defaultKeyPrefix = "contractcore:"

	// defaultDialTimeout 连接超时
	defaultDialTimeout = 5 * time.Second

	// defaultScanCount SCAN 每批数量
	defaultScanCount = 512
)
