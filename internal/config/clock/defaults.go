// Package clock provides default configuration values for clock service.
package clock

import "time"

// 时钟服务配置默认值
const (
	// defaultType 默认时钟类型设为"system"
	// 原因：系统时钟无外部依赖，命令行单次运行时足够
	defaultType = "system"

	// defaultNTPServer 默认NTP服务器
	defaultNTPServer = "time.google.com"

	// defaultSyncInterval 默认同步间隔设为5分钟
	defaultSyncInterval = 5 * time.Minute

	// defaultOffsetThreshold 偏移超过500毫秒判定为不健康
	defaultOffsetThreshold = 500 * time.Millisecond

	// defaultBackoffInitial / defaultBackoffMax 同步失败后的退避区间
	defaultBackoffInitial = 5 * time.Second
	defaultBackoffMax     = 5 * time.Minute
)
