// Package clock 定义宿主侧时间源接口
//
// 合约元数据、快照、审计日志与操作跟踪的时间戳都取自这里；
// 客户合约本身永远看不到时钟。
package clock

import "time"

// Clock 可注入的时间源
//
// 实现：系统时钟、NTP 校正时钟、确定性时钟（测试与回放）。
type Clock interface {
	Now() time.Time

	// Since 操作耗时统计使用
	Since(t time.Time) time.Duration

	// Unix 元数据 CreatedAt/UpdatedAt 与审计记录使用的秒级时间戳
	Unix() int64

	UnixNano() int64
}
