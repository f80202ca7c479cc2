package event

// 事件系统默认配置值
const (
	// defaultEnabled 默认启用事件系统
	// 原因：部署、升级、回滚与角色变更都需要通知订阅方
	defaultEnabled = true

	// defaultMaxSubscribers 单个事件类型的最大订阅者数量
	// 原因：限制订阅者数量避免同步分发拖慢合约操作
	defaultMaxSubscribers = 1000
)
