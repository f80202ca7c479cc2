// Package event provides event bus interfaces.
package event

import "errors"

// EventType 事件类型
type EventType string

// ErrTooManySubscribers 超过单个事件类型的订阅者上限
var ErrTooManySubscribers = errors.New("too many subscribers for event type")

// EventBus 事件总线接口
//
// 处理函数签名任意，发布时的参数按位置传入。
type EventBus interface {
	// Subscribe 同步订阅
	Subscribe(eventType EventType, handler interface{}) error

	// SubscribeAsync 异步订阅；transactional 为 true 时同一处理函数串行执行
	SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error

	// Unsubscribe 取消订阅
	Unsubscribe(eventType EventType, handler interface{}) error

	// Publish 发布事件
	Publish(eventType EventType, args ...interface{})

	// HasCallback 是否存在订阅者
	HasCallback(eventType EventType) bool

	// WaitAsync 等待异步处理完成
	WaitAsync()
}
