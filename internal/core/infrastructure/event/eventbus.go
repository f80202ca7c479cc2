// Package event 基于 asaskevich/EventBus 的事件总线实现
package event

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	eventconfig "github.com/weisyn/contractcore/internal/config/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
)

// EventBus 在底层总线之上增加启用开关、订阅上限与发布计数
type EventBus struct {
	bus    evbus.Bus
	config *eventconfig.Config
	logger log.Logger

	mu          sync.Mutex
	subscribers map[event.EventType]int

	published atomic.Uint64
}

var _ event.EventBus = (*EventBus)(nil)

// New 创建事件总线实例
func New(config *eventconfig.Config, logger log.Logger) *EventBus {
	return &EventBus{
		bus:         evbus.New(),
		config:      config,
		logger:      logger,
		subscribers: make(map[event.EventType]int),
	}
}

func (eb *EventBus) reserve(eventType event.EventType) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if max := eb.config.GetMaxSubscribers(); max > 0 && eb.subscribers[eventType] >= max {
		return event.ErrTooManySubscribers
	}
	eb.subscribers[eventType]++
	return nil
}

func (eb *EventBus) release(eventType event.EventType) {
	eb.mu.Lock()
	if eb.subscribers[eventType] > 0 {
		eb.subscribers[eventType]--
	}
	eb.mu.Unlock()
}

// Subscribe 实现订阅
func (eb *EventBus) Subscribe(eventType event.EventType, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil // 如果事件系统未启用，静默成功
	}
	if err := eb.reserve(eventType); err != nil {
		return err
	}
	if err := eb.bus.Subscribe(string(eventType), handler); err != nil {
		eb.release(eventType)
		return err
	}
	return nil
}

// SubscribeAsync 实现异步订阅
func (eb *EventBus) SubscribeAsync(eventType event.EventType, handler interface{}, transactional bool) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	if err := eb.reserve(eventType); err != nil {
		return err
	}
	if err := eb.bus.SubscribeAsync(string(eventType), handler, transactional); err != nil {
		eb.release(eventType)
		return err
	}
	return nil
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(eventType event.EventType, handler interface{}) error {
	if !eb.config.IsEnabled() {
		return nil
	}
	if err := eb.bus.Unsubscribe(string(eventType), handler); err != nil {
		return err
	}
	eb.release(eventType)
	return nil
}

// Publish 实现发布
func (eb *EventBus) Publish(eventType event.EventType, args ...interface{}) {
	if !eb.config.IsEnabled() {
		return
	}
	eb.published.Add(1)
	if eb.logger != nil {
		eb.logger.Debugf("发布事件: %s", eventType)
	}
	eb.bus.Publish(string(eventType), args...)
}

// HasCallback 是否存在订阅者
func (eb *EventBus) HasCallback(eventType event.EventType) bool {
	if !eb.config.IsEnabled() {
		return false
	}
	return eb.bus.HasCallback(string(eventType))
}

// WaitAsync 等待异步处理完成
func (eb *EventBus) WaitAsync() {
	if !eb.config.IsEnabled() {
		return
	}
	eb.bus.WaitAsync()
}

// PublishedCount 已发布的事件数量
func (eb *EventBus) PublishedCount() uint64 { return eb.published.Load() }
