package testutil

import (
	"sync"

	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"go.uber.org/zap"
)

// MockLogger 统一的日志Mock实现，丢弃全部输出
type MockLogger struct{}

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

// PublishedEvent 一次发布记录
type PublishedEvent struct {
	Type event.EventType
	Args []interface{}
}

// MockEventBus 记录所有发布的事件，不投递给订阅者
type MockEventBus struct {
	mu     sync.Mutex
	events []PublishedEvent
}

var _ event.EventBus = (*MockEventBus)(nil)

// NewMockEventBus 创建事件记录器
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{}
}

func (m *MockEventBus) Subscribe(event.EventType, interface{}) error            { return nil }
func (m *MockEventBus) SubscribeAsync(event.EventType, interface{}, bool) error { return nil }
func (m *MockEventBus) Unsubscribe(event.EventType, interface{}) error          { return nil }
func (m *MockEventBus) HasCallback(event.EventType) bool                        { return true }
func (m *MockEventBus) WaitAsync()                                              {}

// Publish 记录事件
func (m *MockEventBus) Publish(eventType event.EventType, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Type: eventType, Args: args})
}

// Events 返回指定类型的已发布事件
func (m *MockEventBus) Events(eventType event.EventType) []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishedEvent
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// All 返回全部已发布事件
func (m *MockEventBus) All() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

// Reset 清空记录
func (m *MockEventBus) Reset() {
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}
