package event

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	eventconfig "github.com/weisyn/contractcore/internal/config/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
)

// TestEventBus_SyncAndAsync 测试同步与异步订阅
func TestEventBus_SyncAndAsync(t *testing.T) {
	bus := New(eventconfig.New(nil), nil)

	var received string
	handler := func(data string) { received = data }
	require.NoError(t, bus.Subscribe(event.EventType("test-event"), handler))

	bus.Publish(event.EventType("test-event"), "hello world")
	assert.Equal(t, "hello world", received)

	var asyncCount atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, bus.SubscribeAsync(event.EventType("async-event"), func(string) {
		asyncCount.Add(1)
		wg.Done()
	}, false))
	bus.Publish(event.EventType("async-event"), "async data")
	bus.WaitAsync()
	wg.Wait()
	assert.Equal(t, int32(1), asyncCount.Load())

	// 取消订阅后不再接收
	require.NoError(t, bus.Unsubscribe(event.EventType("test-event"), handler))
	received = ""
	bus.Publish(event.EventType("test-event"), "should not receive")
	assert.Empty(t, received)
	assert.Equal(t, uint64(3), bus.PublishedCount())
}

// TestEventBus_MaxSubscribers 测试订阅上限
func TestEventBus_MaxSubscribers(t *testing.T) {
	bus := New(eventconfig.NewFromOptions(&eventconfig.EventOptions{Enabled: true, MaxSubscribers: 1}), nil)

	require.NoError(t, bus.Subscribe("limited", func() {}))
	err := bus.Subscribe("limited", func() {})
	assert.ErrorIs(t, err, event.ErrTooManySubscribers)
}

// TestEventBus_Disabled 未启用时静默
func TestEventBus_Disabled(t *testing.T) {
	bus := New(eventconfig.NewFromOptions(&eventconfig.EventOptions{Enabled: false}), nil)

	called := false
	require.NoError(t, bus.Subscribe("x", func() { called = true }))
	bus.Publish("x")
	assert.False(t, called)
	assert.False(t, bus.HasCallback("x"))
}
