// Package clock 提供可替换的时间源：系统时钟、NTP校正时钟、确定性时钟与测试用时钟
package clock

import (
	"sync"
	"time"

	infraClock "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
)

// SystemClock 使用系统真实时间
type SystemClock struct{}

func NewSystemClock() infraClock.Clock { return &SystemClock{} }

func (c *SystemClock) Now() time.Time                  { return time.Now() }
func (c *SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }
func (c *SystemClock) Unix() int64                     { return time.Now().Unix() }
func (c *SystemClock) UnixNano() int64                 { return time.Now().UnixNano() }

// DeterministicClock 基于固定基准时间和递增序列，提供确定性时间源
//
// 每次读取前进1秒，保证元数据时间戳严格递增、可复现。
type DeterministicClock struct {
	mu       sync.Mutex
	baseTime time.Time
	sequence int64
}

func NewDeterministicClock(base time.Time) *DeterministicClock {
	return &DeterministicClock{baseTime: base}
}

func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence++
	return c.baseTime.Add(time.Duration(c.sequence) * time.Second)
}

func (c *DeterministicClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *DeterministicClock) Unix() int64                     { return c.Now().Unix() }
func (c *DeterministicClock) UnixNano() int64                 { return c.Now().UnixNano() }

// MockClock 测试用时钟，时间可控
type MockClock struct {
	mu          sync.RWMutex
	currentTime time.Time
}

func NewMockClock(initial time.Time) *MockClock { return &MockClock{currentTime: initial} }

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

func (c *MockClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *MockClock) Unix() int64                     { return c.Now().Unix() }
func (c *MockClock) UnixNano() int64                 { return c.Now().UnixNano() }

// Advance 推进时间
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.currentTime = c.currentTime.Add(d)
	c.mu.Unlock()
}

var (
	_ infraClock.Clock = (*SystemClock)(nil)
	_ infraClock.Clock = (*DeterministicClock)(nil)
	_ infraClock.Clock = (*MockClock)(nil)
)
