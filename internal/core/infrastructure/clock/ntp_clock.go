package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	clockconfig "github.com/weisyn/contractcore/internal/config/clock"
)

// queryFunc 查询NTP服务器并返回本地时钟偏移
type queryFunc func(server string) (time.Duration, error)

func ntpQuery(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// NTPClock 通过NTP周期性校正偏移的时钟实现
//
// 同步在读取时惰性触发；失败时沿用上一次的偏移并指数退避。
type NTPClock struct {
	mu                 sync.Mutex
	server             string
	query              queryFunc
	offset             time.Duration
	lastSync           time.Time
	syncInterval       time.Duration
	backoff            time.Duration
	backoffInitial     time.Duration
	backoffMax         time.Duration
	unhealthyThreshold time.Duration
	lastError          error
}

// NewNTPClock 创建NTP时钟，初次同步失败不致命
func NewNTPClock(opts *clockconfig.ClockOptions) *NTPClock {
	return newNTPClock(opts, ntpQuery)
}

func newNTPClock(opts *clockconfig.ClockOptions, query queryFunc) *NTPClock {
	c := &NTPClock{
		server:             opts.NTPServer,
		query:              query,
		syncInterval:       opts.SyncInterval,
		backoffInitial:     opts.BackoffInitial,
		backoffMax:         opts.BackoffMax,
		unhealthyThreshold: opts.OffsetThreshold,
	}
	c.mu.Lock()
	c.syncLocked()
	c.mu.Unlock()
	return c
}

func (c *NTPClock) Now() time.Time {
	c.mu.Lock()
	c.maybeSyncLocked()
	offset := c.offset
	c.mu.Unlock()
	return time.Now().Add(offset)
}

func (c *NTPClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *NTPClock) Unix() int64                     { return c.Now().Unix() }
func (c *NTPClock) UnixNano() int64                 { return c.Now().UnixNano() }

// Health 返回当前健康状态与关键指标
// healthy: 最近一次同步无错误，且偏移量在阈值内
func (c *NTPClock) Health() (healthy bool, offset time.Duration, lastSync time.Time, lastError error) {
	c.mu.Lock()
	offset, lastSync, lastError = c.offset, c.lastSync, c.lastError
	c.mu.Unlock()

	if c.unhealthyThreshold > 0 && (offset < -c.unhealthyThreshold || offset > c.unhealthyThreshold) {
		return false, offset, lastSync, lastError
	}
	if lastError != nil {
		return false, offset, lastSync, lastError
	}
	return true, offset, lastSync, nil
}

func (c *NTPClock) maybeSyncLocked() {
	effective := c.syncInterval
	if c.backoff > 0 {
		effective = c.backoff
	}
	if time.Since(c.lastSync) < effective {
		return
	}
	c.syncLocked()
}

func (c *NTPClock) syncLocked() {
	offset, err := c.query(c.server)
	if err != nil {
		c.lastError = err
		// 失败也记录尝试时间，避免每次读取都发起查询
		c.lastSync = time.Now()
		if c.backoff == 0 {
			c.backoff = c.backoffInitial
		} else {
			c.backoff *= 2
		}
		if c.backoff > c.backoffMax {
			c.backoff = c.backoffMax
		}
		return
	}
	c.offset = offset
	c.lastSync = time.Now()
	c.lastError = nil
	c.backoff = 0
}
