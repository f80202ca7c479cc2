package wasm

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
)

// moduleCache 按代码哈希缓存已编译模块，超过上限时淘汰最久未使用的条目
//
// 被淘汰的模块从缓存中移除后，等最后一个使用者释放时才关闭。
type moduleCache struct {
	mu      sync.Mutex
	entries map[[32]byte]*cachedModule
	maxSize int
	tick    uint64
}

type cachedModule struct {
	compiled wazero.CompiledModule
	lastUsed uint64
	refs     int
	evicted  bool
}

func newModuleCache(maxSize int) *moduleCache {
	return &moduleCache{entries: make(map[[32]byte]*cachedModule), maxSize: maxSize}
}

// acquire 命中时持有一个引用，用完须 release
func (c *moduleCache) acquire(key [32]byte) (*cachedModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(e)
	return e, true
}

// add 放入新编译的模块并持有一个引用
//
// 键已存在时关闭传入的模块，返回已有条目。
func (c *moduleCache) add(ctx context.Context, key [32]byte, compiled wazero.CompiledModule) (*cachedModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		_ = compiled.Close(ctx)
		c.touch(e)
		return e, true
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU(ctx)
	}
	e := &cachedModule{compiled: compiled}
	c.touch(e)
	c.entries[key] = e
	return e, false
}

func (c *moduleCache) release(ctx context.Context, e *cachedModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refs--
	if e.evicted && e.refs == 0 {
		_ = e.compiled.Close(ctx)
	}
}

func (c *moduleCache) touch(e *cachedModule) {
	c.tick++
	e.lastUsed = c.tick
	e.refs++
}

func (c *moduleCache) evictLRU(ctx context.Context) {
	var (
		oldestKey [32]byte
		oldest    *cachedModule
	)
	for key, e := range c.entries {
		if oldest == nil || e.lastUsed < oldest.lastUsed {
			oldestKey, oldest = key, e
		}
	}
	if oldest == nil {
		return
	}
	delete(c.entries, oldestKey)
	oldest.evicted = true
	if oldest.refs == 0 {
		_ = oldest.compiled.Close(ctx)
	}
}

func (c *moduleCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// clear 清空缓存，仍在使用的模块由运行时关闭
func (c *moduleCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[[32]byte]*cachedModule)
}
