// Package addrlock 按合约地址提供互斥锁，不同地址之间互不阻塞
package addrlock

import (
	"sync"

	types "github.com/weisyn/contractcore/pkg/types/contract"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table 地址锁表
//
// 锁条目按需创建，最后一个持有者释放后即从表中移除。
type Table struct {
	mu      sync.Mutex
	entries map[types.Address]*entry
}

// New 创建空锁表
func New() *Table {
	return &Table{entries: make(map[types.Address]*entry)}
}

// Lock 获取地址锁，返回的函数用于释放
func (t *Table) Lock(address types.Address) (unlock func()) {
	t.mu.Lock()
	e, ok := t.entries[address]
	if !ok {
		e = &entry{}
		t.entries[address] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.entries, address)
			}
			t.mu.Unlock()
		})
	}
}

// Len 当前被持有或等待中的地址数
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
