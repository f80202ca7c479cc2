// Package memory 提供基于BigCache的内存键值存储
//
// 条目不过期、不淘汰；写入经互斥锁串行化，事务在提交前只暂存在本地。
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/allegro/bigcache/v3"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	storage "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
)

// valueTag 每个值前附加的标记字节，用于区分空值与不存在
const valueTag byte = 0x01

// Store 基于BigCache的 KVStore 实现
type Store struct {
	cache  *bigcache.BigCache
	logger log.Logger
	mutex  sync.RWMutex
	closed bool
}

var _ storage.KVStore = (*Store)(nil)

// New 创建内存存储实例
func New(config *memoryconfig.Config, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	bigCacheConfig := bigcache.DefaultConfig(config.GetLifeWindow())
	bigCacheConfig.Shards = config.GetShards()
	bigCacheConfig.MaxEntriesInWindow = config.GetMaxEntriesInWindow()
	bigCacheConfig.MaxEntrySize = config.GetMaxEntrySize()
	bigCacheConfig.HardMaxCacheSize = config.GetHardMaxCacheSize()
	bigCacheConfig.CleanWindow = 0
	bigCacheConfig.Verbose = false

	cache, err := bigcache.New(context.Background(), bigCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("创建BigCache实例失败: %w", err)
	}
	return &Store{
		cache:  cache,
		logger: logpkg.NewModuleLogger(logger, "storage.memory"),
	}, nil
}

// Close 关闭存储，重复调用无副作用
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cache.Close()
}

func encodeValue(value []byte) []byte {
	out := make([]byte, len(value)+1)
	out[0] = valueTag
	copy(out[1:], value)
	return out
}

func decodeValue(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	out := make([]byte, len(raw)-1)
	copy(out, raw[1:])
	return out
}

// getLocked 调用方需持有读锁或写锁
func (s *Store) getLocked(key []byte) ([]byte, error) {
	raw, err := s.cache.Get(string(key))
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeValue(raw), nil
}

// Get 获取键值；不存在时返回 nil, nil
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return nil, storage.ErrStoreClosed
	}
	return s.getLocked(key)
}

// Set 写入键值
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return s.cache.Set(string(key), encodeValue(value))
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return s.deleteLocked(string(key))
}

func (s *Store) deleteLocked(key string) error {
	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Exists 键是否存在
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// PrefixScan 遍历全部条目并按前缀过滤
func (s *Store) PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	p := string(prefix)
	result := make(map[string][]byte)
	it := s.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			// 迭代期间条目被删除
			if errors.Is(err, bigcache.ErrInvalidIteratorState) {
				continue
			}
			return nil, fmt.Errorf("遍历内存存储失败: %w", err)
		}
		if strings.HasPrefix(entry.Key(), p) {
			result[entry.Key()] = decodeValue(entry.Value())
		}
	}
	return result, ctx.Err()
}

// RunInTransaction 持有写锁暂存所有写入，fn 成功后一次性应用
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return storage.ErrStoreClosed
	}

	tx := &transaction{store: s, writes: make(map[string][]byte), active: true}
	err := fn(tx)
	tx.active = false
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, key := range tx.order {
		value := tx.writes[key]
		if value == nil {
			if err := s.deleteLocked(key); err != nil {
				return fmt.Errorf("事务删除失败: %w", err)
			}
			continue
		}
		if err := s.cache.Set(key, encodeValue(value)); err != nil {
			return fmt.Errorf("事务写入失败: %w", err)
		}
	}
	return nil
}

// transaction 本地暂存的写集合；nil 值表示删除
type transaction struct {
	store  *Store
	writes map[string][]byte
	order  []string
	active bool
}

func (t *transaction) stage(key string, value []byte) {
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.writes[key] = value
}

func (t *transaction) Get(key []byte) ([]byte, error) {
	if !t.active {
		return nil, storage.ErrTxNotActive
	}
	if v, ok := t.writes[string(key)]; ok {
		if v == nil {
			return nil, nil
		}
		return append([]byte(nil), v...), nil
	}
	return t.store.getLocked(key)
}

func (t *transaction) Set(key, value []byte) error {
	if !t.active {
		return storage.ErrTxNotActive
	}
	v := make([]byte, len(value))
	copy(v, value)
	t.stage(string(key), v)
	return nil
}

func (t *transaction) Delete(key []byte) error {
	if !t.active {
		return storage.ErrTxNotActive
	}
	t.stage(string(key), nil)
	return nil
}
