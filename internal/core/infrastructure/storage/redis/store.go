// Package redis 提供基于Redis的键值存储，供多进程共享同一份合约数据时使用
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	redisconfig "github.com/weisyn/contractcore/internal/config/storage/redis"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	storage "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
)

// Store 基于 go-redis 的 KVStore 实现
//
// 键统一加上配置的前缀。事务的写集合在本地暂存，提交时用 MULTI/EXEC 原子应用；
// 同一进程内的事务互斥执行。
type Store struct {
	client    *goredis.Client
	keyPrefix string
	scanCount int64
	logger    log.Logger

	txMu   sync.Mutex
	mu     sync.RWMutex
	closed bool
}

var _ storage.KVStore = (*Store)(nil)

// New 连接Redis并验证可用性
func New(ctx context.Context, config *redisconfig.Config, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	opts := config.GetOptions()
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接Redis失败 %s: %w", opts.Addr, err)
	}

	logger = logpkg.NewModuleLogger(logger, "storage.redis")
	logger.Infof("已连接Redis: %s db=%d prefix=%s", opts.Addr, opts.DB, opts.KeyPrefix)
	return &Store{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		scanCount: opts.ScanCount,
		logger:    logger,
	}, nil
}

func (s *Store) key(k []byte) string { return s.keyPrefix + string(k) }

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}

// Close 关闭连接
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Get 获取键值；不存在时返回 nil, nil
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis获取键失败: %w", err)
	}
	return val, nil
}

// Set 写入键值
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// Delete 删除键
func (s *Store) Delete(ctx context.Context, key []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

// Exists 键是否存在
func (s *Store) Exists(ctx context.Context, key []byte) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis检查键存在性失败: %w", err)
	}
	return n > 0, nil
}

// PrefixScan 使用 SCAN 遍历前缀下的键，再用 MGET 批量取值
func (s *Store) PrefixScan(ctx context.Context, prefix []byte) (map[string][]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	match := escapeGlob(s.key(prefix)) + "*"

	var keys []string
	iter := s.client.Scan(ctx, 0, match, s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis前缀扫描失败: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis批量获取失败: %w", err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// SCAN 与 MGET 之间被删除
			continue
		}
		result[keys[i][len(s.keyPrefix):]] = []byte(str)
	}
	return result, nil
}

// RunInTransaction 暂存 fn 的写入并以 MULTI/EXEC 原子提交
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &transaction{ctx: ctx, store: s, writes: make(map[string][]byte), active: true}
	err := fn(tx)
	tx.active = false
	if err != nil {
		return err
	}
	if len(tx.order) == 0 {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, k := range tx.order {
			if v := tx.writes[k]; v == nil {
				pipe.Del(ctx, s.keyPrefix+k)
			} else {
				pipe.Set(ctx, s.keyPrefix+k, v, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis事务提交失败: %w", err)
	}
	return nil
}

type transaction struct {
	ctx    context.Context
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
	return t.store.Get(t.ctx, key)
}

func (t *transaction) Set(key, value []byte) error {
	if !t.active {
		return storage.ErrTxNotActive
	}
	t.stage(string(key), append(make([]byte, 0, len(value)), value...))
	return nil
}

func (t *transaction) Delete(key []byte) error {
	if !t.active {
		return storage.ErrTxNotActive
	}
	t.stage(string(key), nil)
	return nil
}

// escapeGlob 转义 SCAN MATCH 模式中的特殊字符
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
