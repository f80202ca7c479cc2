package storage

import (
	"context"
	"fmt"

	badgerconfig "github.com/weisyn/contractcore/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	redisconfig "github.com/weisyn/contractcore/internal/config/storage/redis"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage/badger"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage/memory"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage/redis"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	storageInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
)

// NewKVStore 按配置的后端创建键值存储
func NewKVStore(ctx context.Context, provider config.Provider, logger log.Logger) (storageInterface.KVStore, error) {
	var (
		store storageInterface.KVStore
		err   error
	)
	backend := provider.GetStorageBackend()
	switch backend {
	case config.StorageBackendMemory:
		store, err = memory.New(memoryconfig.NewFromOptions(provider.GetMemory()), logger)
	case config.StorageBackendRedis:
		store, err = redis.New(ctx, redisconfig.NewFromOptions(provider.GetRedis()), logger)
	case config.StorageBackendBadger:
		store, err = badger.New(badgerconfig.NewFromOptions(provider.GetBadger()), logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("创建%s存储失败: %w", backend, err)
	}
	return store, nil
}
