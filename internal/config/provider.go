package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	clockconfig "github.com/weisyn/contractcore/internal/config/clock"
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	eventconfig "github.com/weisyn/contractcore/internal/config/event"
	logconfig "github.com/weisyn/contractcore/internal/config/log"
	badgerconfig "github.com/weisyn/contractcore/internal/config/storage/badger"
	memoryconfig "github.com/weisyn/contractcore/internal/config/storage/memory"
	redisconfig "github.com/weisyn/contractcore/internal/config/storage/redis"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"github.com/weisyn/contractcore/pkg/types"
)

const (
	defaultAppName = "contractcore"
	defaultDataDir = "./data"
)

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *types.AppConfig
}

var _ config.Provider = (*Provider)(nil)

// NewProvider 创建配置提供者
func NewProvider(appConfig *types.AppConfig) config.Provider {
	if appConfig == nil {
		appConfig = &types.AppConfig{}
	}
	return &Provider{appConfig: appConfig}
}

// GetAppName 应用名称
func (p *Provider) GetAppName() string {
	if p.appConfig.AppName != nil && *p.appConfig.AppName != "" {
		return *p.appConfig.AppName
	}
	return defaultAppName
}

// GetDataDir 数据根目录
func (p *Provider) GetDataDir() string {
	if p.appConfig.DataDir != nil && *p.appConfig.DataDir != "" {
		return *p.appConfig.DataDir
	}
	return defaultDataDir
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *logconfig.LogOptions {
	return logconfig.New(p.appConfig.Log).GetOptions()
}

// GetClock 获取时钟配置
func (p *Provider) GetClock() *clockconfig.ClockOptions {
	return clockconfig.New(p.appConfig.Clock).GetOptions()
}

// GetEvent 获取事件配置
func (p *Provider) GetEvent() *eventconfig.EventOptions {
	return eventconfig.New(p.appConfig.Event).GetOptions()
}

// GetStorageBackend 存储后端，未知值回退为 badger
func (p *Provider) GetStorageBackend() string {
	if p.appConfig.Storage == nil || p.appConfig.Storage.Backend == nil {
		return config.StorageBackendBadger
	}
	switch backend := strings.ToLower(*p.appConfig.Storage.Backend); backend {
	case config.StorageBackendMemory, config.StorageBackendRedis:
		return backend
	default:
		return config.StorageBackendBadger
	}
}

// GetBadger 获取BadgerDB配置
//
// 未配置 storage.data_root 时落到 {data_dir}/badger。
func (p *Provider) GetBadger() *badgerconfig.BadgerOptions {
	storage := p.appConfig.Storage
	if storage == nil || storage.DataRoot == nil || *storage.DataRoot == "" {
		merged := types.UserStorageConfig{}
		if storage != nil {
			merged = *storage
		}
		merged.DataRoot = types.StringPtr(p.GetDataDir())
		storage = &merged
	}
	return badgerconfig.New(storage).GetOptions()
}

// GetMemory 获取内存存储配置
func (p *Provider) GetMemory() *memoryconfig.MemoryOptions {
	return memoryconfig.New(p.appConfig.Storage).GetOptions()
}

// GetRedis 获取Redis配置
func (p *Provider) GetRedis() *redisconfig.RedisOptions {
	return redisconfig.New(p.appConfig.Storage).GetOptions()
}

// GetContract 获取合约核心配置
func (p *Provider) GetContract() *contractconfig.ContractOptions {
	return contractconfig.New(p.appConfig.Contract).GetOptions()
}

// LoadAppConfig 从JSON文件加载应用配置；path 为空时返回空配置
func LoadAppConfig(path string) (*types.AppConfig, error) {
	if path == "" {
		return &types.AppConfig{}, nil
	}
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var appConfig types.AppConfig
	if err := json.Unmarshal(raw, &appConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
	}
	return &appConfig, nil
}

// appOptions AppOptions 的简单实现
type appOptions struct {
	appConfig *types.AppConfig
}

// NewAppOptions 包装已加载的应用配置
func NewAppOptions(appConfig *types.AppConfig) config.AppOptions {
	return &appOptions{appConfig: appConfig}
}

func (o *appOptions) GetAppConfig() *types.AppConfig { return o.appConfig }
