package app

import (
	appconfig "github.com/weisyn/contractcore/internal/config"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"github.com/weisyn/contractcore/pkg/types"
)

// Option 应用程序选项函数类型
type Option func(*options)

// options 应用程序选项，实现 config.AppOptions 接口
type options struct {
	// 配置文件路径，为空时使用默认配置
	configFilePath string

	// 命令行覆盖项，优先级高于配置文件
	dataDir string
	backend string

	// 直接提供的用户配置（测试用），优先级高于 configFilePath
	appConfig *types.AppConfig
}

var _ config.AppOptions = (*options)(nil)

// WithConfigFile 设置配置文件路径
func WithConfigFile(configPath string) Option {
	return func(o *options) {
		o.configFilePath = configPath
	}
}

// WithDataDir 覆盖数据目录
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithStorageBackend 覆盖存储后端（badger | memory | redis）
func WithStorageBackend(backend string) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithAppConfig 直接使用已构建的用户配置
func WithAppConfig(appConfig *types.AppConfig) Option {
	return func(o *options) {
		o.appConfig = appConfig
	}
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// load 读取配置文件并应用命令行覆盖项
func (o *options) load() error {
	if o.appConfig == nil {
		loaded, err := appconfig.LoadAppConfig(o.configFilePath)
		if err != nil {
			return err
		}
		o.appConfig = loaded
	}
	if o.dataDir != "" {
		o.appConfig.DataDir = types.StringPtr(o.dataDir)
	}
	if o.backend != "" {
		if o.appConfig.Storage == nil {
			o.appConfig.Storage = &types.UserStorageConfig{}
		}
		o.appConfig.Storage.Backend = types.StringPtr(o.backend)
	}
	return nil
}

// GetAppConfig 获取应用配置
func (o *options) GetAppConfig() *types.AppConfig {
	return o.appConfig
}
