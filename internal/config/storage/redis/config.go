package redis

import (
	"time"

	configtypes "github.com/weisyn/contractcore/pkg/types"
)

// RedisOptions Redis存储配置选项
type RedisOptions struct {
	Addr        string        `json:"addr"`
	Password    string        `json:"-"`
	DB          int           `json:"db"`
	KeyPrefix   string        `json:"key_prefix"`
	DialTimeout time.Duration `json:"dial_timeout"`
	ScanCount   int64         `json:"scan_count"`
}

// Config Redis配置实现
type Config struct {
	options *RedisOptions
}

// New 创建Redis配置
func New(userConfig interface{}) *Config {
	options := &RedisOptions{
		Addr:        defaultAddr,
		DB:          defaultDB,
		KeyPrefix:   defaultKeyPrefix,
		DialTimeout: defaultDialTimeout,
		ScanCount:   defaultScanCount,
	}
	if sc, ok := userConfig.(*configtypes.UserStorageConfig); ok && sc != nil {
		if sc.RedisAddr != nil {
			options.Addr = *sc.RedisAddr
		}
		if sc.RedisPassword != nil {
			options.Password = *sc.RedisPassword
		}
		if sc.RedisDB != nil {
			options.DB = *sc.RedisDB
		}
		if sc.RedisPrefix != nil {
			options.KeyPrefix = *sc.RedisPrefix
		}
	}
	return &Config{options: options}
}

// NewFromOptions 从RedisOptions创建配置
func NewFromOptions(options *RedisOptions) *Config {
	return &Config{options: options}
}

// GetOptions 获取完整的Redis配置选项
func (c *Config) GetOptions() *RedisOptions { return c.options }
