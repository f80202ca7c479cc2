package event

import types "github.com/weisyn/contractcore/pkg/types"

// EventOptions 事件系统配置选项
type EventOptions struct {
	Enabled        bool `json:"enabled"`         // 是否启用事件系统
	MaxSubscribers int  `json:"max_subscribers"` // 单个事件类型最大订阅者数量
}

// Config 事件配置实现
type Config struct {
	options *EventOptions
}

// New 创建事件配置实现
func New(userConfig interface{}) *Config {
	options := createDefaultEventOptions()
	if u, ok := userConfig.(*types.UserEventConfig); ok && u != nil {
		if u.Enabled != nil {
			options.Enabled = *u.Enabled
		}
		if u.MaxSubscribers != nil && *u.MaxSubscribers > 0 {
			options.MaxSubscribers = *u.MaxSubscribers
		}
	}
	return &Config{options: options}
}

// NewFromOptions 直接使用已构造好的选项
func NewFromOptions(options *EventOptions) *Config {
	return &Config{options: options}
}

// createDefaultEventOptions 创建默认事件配置
func createDefaultEventOptions() *EventOptions {
	return &EventOptions{
		Enabled:        defaultEnabled,
		MaxSubscribers: defaultMaxSubscribers,
	}
}

// GetOptions 获取完整的事件配置选项
func (c *Config) GetOptions() *EventOptions { return c.options }

// IsEnabled 是否启用事件系统
func (c *Config) IsEnabled() bool { return c.options.Enabled }

// GetMaxSubscribers 获取最大订阅者数量
func (c *Config) GetMaxSubscribers() int { return c.options.MaxSubscribers }
