package memory

import "time"

// MemoryOptions 内存存储（bigcache）配置选项
type MemoryOptions struct {
	Shards             int           `json:"shards"`
	LifeWindow         time.Duration `json:"life_window"`
	MaxEntriesInWindow int           `json:"max_entries_in_window"`
	MaxEntrySize       int           `json:"max_entry_size"`
	HardMaxCacheSize   int           `json:"hard_max_cache_size"` // MB
}

// Config 内存存储配置实现
type Config struct {
	options *MemoryOptions
}

// New 创建内存存储配置；当前没有用户可覆盖的字段
func New(userConfig interface{}) *Config {
	return &Config{options: createDefaultMemoryOptions()}
}

// NewFromOptions 从选项创建配置
func NewFromOptions(options *MemoryOptions) *Config {
	return &Config{options: options}
}

func createDefaultMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		Shards:             defaultShards,
		LifeWindow:         defaultLifeWindow,
		MaxEntriesInWindow: defaultMaxEntriesInWindow,
		MaxEntrySize:       defaultMaxEntrySize,
		HardMaxCacheSize:   defaultHardMaxCacheSize,
	}
}

// GetOptions 获取完整的内存存储配置选项
func (c *Config) GetOptions() *MemoryOptions { return c.options }

func (c *Config) GetShards() int                 { return c.options.Shards }
func (c *Config) GetLifeWindow() time.Duration   { return c.options.LifeWindow }
func (c *Config) GetMaxEntriesInWindow() int     { return c.options.MaxEntriesInWindow }
func (c *Config) GetMaxEntrySize() int           { return c.options.MaxEntrySize }
func (c *Config) GetHardMaxCacheSize() int       { return c.options.HardMaxCacheSize }
