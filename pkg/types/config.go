// Package types 定义用户配置文件结构
//
// 所有字段均为指针：只有 JSON 中实际出现的字段才会覆盖 internal/config 下的默认值。
package types

// AppConfig 应用配置（JSON文件根结构）
type AppConfig struct {
	AppName *string `json:"app_name,omitempty"`
	DataDir *string `json:"data_dir,omitempty"`

	Log      *UserLogConfig      `json:"log,omitempty"`
	Clock    *UserClockConfig    `json:"clock,omitempty"`
	Event    *UserEventConfig    `json:"event,omitempty"`
	Storage  *UserStorageConfig  `json:"storage,omitempty"`
	Contract *UserContractConfig `json:"contract,omitempty"`
}

// UserLogConfig 用户日志配置
type UserLogConfig struct {
	Level     *string `json:"level,omitempty"`     // debug, info, warn, error, fatal
	FilePath  *string `json:"file_path,omitempty"` // 日志文件路径；stdout/stderr 表示控制台
	ToConsole *bool   `json:"to_console,omitempty"`
	MaxSize   *int    `json:"max_size,omitempty"` // MB
}

// UserClockConfig 用户时钟配置
type UserClockConfig struct {
	Type                  *string `json:"type,omitempty"` // system | ntp | deterministic
	NTPServer             *string `json:"ntp_server,omitempty"`
	SyncInterval          *string `json:"sync_interval,omitempty"`
	DeterministicBaseUnix *int64  `json:"deterministic_base_unix,omitempty"`
}

// UserEventConfig 用户事件配置
type UserEventConfig struct {
	Enabled        *bool `json:"enabled,omitempty"`
	MaxSubscribers *int  `json:"max_subscribers,omitempty"`
}

// UserStorageConfig 用户存储配置
type UserStorageConfig struct {
	Backend  *string `json:"backend,omitempty"`   // badger | memory | redis
	DataRoot *string `json:"data_root,omitempty"` // badger 数据根目录

	SyncWrites *bool `json:"sync_writes,omitempty"`

	RedisAddr     *string `json:"redis_addr,omitempty"`
	RedisPassword *string `json:"redis_password,omitempty"`
	RedisDB       *int    `json:"redis_db,omitempty"`
	RedisPrefix   *string `json:"redis_prefix,omitempty"`
}

// UserContractConfig 用户合约核心配置
type UserContractConfig struct {
	MaxBytecodeSize      *uint64 `json:"max_bytecode_size,omitempty"`
	MaxDescriptionLength *int    `json:"max_description_length,omitempty"`
	MaxKeySize           *int    `json:"max_key_size,omitempty"`
	MaxValueSize         *int    `json:"max_value_size,omitempty"`
	MaxEntries           *int    `json:"max_entries,omitempty"`

	DefaultMaxGas       *uint64 `json:"default_max_gas,omitempty"`
	DefaultMaxMemory    *uint64 `json:"default_max_memory,omitempty"`
	DefaultMaxStorage   *uint64 `json:"default_max_storage,omitempty"`
	DefaultMaxCallDepth *uint32 `json:"default_max_call_depth,omitempty"`
	CeilingMaxGas       *uint64 `json:"ceiling_max_gas,omitempty"`
	CeilingMaxMemory    *uint64 `json:"ceiling_max_memory,omitempty"`

	RollbackDepth      *int    `json:"rollback_depth,omitempty"`
	MinUpgradeInterval *string `json:"min_upgrade_interval,omitempty"` // time.Duration 字符串
	MaxUpgradesPerDay  *int    `json:"max_upgrades_per_day,omitempty"`

	MaxConcurrentOperations  *int    `json:"max_concurrent_operations,omitempty"`
	MaxOperationsPerContract *int    `json:"max_operations_per_contract,omitempty"`
	MaxOperationsPerSecond   *int    `json:"max_operations_per_second,omitempty"`
	OperationTimeout         *string `json:"operation_timeout,omitempty"`

	UseCompiler *bool `json:"use_compiler,omitempty"`
	BufferSize  *int  `json:"buffer_size,omitempty"`

	ExecutionTimeout   *string `json:"execution_timeout,omitempty"`
	MaxCompiledModules *int    `json:"max_compiled_modules,omitempty"`
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string { return &s }

// BoolPtr 返回布尔指针
func BoolPtr(b bool) *bool { return &b }

// IntPtr 返回整数指针
func IntPtr(i int) *int { return &i }
