package contract

import (
	"time"

	types "github.com/weisyn/contractcore/pkg/types"
	"github.com/weisyn/contractcore/pkg/types/contract"
)

// ContractOptions 合约核心配置选项
type ContractOptions struct {
	// 部署
	MaxBytecodeSize      uint64 `json:"max_bytecode_size"`
	MaxDescriptionLength int    `json:"max_description_length"`

	// 状态
	MaxKeySize   int `json:"max_key_size"`
	MaxValueSize int `json:"max_value_size"`
	MaxEntries   int `json:"max_entries"`

	// 资源限制
	DefaultLimits    contract.ResourceLimits `json:"default_limits"`
	CeilingMaxGas    uint64                  `json:"ceiling_max_gas"`
	CeilingMaxMemory uint64                  `json:"ceiling_max_memory"`

	// 版本
	RollbackDepth      int           `json:"rollback_depth"` // 0 表示不限制
	MinUpgradeInterval time.Duration `json:"min_upgrade_interval"`
	MaxUpgradesPerDay  int           `json:"max_upgrades_per_day"`

	// 运行时
	MaxConcurrentOperations  int           `json:"max_concurrent_operations"`
	MaxOperationsPerContract int           `json:"max_operations_per_contract"`
	MaxOperationsPerSecond   int           `json:"max_operations_per_second"`
	OperationTimeout         time.Duration `json:"operation_timeout"`
	HistoryWindow            time.Duration `json:"history_window"`

	// 沙箱
	UseCompiler bool `json:"use_compiler"`
	BufferSize  int  `json:"buffer_size"`
	// ExecutionTimeout 单次调用的墙钟上限，不调用 gas 的死循环由它终止
	ExecutionTimeout time.Duration `json:"execution_timeout"`
	// MaxCompiledModules 编译缓存的条目上限，0 表示不限制
	MaxCompiledModules int `json:"max_compiled_modules"`
}

// Config 合约核心配置实现
type Config struct {
	options *ContractOptions
}

// New 创建合约核心配置
func New(userConfig interface{}) *Config {
	options := createDefaultContractOptions()
	if userConfig != nil {
		applyUserContractConfig(options, userConfig)
	}
	return &Config{options: options}
}

// Default 默认配置
func Default() *ContractOptions {
	return createDefaultContractOptions()
}

func createDefaultContractOptions() *ContractOptions {
	return &ContractOptions{
		MaxBytecodeSize:      defaultMaxBytecodeSize,
		MaxDescriptionLength: defaultMaxDescriptionLength,
		MaxKeySize:           defaultMaxKeySize,
		MaxValueSize:         defaultMaxValueSize,
		MaxEntries:           defaultMaxEntries,
		DefaultLimits: contract.ResourceLimits{
			MaxMemory:    defaultMaxMemory,
			MaxGas:       defaultMaxGas,
			MaxStorage:   defaultMaxStorage,
			MaxCallDepth: defaultMaxCallDepth,
		},
		CeilingMaxGas:            defaultCeilingMaxGas,
		CeilingMaxMemory:         defaultCeilingMaxMemory,
		RollbackDepth:            defaultRollbackDepth,
		MinUpgradeInterval:       defaultMinUpgradeInterval,
		MaxUpgradesPerDay:        defaultMaxUpgradesPerDay,
		MaxConcurrentOperations:  defaultMaxConcurrentOperations,
		MaxOperationsPerContract: defaultMaxOperationsPerContract,
		MaxOperationsPerSecond:   defaultMaxOperationsPerSecond,
		OperationTimeout:         defaultOperationTimeout,
		HistoryWindow:            defaultHistoryWindow,
		UseCompiler:              defaultUseCompiler,
		BufferSize:               defaultBufferSize,
		ExecutionTimeout:         defaultExecutionTimeout,
		MaxCompiledModules:       defaultMaxCompiledModules,
	}
}

// applyUserContractConfig 只覆盖JSON中出现的字段；非法的时长字符串保留默认值
func applyUserContractConfig(o *ContractOptions, userConfig interface{}) {
	u, ok := userConfig.(*types.UserContractConfig)
	if !ok || u == nil {
		return
	}
	setUint64(&o.MaxBytecodeSize, u.MaxBytecodeSize)
	setInt(&o.MaxDescriptionLength, u.MaxDescriptionLength)
	setInt(&o.MaxKeySize, u.MaxKeySize)
	setInt(&o.MaxValueSize, u.MaxValueSize)
	setInt(&o.MaxEntries, u.MaxEntries)
	setUint64(&o.DefaultLimits.MaxGas, u.DefaultMaxGas)
	setUint64(&o.DefaultLimits.MaxMemory, u.DefaultMaxMemory)
	setUint64(&o.DefaultLimits.MaxStorage, u.DefaultMaxStorage)
	if u.DefaultMaxCallDepth != nil {
		o.DefaultLimits.MaxCallDepth = *u.DefaultMaxCallDepth
	}
	setUint64(&o.CeilingMaxGas, u.CeilingMaxGas)
	setUint64(&o.CeilingMaxMemory, u.CeilingMaxMemory)
	if u.RollbackDepth != nil && *u.RollbackDepth >= 0 {
		o.RollbackDepth = *u.RollbackDepth
	}
	setDuration(&o.MinUpgradeInterval, u.MinUpgradeInterval)
	setInt(&o.MaxUpgradesPerDay, u.MaxUpgradesPerDay)
	setInt(&o.MaxConcurrentOperations, u.MaxConcurrentOperations)
	setInt(&o.MaxOperationsPerContract, u.MaxOperationsPerContract)
	setInt(&o.MaxOperationsPerSecond, u.MaxOperationsPerSecond)
	setDuration(&o.OperationTimeout, u.OperationTimeout)
	if u.UseCompiler != nil {
		o.UseCompiler = *u.UseCompiler
	}
	setInt(&o.BufferSize, u.BufferSize)
	setDuration(&o.ExecutionTimeout, u.ExecutionTimeout)
	setInt(&o.MaxCompiledModules, u.MaxCompiledModules)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setUint64(dst *uint64, v *uint64) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) {
	if v == nil {
		return
	}
	if d, err := time.ParseDuration(*v); err == nil {
		*dst = d
	}
}

// GetOptions 获取完整的合约核心配置选项
func (c *Config) GetOptions() *ContractOptions { return c.options }

// IsRollbackUnbounded 是否允许无限步回滚
func (c *Config) IsRollbackUnbounded() bool { return c.options.RollbackDepth == 0 }

// IsUpgradeRateLimited 是否启用升级频率限制
func (c *Config) IsUpgradeRateLimited() bool {
	return c.options.MinUpgradeInterval > 0 || c.options.MaxUpgradesPerDay > 0
}
