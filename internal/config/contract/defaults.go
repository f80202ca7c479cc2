package contract

import "time"

// 合约核心默认配置值
const (
	// === 部署 ===

	// defaultMaxBytecodeSize 字节码全局上限 2MB
	// 原因：与升级包大小上限保持一致，超出部分通常是未裁剪的调试段
	defaultMaxBytecodeSize = 2 << 20

	// defaultMaxDescriptionLength 描述最大字节数
	defaultMaxDescriptionLength = 1024

	// === 状态 ===

	// defaultMaxKeySize 单个键上限 1KB
	defaultMaxKeySize = 1 << 10

	// defaultMaxValueSize 单个值上限 1MB
	defaultMaxValueSize = 1 << 20

	// defaultMaxEntries 单个合约键数量上限
	defaultMaxEntries = 100_000

	// === 资源限制（部署未指定时使用） ===

	defaultMaxGas       = 10_000_000
	defaultMaxMemory    = 16 << 20  // 256 页
	defaultMaxStorage   = 100 << 20 // 100MB
	defaultMaxCallDepth = 256

	// ceilingMaxGas / ceilingMaxMemory 部署可申请的上限
	// 原因：防止单个部署申请超出节点承受能力的资源
	defaultCeilingMaxGas    = 1_000_000_000
	defaultCeilingMaxMemory = 256 << 20

	// === 版本 ===

	// defaultRollbackDepth 连续回滚的最大步数
	// 原因：默认只允许回到紧邻的上一个版本，多步回滚需显式配置
	defaultRollbackDepth = 1

	// defaultMinUpgradeInterval / defaultMaxUpgradesPerDay 升级频率限制
	// 原因：默认关闭，由部署方按治理需求开启
	defaultMinUpgradeInterval = time.Duration(0)
	defaultMaxUpgradesPerDay  = 0

	// === 运行时 ===

	defaultMaxConcurrentOperations  = 100
	defaultMaxOperationsPerContract = 10
	defaultMaxOperationsPerSecond   = 1000

	// defaultOperationTimeout 操作跟踪记录的过期时间
	// 原因：仅用于清理异常遗留的跟踪记录，不会中断执行
	defaultOperationTimeout = 30 * time.Second

	// defaultHistoryWindow 操作历史保留窗口
	defaultHistoryWindow = 60 * time.Second

	// === 沙箱 ===

	// defaultUseCompiler 默认使用解释器
	// 原因：解释器在所有平台上行为一致，调用深度监听开销可预测
	defaultUseCompiler = false

	// defaultBufferSize 参数区与读缓冲区各自的大小
	defaultBufferSize = 4096

	// defaultExecutionTimeout 单次调用的墙钟上限
	defaultExecutionTimeout = 5 * time.Second

	// defaultMaxCompiledModules 编译缓存最多保留的模块数
	defaultMaxCompiledModules = 256
)
