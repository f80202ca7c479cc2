package contract

// ExecutionRequest 一次合约调用
//
// GasLimit 为 0 时使用部署时的 MaxGas。调用所需的时间、随机数等外部输入
// 只能由调用方编码进 Args。
type ExecutionRequest struct {
	Address  Address `json:"address"`
	Method   string  `json:"method"`
	Args     []byte  `json:"args,omitempty"`
	Caller   Account `json:"caller"`
	GasLimit uint64  `json:"gas_limit"`
}

// ContractEvent 合约执行期间发出的事件
type ContractEvent struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// ExecutionOutcome 调用结果
type ExecutionOutcome struct {
	ReturnValue []byte          `json:"return_value"`
	GasUsed     uint64          `json:"gas_used"`
	Events      []ContractEvent `json:"events"`
}

// OperationType 运行时跟踪的操作类型
type OperationType string

const (
	OpDeploy      OperationType = "deploy"
	OpUpgrade     OperationType = "upgrade"
	OpExecute     OperationType = "execute"
	OpStateUpdate OperationType = "state_update"
	OpRollback    OperationType = "rollback"
	OpMigrate     OperationType = "migrate"
	OpRestore     OperationType = "restore"
)
