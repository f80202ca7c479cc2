// Package execution 合约执行引擎
//
// 引擎解析地址的当前版本，检查方法与权限，在沙箱中运行字节码，并在成功时
// 原子提交暂存的状态写入。任何故障（trap、OutOfGas、CallDepthExceeded）都
// 丢弃写入与事件，状态保持调用前的样子。
package execution

import (
	"context"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	logpkg "github.com/weisyn/contractcore/internal/core/infrastructure/log"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	types "github.com/weisyn/contractcore/pkg/types/contract"
)

// Engine 执行引擎实现
type Engine struct {
	registry contractif.VersionRegistry
	state    contractif.StateManager
	access   contractif.AccessControl
	sandbox  contractif.Sandbox
	options  *contractconfig.ContractOptions
	logger   log.Logger
}

var _ contractif.ExecutionEngine = (*Engine)(nil)

// Params 执行引擎依赖
type Params struct {
	Registry contractif.VersionRegistry
	State    contractif.StateManager
	Access   contractif.AccessControl
	Sandbox  contractif.Sandbox
	Options  *contractconfig.ContractOptions
	Logger   log.Logger
}

// New 创建执行引擎
func New(p Params) *Engine {
	if p.Options == nil {
		p.Options = contractconfig.Default()
	}
	return &Engine{
		registry: p.Registry,
		state:    p.State,
		access:   p.Access,
		sandbox:  p.Sandbox,
		options:  p.Options,
		logger:   logpkg.NewModuleLogger(p.Logger, "contract.execution"),
	}
}

// Execute 执行当前版本的方法
func (e *Engine) Execute(ctx context.Context, req types.ExecutionRequest) (*types.ExecutionOutcome, error) {
	version, err := e.registry.GetLatest(req.Address)
	if err != nil {
		return nil, err
	}
	method, ok := version.ABI.Method(req.Method)
	if !ok {
		return nil, types.ErrInvalidInput.With("method %q not declared by %s@%s", req.Method, req.Address, version.Metadata.Version)
	}
	if method.Privileged {
		if err := e.access.RequireRole(method.RequiredRole(), req.Caller); err != nil {
			return nil, err
		}
	}
	if e.state.IsCorrupted(req.Address) {
		return nil, types.ErrCorruptedState.With("%s is quarantined", req.Address)
	}
	limits, err := e.registry.Limits(req.Address)
	if err != nil {
		return nil, err
	}

	host := newHostEnv(e.state, req.Address, gasBudget(req.GasLimit, limits.MaxGas), e.options.MaxKeySize, e.options.MaxValueSize)
	ret, err := e.sandbox.Call(ctx, contractif.Invocation{
		CodeHash: version.CodeHash,
		Bytecode: version.Bytecode,
		Method:   req.Method,
		Args:     req.Args,
		Limits:   limits,
	}, host)
	if err != nil {
		e.logger.Debugf("执行失败，丢弃写入: address=%s method=%s gas=%d err=%v", req.Address, req.Method, host.used, err)
		return nil, err
	}

	if changes := host.changeset(); len(changes) > 0 {
		if err := e.state.ApplyChangeset(ctx, req.Address, changes); err != nil {
			return nil, err
		}
	}
	events := host.events
	if events == nil {
		events = []types.ContractEvent{}
	}
	return &types.ExecutionOutcome{ReturnValue: ret, GasUsed: host.used, Events: events}, nil
}

// gasBudget 请求上限与部署上限取小；请求为0时使用部署上限
func gasBudget(requested, max uint64) uint64 {
	if requested == 0 || requested > max {
		return max
	}
	return requested
}

// Validate 部署前校验字节码与ABI
func (e *Engine) Validate(ctx context.Context, bytecode []byte, abi types.ABI, limits types.ResourceLimits) error {
	if len(bytecode) == 0 {
		return types.ErrInvalidBytecode.With("empty bytecode")
	}
	names, err := abi.MethodNames()
	if err != nil {
		return err
	}
	return e.sandbox.Validate(ctx, bytecode, names, limits)
}

// Close 关闭沙箱
func (e *Engine) Close(ctx context.Context) error {
	return e.sandbox.Close(ctx)
}
