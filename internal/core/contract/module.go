// Package contract 合约核心的依赖注入模块
//
// 📋 **合约核心模块**
//
// 通过 fx 将访问控制、状态管理、WASM 沙箱、版本注册表、执行引擎与运行时
// 组装为统一的 contractif.Runtime 服务。
//
// 📦 **子模块组织**：
// - access/         - 角色与审计日志
// - state/          - 状态、快照、迁移与隔离
// - execution/wasm/ - wazero 沙箱与宿主函数
// - execution/      - 执行引擎（gas 预算、写集合提交）
// - registry/       - 版本注册、升级与回滚
// - runtime/        - 对外入口（地址串行化与并发限制）
//
// 🔗 **启动顺序**：OnStart 依次恢复访问控制、状态与注册表；OnStop 关闭沙箱。
package contract

import (
	"context"
	"fmt"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/internal/core/contract/access"
	"github.com/weisyn/contractcore/internal/core/contract/execution"
	"github.com/weisyn/contractcore/internal/core/contract/execution/wasm"
	"github.com/weisyn/contractcore/internal/core/contract/registry"
	"github.com/weisyn/contractcore/internal/core/contract/runtime"
	"github.com/weisyn/contractcore/internal/core/contract/state"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/crypto"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/writegate"
	"go.uber.org/fx"
)

// ModuleInput 合约核心模块依赖
//
// ⚠️ optional:"true" 的依赖允许为 nil，各组件内部回退为空实现。
type ModuleInput struct {
	fx.In

	Options   *contractconfig.ContractOptions
	Store     storage.KVStore
	Clock     clock.Clock
	Hasher    crypto.HashManager
	Logger    log.Logger          `optional:"true"`
	EventBus  event.EventBus      `optional:"true"`
	Metrics   metrics.Recorder    `optional:"true"`
	WriteGate writegate.WriteGate `optional:"true"`
	Lifecycle fx.Lifecycle
}

// ModuleOutput 合约核心模块输出
type ModuleOutput struct {
	fx.Out

	Runtime       contractif.Runtime
	Registry      contractif.VersionRegistry
	StateManager  contractif.StateManager
	AccessControl contractif.AccessControl
	Engine        contractif.ExecutionEngine
}

// Module 返回合约核心模块
func Module() fx.Option {
	return fx.Module("contract",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 创建合约核心全部组件并注册生命周期钩子
func ProvideServices(in ModuleInput) (ModuleOutput, error) {
	acl := access.New(in.Store, in.Clock, in.EventBus, in.Metrics, in.Logger)
	sm := state.New(state.Params{
		Store:   in.Store,
		Clock:   in.Clock,
		Hasher:  in.Hasher,
		Bus:     in.EventBus,
		Metrics: in.Metrics,
		Options: in.Options,
		Logger:  in.Logger,
	})
	sandbox, err := wasm.New(in.Options, in.Logger)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("创建WASM沙箱失败: %w", err)
	}
	reg := registry.New(registry.Params{
		Store:   in.Store,
		Access:  acl,
		State:   sm,
		Sandbox: sandbox,
		Hasher:  in.Hasher,
		Clock:   in.Clock,
		Metrics: in.Metrics,
		Options: in.Options,
		Logger:  in.Logger,
	})
	engine := execution.New(execution.Params{
		Registry: reg,
		State:    sm,
		Access:   acl,
		Sandbox:  sandbox,
		Options:  in.Options,
		Logger:   in.Logger,
	})
	rt := runtime.New(runtime.Params{
		Registry: reg,
		State:    sm,
		Access:   acl,
		Engine:   engine,
		Bus:      in.EventBus,
		Clock:    in.Clock,
		Metrics:  in.Metrics,
		Options:  in.Options,
		Gate:     in.WriteGate,
		Logger:   in.Logger,
	})

	in.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := acl.Load(ctx); err != nil {
				return fmt.Errorf("恢复访问控制失败: %w", err)
			}
			if err := sm.Load(ctx); err != nil {
				return fmt.Errorf("恢复合约状态失败: %w", err)
			}
			if err := reg.Load(ctx); err != nil {
				return fmt.Errorf("恢复版本注册表失败: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return engine.Close(ctx)
		},
	})

	return ModuleOutput{
		Runtime:       rt,
		Registry:      reg,
		StateManager:  sm,
		AccessControl: acl,
		Engine:        engine,
	}, nil
}
