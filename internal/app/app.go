// Package app 组装合约核心应用：加载配置、创建 fx 应用并暴露运行时
package app

import (
	"context"
	"errors"

	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	contractif "github.com/weisyn/contractcore/pkg/interfaces/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
)

// App 已启动的合约核心应用
type App struct {
	bootstrap *Bootstrap

	Runtime contractif.Runtime
	Engine  contractif.ExecutionEngine
	Options *contractconfig.ContractOptions
	Logger  log.Logger
}

// Start 加载配置并启动应用；调用方负责 Stop
func Start(ctx context.Context, opts ...Option) (*App, error) {
	o := newOptions(opts...)
	if err := o.load(); err != nil {
		return nil, err
	}

	a := &App{bootstrap: &Bootstrap{options: o}}
	if err := a.bootstrap.CreateFxApp(&a.Runtime, &a.Engine, &a.Options, &a.Logger); err != nil {
		return nil, err
	}
	if err := a.bootstrap.StartApp(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Stop 停止应用并释放存储与沙箱
func (a *App) Stop(ctx context.Context) error {
	return a.bootstrap.StopApp(ctx)
}

// Run 启动应用、执行 fn 后停止；fn 与停止的错误合并返回
func Run(ctx context.Context, fn func(ctx context.Context, a *App) error, opts ...Option) error {
	a, err := Start(ctx, opts...)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Stop(context.Background()))
}
