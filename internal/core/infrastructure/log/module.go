package log

import (
	"context"
	"fmt"

	"github.com/weisyn/contractcore/pkg/interfaces/config"
	logInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	logconfig "github.com/weisyn/contractcore/internal/config/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ModuleParams 日志模块依赖
type ModuleParams struct {
	fx.In

	Provider  config.Provider
	Lifecycle fx.Lifecycle
}

// ModuleOutput 日志模块输出
type ModuleOutput struct {
	fx.Out

	Logger    logInterface.Logger
	ZapLogger *zap.Logger
}

// Module 返回日志模块
func Module() fx.Option {
	return fx.Module("log",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 根据配置创建日志记录器并设为全局记录器
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	logger, err := New(logconfig.NewFromOptions(params.Provider.GetLog()))
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("根据用户配置创建日志记录器失败: %w", err)
	}
	SetLogger(logger)

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stderr/stdout 上的 Sync 在部分平台返回 EINVAL，忽略即可
			_ = logger.Sync()
			return nil
		},
	})

	return ModuleOutput{
		Logger:    logger,
		ZapLogger: logger.GetZapLogger(),
	}, nil
}
