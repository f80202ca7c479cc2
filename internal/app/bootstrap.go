package app

import (
	"context"
	"fmt"

	appconfig "github.com/weisyn/contractcore/internal/config"
	"github.com/weisyn/contractcore/internal/core/contract"
	"github.com/weisyn/contractcore/internal/core/infrastructure/clock"
	"github.com/weisyn/contractcore/internal/core/infrastructure/crypto"
	"github.com/weisyn/contractcore/internal/core/infrastructure/event"
	"github.com/weisyn/contractcore/internal/core/infrastructure/log"
	"github.com/weisyn/contractcore/internal/core/infrastructure/metrics"
	"github.com/weisyn/contractcore/internal/core/infrastructure/storage"
	"github.com/weisyn/contractcore/internal/core/infrastructure/writegate"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"go.uber.org/fx"
)

// Bootstrap 按层组装 fx 模块
type Bootstrap struct {
	options *options
	fxApp   *fx.App
}

// SetupInfrastructureLayer 基础设施层模块
func (b *Bootstrap) SetupInfrastructureLayer() []fx.Option {
	return []fx.Option{
		fx.Supply(fx.Annotate(b.options, fx.As(new(config.AppOptions)))),
		appconfig.Module(), // 1. 配置(不依赖其他)
		log.Module(),       // 2. 日志(依赖配置)
		metrics.Module(),   // 3. 指标(依赖配置)
		clock.Module(),     // 4. 时钟(依赖配置、日志、指标)
		crypto.Module(),    // 5. 哈希
		event.Module(),     // 6. 事件总线
		storage.Module(),   // 7. 键值存储
		writegate.Module(), // 8. 写门闸(依赖时钟)
	}
}

// SetupBusinessLayer 业务层模块
func (b *Bootstrap) SetupBusinessLayer() []fx.Option {
	return []fx.Option{
		contract.Module(),
	}
}

// SetupModules 设置所有应用模块
func (b *Bootstrap) SetupModules() []fx.Option {
	var allModules []fx.Option
	allModules = append(allModules, b.SetupInfrastructureLayer()...)
	allModules = append(allModules, b.SetupBusinessLayer()...)
	return allModules
}

// CreateFxApp 创建fx应用，targets 通过 fx.Populate 取出所需服务
func (b *Bootstrap) CreateFxApp(targets ...interface{}) error {
	appOptions := []fx.Option{
		fx.Options(b.SetupModules()...),
		// 禁用fx内部日志
		fx.NopLogger,
	}
	if len(targets) > 0 {
		appOptions = append(appOptions, fx.Populate(targets...))
	}
	b.fxApp = fx.New(appOptions...)
	if err := b.fxApp.Err(); err != nil {
		return fmt.Errorf("装配应用失败: %w", err)
	}
	return nil
}

// StartApp 启动应用程序
func (b *Bootstrap) StartApp(ctx context.Context) error {
	if err := b.fxApp.Start(ctx); err != nil {
		return fmt.Errorf("启动应用失败: %w", err)
	}
	return nil
}

// StopApp 停止应用程序
func (b *Bootstrap) StopApp(ctx context.Context) error {
	if err := b.fxApp.Stop(ctx); err != nil {
		return fmt.Errorf("停止应用失败: %w", err)
	}
	return nil
}
