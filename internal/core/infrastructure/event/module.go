package event

import (
	"context"

	"go.uber.org/fx"

	eventconfig "github.com/weisyn/contractcore/internal/config/event"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	eventInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
)

// ModuleInput 事件模块输入依赖
type ModuleInput struct {
	fx.In

	Provider  config.Provider
	Logger    log.Logger `optional:"true"`
	Lifecycle fx.Lifecycle
}

// ModuleOutput 事件模块输出服务
type ModuleOutput struct {
	fx.Out

	EventBus eventInterface.EventBus
}

// Module 返回事件模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(ProvideEventBus),
	)
}

// ProvideEventBus 创建事件总线，停止时等待异步处理完成
func ProvideEventBus(input ModuleInput) ModuleOutput {
	bus := New(eventconfig.NewFromOptions(input.Provider.GetEvent()), input.Logger)

	input.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			bus.WaitAsync()
			if input.Logger != nil {
				input.Logger.Debugf("事件总线已停止，共发布 %d 个事件", bus.PublishedCount())
			}
			return nil
		},
	})

	return ModuleOutput{EventBus: bus}
}
