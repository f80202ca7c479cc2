package writegate

import (
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	wgif "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/writegate"
	"go.uber.org/fx"
)

// ModuleInput 写门闸模块依赖
type ModuleInput struct {
	fx.In

	Clock clock.Clock `optional:"true"`
}

// ModuleOutput 写门闸模块输出
type ModuleOutput struct {
	fx.Out

	WriteGate wgif.WriteGate
}

// Module 返回写门闸模块
func Module() fx.Option {
	return fx.Module("writegate",
		fx.Provide(ProvideWriteGate),
	)
}

// ProvideWriteGate 每个应用一个写门闸实例
func ProvideWriteGate(input ModuleInput) ModuleOutput {
	return ModuleOutput{WriteGate: New(input.Clock)}
}
