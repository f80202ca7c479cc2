// Package config 汇总各领域配置并通过 fx 提供
package config

import (
	contractconfig "github.com/weisyn/contractcore/internal/config/contract"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"go.uber.org/fx"
)

// ModuleParams 配置模块依赖；未提供 AppOptions 时全部取默认值
type ModuleParams struct {
	fx.In

	AppOptions config.AppOptions `optional:"true"`
}

// Module 提供 config.Provider 以及合约核心直接消费的 *ContractOptions
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			ProvideProvider,
			ProvideContractOptions,
		),
	)
}

// ProvideProvider 由用户配置构建 Provider
func ProvideProvider(params ModuleParams) config.Provider {
	if params.AppOptions == nil {
		return NewProvider(nil)
	}
	return NewProvider(params.AppOptions.GetAppConfig())
}

// ProvideContractOptions 合约模块只依赖自己的配置段
func ProvideContractOptions(provider config.Provider) *contractconfig.ContractOptions {
	return provider.GetContract()
}
