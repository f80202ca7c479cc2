package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	metricsInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/metrics"
	"go.uber.org/fx"
)

// ModuleParams 指标模块依赖
type ModuleParams struct {
	fx.In

	Provider config.Provider
}

// ModuleOutput 指标模块输出
type ModuleOutput struct {
	fx.Out

	Recorder metricsInterface.Recorder
	Registry *prometheus.Registry
}

// Module 返回 metrics 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 创建以应用名为命名空间的指标记录器
func ProvideServices(params ModuleParams) ModuleOutput {
	recorder := NewPrometheusRecorder(params.Provider.GetAppName())
	return ModuleOutput{
		Recorder: recorder,
		Registry: recorder.Registry(),
	}
}
