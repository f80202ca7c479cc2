package clock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	clockconfig "github.com/weisyn/contractcore/internal/config/clock"
	"github.com/weisyn/contractcore/pkg/interfaces/config"
	infraClock "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/clock"
	logInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	"go.uber.org/fx"
)

// ModuleParams 时钟模块依赖
type ModuleParams struct {
	fx.In

	Provider config.Provider
	Logger   logInterface.Logger  `optional:"true"`
	Registry *prometheus.Registry `optional:"true"`
}

// Module 返回时钟模块
func Module() fx.Option {
	return fx.Module("clock",
		fx.Provide(ProvideClock),
	)
}

// ProvideClock 按配置类型创建时钟；未知类型回退为系统时钟
func ProvideClock(params ModuleParams) infraClock.Clock {
	opts := params.Provider.GetClock()
	switch opts.Type {
	case clockconfig.TypeNTP:
		c := NewNTPClock(opts)
		if params.Registry != nil {
			if err := RegisterNTPMetrics(params.Registry, params.Provider.GetAppName(), c); err != nil && params.Logger != nil {
				params.Logger.Warnf("注册时钟指标失败: %v", err)
			}
		}
		if _, _, _, err := c.Health(); err != nil && params.Logger != nil {
			params.Logger.Warnf("NTP 初次同步失败，使用本地时间: %v", err)
		}
		return c
	case clockconfig.TypeDeterministic:
		return NewDeterministicClock(time.Unix(opts.DeterministicBaseUnix, 0))
	case clockconfig.TypeSystem:
		return NewSystemClock()
	default:
		if params.Logger != nil {
			params.Logger.Warnf("未知时钟类型 %q，使用系统时钟", opts.Type)
		}
		return NewSystemClock()
	}
}
