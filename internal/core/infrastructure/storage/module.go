// Package storage 按配置选择合约核心使用的键值存储后端
package storage

import (
	"context"

	"github.com/weisyn/contractcore/pkg/interfaces/config"
	"github.com/weisyn/contractcore/pkg/interfaces/infrastructure/log"
	storageInterface "github.com/weisyn/contractcore/pkg/interfaces/infrastructure/storage"
	"go.uber.org/fx"
)

// ModuleParams 定义存储模块的依赖参数
type ModuleParams struct {
	fx.In

	Provider  config.Provider
	Logger    log.Logger
	Lifecycle fx.Lifecycle
}

// ModuleOutput 定义存储模块的输出结构
type ModuleOutput struct {
	fx.Out

	KVStore storageInterface.KVStore
}

// Module 返回存储模块
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideServices),
	)
}

// ProvideServices 创建存储并在应用停止时关闭
func ProvideServices(params ModuleParams) (ModuleOutput, error) {
	store, err := NewKVStore(context.Background(), params.Provider, params.Logger)
	if err != nil {
		return ModuleOutput{}, err
	}
	params.Logger.Infof("存储后端已就绪: %s", params.Provider.GetStorageBackend())

	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := store.Close(); err != nil {
				params.Logger.Errorf("关闭存储失败: %v", err)
				return err
			}
			return nil
		},
	})

	return ModuleOutput{KVStore: store}, nil
}
