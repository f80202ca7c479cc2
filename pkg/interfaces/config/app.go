// Package config 定义配置层对外接口
package config

import "github.com/weisyn/contractcore/pkg/types"

// AppOptions 用户配置来源（配置文件与命令行覆盖合并后的结果）
//
// 返回 nil 表示全部使用默认值。
type AppOptions interface {
	GetAppConfig() *types.AppConfig
}
